package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/tturner/gpdplot/internal/gpd"
)

// formKind says which embedded huh form is open.
type formKind int

const (
	formNone formKind = iota
	formQ2
	formDownload
)

func buildQ2Form(value *string, r gpd.Q2Range) *huh.Form {
	desc := "Any positive value."
	if r.Known {
		desc = "Allowed range " + r.String()
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("q2").
				Description(desc).
				Key("q2").
				Value(value).
				Validate(func(s string) error {
					_, err := parseQ2(s, r)
					return err
				}),
		),
	).WithShowHelp(false)
}

func buildDownloadForm(value *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Download as CSV").
				Description("File name for the current selection.").
				Key("filename").
				Value(value).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("file name is required")
					}
					return nil
				}),
		),
	).WithShowHelp(false)
}

// parseQ2 reads a q2 entry and checks it against the resolved range.
func parseQ2(s string, r gpd.Q2Range) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("q2 must be a number")
	}
	if v <= 0 {
		return 0, fmt.Errorf("q2 must be positive")
	}
	if !r.Contains(v) {
		return 0, fmt.Errorf("q2 must be within %s", r)
	}
	return v, nil
}
