package tui

import (
	"strings"
)

// Layout constants
const (
	DefaultWidth  = 100
	DefaultHeight = 36
	MinWidth      = 60
	MaxWidth      = 160

	// rows used by header, options box, status lines, tab bar, key line and footer
	chromeHeight = 17
	minChart     = 8
)

// Layout holds layout calculations for the current terminal size.
type Layout struct {
	Width  int
	Height int

	ContentWidth int
	ChartHeight  int
}

// NewLayout creates a new layout for the given terminal size.
func NewLayout(width, height int) Layout {
	if width < MinWidth {
		width = MinWidth
	}
	if width > MaxWidth {
		width = MaxWidth
	}

	l := Layout{
		Width:  width,
		Height: height,
	}
	l.ContentWidth = width - 4
	l.ChartHeight = height - chromeHeight
	if l.ChartHeight < minChart {
		l.ChartHeight = minChart
	}
	return l
}

// JoinVertical joins non-empty strings vertically with the specified gap.
func JoinVertical(gap int, parts ...string) string {
	spacer := strings.Repeat("\n", gap)
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, spacer)
}
