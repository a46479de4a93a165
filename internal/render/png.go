package render

// PNG charts via go-chart, one file per tab

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/tturner/gpdplot/internal/gpd"
)

// ErrNothingToPlot is returned when a tab has no points.
var ErrNothingToPlot = errors.New("nothing to plot")

func lineStyle(col drawing.Color, dashed bool) chart.Style {
	st := chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
	}
	if dashed {
		st.StrokeDashArray = []float64{6, 4}
	}
	return st
}

// WritePNG renders the datasets of one tab as a PNG image.
func WritePNG(w io.Writer, title string, datasets []gpd.Dataset, width, height int) error {
	cs := curves(datasets)
	minX, maxX, minY, maxY, ok := bounds(cs)
	if !ok {
		return ErrNothingToPlot
	}

	series := make([]chart.Series, 0, len(cs))
	for _, c := range cs {
		xs, ys := c.xs, c.ys
		// go-chart needs at least two x values
		if len(xs) == 1 {
			xs = []float64{xs[0], xs[0] + (maxX-minX)/100}
			ys = []float64{ys[0], ys[0]}
		}
		series = append(series, chart.ContinuousSeries{
			Name:    c.name,
			XValues: xs,
			YValues: ys,
			Style:   lineStyle(chart.GetDefaultColor(c.index), !c.up),
		})
	}

	ch := chart.Chart{
		Title:      title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  "x",
			Range: &chart.ContinuousRange{Min: minX, Max: maxX},
		},
		YAxis: chart.YAxis{
			Name:  "xGPD",
			Range: &chart.ContinuousRange{Min: minY, Max: maxY},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// PNGRenderer writes Dir/tab-<id>.png after every plot.
type PNGRenderer struct {
	Dir    string
	Width  int
	Height int
}

// Path is the file written for tabID.
func (r *PNGRenderer) Path(tabID gpd.TabID) string {
	return filepath.Join(r.Dir, fmt.Sprintf("tab-%d.png", tabID))
}

// Render implements the plot renderer.
func (r *PNGRenderer) Render(tabID gpd.TabID, datasets []gpd.Dataset) error {
	var buf bytes.Buffer
	title := fmt.Sprintf("Tab %d", tabID)
	if len(datasets) > 0 {
		last := datasets[len(datasets)-1].Options
		title = fmt.Sprintf("%s %s (tab %d)", last.Model.Label(), last.GPD, tabID)
	}
	if err := WritePNG(&buf, title, datasets, r.Width, r.Height); err != nil {
		return err
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	if err := os.WriteFile(r.Path(tabID), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write plot: %w", err)
	}
	return nil
}

// Renderer is anything that draws a tab.
type Renderer interface {
	Render(tabID gpd.TabID, datasets []gpd.Dataset) error
}

// Multi runs every renderer and joins their errors.
type Multi []Renderer

// Render calls each renderer in order, even after a failure.
func (m Multi) Render(tabID gpd.TabID, datasets []gpd.Dataset) error {
	var errs []error
	for _, r := range m {
		if err := r.Render(tabID, datasets); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
