package render

// Terminal line chart built on ntcharts

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	tslc "github.com/NimbleMarkets/ntcharts/linechart/timeserieslinechart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tturner/gpdplot/internal/gpd"
)

// xScale maps x in [0, 1] onto whole seconds, since the time-series chart
// positions points by Unix time.
const xScale = 1e6

var (
	upColors   = []lipgloss.Color{"39", "45", "51", "33", "27"}
	downColors = []lipgloss.Color{"208", "214", "220", "202", "196"}
	axisStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// CurveStyle returns the colour used for a dataset's up or down curve.
func CurveStyle(index int, up bool) lipgloss.Style {
	if up {
		return lipgloss.NewStyle().Foreground(upColors[index%len(upColors)])
	}
	return lipgloss.NewStyle().Foreground(downColors[index%len(downColors)])
}

func toTime(x float64) time.Time {
	return time.Unix(int64(math.Round(x*xScale)), 0)
}

// Chart draws xu and xd against x for every dataset. An empty tab renders a
// placeholder line.
func Chart(datasets []gpd.Dataset, width, height int) string {
	if width < 20 {
		width = 20
	}
	if height < 6 {
		height = 6
	}
	cs := curves(datasets)
	minX, maxX, minY, maxY, ok := bounds(cs)
	if !ok {
		return labelStyle.Render("No data plotted on this tab yet. Press p to plot.")
	}

	chart := tslc.New(width, height)
	chart.AxisStyle = axisStyle
	chart.LabelStyle = labelStyle
	chart.SetXStep(width / 6)
	chart.SetYStep(2)
	chart.SetTimeRange(toTime(minX), toTime(maxX))
	chart.SetViewTimeRange(toTime(minX), toTime(maxX))
	chart.SetYRange(minY, maxY)
	chart.SetViewYRange(minY, maxY)
	chart.Model.XLabelFormatter = func(_ int, v float64) string {
		return gpd.FormatValue(math.Round(v/xScale*100) / 100)
	}
	chart.Model.YLabelFormatter = func(_ int, v float64) string {
		return fmt.Sprintf("%.2f", v)
	}

	for _, c := range cs {
		chart.SetDataSetStyle(c.name, CurveStyle(c.index, c.up))
		for i := range c.xs {
			chart.PushDataSet(c.name, tslc.TimePoint{Time: toTime(c.xs[i]), Value: c.ys[i]})
		}
	}
	chart.DrawBrailleAll()
	return chart.View()
}

// KeyLine renders the coloured series key under a chart.
func KeyLine(datasets []gpd.Dataset) string {
	var parts []string
	for _, c := range curves(datasets) {
		parts = append(parts, CurveStyle(c.index, c.up).Render("━ "+c.name))
	}
	return strings.Join(parts, "  ")
}

// TerminalRenderer writes the chart of a tab to Out after every plot.
type TerminalRenderer struct {
	Out    io.Writer
	Width  int
	Height int
}

// Render implements the plot renderer.
func (r *TerminalRenderer) Render(tabID gpd.TabID, datasets []gpd.Dataset) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Tab %d (%d datasets)\n", tabID, len(datasets))
	b.WriteString(Chart(datasets, r.Width, r.Height))
	b.WriteString("\n")
	b.WriteString(KeyLine(datasets))
	b.WriteString("\n")
	for _, line := range Legend(datasets) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	_, err := io.WriteString(r.Out, b.String())
	return err
}
