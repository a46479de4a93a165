package render

// Shared series preparation for the terminal and PNG charts

import (
	"fmt"
	"math"

	"github.com/tturner/gpdplot/internal/gpd"
)

const (
	upName   = "GPD Up"
	downName = "GPD Down"
)

// curve is one plotted line: xu or xd against x for a single dataset.
type curve struct {
	name  string
	index int // dataset position in the tab
	up    bool
	xs    []float64
	ys    []float64
}

// curves turns datasets into two curves each, oldest dataset first.
func curves(datasets []gpd.Dataset) []curve {
	out := make([]curve, 0, 2*len(datasets))
	for i, ds := range datasets {
		up := curve{name: seriesName(upName, i, len(datasets)), index: i, up: true}
		down := curve{name: seriesName(downName, i, len(datasets)), index: i}
		for _, p := range ds.Points {
			up.xs = append(up.xs, p.X)
			up.ys = append(up.ys, p.XU)
			down.xs = append(down.xs, p.X)
			down.ys = append(down.ys, p.XD)
		}
		out = append(out, up, down)
	}
	return out
}

func seriesName(base string, i, total int) string {
	if total == 1 {
		return base
	}
	return fmt.Sprintf("%s #%d", base, i+1)
}

// bounds returns the x and y extents of every curve, widened when degenerate.
func bounds(cs []curve) (minX, maxX, minY, maxY float64, ok bool) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, c := range cs {
		for i := range c.xs {
			minX = math.Min(minX, c.xs[i])
			maxX = math.Max(maxX, c.xs[i])
			minY = math.Min(minY, c.ys[i])
			maxY = math.Max(maxY, c.ys[i])
		}
	}
	if math.IsInf(minX, 1) {
		return 0, 0, 0, 0, false
	}
	if maxX == minX {
		minX, maxX = minX-0.5, maxX+0.5
	}
	if maxY == minY {
		minY, maxY = minY-1, maxY+1
	}
	return minX, maxX, minY, maxY, true
}

// Legend describes each dataset of a tab on one line.
func Legend(datasets []gpd.Dataset) []string {
	lines := make([]string, len(datasets))
	for i, ds := range datasets {
		lines[i] = fmt.Sprintf("#%d %s", i+1, ds.Options)
	}
	return lines
}
