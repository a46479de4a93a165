package modelsvc

// Deterministic synthetic tables. These are stand-ins with the right shape,
// not physics.

import (
	"math"

	"github.com/tturner/gpdplot/internal/gpd"
)

const protonMass = 0.938272

// minAbsT is |t_min| for a given xbj: x^2 M^2 / (1 - x).
func minAbsT(xbj float64) float64 {
	return xbj * xbj * protonMass * protonMass / (1 - xbj)
}

func xbjChoices(model gpd.Model) []float64 {
	all := gpd.DefaultXbjChoices()
	if model != gpd.ModelUVA {
		return all
	}
	// UVA tables start at xbj = 0.001
	out := make([]float64, 0, len(all))
	for _, x := range all {
		if x >= 0.001 {
			out = append(out, x)
		}
	}
	return out
}

func tChoices() []float64 {
	return gpd.DefaultTChoices()
}

// tChoicesForXbj keeps the t values kinematically reachable at xbj.
func tChoicesForXbj(xbj float64) []float64 {
	limit := minAbsT(xbj)
	var out []float64
	for _, t := range tChoices() {
		if -t >= limit {
			out = append(out, t)
		}
	}
	return out
}

// xbjChoicesForT keeps the xbj values for which t is reachable.
func xbjChoicesForT(model gpd.Model, t float64) []float64 {
	var out []float64
	for _, x := range xbjChoices(model) {
		if -t >= minAbsT(x) {
			out = append(out, x)
		}
	}
	return out
}

func q2RangeForXbj(xbj float64) [2]float64 {
	if xbj <= 0.1 {
		return [2]float64{0.05, 2.0}
	}
	return [2]float64{0.05, 4.0}
}

func q2RangeForT(t float64) [2]float64 {
	if -t < 1 {
		return [2]float64{0.05, 2.0}
	}
	return [2]float64{0.1, 2.0}
}

type shape struct {
	norm, alpha, beta, slope float64
}

func shapeFor(model gpd.Model, g gpd.GPD) shape {
	s := shape{norm: 1.0, alpha: 0.5, beta: 3.0, slope: 1.2}
	if model == gpd.ModelUVA {
		s.alpha, s.slope = 0.45, 1.4
	}
	if g == gpd.GPDE {
		s.norm, s.beta = 0.6, 4.0
	}
	return s
}

// table evaluates a 99-point curve on x = 0.01 .. 0.99.
func table(opts gpd.Options) []gpd.DataPoint {
	s := shapeFor(opts.Model, opts.GPD)
	skew := opts.Xbj / (2 - opts.Xbj)
	evolution := 1 + 0.05*math.Log(opts.Q2/0.1)
	points := make([]gpd.DataPoint, 0, 99)
	for i := 1; i <= 99; i++ {
		x := float64(i) / 100
		base := s.norm * math.Pow(x, -s.alpha) * math.Pow(1-x, s.beta) * math.Exp(s.slope*opts.T*(1-x))
		base *= evolution / (1 + skew*skew/(x*x))
		u := 2 * base
		d := base * (1 - x)
		points = append(points, gpd.DataPoint{
			X:  x,
			U:  round(u),
			D:  round(d),
			XU: round(x * u),
			XD: round(x * d),
		})
	}
	return points
}

func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
