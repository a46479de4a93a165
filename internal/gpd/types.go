package gpd

// Core value types shared by the resolver, cascade, tab store and fetch layers

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GPD identifies the generalized parton distribution being plotted.
type GPD string

const (
	GPDE GPD = "GPD_E"
	GPDH GPD = "GPD_H"
)

// AllGPDs lists the selectable GPD types in display order.
var AllGPDs = []GPD{GPDE, GPDH}

// ParseGPD accepts "GPD_E", "E", "gpd_h", ...
func ParseGPD(s string) (GPD, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "GPD_")
	switch v {
	case "E":
		return GPDE, nil
	case "H":
		return GPDH, nil
	}
	return "", fmt.Errorf("unknown GPD %q (want GPD_E or GPD_H)", s)
}

// Model identifies the model variant served by the backend.
type Model string

const (
	ModelBKM Model = "BKM"
	ModelUVA Model = "UVA"
)

// AllModels lists the selectable models in display order.
var AllModels = []Model{ModelBKM, ModelUVA}

// ParseModel accepts the display label ("BKM Model"), the service slug ("bkm") or the name.
func ParseModel(s string) (Model, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.TrimSuffix(v, " MODEL")
	switch v {
	case "BKM":
		return ModelBKM, nil
	case "UVA":
		return ModelUVA, nil
	}
	return "", fmt.Errorf("unknown model %q (want BKM or UVA)", s)
}

// Label is the human-readable name shown in forms.
func (m Model) Label() string {
	return string(m) + " Model"
}

// Slug is the path segment the model service expects.
func (m Model) Slug() string {
	return strings.ToLower(string(m))
}

// Options is one immutable selection of every form field.
// Use the With* helpers to derive a new value; never mutate a shared copy.
type Options struct {
	GPD   GPD     `json:"gpd"`
	Model Model   `json:"model"`
	Xbj   float64 `json:"xbj"`
	T     float64 `json:"t"`
	Q2    float64 `json:"q2"`
}

func (o Options) WithGPD(g GPD) Options     { o.GPD = g; return o }
func (o Options) WithModel(m Model) Options { o.Model = m; return o }
func (o Options) WithXbj(x float64) Options { o.Xbj = x; return o }
func (o Options) WithT(t float64) Options   { o.T = t; return o }
func (o Options) WithQ2(q2 float64) Options { o.Q2 = q2; return o }

func (o Options) String() string {
	return fmt.Sprintf("%s/%s xbj=%s t=%s q2=%s", o.Model, o.GPD,
		FormatValue(o.Xbj), FormatValue(o.T), FormatValue(o.Q2))
}

// Q2Range is the closed interval of valid q2 values. Known is false until a
// resolver response carried one.
type Q2Range struct {
	Min   float64
	Max   float64
	Known bool
}

// Contains reports whether q2 lies inside the range. An unknown range accepts everything.
func (r Q2Range) Contains(q2 float64) bool {
	if !r.Known {
		return true
	}
	return q2 >= r.Min && q2 <= r.Max
}

// Clamp moves q2 into the range.
func (r Q2Range) Clamp(q2 float64) float64 {
	if !r.Known {
		return q2
	}
	return math.Min(math.Max(q2, r.Min), r.Max)
}

// String renders the hint shown next to the q2 field, e.g. "(0.05 to 2)".
func (r Q2Range) String() string {
	if !r.Known {
		return ""
	}
	return fmt.Sprintf("(%s to %s)", FormatValue(r.Min), FormatValue(r.Max))
}

// Domain is the set of currently valid choices for the dependent parameters.
type Domain struct {
	XbjChoices []float64
	TChoices   []float64
	Q2Range    Q2Range
}

// Clone returns a deep copy so callers can hold it across updates.
func (d Domain) Clone() Domain {
	return Domain{
		XbjChoices: append([]float64(nil), d.XbjChoices...),
		TChoices:   append([]float64(nil), d.TChoices...),
		Q2Range:    d.Q2Range,
	}
}

func (d Domain) HasXbj(x float64) bool { return IndexOf(d.XbjChoices, x) >= 0 }
func (d Domain) HasT(t float64) bool   { return IndexOf(d.TChoices, t) >= 0 }

// XbjUpdate is the resolver answer to a new xbj selection.
type XbjUpdate struct {
	TChoices []float64
	Q2Range  Q2Range
}

// TUpdate is the resolver answer to a new t selection.
type TUpdate struct {
	XbjChoices []float64
	Q2Range    Q2Range
}

// DataPoint is one row of a model table.
type DataPoint struct {
	X  float64 `json:"x"`
	U  float64 `json:"u"`
	D  float64 `json:"d"`
	XU float64 `json:"xu"`
	XD float64 `json:"xd"`
}

// Dataset is the result of one fetch. Point order defines the plotted curve.
type Dataset struct {
	Options Options
	Points  []DataPoint
}

// TabID indexes a display surface.
type TabID = int

// RequestToken stamps asynchronous requests; larger is newer.
type RequestToken uint64

// IndexOf finds v in choices using a relative tolerance, since choices arrive as
// decimal JSON and user values may have been parsed from text.
func IndexOf(choices []float64, v float64) int {
	for i, c := range choices {
		if Same(c, v) {
			return i
		}
	}
	return -1
}

// Same compares two kinematic values with relative tolerance 1e-9.
func Same(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	return diff <= 1e-9*scale
}

// FormatValue prints a float the way the service path and form display expect it.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
