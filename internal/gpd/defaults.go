package gpd

// DefaultOptions is the selection the form starts with before the first
// domain resolution completes.
func DefaultOptions() Options {
	return Options{
		GPD:   GPDE,
		Model: ModelBKM,
		Xbj:   0.001,
		T:     -0.1,
		Q2:    0.1,
	}
}

// DefaultXbjChoices is the static xbj grid offered until the model service answers.
func DefaultXbjChoices() []float64 {
	return []float64{
		0.0001, 0.0002, 0.0004, 0.0006, 0.0008,
		0.001, 0.002, 0.004, 0.006, 0.008,
		0.01, 0.02, 0.04, 0.06, 0.08,
		0.1, 0.2, 0.4, 0.6,
	}
}

// DefaultTChoices is -0.1 down to -1.9 in steps of 0.1.
func DefaultTChoices() []float64 {
	out := make([]float64, 19)
	for n := range out {
		out[n] = -float64(n+1) / 10
	}
	return out
}

// DefaultDomain pairs the static grids with an unknown q2 range.
func DefaultDomain() Domain {
	return Domain{
		XbjChoices: DefaultXbjChoices(),
		TChoices:   DefaultTChoices(),
	}
}
