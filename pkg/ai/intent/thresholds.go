package intent

// GlobalFloor is the confidence below which any mode degrades to an informational fallback
const GlobalFloor = 0.50

// Thresholds maps each mode to the minimum confidence for acting without clarification
type Thresholds map[Mode]float64

func DefaultThresholds() Thresholds {
	return Thresholds{
		ModeInformational:  0.60,
		ModeLocate:         0.70,
		ModeTargetedUpdate: 0.80,
		ModeFullRewrite:    0.85,
	}
}

// For returns the threshold of m; unknown modes get the strictest default
func (t Thresholds) For(m Mode) float64 {
	if v, ok := t[m]; ok {
		return v
	}
	if v, ok := DefaultThresholds()[m]; ok {
		return v
	}
	return DefaultThresholds()[ModeFullRewrite]
}

// Merge returns defaults overridden by any positive value in t
func (t Thresholds) Merge() Thresholds {
	out := DefaultThresholds()
	for m, v := range t {
		if v > 0 && v <= 1 {
			out[m] = v
		}
	}
	return out
}
