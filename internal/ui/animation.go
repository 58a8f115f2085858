package ui

import "math"

// AnimState eases the drawn progress toward the reported one so the bar
// doesn't jump in 2% steps.
type AnimState struct {
	Displayed    float64
	ShimmerPhase float64
	Pulse        float64
}

func (a *AnimState) Reset() {
	*a = AnimState{}
}

func (a *AnimState) Update(tickCount int, target float64) {
	gap := target - a.Displayed
	if math.Abs(gap) < 0.05 {
		a.Displayed = target
	} else {
		a.Displayed += gap * easeOutCubic(0.35)
	}
	a.Displayed = clamp(a.Displayed, 0, 100)
	a.ShimmerPhase = float64(tickCount) * 0.05
	a.Pulse = (math.Sin(float64(tickCount)*0.2) + 1) / 2
}

func easeOutCubic(t float64) float64 {
	if t >= 1 {
		return 1
	}
	if t <= 0 {
		return 0
	}
	return 1 - math.Pow(1-t, 3)
}

func clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
