package export

import "math"

// Sampler thins a progress stream for line-oriented output.
type Sampler struct {
	step  float64
	state State
	next  float64
	seen  bool
}

// NewSampler passes one snapshot per step percent; step defaults to 5.
func NewSampler(step float64) *Sampler {
	if step <= 0 {
		step = 5
	}
	return &Sampler{step: step}
}

// Sample reports whether p should be shown: the first snapshot, every state
// change, and the first snapshot at or past each step.
func (s *Sampler) Sample(p Progress) bool {
	if !s.seen || p.State != s.state {
		s.seen, s.state = true, p.State
		s.next = s.after(p.Percent)
		return true
	}
	if p.Percent >= s.next {
		s.next = s.after(p.Percent)
		return true
	}
	return false
}

func (s *Sampler) after(pct float64) float64 {
	return (math.Floor(pct/s.step) + 1) * s.step
}
