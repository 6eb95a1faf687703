package param

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dynamics/dsp/core"
)

// SmoothingMode selects the interpolation law used to approach a target.
type SmoothingMode int

const (
	// SmoothingLinear ramps to the target in a fixed number of samples.
	// The ramp is monotonic and never overshoots.
	SmoothingLinear SmoothingMode = iota
	// SmoothingExponential approaches the target with a one-pole filter.
	SmoothingExponential
)

// snapEpsilon terminates an exponential ramp once the residual is inaudible.
const snapEpsilon = 1e-9

// Smoother interpolates a control value toward a target, one value per
// sample (Next) or per block (SkipBlock). All state is owned by the caller;
// Next performs no allocation.
type Smoother struct {
	mode       SmoothingMode
	timeMs     float64
	sampleRate float64

	current float64
	target  float64

	// Linear ramp state.
	step      float64
	remaining int

	// Exponential one-pole coefficient.
	coeff float64
}

// NewSmoother creates a smoother with the given mode and time constant.
// A time constant of zero yields instantaneous jumps.
func NewSmoother(mode SmoothingMode, timeMs, sampleRate float64) (*Smoother, error) {
	if mode != SmoothingLinear && mode != SmoothingExponential {
		return nil, fmt.Errorf("smoother: invalid mode: %d", mode)
	}

	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("smoother: sample rate must be positive and finite: %f", sampleRate)
	}

	if timeMs < 0 || math.IsNaN(timeMs) || math.IsInf(timeMs, 0) {
		return nil, fmt.Errorf("smoother: time constant must be non-negative and finite: %f", timeMs)
	}

	s := &Smoother{
		mode:       mode,
		timeMs:     timeMs,
		sampleRate: sampleRate,
	}
	s.recalculate()

	return s, nil
}

// SetSampleRate updates the sample rate and recomputes the ramp. The current
// ramp (if any) is restarted toward the same target.
func (s *Smoother) SetSampleRate(sampleRate float64) error {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return fmt.Errorf("smoother: sample rate must be positive and finite: %f", sampleRate)
	}

	s.sampleRate = sampleRate
	s.recalculate()
	s.SetTarget(s.target)

	return nil
}

// SetTime updates the smoothing time constant in milliseconds.
func (s *Smoother) SetTime(timeMs float64) error {
	if timeMs < 0 || math.IsNaN(timeMs) || math.IsInf(timeMs, 0) {
		return fmt.Errorf("smoother: time constant must be non-negative and finite: %f", timeMs)
	}

	s.timeMs = timeMs
	s.recalculate()
	s.SetTarget(s.target)

	return nil
}

// SetTarget starts a ramp from the current value toward v.
func (s *Smoother) SetTarget(v float64) {
	s.target = v

	if s.timeMs <= 0 || v == s.current {
		s.Snap(v)
		return
	}

	if s.mode == SmoothingLinear {
		s.remaining = s.rampSamples()
		s.step = (v - s.current) / float64(s.remaining)
	}
}

// Snap jumps to v immediately, discarding any ramp in progress. Used on
// reset so the first block after silence or bypass carries no ramp artifact.
func (s *Smoother) Snap(v float64) {
	s.current = v
	s.target = v
	s.step = 0
	s.remaining = 0
}

// Next advances one sample and returns the interpolated value.
func (s *Smoother) Next() float64 {
	switch s.mode {
	case SmoothingLinear:
		if s.remaining > 0 {
			s.current += s.step
			s.remaining--

			if s.remaining == 0 {
				s.current = s.target
			}
		}
	case SmoothingExponential:
		if s.current != s.target {
			s.current = s.target + (s.current-s.target)*s.coeff
			if core.NearlyEqual(s.current, s.target, snapEpsilon) {
				s.current = s.target
			}
		}
	}

	return s.current
}

// SkipBlock advances n samples in one step and returns the resulting value.
// Used for parameters consumed at block granularity (crossover frequencies),
// where per-sample interpolation would waste the coefficient recomputation.
func (s *Smoother) SkipBlock(n int) float64 {
	if n <= 0 {
		return s.current
	}

	switch s.mode {
	case SmoothingLinear:
		if s.remaining > 0 {
			if n >= s.remaining {
				s.Snap(s.target)
			} else {
				s.current += s.step * float64(n)
				s.remaining -= n
			}
		}
	case SmoothingExponential:
		if s.current != s.target {
			s.current = s.target + (s.current-s.target)*math.Pow(s.coeff, float64(n))
			if core.NearlyEqual(s.current, s.target, snapEpsilon) {
				s.current = s.target
			}
		}
	}

	return s.current
}

// Current returns the present interpolated value without advancing.
func (s *Smoother) Current() float64 { return s.current }

// Target returns the value the smoother is approaching.
func (s *Smoother) Target() float64 { return s.target }

// IsSmoothing reports whether a ramp is still in progress.
func (s *Smoother) IsSmoothing() bool { return s.current != s.target }

func (s *Smoother) rampSamples() int {
	n := int(math.Round(s.timeMs * 0.001 * s.sampleRate))
	if n < 1 {
		n = 1
	}

	return n
}

func (s *Smoother) recalculate() {
	if s.timeMs <= 0 {
		s.coeff = 0
		return
	}

	s.coeff = math.Exp(-1 / (s.timeMs * 0.001 * s.sampleRate))
}
