package envelope

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dynamics/dsp/core"
)

// Detection modes for the envelope follower.
const (
	// ModePeak tracks the rectified signal amplitude directly.
	ModePeak Mode = iota
	// ModeRMS tracks the smoothed signal power and reports its square root.
	ModeRMS
)

// Mode selects the level detection law of a [Follower].
type Mode int

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModePeak:
		return "peak"
	case ModeRMS:
		return "rms"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

const (
	minFollowerTimeMs = 0.0
	maxFollowerTimeMs = 10000.0
)

// Follower is a one-pole envelope follower with independent attack and
// release time constants. The smoothing coefficient for a time constant t
// (seconds) at sample rate sr is exp(-1/(t*sr)); a time constant of zero
// yields a coefficient of zero, i.e. instantaneous tracking.
//
// In peak mode the follower tracks |x|; in RMS mode it tracks x² and
// reports the square root, so attack and release act on signal power.
type Follower struct {
	mode         Mode
	attackMs     float64
	releaseMs    float64
	sampleRate   float64
	attackCoeff  float64
	releaseCoeff float64
	env          float64
}

// NewFollower creates an envelope follower. Attack and release are in
// milliseconds and must lie in [0, 10000]; zero means instantaneous.
func NewFollower(mode Mode, attackMs, releaseMs, sampleRate float64) (*Follower, error) {
	if mode != ModePeak && mode != ModeRMS {
		return nil, fmt.Errorf("envelope: unknown mode %d", int(mode))
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("envelope: sample rate must be positive, got %v", sampleRate)
	}

	f := &Follower{mode: mode, sampleRate: sampleRate}

	if err := f.SetAttack(attackMs); err != nil {
		return nil, err
	}

	if err := f.SetRelease(releaseMs); err != nil {
		return nil, err
	}

	return f, nil
}

// SetAttack updates the attack time constant in milliseconds. Values outside
// [0, 10000] are rejected and the previous setting stays active.
func (f *Follower) SetAttack(ms float64) error {
	if math.IsNaN(ms) || ms < minFollowerTimeMs || ms > maxFollowerTimeMs {
		return fmt.Errorf("envelope: attack must be in [%v, %v] ms, got %v", minFollowerTimeMs, maxFollowerTimeMs, ms)
	}

	f.attackMs = ms
	f.attackCoeff = timeCoeff(ms, f.sampleRate)

	return nil
}

// SetRelease updates the release time constant in milliseconds. Values
// outside [0, 10000] are rejected and the previous setting stays active.
func (f *Follower) SetRelease(ms float64) error {
	if math.IsNaN(ms) || ms < minFollowerTimeMs || ms > maxFollowerTimeMs {
		return fmt.Errorf("envelope: release must be in [%v, %v] ms, got %v", minFollowerTimeMs, maxFollowerTimeMs, ms)
	}

	f.releaseMs = ms
	f.releaseCoeff = timeCoeff(ms, f.sampleRate)

	return nil
}

// SetSampleRate recomputes both coefficients for a new sample rate. The
// envelope state is kept; call Reset for a clean start.
func (f *Follower) SetSampleRate(sampleRate float64) error {
	if sampleRate <= 0 {
		return fmt.Errorf("envelope: sample rate must be positive, got %v", sampleRate)
	}

	f.sampleRate = sampleRate
	f.attackCoeff = timeCoeff(f.attackMs, sampleRate)
	f.releaseCoeff = timeCoeff(f.releaseMs, sampleRate)

	return nil
}

// Attack returns the attack time constant in milliseconds.
func (f *Follower) Attack() float64 { return f.attackMs }

// Release returns the release time constant in milliseconds.
func (f *Follower) Release() float64 { return f.releaseMs }

// DetectionMode returns the follower's detection mode.
func (f *Follower) DetectionMode() Mode { return f.mode }

// ProcessSample advances the follower by one input sample and returns the
// current envelope value (linear amplitude in both modes).
func (f *Follower) ProcessSample(x float64) float64 {
	target := math.Abs(x)
	if f.mode == ModeRMS {
		target = x * x
	}

	coeff := f.releaseCoeff
	if target > f.env {
		coeff = f.attackCoeff
	}

	// Release tails decay into denormal range; flush them to zero.
	f.env = core.FlushDenormals(target + (f.env-target)*coeff)

	if f.mode == ModeRMS {
		return math.Sqrt(f.env)
	}

	return f.env
}

// Envelope returns the current envelope value without advancing the state.
func (f *Follower) Envelope() float64 {
	if f.mode == ModeRMS {
		return math.Sqrt(f.env)
	}

	return f.env
}

// Reset clears the envelope state to zero.
func (f *Follower) Reset() {
	f.env = 0
}

// timeCoeff converts a time constant in milliseconds to a one-pole
// smoothing coefficient at the given sample rate.
func timeCoeff(ms, sampleRate float64) float64 {
	if ms <= 0 {
		return 0
	}

	return math.Exp(-1 / (ms * 0.001 * sampleRate))
}
