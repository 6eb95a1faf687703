package dynamics

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dynamics/dsp/core"
	"github.com/cwbudde/algo-dynamics/dsp/envelope"
)

const (
	minAttackMs  = 0.0
	maxAttackMs  = 1000.0
	minReleaseMs = 0.0
	maxReleaseMs = 5000.0
)

// Band is a single dynamics processing channel: an envelope follower feeding
// a soft-knee gain computer, with makeup gain, dry/wet mix, and bypass. It is
// the per-band unit inside [Compressor] and [MultibandCompressor].
//
// Band is mono and single-threaded. Parameter setters validate their input
// and keep the previous value when a setting is rejected.
type Band struct {
	follower *envelope.Follower
	curve    *Curve

	makeupGainDB  float64
	makeupGainLin float64
	autoMakeup    bool
	mix           float64
	bypassed      bool

	lastReductionDB float64
}

// NewBand creates a dynamics band with the given detector mode and default
// parameters: threshold −20 dB, ratio 4:1, knee 6 dB, attack 10 ms, release
// 100 ms, no makeup gain, fully wet.
func NewBand(mode envelope.Mode, sampleRate float64) (*Band, error) {
	follower, err := envelope.NewFollower(mode, 10, 100, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("dynamics: %w", err)
	}

	curve, err := NewCurve(-20, 4, 6)
	if err != nil {
		return nil, fmt.Errorf("dynamics: %w", err)
	}

	return &Band{
		follower:      follower,
		curve:         curve,
		makeupGainLin: 1,
		mix:           1,
	}, nil
}

// SetThreshold updates the compression threshold in dB.
func (b *Band) SetThreshold(dB float64) error {
	if err := b.curve.SetThreshold(dB); err != nil {
		return err
	}

	b.refreshMakeup()

	return nil
}

// SetRatio updates the compression ratio. Ratio may be +Inf for limiting.
func (b *Band) SetRatio(ratio float64) error {
	if err := b.curve.SetRatio(ratio); err != nil {
		return err
	}

	b.refreshMakeup()

	return nil
}

// SetKnee updates the soft-knee width in dB.
func (b *Band) SetKnee(kneeDB float64) error { return b.curve.SetKnee(kneeDB) }

// SetAttack updates the detector attack time in milliseconds. Zero gives
// instantaneous attack.
func (b *Band) SetAttack(ms float64) error {
	if math.IsNaN(ms) || ms < minAttackMs || ms > maxAttackMs {
		return fmt.Errorf("dynamics: attack must be in [%v, %v] ms, got %v", minAttackMs, maxAttackMs, ms)
	}

	return b.follower.SetAttack(ms)
}

// SetRelease updates the detector release time in milliseconds. Zero gives
// instantaneous release.
func (b *Band) SetRelease(ms float64) error {
	if math.IsNaN(ms) || ms < minReleaseMs || ms > maxReleaseMs {
		return fmt.Errorf("dynamics: release must be in [%v, %v] ms, got %v", minReleaseMs, maxReleaseMs, ms)
	}

	return b.follower.SetRelease(ms)
}

// SetMakeupGain sets a manual makeup gain in dB and disables auto makeup.
func (b *Band) SetMakeupGain(dB float64) error {
	if !core.IsFinite(dB) {
		return fmt.Errorf("dynamics: makeup gain must be finite, got %v", dB)
	}

	b.makeupGainDB = dB
	b.autoMakeup = false
	b.makeupGainLin = mathPower10(dB / 20)

	return nil
}

// SetAutoMakeup toggles automatic makeup gain, which compensates the static
// reduction a full-scale signal would see: −threshold · (1 − 1/ratio).
func (b *Band) SetAutoMakeup(auto bool) {
	b.autoMakeup = auto
	b.refreshMakeup()
}

// SetMix sets the dry/wet mix in [0, 1]; 1 is fully compressed.
func (b *Band) SetMix(mix float64) error {
	if math.IsNaN(mix) || mix < 0 || mix > 1 {
		return fmt.Errorf("dynamics: mix must be in [0, 1], got %v", mix)
	}

	b.mix = mix

	return nil
}

// SetBypassed toggles the band bypass. A bypassed band passes input through
// untouched and reports zero gain reduction; detector state is frozen.
func (b *Band) SetBypassed(bypassed bool) {
	b.bypassed = bypassed
}

// SetSampleRate recomputes detector coefficients for a new sample rate.
func (b *Band) SetSampleRate(sampleRate float64) error {
	return b.follower.SetSampleRate(sampleRate)
}

// Threshold returns the threshold in dB.
func (b *Band) Threshold() float64 { return b.curve.Threshold() }

// Ratio returns the compression ratio.
func (b *Band) Ratio() float64 { return b.curve.Ratio() }

// Knee returns the knee width in dB.
func (b *Band) Knee() float64 { return b.curve.Knee() }

// Attack returns the attack time in milliseconds.
func (b *Band) Attack() float64 { return b.follower.Attack() }

// Release returns the release time in milliseconds.
func (b *Band) Release() float64 { return b.follower.Release() }

// MakeupGain returns the current makeup gain in dB (manual or auto).
func (b *Band) MakeupGain() float64 { return b.makeupGainDB }

// AutoMakeup reports whether automatic makeup gain is active.
func (b *Band) AutoMakeup() bool { return b.autoMakeup }

// Mix returns the dry/wet mix.
func (b *Band) Mix() float64 { return b.mix }

// Bypassed reports whether the band is bypassed.
func (b *Band) Bypassed() bool { return b.bypassed }

// ReductionDB returns the gain reduction applied on the most recent sample.
func (b *Band) ReductionDB() float64 { return b.lastReductionDB }

// ProcessSample processes one sample and returns the output sample.
func (b *Band) ProcessSample(x float64) float64 {
	if b.bypassed {
		b.lastReductionDB = 0
		return x
	}

	level := b.follower.ProcessSample(x)

	gain := 1.0
	b.lastReductionDB = 0

	if level > 0 {
		if reduction := b.curve.reductionLog2(mathLog2(level)); reduction > 0 {
			gain = mathPower2(-reduction)
			b.lastReductionDB = reduction / log2Of10Div20
		}
	}

	wet := x * gain * b.makeupGainLin

	if b.mix >= 1 {
		return wet
	}

	return wet*b.mix + x*(1-b.mix)
}

// ProcessBlock processes input into output. The slices must have equal
// length; output may alias input. Returns the maximum gain reduction in dB
// seen during the block.
func (b *Band) ProcessBlock(input, output []float64) float64 {
	if b.bypassed {
		copy(output, input)
		b.lastReductionDB = 0

		return 0
	}

	var maxReduction float64

	for i, x := range input {
		output[i] = b.ProcessSample(x)
		if b.lastReductionDB > maxReduction {
			maxReduction = b.lastReductionDB
		}
	}

	return maxReduction
}

// Reset clears the detector state. Parameters are kept.
func (b *Band) Reset() {
	b.follower.Reset()
	b.lastReductionDB = 0
}

func (b *Band) refreshMakeup() {
	if !b.autoMakeup {
		return
	}

	ratio := b.curve.Ratio()

	b.makeupGainDB = -b.curve.Threshold() * (1 - 1/ratio)
	b.makeupGainLin = mathPower10(b.makeupGainDB / 20)
}
