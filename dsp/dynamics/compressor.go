package dynamics

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dynamics/dsp/envelope"
)

// Metrics holds metering information accumulated since the last reset.
type Metrics struct {
	InputPeak      float64 // Maximum absolute input level
	OutputPeak     float64 // Maximum absolute output level
	MaxReductionDB float64 // Maximum gain reduction in dB
}

// Compressor is a mono soft-knee compressor: a [Band] with metering.
//
// The gain computer works in the log2 domain for a smooth knee transition.
// Ratio may be +Inf for limiting. Compressor is single-threaded; parameter
// changes must not race with processing. For a lock-free control surface use
// [Engine].
type Compressor struct {
	band    *Band
	metrics Metrics
}

// NewCompressor creates a compressor with peak detection and default
// parameters (threshold −20 dB, ratio 4:1, knee 6 dB, attack 10 ms,
// release 100 ms).
func NewCompressor(sampleRate float64) (*Compressor, error) {
	return NewCompressorWithMode(envelope.ModePeak, sampleRate)
}

// NewCompressorWithMode creates a compressor with the given detection mode.
func NewCompressorWithMode(mode envelope.Mode, sampleRate float64) (*Compressor, error) {
	band, err := NewBand(mode, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("compressor: %w", err)
	}

	return &Compressor{band: band}, nil
}

// SetThreshold sets the compression threshold in dB.
func (c *Compressor) SetThreshold(dB float64) error { return c.band.SetThreshold(dB) }

// SetRatio sets the compression ratio in [1, +Inf].
func (c *Compressor) SetRatio(ratio float64) error { return c.band.SetRatio(ratio) }

// SetKnee sets the soft-knee width in dB.
func (c *Compressor) SetKnee(kneeDB float64) error { return c.band.SetKnee(kneeDB) }

// SetAttack sets the detector attack time in milliseconds.
func (c *Compressor) SetAttack(ms float64) error { return c.band.SetAttack(ms) }

// SetRelease sets the detector release time in milliseconds.
func (c *Compressor) SetRelease(ms float64) error { return c.band.SetRelease(ms) }

// SetMakeupGain sets a manual makeup gain in dB and disables auto makeup.
func (c *Compressor) SetMakeupGain(dB float64) error { return c.band.SetMakeupGain(dB) }

// SetAutoMakeup toggles automatic makeup gain.
func (c *Compressor) SetAutoMakeup(auto bool) { c.band.SetAutoMakeup(auto) }

// SetMix sets the dry/wet mix in [0, 1].
func (c *Compressor) SetMix(mix float64) error { return c.band.SetMix(mix) }

// SetSampleRate recomputes detector coefficients for a new sample rate.
func (c *Compressor) SetSampleRate(sampleRate float64) error {
	return c.band.SetSampleRate(sampleRate)
}

// Threshold returns the threshold in dB.
func (c *Compressor) Threshold() float64 { return c.band.Threshold() }

// Ratio returns the compression ratio.
func (c *Compressor) Ratio() float64 { return c.band.Ratio() }

// Knee returns the knee width in dB.
func (c *Compressor) Knee() float64 { return c.band.Knee() }

// Attack returns the attack time in milliseconds.
func (c *Compressor) Attack() float64 { return c.band.Attack() }

// Release returns the release time in milliseconds.
func (c *Compressor) Release() float64 { return c.band.Release() }

// MakeupGain returns the makeup gain in dB.
func (c *Compressor) MakeupGain() float64 { return c.band.MakeupGain() }

// ReductionDB returns the gain reduction applied on the most recent sample.
func (c *Compressor) ReductionDB() float64 { return c.band.ReductionDB() }

// ProcessSample processes one input sample and returns the output sample.
func (c *Compressor) ProcessSample(x float64) float64 {
	if abs := math.Abs(x); abs > c.metrics.InputPeak {
		c.metrics.InputPeak = abs
	}

	out := c.band.ProcessSample(x)

	if abs := math.Abs(out); abs > c.metrics.OutputPeak {
		c.metrics.OutputPeak = abs
	}

	if r := c.band.ReductionDB(); r > c.metrics.MaxReductionDB {
		c.metrics.MaxReductionDB = r
	}

	return out
}

// ProcessBlock processes input into output. The slices must have equal
// length; output may alias input.
func (c *Compressor) ProcessBlock(input, output []float64) {
	for i, x := range input {
		output[i] = c.ProcessSample(x)
	}
}

// Metrics returns the metering values accumulated since the last
// ResetMetrics call.
func (c *Compressor) Metrics() Metrics { return c.metrics }

// ResetMetrics clears the accumulated metering values.
func (c *Compressor) ResetMetrics() { c.metrics = Metrics{} }

// Reset clears the detector state and metering. Parameters are kept.
func (c *Compressor) Reset() {
	c.band.Reset()
	c.metrics = Metrics{}
}
