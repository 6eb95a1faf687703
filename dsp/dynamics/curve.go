package dynamics

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dynamics/dsp/core"
)

const (
	minRatio  = 1.0
	minKneeDB = 0.0
	maxKneeDB = 24.0

	// log2Of10Div20 converts decibels to the log2 domain: log2(10) / 20.
	log2Of10Div20 = 0.166096404744
)

// Curve is a soft-knee static gain computer. It maps a detected level to a
// gain reduction following the standard downward-compression law:
//
//	over = level − threshold          (dB)
//	over ≤ −knee/2:  reduction = 0
//	over ≥ +knee/2:  reduction = over · (1 − 1/ratio)
//	otherwise:       reduction = (over + knee/2)² / (2·knee) · (1 − 1/ratio)
//
// The quadratic knee segment matches value and slope at both knee edges, so
// the curve is continuous and continuously differentiable for any knee ≥ 0.
// A ratio of +Inf gives limiting (1 − 1/ratio = 1); a knee of 0 gives a hard
// corner at the threshold.
//
// Internally the curve operates in the log2 domain so that per-sample
// evaluation needs one log and one exponential.
type Curve struct {
	thresholdDB float64
	ratio       float64
	kneeDB      float64

	// Cached log2-domain values
	thresholdLog2     float64
	kneeWidthLog2     float64
	invKneeWidthLog2  float64
	compressionFactor float64
}

// NewCurve creates a gain computer. Threshold must be finite, ratio must be
// at least 1 (may be +Inf), and knee must lie in [0, 24] dB.
func NewCurve(thresholdDB, ratio, kneeDB float64) (*Curve, error) {
	c := &Curve{thresholdDB: thresholdDB, ratio: ratio, kneeDB: kneeDB}

	if err := c.SetThreshold(thresholdDB); err != nil {
		return nil, err
	}

	if err := c.SetRatio(ratio); err != nil {
		return nil, err
	}

	if err := c.SetKnee(kneeDB); err != nil {
		return nil, err
	}

	return c, nil
}

// SetThreshold updates the threshold in dB. Non-finite values are rejected
// and the previous threshold stays active.
func (c *Curve) SetThreshold(dB float64) error {
	if !core.IsFinite(dB) {
		return fmt.Errorf("dynamics: threshold must be finite, got %v", dB)
	}

	c.thresholdDB = dB
	c.thresholdLog2 = dB * log2Of10Div20

	return nil
}

// SetRatio updates the compression ratio. Values below 1 or NaN are
// rejected; +Inf is accepted and yields limiting behavior.
func (c *Curve) SetRatio(ratio float64) error {
	if math.IsNaN(ratio) || ratio < minRatio {
		return fmt.Errorf("dynamics: ratio must be >= %v (may be +Inf), got %v", minRatio, ratio)
	}

	c.ratio = ratio
	c.compressionFactor = 1.0 - 1.0/ratio

	return nil
}

// SetKnee updates the knee width in dB. Values outside [0, 24] are rejected
// and the previous knee stays active.
func (c *Curve) SetKnee(kneeDB float64) error {
	if math.IsNaN(kneeDB) || kneeDB < minKneeDB || kneeDB > maxKneeDB {
		return fmt.Errorf("dynamics: knee must be in [%v, %v] dB, got %v", minKneeDB, maxKneeDB, kneeDB)
	}

	c.kneeDB = kneeDB

	c.kneeWidthLog2 = kneeDB * log2Of10Div20
	if kneeDB > 0 {
		c.invKneeWidthLog2 = 1.0 / c.kneeWidthLog2
	} else {
		c.invKneeWidthLog2 = 0
	}

	return nil
}

// Threshold returns the threshold in dB.
func (c *Curve) Threshold() float64 { return c.thresholdDB }

// Ratio returns the compression ratio.
func (c *Curve) Ratio() float64 { return c.ratio }

// Knee returns the knee width in dB.
func (c *Curve) Knee() float64 { return c.kneeDB }

// ReductionDB returns the gain reduction in dB (>= 0) for a detected level
// in dB. This is the reference-domain form of the curve, used for metering
// and tests; the per-sample path uses [Curve.GainForLevel].
func (c *Curve) ReductionDB(levelDB float64) float64 {
	return c.reductionLog2(levelDB*log2Of10Div20) / log2Of10Div20
}

// GainForLevel returns the linear gain (<= 1) to apply for a detected linear
// level. Levels at or below zero map to unity gain.
func (c *Curve) GainForLevel(level float64) float64 {
	if level <= 0 {
		return 1.0
	}

	reduction := c.reductionLog2(mathLog2(level))
	if reduction <= 0 {
		return 1.0
	}

	return mathPower2(-reduction)
}

// reductionLog2 computes the gain reduction in the log2 domain for a level
// in the log2 domain.
func (c *Curve) reductionLog2(levelLog2 float64) float64 {
	overshoot := levelLog2 - c.thresholdLog2

	if c.kneeWidthLog2 <= 0 {
		if overshoot <= 0 {
			return 0
		}

		return overshoot * c.compressionFactor
	}

	halfWidth := c.kneeWidthLog2 * 0.5

	if overshoot <= -halfWidth {
		return 0
	}

	if overshoot >= halfWidth {
		return overshoot * c.compressionFactor
	}

	scratch := overshoot + halfWidth

	return scratch * scratch * 0.5 * c.invKneeWidthLog2 * c.compressionFactor
}
