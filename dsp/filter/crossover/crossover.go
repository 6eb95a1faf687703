package crossover

import (
	"fmt"

	"github.com/cwbudde/algo-dynamics/dsp/filter/biquad"
	"github.com/cwbudde/algo-dynamics/dsp/filter/design"
)

// MinFrequency is the lowest accepted crossover frequency in Hz.
const MinFrequency = 20.0

// Crossover is a two-way Linkwitz-Riley crossover network that splits an
// input signal into complementary lowpass and highpass outputs. Polarity
// correction for orders ≡ 2 mod 4 (LR2, LR6, …) is applied automatically so
// that LP + HP sums to an allpass response for all even orders.
type Crossover struct {
	lp    *biquad.Chain
	hp    *biquad.Chain
	freq  float64
	order int
	sr    float64
}

// New creates a two-way Linkwitz-Riley crossover at the given frequency
// and order. The order must be a positive even integer (2, 4, 6, 8, …)
// and the frequency must lie in [MinFrequency, sampleRate/2).
func New(freq float64, order int, sampleRate float64) (*Crossover, error) {
	if order <= 0 || order%2 != 0 {
		return nil, fmt.Errorf("crossover: order must be a positive even integer, got %d", order)
	}

	if sampleRate <= 0 {
		return nil, fmt.Errorf("crossover: sample rate must be positive, got %v", sampleRate)
	}

	if err := validateFrequency(freq, sampleRate); err != nil {
		return nil, err
	}

	lpCoeffs, hpCoeffs := designPair(freq, order, sampleRate)
	if lpCoeffs == nil || hpCoeffs == nil {
		return nil, fmt.Errorf("crossover: failed to design LR%d at %.1f Hz", order, freq)
	}

	return &Crossover{
		lp:    biquad.NewChain(lpCoeffs),
		hp:    biquad.NewChain(hpCoeffs),
		freq:  freq,
		order: order,
		sr:    sampleRate,
	}, nil
}

// ProcessSample filters one input sample and returns the lowpass and
// highpass outputs. Their sum is allpass (flat magnitude response).
func (c *Crossover) ProcessSample(x float64) (lo, hi float64) {
	return c.lp.ProcessSample(x), c.hp.ProcessSample(x)
}

// ProcessBlock filters a block of input samples, writing the lowpass output
// to lo and the highpass output to hi. hi may alias input; lo must not.
// All slices must have the same length. Zero-alloc.
func (c *Crossover) ProcessBlock(input, lo, hi []float64) {
	n := len(input)
	if n == 0 {
		return
	}

	_ = lo[n-1]
	_ = hi[n-1]

	copy(lo, input)
	copy(hi, input)
	c.lp.ProcessBlock(lo)
	c.hp.ProcessBlock(hi)
}

// Retune moves the crossover to a new frequency, preserving filter state so
// a running signal sees a coefficient change but no reset transient. An
// out-of-range frequency is rejected and the previous tuning stays active.
func (c *Crossover) Retune(freq float64) error {
	if freq == c.freq {
		return nil
	}

	if err := validateFrequency(freq, c.sr); err != nil {
		return err
	}

	lpCoeffs, hpCoeffs := designPair(freq, c.order, c.sr)
	if lpCoeffs == nil || hpCoeffs == nil {
		return fmt.Errorf("crossover: failed to design LR%d at %.1f Hz", c.order, freq)
	}

	c.lp.UpdateCoefficients(lpCoeffs)
	c.hp.UpdateCoefficients(hpCoeffs)
	c.freq = freq

	return nil
}

// Freq returns the crossover frequency in Hz.
func (c *Crossover) Freq() float64 { return c.freq }

// Order returns the Linkwitz-Riley order (always even).
func (c *Crossover) Order() int { return c.order }

// SampleRate returns the sample rate in Hz.
func (c *Crossover) SampleRate() float64 { return c.sr }

// LP returns the lowpass chain for inspection or analysis.
func (c *Crossover) LP() *biquad.Chain { return c.lp }

// HP returns the highpass chain for inspection or analysis. For orders
// ≡ 2 mod 4 this chain includes the polarity inversion.
func (c *Crossover) HP() *biquad.Chain { return c.hp }

// Reset clears the internal filter states of both LP and HP chains.
func (c *Crossover) Reset() {
	c.lp.Reset()
	c.hp.Reset()
}

func designPair(freq float64, order int, sampleRate float64) (lp, hp []biquad.Coefficients) {
	lp = design.LinkwitzRileyLP(freq, order, sampleRate)

	if design.LinkwitzRileyNeedsHPInvert(order) {
		hp = design.LinkwitzRileyHPInverted(freq, order, sampleRate)
	} else {
		hp = design.LinkwitzRileyHP(freq, order, sampleRate)
	}

	return lp, hp
}

func validateFrequency(freq, sampleRate float64) error {
	if freq < MinFrequency || freq >= sampleRate/2 {
		return fmt.Errorf("crossover: frequency must be in [%v, %v), got %v", MinFrequency, sampleRate/2, freq)
	}

	return nil
}
