package response

import (
	"fmt"
	"math"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

const defaultFFTSize = 8192

// Processor is any causal sample processor whose magnitude response can be
// measured by impulse excitation.
type Processor interface {
	ProcessSample(x float64) float64
}

// ProcessorFunc adapts a plain function to the [Processor] interface.
type ProcessorFunc func(x float64) float64

// ProcessSample calls f.
func (f ProcessorFunc) ProcessSample(x float64) float64 { return f(x) }

// Config holds measurement parameters.
type Config struct {
	// SampleRate of the processor under test in Hz. Required.
	SampleRate float64
	// FFTSize is the impulse response length and FFT size. Rounded up to
	// the next power of two; defaults to 8192.
	FFTSize int
}

// Result holds a measured magnitude response over the non-negative
// frequency bins [0, Nyquist].
type Result struct {
	SampleRate  float64
	FFTSize     int
	Frequencies []float64 // bin center frequencies in Hz
	Magnitude   []float64 // linear magnitude per bin
	MagnitudeDB []float64 // 20*log10(magnitude), floored at -200 dB
}

// Measure excites p with a unit impulse, captures the response, and returns
// the magnitude spectrum. The processor should be in a reset state; its
// state is consumed by the measurement.
func Measure(p Processor, cfg Config) (Result, error) {
	if p == nil {
		return Result{}, fmt.Errorf("response: processor must not be nil")
	}

	if cfg.SampleRate <= 0 || math.IsNaN(cfg.SampleRate) || math.IsInf(cfg.SampleRate, 0) {
		return Result{}, fmt.Errorf("response: sample rate must be positive and finite, got %v", cfg.SampleRate)
	}

	fftSize := cfg.FFTSize
	if fftSize <= 0 {
		fftSize = defaultFFTSize
	}

	fftSize = nextPowerOfTwo(fftSize)

	ir := make([]float64, fftSize)

	ir[0] = p.ProcessSample(1)
	for i := 1; i < fftSize; i++ {
		ir[i] = p.ProcessSample(0)
	}

	return FromImpulseResponse(ir, cfg.SampleRate)
}

// FromImpulseResponse computes the magnitude spectrum of a captured impulse
// response. The response is zero-padded to the next power of two.
func FromImpulseResponse(ir []float64, sampleRate float64) (Result, error) {
	if len(ir) == 0 {
		return Result{}, fmt.Errorf("response: impulse response must not be empty")
	}

	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return Result{}, fmt.Errorf("response: sample rate must be positive and finite, got %v", sampleRate)
	}

	fftSize := nextPowerOfTwo(len(ir))

	plan, err := algofft.NewPlan64(fftSize)
	if err != nil {
		return Result{}, fmt.Errorf("response: fft plan: %w", err)
	}

	in := make([]complex128, fftSize)
	for i, v := range ir {
		in[i] = complex(v, 0)
	}

	out := make([]complex128, fftSize)
	if err := plan.Forward(out, in); err != nil {
		return Result{}, fmt.Errorf("response: fft: %w", err)
	}

	bins := fftSize/2 + 1

	re := make([]float64, bins)
	im := make([]float64, bins)

	for i := 0; i < bins; i++ {
		re[i] = real(out[i])
		im[i] = imag(out[i])
	}

	mag := make([]float64, bins)
	vecmath.Magnitude(mag, re, im)

	freqs := make([]float64, bins)
	magDB := make([]float64, bins)

	for i := range freqs {
		freqs[i] = BinFrequency(i, fftSize, sampleRate)
		magDB[i] = magnitudeDB(mag[i])
	}

	return Result{
		SampleRate:  sampleRate,
		FFTSize:     fftSize,
		Frequencies: freqs,
		Magnitude:   mag,
		MagnitudeDB: magDB,
	}, nil
}

// BinFrequency returns the center frequency of FFT bin i in Hz.
func BinFrequency(i, fftSize int, sampleRate float64) float64 {
	return float64(i) * sampleRate / float64(fftSize)
}

// At returns the magnitude in dB at the bin nearest to freq.
func (r Result) At(freq float64) float64 {
	if len(r.Frequencies) == 0 {
		return math.Inf(-1)
	}

	binHz := r.SampleRate / float64(r.FFTSize)

	i := int(math.Round(freq / binHz))
	if i < 0 {
		i = 0
	}

	if i >= len(r.MagnitudeDB) {
		i = len(r.MagnitudeDB) - 1
	}

	return r.MagnitudeDB[i]
}

// MaxDeviationDB returns the largest absolute deviation from 0 dB across
// bins within [loHz, hiHz]. Useful for flatness checks on allpass networks.
func (r Result) MaxDeviationDB(loHz, hiHz float64) float64 {
	var worst float64

	for i, f := range r.Frequencies {
		if f < loHz || f > hiHz {
			continue
		}

		if d := math.Abs(r.MagnitudeDB[i]); d > worst {
			worst = d
		}
	}

	return worst
}

func magnitudeDB(mag float64) float64 {
	const floorDB = -200.0

	if mag <= 0 {
		return floorDB
	}

	db := 20 * math.Log10(mag)
	if db < floorDB {
		return floorDB
	}

	return db
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
