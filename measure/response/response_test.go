package response

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-dynamics/dsp/filter/biquad"
	"github.com/cwbudde/algo-dynamics/dsp/filter/crossover"
	"github.com/cwbudde/algo-dynamics/dsp/filter/design"
)

func TestMeasureValidation(t *testing.T) {
	identity := ProcessorFunc(func(x float64) float64 { return x })

	if _, err := Measure(nil, Config{SampleRate: 48000}); err == nil {
		t.Error("nil processor should fail")
	}

	if _, err := Measure(identity, Config{SampleRate: 0}); err == nil {
		t.Error("zero sample rate should fail")
	}

	if _, err := FromImpulseResponse(nil, 48000); err == nil {
		t.Error("empty impulse response should fail")
	}
}

func TestIdentityIsFlat(t *testing.T) {
	identity := ProcessorFunc(func(x float64) float64 { return x })

	r, err := Measure(identity, Config{SampleRate: 48000, FFTSize: 1024})
	if err != nil {
		t.Fatalf("Measure() error = %v", err)
	}

	if r.FFTSize != 1024 {
		t.Errorf("FFTSize = %d, want 1024", r.FFTSize)
	}

	if got := r.MaxDeviationDB(0, 24000); got > 1e-9 {
		t.Errorf("identity deviates by %v dB from flat", got)
	}
}

func TestGainIsConstantOffset(t *testing.T) {
	half := ProcessorFunc(func(x float64) float64 { return 0.5 * x })

	r, err := Measure(half, Config{SampleRate: 48000, FFTSize: 1024})
	if err != nil {
		t.Fatalf("Measure() error = %v", err)
	}

	for i, db := range r.MagnitudeDB {
		if math.Abs(db-(-6.0206)) > 1e-6 {
			t.Fatalf("bin %d: %v dB, want -6.02", i, db)
		}
	}
}

func TestButterworthCutoff(t *testing.T) {
	sections := design.ButterworthLP(1000, 4, 48000)
	chain := biquad.NewChain(sections)

	r, err := Measure(ProcessorFunc(chain.ProcessSample), Config{SampleRate: 48000, FFTSize: 16384})
	if err != nil {
		t.Fatalf("Measure() error = %v", err)
	}

	if got := r.At(1000); math.Abs(got-(-3.0103)) > 0.05 {
		t.Errorf("|H| at cutoff = %v dB, want -3.01", got)
	}

	// Passband flat, stopband steep: a 4th-order filter falls 24 dB/oct.
	if got := r.At(100); math.Abs(got) > 0.05 {
		t.Errorf("|H| at 100 Hz = %v dB, want ~0", got)
	}

	if got := r.At(4000); got > -44 {
		t.Errorf("|H| two octaves up = %v dB, want below -44", got)
	}
}

// TestCrossoverSumIsAllpass measures the summed LP + HP outputs of a
// Linkwitz-Riley crossover and verifies the magnitude stays flat.
func TestCrossoverSumIsAllpass(t *testing.T) {
	for _, order := range []int{2, 4, 8} {
		xo, err := crossover.New(1000, order, 48000)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		sum := ProcessorFunc(func(x float64) float64 {
			lo, hi := xo.ProcessSample(x)
			return lo + hi
		})

		r, err := Measure(sum, Config{SampleRate: 48000, FFTSize: 16384})
		if err != nil {
			t.Fatalf("Measure() error = %v", err)
		}

		if dev := r.MaxDeviationDB(20, 20000); dev > 0.01 {
			t.Errorf("LR%d: summed response deviates %v dB from flat", order, dev)
		}
	}
}

// TestMultiBandSumIsAllpass verifies a three-band split at 200 Hz and 2 kHz
// reconstructs to better than -60 dB flatness error.
func TestMultiBandSumIsAllpass(t *testing.T) {
	mb, err := crossover.NewMultiBand([]float64{200, 2000}, 4, 48000)
	if err != nil {
		t.Fatalf("NewMultiBand() error = %v", err)
	}

	bands := make([]float64, mb.NumBands())

	sum := ProcessorFunc(func(x float64) float64 {
		mb.ProcessSampleInto(x, bands)

		var s float64
		for _, v := range bands {
			s += v
		}

		return s
	})

	r, err := Measure(sum, Config{SampleRate: 48000, FFTSize: 32768})
	if err != nil {
		t.Fatalf("Measure() error = %v", err)
	}

	// -60 dB error is about 0.0087 dB of magnitude deviation.
	if dev := r.MaxDeviationDB(20, 20000); dev > 0.0087 {
		t.Errorf("three-band sum deviates %v dB from flat, want below 0.0087", dev)
	}
}

func TestBinFrequency(t *testing.T) {
	if got := BinFrequency(0, 1024, 48000); got != 0 {
		t.Errorf("BinFrequency(0) = %v, want 0", got)
	}

	if got := BinFrequency(512, 1024, 48000); got != 24000 {
		t.Errorf("BinFrequency(512) = %v, want 24000", got)
	}
}

func TestFFTSizeRoundsUp(t *testing.T) {
	identity := ProcessorFunc(func(x float64) float64 { return x })

	r, err := Measure(identity, Config{SampleRate: 48000, FFTSize: 1000})
	if err != nil {
		t.Fatalf("Measure() error = %v", err)
	}

	if r.FFTSize != 1024 {
		t.Errorf("FFTSize = %d, want 1024", r.FFTSize)
	}

	if got := len(r.Magnitude); got != 513 {
		t.Errorf("got %d bins, want 513", got)
	}
}
