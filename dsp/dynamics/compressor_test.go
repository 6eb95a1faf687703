package dynamics

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-dynamics/internal/testutil"
)

func TestNewCompressorValidation(t *testing.T) {
	if _, err := NewCompressor(0); err == nil {
		t.Error("zero sample rate should fail")
	}

	if _, err := NewCompressor(math.NaN()); err == nil {
		t.Error("NaN sample rate should fail")
	}

	c, err := NewCompressor(48000)
	if err != nil {
		t.Fatalf("NewCompressor() error = %v", err)
	}

	if c.Threshold() != -20 || c.Ratio() != 4 {
		t.Errorf("unexpected defaults: threshold %v, ratio %v", c.Threshold(), c.Ratio())
	}
}

// TestSteadyStateGainReduction drives a -6 dBFS sine into a compressor set
// to threshold -12 dB, ratio 4:1, hard knee. The 6 dB overshoot at 4:1 must
// settle to 6 * (1 - 1/4) = 4.5 dB of gain reduction within 1%.
func TestSteadyStateGainReduction(t *testing.T) {
	const sampleRate = 48000

	c, err := NewCompressor(sampleRate)
	if err != nil {
		t.Fatalf("NewCompressor() error = %v", err)
	}

	if err := c.SetThreshold(-12); err != nil {
		t.Fatal(err)
	}

	if err := c.SetRatio(4); err != nil {
		t.Fatal(err)
	}

	if err := c.SetKnee(0); err != nil {
		t.Fatal(err)
	}

	if err := c.SetAttack(1); err != nil {
		t.Fatal(err)
	}

	if err := c.SetRelease(500); err != nil {
		t.Fatal(err)
	}

	// 200 ms of signal; judge the reduction after the first 100 ms.
	input := testutil.SineAtDB(1000, sampleRate, -6, 9600)

	var reduction float64
	for i, x := range input {
		c.ProcessSample(x)

		if i >= 4800 {
			reduction = c.ReductionDB()
			if math.Abs(reduction-4.5) > 0.045 {
				t.Fatalf("sample %d: reduction %v dB, want 4.5 within 1%%", i, reduction)
			}
		}
	}

	// Output peak should sit near -6 - 4.5 = -10.5 dBFS.
	wantPeak := math.Pow(10, -10.5/20)
	gotPeak := c.Metrics().OutputPeak

	if math.Abs(gotPeak-wantPeak) > 0.02*wantPeak {
		t.Errorf("output peak = %v, want %v within 2%%", gotPeak, wantPeak)
	}
}

func TestCompressorMetrics(t *testing.T) {
	c, _ := NewCompressor(48000)
	_ = c.SetThreshold(-20)
	_ = c.SetAttack(1)

	input := testutil.SineAtDB(1000, 48000, -6, 4800)
	output := make([]float64, len(input))
	c.ProcessBlock(input, output)

	m := c.Metrics()

	if math.Abs(m.InputPeak-math.Pow(10, -6.0/20)) > 1e-3 {
		t.Errorf("InputPeak = %v, want ~0.501", m.InputPeak)
	}

	if m.MaxReductionDB <= 0 {
		t.Error("expected nonzero gain reduction")
	}

	if m.OutputPeak >= m.InputPeak {
		t.Error("compressed output peak should be below input peak")
	}

	c.ResetMetrics()

	if c.Metrics() != (Metrics{}) {
		t.Error("ResetMetrics should clear all fields")
	}
}

func TestCompressorNoNaNWithExtremes(t *testing.T) {
	c, _ := NewCompressor(48000)
	_ = c.SetThreshold(-12)
	_ = c.SetRatio(math.Inf(1))
	_ = c.SetKnee(0)
	_ = c.SetAttack(0)
	_ = c.SetRelease(0)

	input := testutil.DeterministicNoise(3, 1.0, 4800)

	for i, x := range input {
		out := c.ProcessSample(x)
		if math.IsNaN(out) || math.IsInf(out, 0) {
			t.Fatalf("sample %d: non-finite output %v", i, out)
		}
	}
}

func TestCompressorSampleRateChange(t *testing.T) {
	c, _ := NewCompressor(48000)

	if err := c.SetSampleRate(96000); err != nil {
		t.Fatalf("SetSampleRate() error = %v", err)
	}

	if err := c.SetSampleRate(-1); err == nil {
		t.Error("SetSampleRate(-1) should fail")
	}
}

func TestCompressorReset(t *testing.T) {
	c, _ := NewCompressor(48000)
	_ = c.SetThreshold(-40)

	c.ProcessSample(1)
	c.Reset()

	if c.Metrics() != (Metrics{}) {
		t.Error("Reset should clear metrics")
	}

	if c.ReductionDB() != 0 {
		t.Errorf("ReductionDB() = %v after Reset, want 0", c.ReductionDB())
	}
}

func BenchmarkCompressorProcessBlock(b *testing.B) {
	c, err := NewCompressor(48000)
	if err != nil {
		b.Fatal(err)
	}

	_ = c.SetThreshold(-12)

	input := testutil.DeterministicSine(1000, 48000, 0.5, 512)
	output := make([]float64, len(input))

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		c.ProcessBlock(input, output)
	}
}
