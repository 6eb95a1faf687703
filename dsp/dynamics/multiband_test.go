package dynamics

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-dynamics/internal/testutil"
)

func TestNewMultibandCompressorValidation(t *testing.T) {
	tests := []struct {
		name    string
		freqs   []float64
		order   int
		wantErr bool
	}{
		{"three bands", []float64{200, 2000}, 4, false},
		{"two bands LR2", []float64{1000}, 2, false},
		{"odd order", []float64{1000}, 3, true},
		{"order too high", []float64{1000}, 32, true},
		{"too many bands", []float64{50, 100, 200, 400, 800, 1600, 3200, 6400}, 4, true},
		{"descending freqs", []float64{2000, 200}, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMultibandCompressor(tt.freqs, tt.order, 48000)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMultibandCompressor() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestBypassedBandsReconstruct verifies that with every band bypassed the
// three-band processor reduces to the crossover's allpass reconstruction:
// steady-state output level matches the input to within -60 dB.
func TestBypassedBandsReconstruct(t *testing.T) {
	const sampleRate = 48000

	mc, err := NewMultibandCompressor([]float64{200, 2000}, 4, sampleRate)
	if err != nil {
		t.Fatalf("NewMultibandCompressor() error = %v", err)
	}

	for i := 0; i < mc.NumBands(); i++ {
		band, err := mc.Band(i)
		if err != nil {
			t.Fatal(err)
		}

		band.SetBypassed(true)
	}

	n := 9600
	input := make([]float64, n)

	for _, f := range []float64{80, 700, 6000} {
		tone := testutil.DeterministicSine(f, sampleRate, 0.3, n)
		for i := range input {
			input[i] += tone[i]
		}
	}

	output := make([]float64, n)
	mc.ProcessBlock(input, output)

	inRMS := blockRMS(input[4800:])
	outRMS := blockRMS(output[4800:])

	relErr := math.Abs(outRMS-inRMS) / inRMS
	if relErr > 0.001 {
		t.Errorf("bypassed output RMS deviates by %.2e (%.1f dB), want below -60 dB",
			relErr, 20*math.Log10(relErr))
	}

	for _, m := range mc.Metrics().Bands {
		if m.MaxReductionDB != 0 {
			t.Error("bypassed bands should report zero gain reduction")
		}
	}
}

// TestBandSelectiveCompression feeds a loud high tone and a quiet low tone
// and verifies only the high band compresses.
func TestBandSelectiveCompression(t *testing.T) {
	const sampleRate = 48000

	mc, err := NewMultibandCompressor([]float64{200, 2000}, 4, sampleRate)
	if err != nil {
		t.Fatalf("NewMultibandCompressor() error = %v", err)
	}

	for i := 0; i < mc.NumBands(); i++ {
		band, _ := mc.Band(i)
		_ = band.SetThreshold(-20)
		_ = band.SetKnee(0)
		_ = band.SetAttack(1)
	}

	n := 9600
	low := testutil.SineAtDB(80, sampleRate, -40, n)
	high := testutil.SineAtDB(6000, sampleRate, -6, n)

	input := make([]float64, n)
	for i := range input {
		input[i] = low[i] + high[i]
	}

	output := make([]float64, n)
	mc.ProcessBlock(input, output)

	m := mc.Metrics()

	if m.Bands[0].MaxReductionDB > 0.1 {
		t.Errorf("low band reduced %v dB on a -40 dB tone", m.Bands[0].MaxReductionDB)
	}

	if m.Bands[2].MaxReductionDB < 5 {
		t.Errorf("high band reduced only %v dB on a -6 dB tone over a -20 dB threshold",
			m.Bands[2].MaxReductionDB)
	}
}

func TestMultibandProcessBlockMatchesPerSample(t *testing.T) {
	a, _ := NewMultibandCompressor([]float64{200, 2000}, 4, 48000)
	b, _ := NewMultibandCompressor([]float64{200, 2000}, 4, 48000)

	for i := 0; i < 3; i++ {
		ba, _ := a.Band(i)
		bb, _ := b.Band(i)

		for _, band := range []*Band{ba, bb} {
			_ = band.SetThreshold(-24)
			_ = band.SetAttack(1)
		}
	}

	input := testutil.DeterministicNoise(11, 0.8, 480)

	want := make([]float64, len(input))
	for i, x := range input {
		want[i] = a.ProcessSample(x)
	}

	got := make([]float64, len(input))
	b.ProcessBlock(input, got)

	testutil.RequireSliceNearlyEqual(t, got, want, 1e-12)
}

func TestMultibandBandAccessor(t *testing.T) {
	mc, _ := NewMultibandCompressor([]float64{1000}, 4, 48000)

	if _, err := mc.Band(-1); err == nil {
		t.Error("negative band index should fail")
	}

	if _, err := mc.Band(2); err == nil {
		t.Error("out-of-range band index should fail")
	}

	if _, err := mc.Band(1); err != nil {
		t.Errorf("Band(1) error = %v", err)
	}
}

func TestMultibandCrossoverRetune(t *testing.T) {
	mc, _ := NewMultibandCompressor([]float64{200, 2000}, 4, 48000)

	if err := mc.SetCrossoverFrequency(1, 3000); err != nil {
		t.Fatalf("SetCrossoverFrequency() error = %v", err)
	}

	if got := mc.CrossoverFrequencies()[1]; got != 3000 {
		t.Errorf("CrossoverFrequencies()[1] = %v, want 3000", got)
	}

	if err := mc.SetCrossoverFrequency(0, 5000); err == nil {
		t.Error("breaking ascending order should fail")
	}
}

func TestMultibandReset(t *testing.T) {
	mc, _ := NewMultibandCompressor([]float64{1000}, 4, 48000)

	mc.ProcessSample(1)
	mc.Reset()

	if got := mc.ProcessSample(0); got != 0 {
		t.Errorf("zero input after Reset gave %v, want 0", got)
	}

	for _, m := range mc.Metrics().Bands {
		if m != (Metrics{}) {
			t.Error("Reset should clear per-band metrics")
		}
	}
}

func TestMultibandVaryingBlockSizesAllocationFree(t *testing.T) {
	mc, err := NewMultibandCompressor([]float64{200, 2000}, 4, 48000)
	if err != nil {
		t.Fatal(err)
	}

	small := testutil.DeterministicSine(1000, 48000, 0.5, 64)
	large := testutil.DeterministicSine(1000, 48000, 0.5, 512)

	// A small block must not shrink the scratch capacity for later blocks.
	mc.ProcessBlock(small, small)

	if got := cap(mc.scratch[0]); got != defaultMaxBlockSize {
		t.Fatalf("scratch capacity after a 64-sample block = %d, want %d", got, defaultMaxBlockSize)
	}

	allocs := testing.AllocsPerRun(50, func() {
		mc.ProcessBlock(small, small)
		mc.ProcessBlock(large, large)
	})
	if allocs != 0 {
		t.Errorf("alternating 64/512-sample blocks allocated %v objects per run, want 0", allocs)
	}
}

func BenchmarkMultibandProcessBlock(b *testing.B) {
	mc, err := NewMultibandCompressor([]float64{200, 2000}, 4, 48000)
	if err != nil {
		b.Fatal(err)
	}

	input := testutil.DeterministicSine(1000, 48000, 0.5, 512)
	output := make([]float64, len(input))

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		mc.ProcessBlock(input, output)
	}
}

func blockRMS(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(x)))
}
