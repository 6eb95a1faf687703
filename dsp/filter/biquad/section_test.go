package biquad

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-dynamics/internal/cpu"
)

func TestIdentityPassesThrough(t *testing.T) {
	s := NewSection(Identity())

	for _, x := range []float64{0, 1, -0.5, 0.25} {
		if got := s.ProcessSample(x); got != x {
			t.Errorf("ProcessSample(%v) = %v, want %v", x, got, x)
		}
	}
}

// TestProcessBlockMatchesPerSample verifies the selected block kernel is
// bit-identical in structure to per-sample processing for the same input.
func TestProcessBlockMatchesPerSample(t *testing.T) {
	c := Coefficients{B0: 0.2, B1: 0.4, B2: 0.2, A1: -0.5, A2: 0.25}

	input := make([]float64, 257) // odd length to hit kernel tails
	for i := range input {
		input[i] = math.Sin(0.1 * float64(i))
	}

	perSample := NewSection(c)
	want := make([]float64, len(input))

	for i, x := range input {
		want[i] = perSample.ProcessSample(x)
	}

	block := NewSection(c)
	got := make([]float64, len(input))
	copy(got, input)
	block.ProcessBlock(got)

	for i := range got {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Fatalf("index %d: block %v, per-sample %v", i, got[i], want[i])
		}
	}

	if block.State() != perSample.State() {
		t.Errorf("state mismatch: block %v, per-sample %v", block.State(), perSample.State())
	}
}

// TestKernelParity runs every kernel variant over the same input and
// requires identical output and final state.
func TestKernelParity(t *testing.T) {
	c := Coefficients{B0: 0.3, B1: -0.1, B2: 0.05, A1: -1.2, A2: 0.4}

	input := make([]float64, 130)
	for i := range input {
		input[i] = math.Cos(0.07 * float64(i))
	}

	kernels := map[string]kernelFn{
		"scalar":    processBlockScalar,
		"unrolled2": processBlockUnrolled2,
		"unrolled4": processBlockUnrolled4,
	}

	ref := make([]float64, len(input))
	copy(ref, input)
	refD0, refD1 := processBlockScalar(c, 0, 0, ref)

	for name, k := range kernels {
		buf := make([]float64, len(input))
		copy(buf, input)

		d0, d1 := k(c, 0, 0, buf)

		for i := range buf {
			if math.Abs(buf[i]-ref[i]) > 1e-12 {
				t.Fatalf("%s: index %d: got %v, want %v", name, i, buf[i], ref[i])
			}
		}

		if math.Abs(d0-refD0) > 1e-12 || math.Abs(d1-refD1) > 1e-12 {
			t.Errorf("%s: state (%v, %v), want (%v, %v)", name, d0, d1, refD0, refD1)
		}
	}
}

func TestSelectKernel(t *testing.T) {
	if k := selectKernel(cpu.Features{ForceGeneric: true}); k == nil {
		t.Fatal("selectKernel returned nil for generic features")
	}

	if k := selectKernel(cpu.Features{HasAVX2: true, HasSSE2: true}); k == nil {
		t.Fatal("selectKernel returned nil for AVX2 features")
	}

	if k := selectKernel(cpu.Features{HasNEON: true}); k == nil {
		t.Fatal("selectKernel returned nil for NEON features")
	}
}

func TestSectionReset(t *testing.T) {
	s := NewSection(Coefficients{B0: 0.5, B1: 0.5, A1: -0.3})
	s.ProcessSample(1)

	if s.State() == [2]float64{} {
		t.Fatal("expected non-zero state after processing")
	}

	s.Reset()

	if s.State() != [2]float64{} {
		t.Errorf("State() after Reset = %v, want zero", s.State())
	}
}
