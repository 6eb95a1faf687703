package crossover

import "fmt"

// MultiBand is a multi-way crossover network built from cascaded two-way
// Linkwitz-Riley crossovers. It splits an input signal into N+1 contiguous
// frequency bands for N crossover frequencies, ordered lowest to highest.
//
// The cascade topology passes each stage's highpass output as the next
// stage's input. Each lower band additionally runs through allpass copies of
// the later crossover stages so that all bands share the same phase
// response; the summed bands then reconstruct an exact allpass regardless of
// how closely the crossover points are spaced.
type MultiBand struct {
	stages []*Crossover
	bands  int
	order  int
	sr     float64

	// comp[b] holds the phase-compensation allpass stages for band b:
	// copies of stages b+1 … len(stages)-1, applied as LP+HP sums.
	comp [][]*Crossover
}

// NewMultiBand creates a multi-way crossover from the given crossover
// frequencies and order. Frequencies must be strictly ascending and all
// within [MinFrequency, sampleRate/2). The order applies to all crossover
// points and must be a positive even integer.
func NewMultiBand(freqs []float64, order int, sampleRate float64) (*MultiBand, error) {
	if len(freqs) == 0 {
		return nil, fmt.Errorf("crossover: at least one frequency is required")
	}

	if err := ValidateFrequencies(freqs, sampleRate); err != nil {
		return nil, err
	}

	stages := make([]*Crossover, len(freqs))

	for i, f := range freqs {
		xo, err := New(f, order, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("crossover: stage %d: %w", i, err)
		}

		stages[i] = xo
	}

	bands := len(freqs) + 1

	comp := make([][]*Crossover, bands)

	for b := 0; b < bands-1; b++ {
		for j := b + 1; j < len(stages); j++ {
			ap, err := New(freqs[j], order, sampleRate)
			if err != nil {
				return nil, fmt.Errorf("crossover: band %d compensation %d: %w", b, j, err)
			}

			comp[b] = append(comp[b], ap)
		}
	}

	return &MultiBand{
		stages: stages,
		bands:  bands,
		order:  order,
		sr:     sampleRate,
		comp:   comp,
	}, nil
}

// ValidateFrequencies checks that freqs are strictly ascending and each
// within [MinFrequency, sampleRate/2).
func ValidateFrequencies(freqs []float64, sampleRate float64) error {
	for i, f := range freqs {
		if err := validateFrequency(f, sampleRate); err != nil {
			return fmt.Errorf("crossover: frequency %d: %w", i, err)
		}

		if i > 0 && f <= freqs[i-1] {
			return fmt.Errorf("crossover: frequencies must be strictly ascending, got %.1f after %.1f", f, freqs[i-1])
		}
	}

	return nil
}

// NumBands returns the number of output bands.
func (m *MultiBand) NumBands() int { return m.bands }

// Order returns the Linkwitz-Riley order shared by all stages.
func (m *MultiBand) Order() int { return m.order }

// SampleRate returns the sample rate in Hz.
func (m *MultiBand) SampleRate() float64 { return m.sr }

// Frequencies returns a copy of the current crossover frequencies.
func (m *MultiBand) Frequencies() []float64 {
	out := make([]float64, len(m.stages))
	for i, s := range m.stages {
		out[i] = s.Freq()
	}

	return out
}

// SetFrequency retunes crossover point i, preserving filter state. The new
// frequency must keep the frequency list strictly ascending; otherwise the
// change is rejected and the previous configuration stays in effect.
func (m *MultiBand) SetFrequency(i int, freq float64) error {
	if i < 0 || i >= len(m.stages) {
		return fmt.Errorf("crossover: stage index %d out of range [0, %d)", i, len(m.stages))
	}

	if i > 0 && freq <= m.stages[i-1].Freq() {
		return fmt.Errorf("crossover: frequency %.1f not above lower neighbor %.1f", freq, m.stages[i-1].Freq())
	}

	if i < len(m.stages)-1 && freq >= m.stages[i+1].Freq() {
		return fmt.Errorf("crossover: frequency %.1f not below upper neighbor %.1f", freq, m.stages[i+1].Freq())
	}

	if err := m.stages[i].Retune(freq); err != nil {
		return err
	}

	// Keep the compensation copies of stage i in tune. The range check
	// already passed, so these retunes cannot fail.
	for b := 0; b < i; b++ {
		_ = m.comp[b][i-b-1].Retune(freq)
	}

	return nil
}

// ProcessSampleInto filters one input sample into per-band outputs,
// writing band b to out[b]. out must have NumBands() elements. Zero-alloc.
//
// At each stage the lowpass output is the current band and the highpass
// output feeds the next stage; the final highpass is the highest band.
func (m *MultiBand) ProcessSampleInto(x float64, out []float64) {
	_ = out[m.bands-1]

	remainder := x

	for i, stage := range m.stages {
		lo, hi := stage.ProcessSample(remainder)

		for _, ap := range m.comp[i] {
			l, h := ap.ProcessSample(lo)
			lo = l + h
		}

		out[i] = lo
		remainder = hi
	}

	out[m.bands-1] = remainder
}

// ProcessSample filters one input sample and returns per-band outputs in a
// freshly allocated slice. Prefer ProcessSampleInto on the audio path.
func (m *MultiBand) ProcessSample(x float64) []float64 {
	out := make([]float64, m.bands)
	m.ProcessSampleInto(x, out)

	return out
}

// ProcessBlockInto filters a block of input samples into per-band output
// blocks. out must have NumBands() elements, each with len(input) samples.
// The final band's buffer doubles as the cascade's remainder scratch, so
// the call performs no allocation.
func (m *MultiBand) ProcessBlockInto(input []float64, out [][]float64) {
	n := len(input)
	if n == 0 {
		return
	}

	remainder := out[m.bands-1]
	copy(remainder, input)

	for i, stage := range m.stages {
		stage.ProcessBlock(remainder, out[i], remainder)

		band := out[i]

		for _, ap := range m.comp[i] {
			for k, v := range band {
				lo, hi := ap.ProcessSample(v)
				band[k] = lo + hi
			}
		}
	}
}

// Reset clears all internal filter states.
func (m *MultiBand) Reset() {
	for _, s := range m.stages {
		s.Reset()
	}

	for _, c := range m.comp {
		for _, ap := range c {
			ap.Reset()
		}
	}
}
