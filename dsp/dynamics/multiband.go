package dynamics

import (
	"fmt"

	"github.com/cwbudde/algo-dynamics/dsp/envelope"
	"github.com/cwbudde/algo-dynamics/dsp/filter/crossover"
)

const (
	minCrossoverOrder = 2
	maxCrossoverOrder = 24
	maxBands          = 8

	defaultMaxBlockSize = 4096
)

// MultibandMetrics holds per-band metering, ordered low to high.
type MultibandMetrics struct {
	Bands []Metrics
}

// MultibandCompressor splits the input into frequency bands with a
// Linkwitz-Riley crossover network, compresses each band independently, and
// sums the bands back together.
//
// Signal flow:
//
//	input → crossover → [band 0] → ╲
//	                  → [band 1] →  + → output
//	                  → [band N] → ╱
//
// With all bands bypassed the output is the allpass-summed crossover
// output, i.e. a flat magnitude response. MultibandCompressor is mono and
// single-threaded; for multichannel processing with a lock-free control
// surface use [Engine].
type MultibandCompressor struct {
	xover *crossover.MultiBand
	bands []*Band

	crossoverOrder int
	sampleRate     float64

	scratch     [][]float64
	splitSample []float64
	metrics     MultibandMetrics
}

// NewMultibandCompressor creates a multiband compressor with the given
// crossover frequencies (strictly ascending, len(freqs)+1 bands), an even
// Linkwitz-Riley order, and peak detection per band. Blocks of up to
// 4096 samples process without allocation regardless of how block sizes
// vary; for larger blocks call [MultibandCompressor.EnsureBlockSize] before
// processing starts, otherwise the first oversized block grows the scratch
// buffers itself.
func NewMultibandCompressor(freqs []float64, order int, sampleRate float64) (*MultibandCompressor, error) {
	if order < minCrossoverOrder || order > maxCrossoverOrder {
		return nil, fmt.Errorf("multiband: order must be in [%d, %d], got %d", minCrossoverOrder, maxCrossoverOrder, order)
	}

	if len(freqs)+1 > maxBands {
		return nil, fmt.Errorf("multiband: at most %d bands supported, got %d", maxBands, len(freqs)+1)
	}

	xo, err := crossover.NewMultiBand(freqs, order, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("multiband: %w", err)
	}

	numBands := xo.NumBands()

	bands := make([]*Band, numBands)
	for i := range bands {
		b, err := NewBand(envelope.ModePeak, sampleRate)
		if err != nil {
			return nil, fmt.Errorf("multiband: band %d: %w", i, err)
		}

		bands[i] = b
	}

	scratch := make([][]float64, numBands)
	for i := range scratch {
		scratch[i] = make([]float64, defaultMaxBlockSize)
	}

	return &MultibandCompressor{
		xover:          xo,
		bands:          bands,
		crossoverOrder: order,
		sampleRate:     sampleRate,
		scratch:        scratch,
		splitSample:    make([]float64, numBands),
		metrics:        MultibandMetrics{Bands: make([]Metrics, numBands)},
	}, nil
}

// NumBands returns the number of frequency bands.
func (mc *MultibandCompressor) NumBands() int { return len(mc.bands) }

// Band returns the dynamics band at index i for parameter access.
func (mc *MultibandCompressor) Band(i int) (*Band, error) {
	if i < 0 || i >= len(mc.bands) {
		return nil, fmt.Errorf("multiband: band index %d out of range [0, %d)", i, len(mc.bands))
	}

	return mc.bands[i], nil
}

// CrossoverFrequencies returns a copy of the crossover frequencies.
func (mc *MultibandCompressor) CrossoverFrequencies() []float64 {
	return mc.xover.Frequencies()
}

// SetCrossoverFrequency retunes crossover point i, preserving filter state.
// The change is rejected if it would break the ascending frequency order.
func (mc *MultibandCompressor) SetCrossoverFrequency(i int, freq float64) error {
	return mc.xover.SetFrequency(i, freq)
}

// EnsureBlockSize grows the internal band scratch buffers so that blocks of
// up to n samples process without allocation. Call before processing starts.
func (mc *MultibandCompressor) EnsureBlockSize(n int) {
	if n <= cap(mc.scratch[0]) {
		return
	}

	for i := range mc.scratch {
		mc.scratch[i] = make([]float64, n)
	}
}

// ProcessSample processes one input sample and returns the output sample.
func (mc *MultibandCompressor) ProcessSample(x float64) float64 {
	split := mc.splitSample
	mc.xover.ProcessSampleInto(x, split)

	var out float64

	for i, band := range mc.bands {
		v := band.ProcessSample(split[i])
		mc.accumulateMetrics(i, split[i], v)

		out += v
	}

	return out
}

// ProcessBlock splits, compresses, and sums a block of samples. The slices
// must have equal length; output may alias input. Blocks within the
// configured maximum size are processed without allocation; a larger block
// allocates once to grow the scratch buffers.
func (mc *MultibandCompressor) ProcessBlock(input, output []float64) {
	n := len(input)
	if n == 0 {
		return
	}

	mc.EnsureBlockSize(n)

	split := mc.scratch
	for i := range split {
		split[i] = split[i][:n]
	}

	mc.xover.ProcessBlockInto(input, split)

	for b, band := range mc.bands {
		buf := split[b]

		for i, v := range buf {
			w := band.ProcessSample(v)
			mc.accumulateMetrics(b, v, w)
			buf[i] = w
		}
	}

	for i := 0; i < n; i++ {
		var sum float64
		for b := range split {
			sum += split[b][i]
		}

		output[i] = sum
	}
}

// Metrics returns per-band metering accumulated since the last ResetMetrics.
// The returned slice is owned by the compressor; copy it to retain.
func (mc *MultibandCompressor) Metrics() MultibandMetrics { return mc.metrics }

// ResetMetrics clears the accumulated per-band metering.
func (mc *MultibandCompressor) ResetMetrics() {
	for i := range mc.metrics.Bands {
		mc.metrics.Bands[i] = Metrics{}
	}
}

// Reset clears all filter and detector state and metering. Parameters and
// crossover tuning are kept.
func (mc *MultibandCompressor) Reset() {
	mc.xover.Reset()

	for _, b := range mc.bands {
		b.Reset()
	}

	mc.ResetMetrics()
}

func (mc *MultibandCompressor) accumulateMetrics(band int, in, out float64) {
	m := &mc.metrics.Bands[band]

	if in < 0 {
		in = -in
	}

	if out < 0 {
		out = -out
	}

	if in > m.InputPeak {
		m.InputPeak = in
	}

	if out > m.OutputPeak {
		m.OutputPeak = out
	}

	if r := mc.bands[band].ReductionDB(); r > m.MaxReductionDB {
		m.MaxReductionDB = r
	}
}
