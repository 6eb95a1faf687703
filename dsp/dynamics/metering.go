package dynamics

import (
	"math"
	"sync/atomic"
)

// peakMeterDecaySeconds is the time for the held peak to fall by half.
const peakMeterDecaySeconds = 0.150

// PeakMeter is a decaying peak meter safe for one writer (the audio thread)
// and any number of readers. The held value decays exponentially with a
// 150 ms half-life so a UI polling the meter sees recent peaks rather than
// an all-time maximum.
type PeakMeter struct {
	bits           atomic.Uint64
	decayPerSample float64
}

// NewPeakMeter creates a peak meter for the given sample rate.
func NewPeakMeter(sampleRate float64) *PeakMeter {
	m := &PeakMeter{}
	m.SetSampleRate(sampleRate)

	return m
}

// SetSampleRate recomputes the decay factor. Not safe concurrently with
// Update.
func (m *PeakMeter) SetSampleRate(sampleRate float64) {
	if sampleRate <= 0 {
		m.decayPerSample = 0
		return
	}

	m.decayPerSample = math.Pow(0.5, 1/(peakMeterDecaySeconds*sampleRate))
}

// Update folds a block's absolute peak into the meter, decaying the held
// value by the block length first. Call once per processed block.
func (m *PeakMeter) Update(blockPeak float64, blockLen int) {
	held := math.Float64frombits(m.bits.Load())
	held *= math.Pow(m.decayPerSample, float64(blockLen))

	if blockPeak > held {
		held = blockPeak
	}

	m.bits.Store(math.Float64bits(held))
}

// Read returns the current held peak (linear amplitude).
func (m *PeakMeter) Read() float64 {
	return math.Float64frombits(m.bits.Load())
}

// Reset clears the held peak.
func (m *PeakMeter) Reset() {
	m.bits.Store(0)
}
