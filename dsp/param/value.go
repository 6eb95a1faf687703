package param

import (
	"math"
	"sync/atomic"
)

// Value is a lock-free float64 cell. A non-real-time writer stores parameter
// targets and the audio thread loads them at block boundaries; neither side
// ever blocks the other.
type Value struct {
	bits atomic.Uint64
}

// NewValue returns a Value initialized to v.
func NewValue(v float64) *Value {
	val := &Value{}
	val.Store(v)

	return val
}

// Store atomically replaces the value.
func (v *Value) Store(f float64) {
	v.bits.Store(math.Float64bits(f))
}

// Load atomically reads the value.
func (v *Value) Load() float64 {
	return math.Float64frombits(v.bits.Load())
}
