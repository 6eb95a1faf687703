package param

import (
	"fmt"
	"math"
)

// Kind identifies one member of the closed set of parameter kinds.
type Kind uint8

const (
	// KindThreshold is the compression threshold in dB.
	KindThreshold Kind = iota
	// KindRatio is the compression ratio (1 = none, +Inf = limiting).
	KindRatio
	// KindKnee is the soft-knee width in dB.
	KindKnee
	// KindAttack is the detector attack time in milliseconds.
	KindAttack
	// KindRelease is the detector release time in milliseconds.
	KindRelease
	// KindMakeupGain is the post-compression makeup gain in dB.
	KindMakeupGain
	// KindMix is the per-band dry/wet blend (0 = dry, 1 = wet).
	KindMix
	// KindBypass toggles a band's processing (0 = active, 1 = bypassed).
	KindBypass
	// KindCrossoverFreq is a crossover split frequency in Hz.
	KindCrossoverFreq
	// KindBandCount is the number of frequency bands (structural).
	KindBandCount

	numKinds
)

// String returns a short lowercase name for the kind.
func (k Kind) String() string {
	switch k {
	case KindThreshold:
		return "threshold"
	case KindRatio:
		return "ratio"
	case KindKnee:
		return "knee"
	case KindAttack:
		return "attack"
	case KindRelease:
		return "release"
	case KindMakeupGain:
		return "makeup"
	case KindMix:
		return "mix"
	case KindBypass:
		return "bypass"
	case KindCrossoverFreq:
		return "crossover"
	case KindBandCount:
		return "bands"
	default:
		return "unknown"
	}
}

// Class separates parameters the audio thread can pick up atomically from
// those that require staged reconfiguration between blocks.
type Class uint8

const (
	// ClassContinuous parameters are written atomically and smoothed.
	ClassContinuous Class = iota
	// ClassStructural parameters change the processing topology and must
	// be applied outside the real-time call.
	ClassStructural
)

// Class returns the class of the kind. Only band count is structural;
// every other kind can be handed off atomically.
func (k Kind) Class() Class {
	if k == KindBandCount {
		return ClassStructural
	}

	return ClassContinuous
}

// ID addresses one parameter instance: a kind plus the band (or crossover)
// index it applies to. Band-independent kinds use index 0.
type ID uint32

// MakeID builds an ID from a kind and a band or crossover index.
func MakeID(kind Kind, index int) ID {
	return ID(index)<<8 | ID(kind)
}

// Kind returns the parameter kind encoded in the ID.
func (id ID) Kind() Kind { return Kind(id & 0xff) }

// Index returns the band or crossover index encoded in the ID.
func (id ID) Index() int { return int(id >> 8) }

// String formats the ID as kind[index].
func (id ID) String() string {
	return fmt.Sprintf("%s[%d]", id.Kind(), id.Index())
}

// Descriptor describes one control parameter: identity, display name, unit,
// value range, default, and the smoothing time constant applied to target
// changes. Descriptors are immutable after registration.
type Descriptor struct {
	ID          ID
	Name        string
	Unit        string
	Min         float64
	Max         float64
	Default     float64
	SmoothingMs float64
}

// Class returns the class of the descriptor's kind.
func (d Descriptor) Class() Class { return d.ID.Kind().Class() }

// Validate checks that v is finite (or +Inf where the range allows it)
// and within [Min, Max].
func (d Descriptor) Validate(v float64) error {
	if math.IsNaN(v) {
		return fmt.Errorf("param %s: value must not be NaN", d.ID)
	}

	if v < d.Min || v > d.Max {
		return fmt.Errorf("param %s: value %v out of range [%v, %v]", d.ID, v, d.Min, d.Max)
	}

	return nil
}
