// Package dynamics provides dynamic range processors: a soft-knee
// [Compressor], a Linkwitz-Riley [MultibandCompressor], and the lock-free
// block-processing [Engine] that drives them from a concurrent control
// surface.
//
// The gain computer ([Curve]) evaluates the static compression law in the
// log2 domain, so the per-sample cost is one logarithm and one exponential.
// Build with the "fastmath" tag to replace both with polynomial
// approximations.
//
// Compressor and MultibandCompressor are mono and single-threaded building
// blocks. Engine adds multichannel processing, parameter smoothing, staged
// topology changes, metering, and non-finite sample guards on top of them.
package dynamics
