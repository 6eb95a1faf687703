// Package biquad implements second-order IIR filter sections (Direct Form II
// Transposed) and cascades of sections. Cascades support state-preserving
// coefficient updates so a filter can be retuned at block boundaries without
// clearing its delay lines.
//
// Block processing dispatches to an unrolled kernel on CPUs with SIMD
// support; the selection happens once on first use.
package biquad
