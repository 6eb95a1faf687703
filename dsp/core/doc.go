// Package core provides shared numeric primitives for the dynamics DSP
// packages: range clamping, approximate comparison, dB/linear conversion,
// denormal flushing, and finite-value guards used by the real-time path.
package core
