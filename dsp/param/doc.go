// Package param models the host-facing control parameters of the dynamics
// core: typed descriptors with ranges and defaults, a closed set of parameter
// kinds resolved through a lookup table, lock-free atomic target handoff from
// a non-real-time writer to the audio thread, and per-sample smoothing of
// target values to avoid audible stepping artifacts.
//
// Continuous parameters (threshold, ratio, attack, release, makeup gain, mix,
// crossover frequency) are real-time safe to write through [Registry.Set].
// Structural parameters (band count) are not: they require reconfiguration
// that allocates, which the consuming engine stages outside the audio thread.
package param
