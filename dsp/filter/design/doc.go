// Package design computes biquad coefficients for the filters used by the
// crossover network: RBJ lowpass/highpass prototypes, Butterworth cascades,
// and Linkwitz-Riley crossover pairs of arbitrary even order.
//
// Design functions are pure: they return coefficient sets and leave filter
// state management to the biquad package. Invalid parameters yield nil (or
// zero coefficients for single sections), matching how a configuration layer
// probes a design before committing to it.
package design
