// Package crossover provides Linkwitz-Riley crossover networks for splitting
// an audio signal into frequency bands.
//
// The [Crossover] type implements a two-way (LP + HP) Linkwitz-Riley split of
// arbitrary even order whose outputs sum to an allpass response. [MultiBand]
// chains two-way splits to divide a signal into N+1 contiguous bands for N
// crossover frequencies, ordered lowest to highest.
//
// Both types support runtime retuning: coefficients are recomputed for the
// new frequency while the filter delay lines are preserved, so a retune at a
// block boundary does not produce a reset click. Invalid retunes are rejected
// and the previous configuration stays in effect.
package crossover
