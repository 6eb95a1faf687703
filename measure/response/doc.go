// Package response measures magnitude frequency responses of causal sample
// processors by impulse excitation and FFT analysis. It is used to verify
// filter designs and the reconstruction flatness of crossover networks.
package response
