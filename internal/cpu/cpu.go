// Package cpu provides CPU feature detection for DSP kernel selection.
//
// Detection runs lazily on the first call to DetectFeatures and the result
// is cached for subsequent calls.
package cpu

import "sync"

// SIMDLevel represents a SIMD instruction set extension level.
type SIMDLevel int

const (
	// SIMDNone indicates no SIMD optimization (pure Go fallback).
	SIMDNone SIMDLevel = iota

	// SIMDSSE2 indicates x86-64 SSE2 (baseline for amd64).
	SIMDSSE2

	// SIMDAVX2 indicates x86-64 AVX2.
	SIMDAVX2

	// SIMDNEON indicates ARM NEON / Advanced SIMD.
	SIMDNEON
)

// Features describes CPU capabilities relevant to DSP kernel selection.
type Features struct {
	HasSSE2 bool
	HasAVX2 bool
	HasNEON bool

	// ForceGeneric disables all SIMD-selected kernels (for testing).
	ForceGeneric bool

	// Architecture is runtime.GOARCH (e.g. "amd64", "arm64").
	Architecture string
}

var (
	detectedFeatures Features
	detectOnce       sync.Once

	forcedMu       sync.RWMutex
	forcedFeatures *Features
)

// DetectFeatures returns the CPU features available on the current system.
// Safe for concurrent use.
func DetectFeatures() Features {
	forcedMu.RLock()
	forced := forcedFeatures
	forcedMu.RUnlock()

	if forced != nil {
		return *forced
	}

	detectOnce.Do(func() {
		detectedFeatures = detectFeaturesImpl()
	})

	return detectedFeatures
}

// SetForcedFeatures overrides hardware detection. Intended for tests.
func SetForcedFeatures(f Features) {
	forcedMu.Lock()
	defer forcedMu.Unlock()

	forced := f
	forcedFeatures = &forced
}

// ResetForcedFeatures clears a previous SetForcedFeatures override.
func ResetForcedFeatures() {
	forcedMu.Lock()
	defer forcedMu.Unlock()

	forcedFeatures = nil
}

// Supports reports whether the given features satisfy the SIMD level.
func Supports(features Features, level SIMDLevel) bool {
	if features.ForceGeneric {
		return level == SIMDNone
	}

	switch level {
	case SIMDNone:
		return true
	case SIMDSSE2:
		return features.HasSSE2
	case SIMDAVX2:
		return features.HasAVX2
	case SIMDNEON:
		return features.HasNEON
	default:
		return false
	}
}
