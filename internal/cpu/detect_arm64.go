//go:build arm64

package cpu

import "runtime"

// detectFeaturesImpl performs CPU feature detection on arm64 systems.
// NEON (Advanced SIMD) is mandatory in AArch64.
func detectFeaturesImpl() Features {
	return Features{
		HasNEON:      true,
		Architecture: runtime.GOARCH,
	}
}
