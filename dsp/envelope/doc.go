// Package envelope provides level detection for dynamics processing.
//
// The [Follower] type implements a one-pole envelope follower with
// independent attack and release ballistics and selectable peak or RMS
// detection. It is the level detector behind the compressors in
// dsp/dynamics.
package envelope
