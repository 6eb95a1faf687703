package envelope

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-dynamics/internal/testutil"
)

func TestNewFollowerValidation(t *testing.T) {
	tests := []struct {
		name       string
		mode       Mode
		attack     float64
		release    float64
		sampleRate float64
		wantErr    bool
	}{
		{"valid peak", ModePeak, 5, 100, 48000, false},
		{"valid rms", ModeRMS, 10, 200, 44100, false},
		{"zero times", ModePeak, 0, 0, 48000, false},
		{"negative attack", ModePeak, -1, 100, 48000, true},
		{"attack too long", ModePeak, 20000, 100, 48000, true},
		{"negative release", ModePeak, 5, -1, 48000, true},
		{"nan attack", ModePeak, math.NaN(), 100, 48000, true},
		{"zero sample rate", ModePeak, 5, 100, 0, true},
		{"unknown mode", Mode(9), 5, 100, 48000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFollower(tt.mode, tt.attack, tt.release, tt.sampleRate)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewFollower() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestConvergesWithinFiveTimeConstants drives the follower with a DC step
// and checks it reaches the target within 1% after 5 time constants.
func TestConvergesWithinFiveTimeConstants(t *testing.T) {
	const (
		sampleRate = 48000
		attackMs   = 10
	)

	f, err := NewFollower(ModePeak, attackMs, 100, sampleRate)
	if err != nil {
		t.Fatalf("NewFollower() error = %v", err)
	}

	samples := int(5 * attackMs * 0.001 * sampleRate)

	var env float64
	for i := 0; i < samples; i++ {
		env = f.ProcessSample(1)
	}

	if env < 0.99 {
		t.Errorf("envelope after 5 time constants = %v, want >= 0.99", env)
	}
}

func TestAttackIsMonotonic(t *testing.T) {
	f, _ := NewFollower(ModePeak, 10, 100, 48000)

	prev := 0.0

	for i := 0; i < 2000; i++ {
		env := f.ProcessSample(1)
		if env < prev {
			t.Fatalf("sample %d: envelope decreased during attack (%v -> %v)", i, prev, env)
		}

		prev = env
	}
}

func TestReleaseIsMonotonic(t *testing.T) {
	f, _ := NewFollower(ModePeak, 0, 50, 48000)

	f.ProcessSample(1)

	prev := 1.0

	for i := 0; i < 2000; i++ {
		env := f.ProcessSample(0)
		if env > prev {
			t.Fatalf("sample %d: envelope increased during release (%v -> %v)", i, prev, env)
		}

		prev = env
	}
}

func TestZeroAttackTracksInstantly(t *testing.T) {
	f, _ := NewFollower(ModePeak, 0, 100, 48000)

	if env := f.ProcessSample(0.7); env != 0.7 {
		t.Errorf("zero-attack envelope = %v, want 0.7", env)
	}
}

func TestZeroReleaseTracksInstantly(t *testing.T) {
	f, _ := NewFollower(ModePeak, 0, 0, 48000)

	f.ProcessSample(1)

	if env := f.ProcessSample(0); env != 0 {
		t.Errorf("zero-release envelope = %v, want 0", env)
	}
}

// TestRMSOfSine verifies RMS detection settles near A/sqrt(2) for a steady
// sine of amplitude A.
func TestRMSOfSine(t *testing.T) {
	const sampleRate = 48000

	f, err := NewFollower(ModeRMS, 50, 50, sampleRate)
	if err != nil {
		t.Fatalf("NewFollower() error = %v", err)
	}

	input := testutil.DeterministicSine(1000, sampleRate, 0.5, 48000)

	var env float64
	for _, x := range input {
		env = f.ProcessSample(x)
	}

	want := 0.5 / math.Sqrt2
	if math.Abs(env-want) > 0.01*want {
		t.Errorf("RMS envelope = %v, want %v within 1%%", env, want)
	}
}

func TestSetSampleRateRecomputesCoefficients(t *testing.T) {
	f, _ := NewFollower(ModePeak, 10, 100, 48000)

	if err := f.SetSampleRate(96000); err != nil {
		t.Fatalf("SetSampleRate() error = %v", err)
	}

	// Twice the sample rate doubles the samples per time constant.
	g, _ := NewFollower(ModePeak, 10, 100, 96000)

	for i := 0; i < 1000; i++ {
		a := f.ProcessSample(1)
		b := g.ProcessSample(1)

		if a != b {
			t.Fatalf("sample %d: follower after SetSampleRate diverges (%v vs %v)", i, a, b)
		}
	}

	if err := f.SetSampleRate(0); err == nil {
		t.Error("SetSampleRate(0) should fail")
	}
}

func TestRejectedSettingKeepsPrevious(t *testing.T) {
	f, _ := NewFollower(ModePeak, 10, 100, 48000)

	if err := f.SetAttack(-5); err == nil {
		t.Error("SetAttack(-5) should fail")
	}

	if f.Attack() != 10 {
		t.Errorf("Attack() = %v after rejected set, want 10", f.Attack())
	}

	if err := f.SetRelease(99999); err == nil {
		t.Error("SetRelease(99999) should fail")
	}

	if f.Release() != 100 {
		t.Errorf("Release() = %v after rejected set, want 100", f.Release())
	}
}

func TestReset(t *testing.T) {
	f, _ := NewFollower(ModePeak, 10, 100, 48000)

	f.ProcessSample(1)
	f.Reset()

	if f.Envelope() != 0 {
		t.Errorf("Envelope() = %v after Reset, want 0", f.Envelope())
	}
}

func TestModeString(t *testing.T) {
	if ModePeak.String() != "peak" || ModeRMS.String() != "rms" {
		t.Error("unexpected mode names")
	}

	if Mode(9).String() != "mode(9)" {
		t.Errorf("Mode(9).String() = %q", Mode(9).String())
	}
}
