package param

import (
	"sync"
	"testing"
)

func testDescriptor(kind Kind, index int) Descriptor {
	return Descriptor{
		ID:          MakeID(kind, index),
		Name:        kind.String(),
		Unit:        "dB",
		Min:         -60,
		Max:         12,
		Default:     -20,
		SmoothingMs: 5,
	}
}

func TestRegistryRegisterAndSet(t *testing.T) {
	r := NewRegistry()

	v, err := r.Register(testDescriptor(KindThreshold, 0))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if got := v.Load(); got != -20 {
		t.Errorf("initial value = %v, want default -20", got)
	}

	if err := r.Set(MakeID(KindThreshold, 0), -12); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if got := v.Load(); got != -12 {
		t.Errorf("value after Set = %v, want -12", got)
	}
}

func TestRegistryRejectsOutOfRange(t *testing.T) {
	r := NewRegistry()
	id := MakeID(KindThreshold, 0)

	if _, err := r.Register(testDescriptor(KindThreshold, 0)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := r.Set(id, -100); err == nil {
		t.Error("Set() below range should fail")
	}

	if err := r.Set(id, 40); err == nil {
		t.Error("Set() above range should fail")
	}

	// The previous target must stay in effect after a rejected write.
	if got, _ := r.Get(id); got != -20 {
		t.Errorf("value after rejected writes = %v, want -20", got)
	}
}

func TestRegistryDuplicateAndUnknown(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Register(testDescriptor(KindRatio, 1)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := r.Register(testDescriptor(KindRatio, 1)); err == nil {
		t.Error("duplicate Register() should fail")
	}

	if err := r.Set(MakeID(KindKnee, 3), 1); err == nil {
		t.Error("Set() on unregistered ID should fail")
	}
}

func TestIDEncoding(t *testing.T) {
	id := MakeID(KindCrossoverFreq, 2)

	if id.Kind() != KindCrossoverFreq {
		t.Errorf("Kind() = %v, want KindCrossoverFreq", id.Kind())
	}

	if id.Index() != 2 {
		t.Errorf("Index() = %d, want 2", id.Index())
	}
}

func TestKindClass(t *testing.T) {
	if KindBandCount.Class() != ClassStructural {
		t.Error("band count should be structural")
	}

	for _, k := range []Kind{KindThreshold, KindRatio, KindKnee, KindAttack,
		KindRelease, KindMakeupGain, KindMix, KindBypass, KindCrossoverFreq} {
		if k.Class() != ClassContinuous {
			t.Errorf("%v should be continuous", k)
		}
	}
}

// TestValueConcurrentHandoff exercises the writer/reader handoff: a
// non-real-time goroutine stores targets while the reader loads them.
// Every observed value must be one that was actually written.
func TestValueConcurrentHandoff(t *testing.T) {
	v := NewValue(0)
	valid := map[float64]bool{0: true, -6: true, -12: true, -18: true}

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := 0; i < 10000; i++ {
			switch i % 3 {
			case 0:
				v.Store(-6)
			case 1:
				v.Store(-12)
			case 2:
				v.Store(-18)
			}
		}
	}()

	for i := 0; i < 10000; i++ {
		if got := v.Load(); !valid[got] {
			t.Fatalf("torn read: %v", got)
		}
	}

	wg.Wait()
}
