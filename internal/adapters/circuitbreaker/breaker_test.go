package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestBreakerTripsAfterThreshold(t *testing.T) {
	cb := New(2, time.Hour)

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open state, got %v", cb.State())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("fn must not run while the circuit is open")
	}
}

func TestBreakerRecoversAfterCooldown(t *testing.T) {
	cb := New(1, 10*time.Millisecond)

	cb.Execute(func() error { return errBoom })
	if cb.State() != StateOpen {
		t.Fatalf("expected open state, got %v", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	for i := 0; i < halfOpenSuccesses; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("probe %d failed: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed state after probes, got %v", cb.State())
	}
}

func TestBreakerResetsFailuresOnSuccess(t *testing.T) {
	cb := New(2, time.Hour)

	cb.Execute(func() error { return errBoom })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errBoom })

	if cb.State() != StateClosed {
		t.Errorf("expected closed state, got %v", cb.State())
	}
}
