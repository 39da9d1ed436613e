package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func TestBreaker_TripsAfterFailures(t *testing.T) {
	b := NewBreaker(Settings{Name: "test", Timeout: time.Hour, MinRequests: 3, FailureRatio: 0.5})
	boom := errors.New("boom")

	for range 3 {
		if _, err := Execute(b, func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("expected underlying error, got %v", err)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("expected open state, got %v", b.State())
	}

	called := false
	_, err := Execute(b, func() (int, error) { called = true; return 1, nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Error("function must not run while open")
	}
}

func TestBreaker_NilPassesThrough(t *testing.T) {
	var b *Breaker
	v, err := Execute(b, func() (string, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Fatalf("got %q %v", v, err)
	}
	if b.State() != gobreaker.StateClosed {
		t.Error("nil breaker should report closed")
	}
}
