package retry

import (
	"testing"
	"time"
)

// fixedJitter returns 0.5, which maps to a zero jitter offset, making
// delays deterministic for assertions.
func fixedJitter() float64 { return 0.5 }

func TestExponentialBackoffDelaysGrow(t *testing.T) {
	b := NewExponentialBackoff(5,
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(10*time.Second),
		WithJitterFunc(fixedJitter),
	)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}

	for attempt, expected := range want {
		if got := b.NextDelay(attempt); got != expected {
			t.Errorf("attempt %d: got %v, want %v", attempt, got, expected)
		}
	}
}

func TestExponentialBackoffCapsAtMaxDelay(t *testing.T) {
	b := NewExponentialBackoff(10,
		WithInitialDelay(1*time.Second),
		WithMaxDelay(2*time.Second),
		WithJitterFunc(fixedJitter),
	)

	if got := b.NextDelay(8); got != 2*time.Second {
		t.Errorf("got %v, want max delay 2s", got)
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	base := 100 * time.Millisecond
	b := NewExponentialBackoff(3,
		WithInitialDelay(base),
		WithJitter(0.2),
	)

	// With 20% jitter the first delay must stay within [80ms, 120ms].
	for i := 0; i < 100; i++ {
		d := b.NextDelay(0)
		if d < 80*time.Millisecond || d > 120*time.Millisecond {
			t.Fatalf("delay %v outside jitter bounds", d)
		}
	}
}

func TestExponentialBackoffMaxAttempts(t *testing.T) {
	if got := NewExponentialBackoff(3).MaxAttempts(); got != 3 {
		t.Errorf("got %d, want 3", got)
	}
	if got := NewExponentialBackoff(-1).MaxAttempts(); got != -1 {
		t.Errorf("got %d, want -1", got)
	}
}

func TestExponentialBackoffDefaults(t *testing.T) {
	b := NewExponentialBackoff(3)
	if b.InitialDelay() != 100*time.Millisecond {
		t.Errorf("initial delay: got %v", b.InitialDelay())
	}
	if b.MaxDelay() != 30*time.Second {
		t.Errorf("max delay: got %v", b.MaxDelay())
	}
}
