package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitFor(t *testing.T) {
	original := after
	defer func() { after = original }()

	var waited time.Duration
	after = func(d time.Duration) <-chan time.Time {
		waited = d
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}

	if err := WaitFor(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if waited != 2*time.Second {
		t.Fatalf("expected a wait of 2s, got %s", waited)
	}

	waited = 0
	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error for zero duration: %v", err)
	}
	if waited != 0 {
		t.Fatalf("zero duration must not start a timer")
	}
}

func TestWaitForCancelled(t *testing.T) {
	original := after
	defer func() { after = original }()

	after = func(time.Duration) <-chan time.Time { return make(chan time.Time) }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := WaitFor(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for zero duration, got %v", err)
	}
}
