package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	p, err := NewPolicy(3, time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}

	calls := 0
	err = p.Do(context.Background(), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	p, _ := NewPolicy(3, time.Millisecond, time.Second)

	calls := 0
	err := p.Do(context.Background(), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	p, _ := NewPolicy(3, time.Millisecond, time.Second)

	sentinel := errors.New("provider down")
	calls := 0
	err := p.Do(context.Background(), func(_ context.Context) error {
		calls++
		return sentinel
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_CancelledContextStopsRetrying(t *testing.T) {
	p, _ := NewPolicy(5, 50*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.Do(ctx, func(_ context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestNewPolicy_Validation(t *testing.T) {
	if _, err := NewPolicy(0, time.Millisecond, time.Second); err == nil {
		t.Error("expected error for zero attempts")
	}
	if _, err := NewPolicy(3, -time.Millisecond, time.Second); err == nil {
		t.Error("expected error for negative backoff")
	}
	if _, err := NewPolicy(3, time.Millisecond, 0); err == nil {
		t.Error("expected error for zero timeout")
	}
}
