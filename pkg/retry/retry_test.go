package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JaimeStill/scribe/pkg/retry"
)

func TestAttempt(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name          string
		failures      int
		maxAttempts   int
		wantOK        bool
		wantAttempts  int
		wantExhausted bool
	}{
		{"first call succeeds", 0, 2, true, 1, false},
		{"succeeds on retry", 1, 2, true, 2, false},
		{"fails twice", 2, 2, false, 2, true},
		{"zero attempts treated as one", 5, 0, false, 1, true},
		{"three attempts", 2, 3, true, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			out := retry.Attempt(context.Background(), retry.Policy{MaxAttempts: tt.maxAttempts}, func(context.Context) (string, error) {
				calls++
				if calls <= tt.failures {
					return "", boom
				}
				return "ok", nil
			})

			if out.OK() != tt.wantOK {
				t.Errorf("OK: got %v, want %v (err %v)", out.OK(), tt.wantOK, out.Err)
			}
			if out.Attempts != tt.wantAttempts {
				t.Errorf("attempts: got %d, want %d", out.Attempts, tt.wantAttempts)
			}
			if calls != tt.wantAttempts {
				t.Errorf("calls: got %d, want %d", calls, tt.wantAttempts)
			}
			if out.Exhausted != tt.wantExhausted {
				t.Errorf("exhausted: got %v, want %v", out.Exhausted, tt.wantExhausted)
			}
			if tt.wantOK && out.Value != "ok" {
				t.Errorf("value: got %q, want ok", out.Value)
			}
			if !tt.wantOK && !errors.Is(out.Err, boom) {
				t.Errorf("err: got %v, want %v", out.Err, boom)
			}
		})
	}
}

func TestAttemptOnRetry(t *testing.T) {
	var seen []int
	policy := retry.Policy{
		MaxAttempts: 3,
		OnRetry: func(attempt int, err error) {
			seen = append(seen, attempt)
		},
	}

	retry.Attempt(context.Background(), policy, func(context.Context) (int, error) {
		return 0, errors.New("fail")
	})

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Errorf("OnRetry attempts: got %v, want [1 2]", seen)
	}
}

func TestAttemptStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	out := retry.Attempt(ctx, retry.Policy{MaxAttempts: 2, Delay: time.Hour}, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("fail")
	})

	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
	if out.Exhausted {
		t.Error("cancelled attempt should not be marked exhausted")
	}
	if out.OK() {
		t.Error("expected failure outcome")
	}
}
