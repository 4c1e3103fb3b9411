package submit

import (
	"context"
	"errors"
	"testing"
	"time"

	"garmentstudio/internal/webhook"
)

type pollFunc func(ctx context.Context, statusURL string) (webhook.Outcome, error)

func (f pollFunc) PollStatus(ctx context.Context, statusURL string) (webhook.Outcome, error) {
	return f(ctx, statusURL)
}

func TestPollerResolves(t *testing.T) {
	var calls int
	poller := &Poller{
		Interval: time.Millisecond,
		Service: pollFunc(func(ctx context.Context, statusURL string) (webhook.Outcome, error) {
			calls++
			if calls < 3 {
				return webhook.Outcome{Kind: webhook.KindPending}, nil
			}
			return webhook.Outcome{Kind: webhook.KindResolved, OutputURL: "https://z"}, nil
		}),
	}
	url, err := poller.Run(context.Background(), "https://s")
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if url != "https://z" || calls != 3 {
		t.Fatalf("url = %q after %d calls", url, calls)
	}
}

func TestPollerSurfacesFailure(t *testing.T) {
	poller := &Poller{
		Interval: time.Millisecond,
		Service: pollFunc(func(ctx context.Context, statusURL string) (webhook.Outcome, error) {
			return webhook.Outcome{}, errors.New("boom")
		}),
	}
	if _, err := poller.Run(context.Background(), "https://s"); err == nil {
		t.Fatal("expected poll failure to surface")
	}
}

func TestPollerAttemptCeiling(t *testing.T) {
	var calls int
	poller := &Poller{
		Interval:    time.Millisecond,
		MaxAttempts: 4,
		Service: pollFunc(func(ctx context.Context, statusURL string) (webhook.Outcome, error) {
			calls++
			return webhook.Outcome{Kind: webhook.KindPending}, nil
		}),
	}
	_, err := poller.Run(context.Background(), "https://s")
	if !errors.Is(err, ErrPollLimit) {
		t.Fatalf("expected ErrPollLimit, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls)
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	poller := &Poller{
		Interval: time.Hour,
		Service: pollFunc(func(c context.Context, statusURL string) (webhook.Outcome, error) {
			calls++
			cancel()
			return webhook.Outcome{Kind: webhook.KindPending}, nil
		}),
	}
	_, err := poller.Run(ctx, "https://s")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}
