package submit

import (
	"context"
	"errors"
	"time"

	"garmentstudio/internal/webhook"
)

// ErrPollLimit is returned when the optional attempt ceiling is exceeded.
var ErrPollLimit = errors.New("status polling attempt limit reached")

// StatusService is the slice of the webhook client the poller needs.
type StatusService interface {
	PollStatus(ctx context.Context, statusURL string) (webhook.Outcome, error)
}

// Poller queries a status endpoint at a fixed interval until a terminal
// result appears or the context is canceled. Polls never overlap: the next
// attempt is only scheduled after the previous response is observed. The
// interval is constant — cadence is configuration, not adaptive.
type Poller struct {
	Service  StatusService
	Interval time.Duration
	// MaxAttempts caps the loop when positive. Zero keeps the original
	// unbounded behavior: short of a terminal or failing response, only
	// cancellation ends polling.
	MaxAttempts int
	OnAttempt   func()
}

// Run polls until it can return an output URL. A network or parse failure is
// surfaced immediately rather than retried — silent retries against a broken
// status endpoint would leave the caller waiting forever.
func (p *Poller) Run(ctx context.Context, statusURL string) (string, error) {
	for attempt := 1; ; attempt++ {
		// Cancellation wins over a concurrently fired interval timer.
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if p.OnAttempt != nil {
			p.OnAttempt()
		}
		out, err := p.Service.PollStatus(ctx, statusURL)
		if err != nil {
			return "", err
		}
		if out.Kind == webhook.KindResolved {
			return out.OutputURL, nil
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return "", ErrPollLimit
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(p.Interval):
		}
	}
}
