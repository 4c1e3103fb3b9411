// Package submit owns the lifecycle of one outstanding visualization job:
// build and send the submission, interpret the response, poll when queued,
// and fan status transitions out to whoever is rendering them.
package submit

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"garmentstudio/internal/domain"
	"garmentstudio/internal/infra"
	"garmentstudio/internal/observability"
	"garmentstudio/internal/session"
	"garmentstudio/internal/webhook"
)

// Service is the slice of the webhook client the controller drives.
type Service interface {
	Submit(ctx context.Context, token session.Token, req domain.Request) (webhook.Outcome, error)
	PollStatus(ctx context.Context, statusURL string) (webhook.Outcome, error)
}

// Options configures a Controller.
type Options struct {
	Service         Service
	Results         *Results
	Logger          *infra.Logger
	Metrics         *observability.Metrics
	RateLimitWindow time.Duration
	SoftNoticeDelay time.Duration
	PollInterval    time.Duration
	PollMaxAttempts int
}

// Controller is the single submission slot. The slot — cancellation handle,
// timers and status — is exclusively owned by the active submission;
// finalization releases it before another Submit may acquire it.
type Controller struct {
	service Service
	results *Results
	logger  *infra.Logger
	metrics *observability.Metrics

	rateWindow time.Duration
	softDelay  time.Duration
	poller     Poller

	mu         sync.Mutex
	lastSubmit time.Time
	cancel     context.CancelFunc
	softTimer  *time.Timer
	state      State
	status     Status
	subs       map[int]chan Status
	nextSub    int
	now        func() time.Time
}

func NewController(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	results := opts.Results
	if results == nil {
		results = NewResults()
	}
	c := &Controller{
		service:    opts.Service,
		results:    results,
		logger:     logger,
		metrics:    opts.Metrics,
		rateWindow: opts.RateLimitWindow,
		softDelay:  opts.SoftNoticeDelay,
		state:      StateIdle,
		status:     Status{State: StateIdle},
		subs:       make(map[int]chan Status),
		now:        time.Now,
	}
	c.poller = Poller{
		Service:     opts.Service,
		Interval:    opts.PollInterval,
		MaxAttempts: opts.PollMaxAttempts,
		OnAttempt: func() {
			if c.metrics != nil {
				c.metrics.PollAttempts.Inc()
			}
		},
	}
	return c
}

// Results exposes the sink this controller writes into.
func (c *Controller) Results() *Results {
	return c.results
}

// Status returns the current user-visible status snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribe registers a status listener. Every transition is delivered in
// order; a saturated subscriber drops updates rather than blocking the
// submission. The returned func unregisters.
func (c *Controller) Subscribe() (<-chan Status, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	ch := make(chan Status, 16)
	c.subs[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Submit starts one submission. It rejects with domain.ErrInFlight while the
// slot is held, and with domain.ErrThrottled inside the rate-limit window —
// measured from the previous call's start, whether or not that call
// completed. Validation failures block before any network activity.
func (c *Controller) Submit(token session.Token, req domain.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return domain.ErrInFlight
	}
	now := c.now()
	if !c.lastSubmit.IsZero() && now.Sub(c.lastSubmit) < c.rateWindow {
		c.mu.Unlock()
		return domain.ErrThrottled
	}
	c.lastSubmit = now

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.setStatusLocked(StatePreparing, "Preparing…", KindNone, true)
	if c.softDelay > 0 {
		c.softTimer = time.AfterFunc(c.softDelay, c.softNotice)
	}
	c.mu.Unlock()

	go c.run(ctx, token, req)
	return nil
}

// Cancel aborts the in-flight call, stops all pending timers and marks the
// operation canceled — a neutral terminal status, not an error. Calling it
// with nothing in flight is a no-op.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	c.stopSoftTimerLocked()
	c.setStatusLocked(StateCanceled, "Canceled.", KindNone, false)
	c.countOutcome("canceled")
	c.logger.Info().Msg("submission canceled")
}

func (c *Controller) run(ctx context.Context, token session.Token, req domain.Request) {
	started := c.now()
	out, err := c.service.Submit(ctx, token, req)
	if err != nil {
		c.fail(ctx, "Network error: "+err.Error())
		return
	}

	switch out.Kind {
	case webhook.KindResolved:
		c.resolve(out.OutputURL)
	case webhook.KindQueued:
		if !c.beginPolling() {
			return
		}
		url, pollErr := c.poller.Run(ctx, out.StatusURL)
		if pollErr != nil {
			c.fail(ctx, "Polling error: "+pollErr.Error())
			return
		}
		c.resolve(url)
	default:
		c.finalize(StateAccepted, "Submitted — awaiting processing in the automation scenario.", KindOK, "accepted")
	}

	if c.metrics != nil {
		c.metrics.ObserveSubmitDuration(c.now().Sub(started))
	}
}

// beginPolling transitions Preparing -> Polling. It reports false when the
// submission was finalized (canceled) in the meantime.
func (c *Controller) beginPolling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return false
	}
	c.stopSoftTimerLocked()
	c.setStatusLocked(StatePolling, "Queued — polling status…", KindNone, true)
	return true
}

func (c *Controller) resolve(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return
	}
	c.results.Add(url)
	c.releaseLocked()
	c.setStatusLocked(StateResolved, "Success — output received and displayed.", KindOK, false)
	c.countOutcome("resolved")
	c.logger.Info().Str("output_url", url).Msg("submission resolved")
}

func (c *Controller) fail(ctx context.Context, message string) {
	// A user-initiated cancellation already wrote its terminal status;
	// the aborted call must not repaint it as an error.
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}
	c.finalize(StateFailed, message, KindError, "failed")
}

func (c *Controller) finalize(state State, message string, kind StatusKind, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Terminal() {
		return
	}
	c.releaseLocked()
	c.setStatusLocked(state, message, kind, false)
	c.countOutcome(outcome)
	if kind == KindError {
		c.logger.Warn().Str("status", message).Msg("submission failed")
	} else {
		c.logger.Info().Str("status", message).Msg("submission finalized")
	}
}

func (c *Controller) softNotice() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePreparing {
		return
	}
	c.status.Message = "This is taking longer than usual…"
	c.publishLocked()
}

func (c *Controller) releaseLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.stopSoftTimerLocked()
}

func (c *Controller) stopSoftTimerLocked() {
	if c.softTimer != nil {
		c.softTimer.Stop()
		c.softTimer = nil
	}
}

func (c *Controller) setStatusLocked(state State, message string, kind StatusKind, busy bool) {
	c.state = state
	c.status = Status{State: state, Message: message, Kind: kind, Busy: busy}
	c.publishLocked()
}

func (c *Controller) publishLocked() {
	for _, ch := range c.subs {
		select {
		case ch <- c.status:
		default:
		}
	}
}

func (c *Controller) countOutcome(outcome string) {
	if c.metrics != nil {
		c.metrics.CountSubmission(outcome)
	}
}
