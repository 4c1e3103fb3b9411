package submit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"garmentstudio/internal/domain"
	"garmentstudio/internal/session"
	"garmentstudio/internal/webhook"
)

type stubService struct {
	mu          sync.Mutex
	submitCalls int
	pollCalls   int
	submitFn    func(ctx context.Context) (webhook.Outcome, error)
	pollFn      func(ctx context.Context) (webhook.Outcome, error)
}

func (s *stubService) Submit(ctx context.Context, _ session.Token, _ domain.Request) (webhook.Outcome, error) {
	s.mu.Lock()
	s.submitCalls++
	s.mu.Unlock()
	return s.submitFn(ctx)
}

func (s *stubService) PollStatus(ctx context.Context, _ string) (webhook.Outcome, error) {
	s.mu.Lock()
	s.pollCalls++
	s.mu.Unlock()
	return s.pollFn(ctx)
}

func (s *stubService) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitCalls, s.pollCalls
}

func validRequest() domain.Request {
	return domain.Request{
		Flow:         domain.FlowGarmentRender,
		GarmentImage: &domain.Attachment{Filename: "g.png", Data: []byte{1}},
	}
}

func newTestController(service Service) *Controller {
	return NewController(Options{
		Service:         service,
		SoftNoticeDelay: time.Minute,
		PollInterval:    5 * time.Millisecond,
	})
}

func waitFor(t *testing.T, ch <-chan Status, pred func(Status) bool) Status {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-ch:
			if pred(st) {
				return st
			}
		case <-deadline:
			t.Fatal("timed out waiting for status")
		}
	}
}

func waitTerminal(t *testing.T, ch <-chan Status) Status {
	t.Helper()
	return waitFor(t, ch, func(st Status) bool { return st.State.Terminal() })
}

func TestSubmitResolvedDirectly(t *testing.T) {
	service := &stubService{
		submitFn: func(ctx context.Context) (webhook.Outcome, error) {
			return webhook.Outcome{Kind: webhook.KindResolved, OutputURL: "https://x/y"}, nil
		},
	}
	ctrl := newTestController(service)
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	if err := ctrl.Submit(session.Token{}, validRequest()); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	final := waitTerminal(t, updates)
	if final.State != StateResolved || final.Kind != KindOK || final.Busy {
		t.Fatalf("unexpected terminal status: %+v", final)
	}

	records := ctrl.Results().All()
	if len(records) != 1 || records[0].URL != "https://x/y" {
		t.Fatalf("unexpected sink contents: %+v", records)
	}
}

func TestSubmitQueuedThenPolled(t *testing.T) {
	var polls int
	var mu sync.Mutex
	service := &stubService{
		submitFn: func(ctx context.Context) (webhook.Outcome, error) {
			return webhook.Outcome{Kind: webhook.KindQueued, StatusURL: "https://s"}, nil
		},
	}
	service.pollFn = func(ctx context.Context) (webhook.Outcome, error) {
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()
		if n < 3 {
			return webhook.Outcome{Kind: webhook.KindPending}, nil
		}
		return webhook.Outcome{Kind: webhook.KindResolved, OutputURL: "https://z"}, nil
	}
	ctrl := newTestController(service)
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	if err := ctrl.Submit(session.Token{}, validRequest()); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	waitFor(t, updates, func(st Status) bool { return st.State == StatePolling })
	final := waitTerminal(t, updates)
	if final.State != StateResolved {
		t.Fatalf("unexpected terminal status: %+v", final)
	}

	records := ctrl.Results().All()
	if len(records) != 1 || records[0].URL != "https://z" {
		t.Fatalf("unexpected sink contents: %+v", records)
	}

	// No further poll may be scheduled after the terminal result.
	_, before := service.counts()
	time.Sleep(50 * time.Millisecond)
	if _, after := service.counts(); after != before {
		t.Fatalf("polling continued after resolution: %d -> %d", before, after)
	}
}

func TestRateLimitWindow(t *testing.T) {
	service := &stubService{
		submitFn: func(ctx context.Context) (webhook.Outcome, error) {
			return webhook.Outcome{Kind: webhook.KindResolved, OutputURL: "https://x"}, nil
		},
	}
	ctrl := NewController(Options{Service: service, RateLimitWindow: time.Hour})
	base := time.Now()
	ctrl.now = func() time.Time { return base }
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	if err := ctrl.Submit(session.Token{}, validRequest()); err != nil {
		t.Fatalf("first Submit returned error: %v", err)
	}
	waitTerminal(t, updates)

	// The slot is released, but the rate-limit window still applies.
	err := ctrl.Submit(session.Token{}, validRequest())
	if !errors.Is(err, domain.ErrThrottled) {
		t.Fatalf("expected ErrThrottled, got %v", err)
	}
	if calls, _ := service.counts(); calls != 1 {
		t.Fatalf("expected exactly one network call, got %d", calls)
	}

	// Outside the window a new submission is accepted again.
	ctrl.now = func() time.Time { return base.Add(2 * time.Hour) }
	if err := ctrl.Submit(session.Token{}, validRequest()); err != nil {
		t.Fatalf("Submit after window returned error: %v", err)
	}
	waitTerminal(t, updates)
}

func TestSubmitWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	service := &stubService{
		submitFn: func(ctx context.Context) (webhook.Outcome, error) {
			<-release
			return webhook.Outcome{Kind: webhook.KindAccepted}, nil
		},
	}
	ctrl := newTestController(service)
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	if err := ctrl.Submit(session.Token{}, validRequest()); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if err := ctrl.Submit(session.Token{}, validRequest()); !errors.Is(err, domain.ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}
	close(release)
	waitTerminal(t, updates)
	if calls, _ := service.counts(); calls != 1 {
		t.Fatalf("expected exactly one network call, got %d", calls)
	}
}

func TestCancelWhilePolling(t *testing.T) {
	firstPoll := make(chan struct{}, 1)
	service := &stubService{
		submitFn: func(ctx context.Context) (webhook.Outcome, error) {
			return webhook.Outcome{Kind: webhook.KindQueued, StatusURL: "https://s"}, nil
		},
		pollFn: func(ctx context.Context) (webhook.Outcome, error) {
			select {
			case firstPoll <- struct{}{}:
			default:
			}
			return webhook.Outcome{Kind: webhook.KindPending}, nil
		},
	}
	ctrl := newTestController(service)
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	if err := ctrl.Submit(session.Token{}, validRequest()); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	<-firstPoll
	ctrl.Cancel()

	final := waitTerminal(t, updates)
	if final.State != StateCanceled || final.Kind != KindNone || final.Busy {
		t.Fatalf("cancel must be a neutral terminal status, got %+v", final)
	}

	// The canceled submission's timer must never fire another poll.
	time.Sleep(50 * time.Millisecond)
	_, before := service.counts()
	time.Sleep(50 * time.Millisecond)
	if _, after := service.counts(); after != before {
		t.Fatalf("polling continued after cancel: %d -> %d", before, after)
	}
	if records := ctrl.Results().All(); len(records) != 0 {
		t.Fatalf("canceled submission must not add records, got %+v", records)
	}
}

func TestCancelIdempotent(t *testing.T) {
	ctrl := newTestController(&stubService{})
	ctrl.Cancel()
	ctrl.Cancel()
	if st := ctrl.Status(); st.State != StateIdle {
		t.Fatalf("Cancel with nothing in flight must be a no-op, got %+v", st)
	}
}

func TestNetworkErrorFails(t *testing.T) {
	service := &stubService{
		submitFn: func(ctx context.Context) (webhook.Outcome, error) {
			return webhook.Outcome{}, errors.New("connection refused")
		},
	}
	ctrl := newTestController(service)
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	if err := ctrl.Submit(session.Token{}, validRequest()); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	final := waitTerminal(t, updates)
	if final.State != StateFailed || final.Kind != KindError {
		t.Fatalf("unexpected terminal status: %+v", final)
	}
	if !strings.HasPrefix(final.Message, "Network error:") {
		t.Fatalf("unexpected message: %s", final.Message)
	}
}

func TestAcceptedOutcome(t *testing.T) {
	service := &stubService{
		submitFn: func(ctx context.Context) (webhook.Outcome, error) {
			return webhook.Outcome{Kind: webhook.KindAccepted}, nil
		},
	}
	ctrl := newTestController(service)
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	if err := ctrl.Submit(session.Token{}, validRequest()); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	final := waitTerminal(t, updates)
	if final.State != StateAccepted || final.Kind != KindOK {
		t.Fatalf("unexpected terminal status: %+v", final)
	}
	if records := ctrl.Results().All(); len(records) != 0 {
		t.Fatalf("accepted outcome must not add records, got %+v", records)
	}
}

func TestPollFailureSurfaces(t *testing.T) {
	service := &stubService{
		submitFn: func(ctx context.Context) (webhook.Outcome, error) {
			return webhook.Outcome{Kind: webhook.KindQueued, StatusURL: "https://s"}, nil
		},
		pollFn: func(ctx context.Context) (webhook.Outcome, error) {
			return webhook.Outcome{}, errors.New("boom")
		},
	}
	ctrl := newTestController(service)
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	if err := ctrl.Submit(session.Token{}, validRequest()); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	final := waitTerminal(t, updates)
	if final.State != StateFailed || !strings.HasPrefix(final.Message, "Polling error:") {
		t.Fatalf("unexpected terminal status: %+v", final)
	}
	if _, polls := service.counts(); polls != 1 {
		t.Fatalf("a failed poll must not be retried, got %d attempts", polls)
	}
}

func TestSoftNotice(t *testing.T) {
	release := make(chan struct{})
	service := &stubService{
		submitFn: func(ctx context.Context) (webhook.Outcome, error) {
			<-release
			return webhook.Outcome{Kind: webhook.KindResolved, OutputURL: "https://x"}, nil
		},
	}
	ctrl := NewController(Options{Service: service, SoftNoticeDelay: 10 * time.Millisecond})
	updates, unsubscribe := ctrl.Subscribe()
	defer unsubscribe()

	if err := ctrl.Submit(session.Token{}, validRequest()); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	notice := waitFor(t, updates, func(st Status) bool {
		return strings.Contains(st.Message, "taking longer than usual")
	})
	if notice.State != StatePreparing || !notice.Busy {
		t.Fatalf("soft notice must be informational only, got %+v", notice)
	}
	close(release)
	waitTerminal(t, updates)
}

func TestValidationBlocksNetwork(t *testing.T) {
	service := &stubService{}
	ctrl := newTestController(service)
	err := ctrl.Submit(session.Token{}, domain.Request{Flow: domain.FlowGarmentRender})
	if !errors.Is(err, domain.ErrMissingAttachment) {
		t.Fatalf("expected ErrMissingAttachment, got %v", err)
	}
	if calls, _ := service.counts(); calls != 0 {
		t.Fatalf("validation failure must not reach the network, got %d calls", calls)
	}
}
