// Package webhook talks to the external automation service: one multipart
// submission endpoint, a per-submission status endpoint, and the auth
// endpoint. All response-shape accommodation lives here.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"garmentstudio/internal/domain"
	"garmentstudio/internal/infra"
	"garmentstudio/internal/session"
)

// Options configures the webhook client.
type Options struct {
	SubmitURL      string
	AuthURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the automation webhooks.
type Client struct {
	submitURL  string
	authURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &Client{
		submitURL:  strings.TrimSpace(opts.SubmitURL),
		authURL:    strings.TrimSpace(opts.AuthURL),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Submit posts one multipart submission and interprets the response. The
// context carries cancellation from the controller.
func (c *Client) Submit(ctx context.Context, token session.Token, req domain.Request) (Outcome, error) {
	if c.submitURL == "" {
		return Outcome{}, errors.New("webhook: submit url is not configured")
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := map[string]string{
		"Filter":       string(req.Flow),
		"login_id":     token.Identity,
		"auth_token":   token.Secret,
		"Email":        req.Email,
		"OutputFormat": req.OutputFormat,
	}
	if req.Flow == domain.FlowDesignToGarment {
		fields["GarmentType"] = req.GarmentType
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return Outcome{}, fmt.Errorf("webhook: write form field: %w", err)
		}
	}
	for name, att := range attachmentsFor(req) {
		part, err := form.CreateFormFile(name, att.Filename)
		if err != nil {
			return Outcome{}, fmt.Errorf("webhook: attach %s: %w", name, err)
		}
		if _, err := part.Write(att.Data); err != nil {
			return Outcome{}, fmt.Errorf("webhook: attach %s: %w", name, err)
		}
	}
	if err := form.Close(); err != nil {
		return Outcome{}, fmt.Errorf("webhook: finalize form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.submitURL, &buf)
	if err != nil {
		return Outcome{}, fmt.Errorf("webhook: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Outcome{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("webhook: read response: %w", err)
	}
	out := Interpret(resp.Header.Get("Content-Type"), raw)
	c.logger.Debug().
		Str("flow", string(req.Flow)).
		Int("status", resp.StatusCode).
		Int("outcome", int(out.Kind)).
		Msg("submission response interpreted")
	return out, nil
}

// PollStatus issues one GET against a status endpoint. A structured body with
// an output reference resolves; a structured body without one is pending; a
// non-structured body is pending too ("not yet ready"). A body that claims to
// be JSON but does not parse is an error so a broken status endpoint surfaces
// instead of hanging the poll loop forever.
func (c *Client) PollStatus(ctx context.Context, statusURL string) (Outcome, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("webhook: build status request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Outcome{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("webhook: read status response: %w", err)
	}
	if !isJSON(resp.Header.Get("Content-Type")) {
		return Outcome{Kind: KindPending}, nil
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Outcome{}, fmt.Errorf("webhook: decode status response: %w", err)
	}
	if out := interpretPayload(payload); out.Kind == KindResolved {
		return out, nil
	}
	return Outcome{Kind: KindPending}, nil
}

func attachmentsFor(req domain.Request) map[string]*domain.Attachment {
	files := make(map[string]*domain.Attachment)
	switch req.Flow {
	case domain.FlowDesignToGarment:
		if req.DesignImage != nil {
			files["design_image"] = req.DesignImage
		}
	case domain.FlowGarmentRender:
		if req.GarmentImage != nil {
			files["garment_image"] = req.GarmentImage
		}
	case domain.FlowGarmentOnModel:
		if req.GarmentImage != nil {
			files["garment_image"] = req.GarmentImage
		}
		if req.ModelImage != nil {
			files["model_image"] = req.ModelImage
		}
	}
	return files
}
