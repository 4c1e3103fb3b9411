// Package httpui serves the local browser client: the auth and studio pages,
// the JSON API they call, and a websocket feed of submission status updates.
package httpui

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"garmentstudio/internal/domain"
	"garmentstudio/internal/drive"
	"garmentstudio/internal/infra"
	"garmentstudio/internal/middleware"
	"garmentstudio/internal/observability"
	"garmentstudio/internal/session"
	"garmentstudio/internal/submit"
	"garmentstudio/internal/webhook"
)

const maxUploadBytes = 64 << 20

// Authenticator is the slice of the webhook client the auth handler needs.
type Authenticator interface {
	Authenticate(ctx context.Context, creds webhook.Credentials) (string, error)
}

// Server wires the core components behind the local UI routes.
type Server struct {
	cfg        *infra.Config
	logger     infra.Logger
	sessions   *session.Store
	auth       Authenticator
	controller *submit.Controller
	metrics    *observability.Metrics
	upgrader   websocket.Upgrader
	static     http.Handler
}

func New(cfg *infra.Config, logger infra.Logger, sessions *session.Store, auth Authenticator, controller *submit.Controller, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger,
		sessions:   sessions,
		auth:       auth,
		controller: controller,
		metrics:    metrics,
		static:     newStaticHandler(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Router builds the chi handler for the local UI.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Handle("/metrics", observability.MetricsHandler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Logger(s.logger))
		r.With(middleware.RateLimit(s.cfg.AuthRatePerMin, time.Minute)).Post("/auth", s.handleAuth)
		r.Post("/logout", s.handleLogout)
		r.Get("/session", s.handleSession)
		r.Post("/submit", s.handleSubmit)
		r.Post("/cancel", s.handleCancel)
		r.Get("/status", s.handleStatus)
		r.Get("/outputs", s.handleOutputs)
	})

	// The status feed stays outside the logging middleware: its response
	// writer wrapper does not support hijacking.
	r.Get("/ws/status", s.handleStatusFeed)

	r.Handle("/*", s.static)
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authResponse struct {
	Mode    string `json:"mode"`
	LoginID string `json:"login_id,omitempty"`
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		if err := r.ParseForm(); err != nil {
			s.error(w, http.StatusBadRequest, "bad_request", "invalid form payload")
			return
		}
	}
	creds := webhook.Credentials{
		Mode:     r.FormValue("mode"),
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		Phone:    r.FormValue("phone"),
		Password: r.FormValue("password"),
	}
	if creds.Mode != webhook.ModeSignIn && creds.Mode != webhook.ModeSignUp {
		s.error(w, http.StatusBadRequest, "bad_request", "mode must be signin or signup")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	mode, err := s.auth.Authenticate(ctx, creds)
	if err != nil {
		s.countAuth(creds.Mode, "error")
		s.writeAuthError(w, err)
		return
	}
	s.countAuth(creds.Mode, "ok")

	resp := authResponse{Mode: mode}
	if mode == webhook.ModeSignIn {
		token, err := s.sessions.Create(creds.Email)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to create session")
			s.error(w, http.StatusInternalServerError, "internal", "failed to create session")
			return
		}
		resp.LoginID = token.Identity
	}
	s.json(w, http.StatusOK, resp)
}

func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, webhook.ErrAuthMisconfigured) {
		s.error(w, http.StatusBadGateway, "webhook_misconfigured", err.Error())
		return
	}
	var authErr *webhook.AuthError
	if errors.As(err, &authErr) {
		status := http.StatusBadRequest
		switch authErr.Code {
		case "wrong_password":
			status = http.StatusUnauthorized
		case "account_not_found":
			status = http.StatusNotFound
		case "account_exists":
			status = http.StatusConflict
		}
		s.error(w, status, authErr.Code, authErr.Message)
		return
	}
	s.logger.Error().Err(err).Msg("auth webhook call failed")
	s.error(w, http.StatusBadGateway, "network", "Network error: "+err.Error())
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	token, ok := s.sessions.Load()
	if !ok {
		s.json(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	s.json(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"login_id":      token.Identity,
		"expires_at":    token.ExpiresAt.UnixMilli(),
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	token, ok := s.sessions.Load()
	if !ok {
		s.error(w, http.StatusUnauthorized, "unauthorized", domain.ErrNotAuthenticated.Error())
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}

	flow, ok := domain.NormalizeFlow(r.FormValue("flow"))
	if !ok {
		s.error(w, http.StatusBadRequest, "bad_request", "unknown flow")
		return
	}
	req := domain.Request{
		Flow:         flow,
		Email:        r.FormValue("email"),
		OutputFormat: r.FormValue("output_format"),
		GarmentType:  r.FormValue("garment_type"),
	}
	var err error
	if req.DesignImage, err = s.readAttachment(r, "design_image"); err != nil {
		s.error(w, http.StatusBadRequest, "bad_request", "failed to read design image")
		return
	}
	if req.GarmentImage, err = s.readAttachment(r, "garment_image"); err != nil {
		s.error(w, http.StatusBadRequest, "bad_request", "failed to read garment image")
		return
	}
	if req.ModelImage, err = s.readAttachment(r, "model_image"); err != nil {
		s.error(w, http.StatusBadRequest, "bad_request", "failed to read model image")
		return
	}

	switch err := s.controller.Submit(token, req); {
	case err == nil:
		s.json(w, http.StatusAccepted, s.controller.Status())
	case errors.Is(err, domain.ErrThrottled):
		s.error(w, http.StatusTooManyRequests, "throttled", err.Error())
	case errors.Is(err, domain.ErrInFlight):
		s.error(w, http.StatusConflict, "in_flight", err.Error())
	default:
		s.error(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
	}
}

func (s *Server) readAttachment(r *http.Request, field string) (*domain.Attachment, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &domain.Attachment{Filename: header.Filename, Data: data}, nil
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.controller.Cancel()
	s.json(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.json(w, http.StatusOK, s.controller.Status())
}

type outputDTO struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	ViewURL    string `json:"view_url"`
	PreviewURL string `json:"preview_url,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

func (s *Server) handleOutputs(w http.ResponseWriter, r *http.Request) {
	records := s.controller.Results().All()
	out := make([]outputDTO, len(records))
	for i, record := range records {
		dto := outputDTO{
			ID:        record.ID,
			URL:       record.URL,
			ViewURL:   drive.NormalizeURL(record.URL),
			CreatedAt: record.CreatedAt.UnixMilli(),
		}
		if id, ok := drive.ID(record.URL); ok {
			dto.PreviewURL = drive.PreviewURL(id)
		}
		out[i] = dto
	}
	s.json(w, http.StatusOK, out)
}

func (s *Server) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) error(w http.ResponseWriter, code int, errCode, message string) {
	s.json(w, code, map[string]string{"error": errCode, "message": message})
}

func (s *Server) countAuth(mode, result string) {
	if s.metrics != nil {
		s.metrics.CountAuth(mode, result)
	}
}
