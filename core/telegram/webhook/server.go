// Package webhook serves the inbound Bot API webhook and a health probe.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/core/telegram/dispatch"
	"github.com/m3rciful/menubot/core/telegram/middleware"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second
	healthMessage   = "Webhook is active"
)

// Options configures a Server.
type Options struct {
	Path         string
	Secret       string
	SecretHeader string
	Version      string
	// TokenConfigured is reported by the health probe.
	TokenConfigured bool
	// HandlerTimeout bounds one update; it is not tied to the HTTP request.
	HandlerTimeout time.Duration
	// Counters, when set, are included in the health payload.
	Counters *middleware.Counters
	Now      func() time.Time
}

// Health is the GET response body.
type Health struct {
	Status                  string               `json:"status"`
	Message                 string               `json:"message"`
	Timestamp               string               `json:"timestamp"`
	Version                 string               `json:"version"`
	TokenConfigured         bool                 `json:"token_configured"`
	WebhookSecretConfigured bool                 `json:"webhook_secret_configured"`
	Updates                 *middleware.Snapshot `json:"updates,omitempty"`
}

type reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Server handles webhook requests.
type Server struct {
	handle dispatch.HandlerFunc
	opts   Options
	log    *slog.Logger
}

// NewServer builds a Server around h.
func NewServer(h dispatch.HandlerFunc, opts Options) *Server {
	if strings.TrimSpace(opts.Path) == "" {
		opts.Path = "/"
	}
	if opts.SecretHeader == "" {
		opts.SecretHeader = "X-Telegram-Bot-Api-Secret-Token"
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = 25 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{handle: h, opts: opts, log: logger.Component("http")}
	if opts.Secret == "" {
		logger.LogEvent(context.Background(), s.log, slog.LevelWarn, "webhook.secret_missing",
			slog.String("cause", "verification disabled"),
		)
	}
	return s
}

// Handler returns a mux serving the webhook path.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.opts.Path, s)
	return mux
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rid := uuid.NewString()
	ctx := logger.WithRID(r.Context(), rid)

	status := s.serve(ctx, w, r)
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	} else if status >= http.StatusBadRequest {
		level = slog.LevelWarn
	}
	logger.LogEvent(ctx, s.log, level, "http.request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("code", status),
		slog.Duration("elapsed", logger.RoundMS(time.Since(start))),
	)
}

func (s *Server) serve(ctx context.Context, w http.ResponseWriter, r *http.Request) int {
	switch r.Method {
	case http.MethodGet:
		return writeJSON(w, http.StatusOK, s.health())
	case http.MethodPost:
	default:
		return writeJSON(w, http.StatusMethodNotAllowed, reply{Error: "Method not allowed"})
	}

	if !s.authorized(r) {
		return writeJSON(w, http.StatusForbidden, reply{Error: "Forbidden"})
	}

	var upd tele.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&upd); err != nil {
		logger.LogEvent(ctx, s.log, slog.LevelWarn, "webhook.malformed",
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return writeJSON(w, http.StatusOK, reply{OK: true})
	}

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.HandlerTimeout)
	defer cancel()
	if err := s.handle(hctx, upd); err != nil {
		return writeJSON(w, http.StatusInternalServerError, reply{Error: logger.SanitizeLimit(logger.RedactError(err), 256)})
	}
	return writeJSON(w, http.StatusOK, reply{OK: true})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.opts.Secret == "" {
		return true
	}
	got := r.Header.Get(s.opts.SecretHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.Secret)) == 1
}

func (s *Server) health() Health {
	version := s.opts.Version
	if version == "" {
		version = "dev"
	}
	h := Health{
		Status:                  "ok",
		Message:                 healthMessage,
		Timestamp:               s.opts.Now().UTC().Format(time.RFC3339),
		Version:                 version,
		TokenConfigured:         s.opts.TokenConfigured,
		WebhookSecretConfigured: s.opts.Secret != "",
	}
	if s.opts.Counters != nil {
		snap := s.opts.Counters.Snapshot()
		h.Updates = &snap
	}
	return h
}

func writeJSON(w http.ResponseWriter, status int, body any) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
	return status
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("webhook: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	logger.LogEvent(ctx, s.log, slog.LevelInfo, "webhook.listen",
		slog.String("addr", ln.Addr().String()),
		slog.String("path", s.opts.Path),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webhook: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
