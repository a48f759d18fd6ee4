package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/louisbranch/agicosmic/internal/platform/id"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/account"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/command"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/storage"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/token"
	"github.com/louisbranch/agicosmic/internal/telemetry"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

const welcomeMessage = "Welcome to AGI Cosmic - AI-powered virtual country management platform"

// Config wires the handler to its collaborators.
type Config struct {
	Users       storage.UserStore
	Commands    *command.Service
	Tokens      *token.Issuer
	Hasher      account.Hasher
	Emitter     *telemetry.Emitter
	Logger      *zap.Logger
	CORSOrigins []string
	Now         func() time.Time
	NewID       func() (string, error)
	// Ready reports whether the backing store is reachable; nil skips the check.
	Ready func(context.Context) error
}

// Handler serves the JSON API.
type Handler struct {
	users    storage.UserStore
	commands *command.Service
	tokens   *token.Issuer
	hasher   account.Hasher
	emitter  *telemetry.Emitter
	logger   *zap.Logger
	origins  []string
	now      func() time.Time
	newID    func() (string, error)
	ready    func(context.Context) error
}

// NewHandler validates cfg and builds a handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Users == nil {
		return nil, errors.New("user store is required")
	}
	if cfg.Commands == nil {
		return nil, errors.New("command service is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	return &Handler{
		users:    cfg.Users,
		commands: cfg.Commands,
		tokens:   cfg.Tokens,
		hasher:   cfg.Hasher,
		emitter:  cfg.Emitter,
		logger:   cfg.Logger,
		origins:  cfg.CORSOrigins,
		now:      cfg.Now,
		newID:    cfg.NewID,
		ready:    cfg.Ready,
	}, nil
}

// Routes returns the API mux wrapped in the standard middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return Chain(mux,
		RecoverPanic(h.logger),
		RequestLogging(h.logger),
		CORS(h.origins),
	)
}

// RegisterRoutes registers every API endpoint on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /ai/status", h.handleAIStatus)

	mux.HandleFunc("POST /auth/register", h.handleRegister)
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("GET /auth/me", h.requireAuth(h.handleMe))

	mux.HandleFunc("GET /country/state", h.requireAuth(h.handleState))
	mux.HandleFunc("POST /country/command", h.requireAuth(h.handleCommand))
	mux.HandleFunc("GET /country/history", h.requireAuth(h.handleHistory))
	mux.HandleFunc("GET /country/stats", h.requireAuth(h.handleStats))
	mux.HandleFunc("GET /country/description", h.requireAuth(h.handleDescription))
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": welcomeMessage,
		"version": Version,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) handleAIStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.commands.Status())
}
