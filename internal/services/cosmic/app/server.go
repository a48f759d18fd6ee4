package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	platformgrpc "github.com/louisbranch/agicosmic/internal/platform/grpc"
	"github.com/louisbranch/agicosmic/internal/platform/timeouts"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/account"
	cosmichttp "github.com/louisbranch/agicosmic/internal/services/cosmic/api/http"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/command"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/interpreter"
	cosmicsqlite "github.com/louisbranch/agicosmic/internal/services/cosmic/storage/sqlite"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/token"
	"github.com/louisbranch/agicosmic/internal/telemetry"
)

// HealthService is the gRPC health service name reported as SERVING.
const HealthService = "agicosmic.CountryService"

// Config holds everything the runtime needs.
type Config struct {
	HTTPAddr string
	// GRPCAddr hosts the health endpoint; empty disables it.
	GRPCAddr    string
	DBPath      string
	TokenSecret []byte
	TokenIssuer string
	TokenTTL    time.Duration
	CORSOrigins []string

	HistoryLimit     int
	MaxCommandLength int

	OpenAI interpreter.OpenAIConfig
	Policy interpreter.Policy

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Logger     *zap.Logger
}

// Server hosts the HTTP API and the gRPC health endpoint.
type Server struct {
	httpListener net.Listener
	httpServer   *http.Server
	grpcListener net.Listener
	grpcServer   *grpc.Server
	health       *health.Server
	store        *cosmicsqlite.Store
	logger       *zap.Logger
}

// New opens storage, builds the interpreter and pipeline, and binds the
// listeners.
func New(ctx context.Context, cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tokens, err := token.NewIssuer(token.Config{
		Secret: cfg.TokenSecret,
		Issuer: cfg.TokenIssuer,
		TTL:    cfg.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("configure tokens: %w", err)
	}

	store, err := cosmicsqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open cosmic sqlite store: %w", err)
	}

	interp := buildInterpreter(cfg, logger)
	emitter := telemetry.NewEmitter(store)
	commands := command.NewService(store, interp, emitter, logger.Named("command"), command.Config{
		MaxCommandLength: cfg.MaxCommandLength,
		HistoryLimit:     cfg.HistoryLimit,
	})

	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	api, err := cosmichttp.NewHandler(cosmichttp.Config{
		Users:       store,
		Commands:    commands,
		Tokens:      tokens,
		Hasher:      account.Hasher{Cost: cost},
		Emitter:     emitter,
		Logger:      logger.Named("http"),
		CORSOrigins: cfg.CORSOrigins,
		Ready:       store.Ping,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err)
	}

	s := &Server{
		httpListener: httpListener,
		httpServer: &http.Server{
			Handler:           api.Routes(),
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		store:  store,
		logger: logger,
	}

	if addr := strings.TrimSpace(cfg.GRPCAddr); addr != "" {
		grpcListener, err := net.Listen("tcp", addr)
		if err != nil {
			_ = httpListener.Close()
			_ = store.Close()
			return nil, fmt.Errorf("listen on grpc addr %s: %w", addr, err)
		}
		s.grpcListener = grpcListener
		s.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
		s.health = platformgrpc.NewHealthServer(HealthService)
		grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
	}

	status := commands.Status()
	logger.Info("interpreter configured", zap.String("mode", status.Mode), zap.String("model", status.Model))
	return s, nil
}

// buildInterpreter returns the guarded OpenAI adapter, or the unavailable
// interpreter when no API key is configured.
func buildInterpreter(cfg Config, logger *zap.Logger) interpreter.Interpreter {
	var inner interpreter.Interpreter = interpreter.Unavailable{}
	if strings.TrimSpace(cfg.OpenAI.APIKey) != "" {
		adapter, err := interpreter.NewOpenAI(cfg.OpenAI)
		if err != nil {
			logger.Warn("interpreter disabled", zap.Error(err))
		} else {
			inner = adapter
		}
	}
	return interpreter.WithPolicy(inner, cfg.Policy, logger.Named("interpreter"))
}

// HTTPAddr returns the bound HTTP address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC health address, or empty when disabled.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Run creates and serves a server until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	s, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve blocks until ctx ends or a listener fails, then shuts both down.
func (s *Server) Serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.closeStore()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.logger.Info("http server listening", zap.String("addr", s.HTTPAddr()))
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})
	if s.grpcServer != nil {
		group.Go(func() error {
			s.logger.Info("grpc health server listening", zap.String("addr", s.GRPCAddr()))
			if err := s.grpcServer.Serve(s.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("serve gRPC: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		s.shutdown()
		return nil
	})
	return group.Wait()
}

func (s *Server) shutdown() {
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
}

func (s *Server) closeStore() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close cosmic store", zap.Error(err))
	}
}
