// Package cosmic parses AGI Cosmic server configuration and launches it.
package cosmic

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	entrypoint "github.com/louisbranch/agicosmic/internal/platform/cmd"
	"github.com/louisbranch/agicosmic/internal/platform/config"
	"github.com/louisbranch/agicosmic/internal/platform/logging"
	server "github.com/louisbranch/agicosmic/internal/services/cosmic/app"
	"github.com/louisbranch/agicosmic/internal/services/cosmic/interpreter"
	"github.com/louisbranch/agicosmic/internal/tools/tokensecret"
)

// Env holds the AGI_COSMIC_ prefixed settings.
type Env struct {
	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":8000"`
	GRPCPort         int           `env:"GRPC_PORT" envDefault:"8001"`
	DBPath           string        `env:"DB_PATH" envDefault:"data/cosmic.db"`
	TokenSecret      string        `env:"TOKEN_SECRET"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"24h"`
	TokenIssuer      string        `env:"TOKEN_ISSUER" envDefault:"agi-cosmic"`
	CORSOrigins      []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	HistoryLimit     int           `env:"HISTORY_LIMIT" envDefault:"10"`
	MaxCommandLength int           `env:"MAX_COMMAND_LENGTH" envDefault:"2000"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`

	InterpreterTimeout       time.Duration `env:"INTERPRETER_TIMEOUT" envDefault:"20s"`
	InterpreterMaxAttempts   int           `env:"INTERPRETER_MAX_ATTEMPTS" envDefault:"1"`
	InterpreterRatePerMinute int           `env:"INTERPRETER_RATE_PER_MINUTE" envDefault:"0"`
}

// OpenAIEnv holds the interpreter credentials under their conventional names.
type OpenAIEnv struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	Model   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	BaseURL string `env:"OPENAI_BASE_URL"`
}

// Config holds cosmic command configuration.
type Config struct {
	Env    Env
	OpenAI OpenAIEnv
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnvPrefixed(&cfg.Env); err != nil {
		return Config{}, err
	}
	if err := entrypoint.ParseConfig(&cfg.OpenAI); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Env.HTTPAddr, "http-addr", cfg.Env.HTTPAddr, "The HTTP API address")
	fs.IntVar(&cfg.Env.GRPCPort, "grpc-port", cfg.Env.GRPCPort, "The gRPC health port (0 disables)")
	fs.StringVar(&cfg.Env.DBPath, "db-path", cfg.Env.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.Env.LogLevel, "log-level", cfg.Env.LogLevel, "The log level")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.Env.GRPCPort < 0 {
		return Config{}, fmt.Errorf("grpc port must not be negative")
	}
	return cfg, nil
}

// ServerConfig converts cfg into the runtime configuration. A missing token
// secret is replaced with a random one and logged as a warning.
func (cfg Config) ServerConfig(logger *zap.Logger) (server.Config, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	secret := strings.TrimSpace(cfg.Env.TokenSecret)
	if secret == "" {
		generated, err := tokensecret.Generate(nil, tokensecret.DefaultBytes)
		if err != nil {
			return server.Config{}, err
		}
		secret = generated
		logger.Warn("no token secret configured; tokens will not survive a restart",
			zap.String("env", tokensecret.EnvVar))
	}
	grpcAddr := ""
	if cfg.Env.GRPCPort > 0 {
		grpcAddr = fmt.Sprintf(":%d", cfg.Env.GRPCPort)
	}
	return server.Config{
		HTTPAddr:         cfg.Env.HTTPAddr,
		GRPCAddr:         grpcAddr,
		DBPath:           cfg.Env.DBPath,
		TokenSecret:      []byte(secret),
		TokenIssuer:      cfg.Env.TokenIssuer,
		TokenTTL:         cfg.Env.TokenTTL,
		CORSOrigins:      cfg.Env.CORSOrigins,
		HistoryLimit:     cfg.Env.HistoryLimit,
		MaxCommandLength: cfg.Env.MaxCommandLength,
		OpenAI: interpreter.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		},
		Policy: interpreter.Policy{
			Timeout:       cfg.Env.InterpreterTimeout,
			MaxAttempts:   cfg.Env.InterpreterMaxAttempts,
			RatePerMinute: cfg.Env.InterpreterRatePerMinute,
		},
		Logger: logger,
	}, nil
}

// Run starts the cosmic server.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(cfg.Env.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	serverCfg, err := cfg.ServerConfig(logger)
	if err != nil {
		return err
	}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceCosmic, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		return server.Run(ctx, serverCfg)
	})
}
