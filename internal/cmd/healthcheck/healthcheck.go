// Package healthcheck probes the cosmic gRPC health endpoint, for container
// liveness checks.
package healthcheck

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	entrypoint "github.com/louisbranch/agicosmic/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/agicosmic/internal/platform/grpc"
	server "github.com/louisbranch/agicosmic/internal/services/cosmic/app"
)

// Config holds healthcheck command configuration.
type Config struct {
	Addr    string        `env:"AGI_COSMIC_HEALTHCHECK_ADDR" envDefault:"localhost:8001"`
	Service string        `env:"AGI_COSMIC_HEALTHCHECK_SERVICE"`
	Timeout time.Duration `env:"AGI_COSMIC_HEALTHCHECK_TIMEOUT" envDefault:"5s"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{}
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.Service == "" {
		cfg.Service = server.HealthService
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The gRPC health address")
	fs.StringVar(&cfg.Service, "service", cfg.Service, "The health service name")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "How long to wait for SERVING")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run waits for the health endpoint to report SERVING and writes the result.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if strings.TrimSpace(cfg.Addr) == "" {
		return errors.New("health address is required")
	}
	if cfg.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.Addr, err)
	}
	defer conn.Close()

	waitCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := platformgrpc.WaitForHealth(waitCtx, conn, cfg.Service, zap.NewNop()); err != nil {
		return err
	}
	if out != nil {
		_, _ = fmt.Fprintf(out, "%s SERVING\n", cfg.Service)
	}
	return nil
}
