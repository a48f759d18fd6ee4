// Package main probes the cosmic gRPC health endpoint and exits non-zero
// when it does not report SERVING.
package main

import (
	"context"
	"flag"
	"os"

	healthcheckcmd "github.com/louisbranch/agicosmic/internal/cmd/healthcheck"
	"github.com/louisbranch/agicosmic/internal/platform/config"
)

func main() {
	cfg, err := healthcheckcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := healthcheckcmd.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("health check failed: %v", err)
	}
}
