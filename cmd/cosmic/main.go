// Package main starts the AGI Cosmic server process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	cosmiccmd "github.com/louisbranch/agicosmic/internal/cmd/cosmic"
	"github.com/louisbranch/agicosmic/internal/platform/config"
)

func main() {
	cfg, err := cosmiccmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cosmiccmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
