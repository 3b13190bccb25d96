// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openestate/resosync/internal/config"
	"github.com/openestate/resosync/internal/daemon"
	"github.com/openestate/resosync/internal/log"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	cfg := config.Load()

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "resosync",
		Version: version,
	})
	logger := log.WithComponent("main")

	if err := cfg.Validate(); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.invalid").
			Msg("configuration is invalid")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := daemon.New(ctx, cfg)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.init_failed").
			Msg("startup failed")
	}

	logger.Info().
		Str("event", "daemon.start").
		Str("system", cfg.OriginatingSystem).
		Dur("sync_interval", cfg.SyncInterval).
		Msg("starting replication daemon")

	if err := app.Run(ctx); err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.failed").
			Msg("daemon exited with error")
	}
}
