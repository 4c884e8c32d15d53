package main

import (
	"log/slog"
	"os"

	"github.com/keycal/keycal/internal/auth"
	"github.com/keycal/keycal/internal/config"
	"github.com/keycal/keycal/internal/daemon"
	"github.com/keycal/keycal/internal/generator"
	"github.com/keycal/keycal/internal/logging"
	"github.com/keycal/keycal/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Optional service control action: install, uninstall, start, stop, restart
	var action string
	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	cfg, err := config.LoadCalendar()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logCloser := logging.Setup(cfg.Logging)
	defer logCloser.Close()

	verifier := auth.NewVerifier(cfg.IssuerURI, auth.WithAudience(cfg.JWTAudience))
	gen := generator.New(generator.NewRand(cfg.RandomSeed))
	if cfg.RandomSeed != 0 {
		slog.Warn("calendar generator is seeded; batches are reproducible", "seed", cfg.RandomSeed)
	}

	srv := server.NewCalendar(cfg, verifier, gen)
	prg := daemon.NewProgram(srv, cfg.ShutdownTimeout)

	svcConfig := daemon.Config("keycal-calendar", "Keycal Calendar Service",
		"Serves generated calendar events to callers holding the required realm role")
	if err := daemon.Run(svcConfig, prg, action); err != nil {
		slog.Error("calendar service failed", "error", err)
		return 1
	}
	return 0
}
