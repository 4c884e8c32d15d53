package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/kardianos/service"

	"github.com/keycal/keycal/internal/audit"
	"github.com/keycal/keycal/internal/auth"
	"github.com/keycal/keycal/internal/config"
	"github.com/keycal/keycal/internal/daemon"
	"github.com/keycal/keycal/internal/frontend"
	"github.com/keycal/keycal/internal/handler"
	"github.com/keycal/keycal/internal/logging"
	"github.com/keycal/keycal/internal/server"
	"github.com/keycal/keycal/internal/session"
	"github.com/keycal/keycal/pkg/client"
)

const sweepInterval = 10 * time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	// Optional service control action: install, uninstall, start, stop, restart
	var action string
	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	cfg, err := config.LoadFrontend()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logCloser := logging.Setup(cfg.Logging)
	defer logCloser.Close()

	if daemon.IsControl(action) {
		if err := daemon.Control(serviceConfig(), action); err != nil {
			slog.Error("service control failed", "action", action, "error", err)
			return 1
		}
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session store
	openCtx, openCancel := context.WithTimeout(ctx, 30*time.Second)
	store, err := session.Open(openCtx, cfg.SessionStore, cfg.SessionDSN)
	openCancel()
	if err != nil {
		slog.Error("failed to open session store", "store", cfg.SessionStore, "error", err)
		return 1
	}
	slog.Info("session store ready", "store", cfg.SessionStore)

	if e, ok := store.(session.Expirer); ok {
		go session.Sweep(ctx, e, sweepInterval)
	}

	// Audit records land in the session database when it can hold them
	var sink audit.Sink
	if s, ok := store.(audit.Sink); ok {
		sink = s
	}
	auditLog := audit.New(sink, 256)

	verifier := auth.NewVerifier(cfg.IssuerURI)

	calOpts := []client.Option{
		client.WithServer(cfg.CalendarServiceURL),
		client.WithTimeout(cfg.CalendarTimeout),
	}
	if cfg.CalendarStrict {
		calOpts = append(calOpts, client.WithSchemaValidation())
	}

	app, err := frontend.New(cfg, verifier, client.New(calOpts...), store, frontend.WithAudit(auditLog))
	if err != nil {
		slog.Error("failed to create frontend", "error", err)
		auditLog.Close()
		store.Close()
		return 1
	}

	checks := map[string]handler.ReadinessCheck{"issuer": verifier.Ready}
	if p, ok := store.(interface{ Ping(context.Context) error }); ok {
		checks["sessions"] = p.Ping
	}

	// Shutdown closes the audit logger before the store it writes to.
	srv := server.NewFrontend(cfg, app, checks, store, auditLog)

	if err := daemon.Run(serviceConfig(), daemon.NewProgram(srv, cfg.ShutdownTimeout), ""); err != nil {
		slog.Error("frontend failed", "error", err)
		return 1
	}
	return 0
}

func serviceConfig() *service.Config {
	return daemon.Config("keycal-frontend", "Keycal Frontend",
		"Signs users in through the identity provider and shows their calendar")
}
