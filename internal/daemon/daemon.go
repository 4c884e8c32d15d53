// Package daemon runs an HTTP server under the host service manager, or in
// the foreground with signal handling when started interactively.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/kardianos/service"
)

// Runner is a server the daemon manages. *server.Server satisfies it.
type Runner interface {
	Addr() string
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

// Program implements kardianos/service.Interface.
type Program struct {
	runner          Runner
	shutdownTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	served   chan error
}

// NewProgram creates a Program for r. Stop waits at most shutdownTimeout for
// in-flight requests.
func NewProgram(r Runner, shutdownTimeout time.Duration) *Program {
	return &Program{runner: r, shutdownTimeout: shutdownTimeout}
}

// Start binds the listen address and serves in the background. Bind failures
// are returned so the service manager sees them.
func (p *Program) Start(s service.Service) error {
	l, err := net.Listen("tcp", p.runner.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", p.runner.Addr(), err)
	}

	served := make(chan error, 1)
	p.mu.Lock()
	p.listener = l
	p.served = served
	p.mu.Unlock()

	slog.Info("service starting", "addr", l.Addr().String())
	go func() {
		err := p.runner.Serve(l)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
		served <- err
	}()
	return nil
}

// Stop drains the server within the shutdown timeout.
func (p *Program) Stop(s service.Service) error {
	slog.Info("service stopping")
	ctx, cancel := context.WithTimeout(context.Background(), p.shutdownTimeout)
	defer cancel()

	if err := p.runner.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("shutdown complete")
	return nil
}

// ListenAddr returns the bound address once Start has succeeded.
func (p *Program) ListenAddr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// Done yields Serve's result once the server stops. It is nil before Start.
func (p *Program) Done() <-chan error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.served
}

// Config describes the service to the host service manager.
func Config(name, displayName, description string) *service.Config {
	return &service.Config{
		Name:        name,
		DisplayName: displayName,
		Description: description,
	}
}

// ActionRun runs in the foreground, the same as giving no action.
const ActionRun = "run"

// IsControl reports whether action asks the service manager to do something
// rather than run the program.
func IsControl(action string) bool {
	return action != "" && action != ActionRun
}

// Run handles a service control action when one is given, and otherwise
// runs the program until the service manager or a signal stops it.
func Run(cfg *service.Config, p *Program, action string) error {
	if IsControl(action) {
		return Control(cfg, action)
	}

	svc, err := service.New(p, cfg)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return svc.Run()
}

// Control performs one of service.ControlAction ("install", "uninstall",
// "start", "stop", "restart") against the host service manager.
func Control(cfg *service.Config, action string) error {
	if !slices.Contains(service.ControlAction[:], action) {
		return fmt.Errorf("unknown service action %q (valid: %v)", action, service.ControlAction)
	}

	svc, err := service.New(&Program{}, cfg)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	if err := service.Control(svc, action); err != nil {
		return fmt.Errorf("service %s: %w", action, err)
	}
	slog.Info("service control done", "service", cfg.Name, "action", action)
	return nil
}
