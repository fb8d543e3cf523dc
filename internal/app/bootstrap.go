// Package app bootstraps the control process: it loads the config document,
// wires the domain services, reconciles the registry on boot, and runs the
// management server with graceful shutdown.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"menagerie/internal/gateway"
	"menagerie/pkg/logging"
)

// shutdownTimeout bounds the whole teardown: server drain plus worker stops.
const shutdownTimeout = 30 * time.Second

// Application is the bootstrapped control process.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication performs the bootstrap sequence: logging, config load, and
// service wiring. The gateway client may be nil to dial the real endpoint.
func NewApplication(cfg *Config, gw gateway.Client) (*Application, error) {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	var output io.Writer = os.Stderr
	if cfg.Silent {
		output = io.Discard
	}
	logging.Init(level, output)

	services, err := InitializeServices(cfg, gw)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{config: cfg, services: services}, nil
}

// Services exposes the wired components, used by tests.
func (a *Application) Services() *Services {
	return a.services
}

// Run reconciles configured instances, starts the config watcher and the
// management server, and blocks until ctx is cancelled or a termination
// signal arrives. On the way out it stops every worker gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := a.services
	if err := s.Orchestrator.ReconcileOnBoot(ctx); err != nil {
		return fmt.Errorf("boot reconciliation failed: %w", err)
	}

	if err := s.Watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start config watcher: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.Server.Start)
	g.Go(func() error {
		<-gctx.Done()
		a.shutdown()
		return nil
	})

	logging.Info("App", "menagerie up, serving on %s", s.Store.Settings().ListenAddr)
	return g.Wait()
}

func (a *Application) shutdown() {
	logging.Info("App", "Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s := a.services
	s.Watcher.Stop()
	if err := s.Server.Shutdown(ctx); err != nil {
		logging.Error("App", err, "Server shutdown failed")
	}
	s.Orchestrator.StopAll(ctx)
	s.Bus.Close()
	logging.Info("App", "Shutdown complete")
}
