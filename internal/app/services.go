package app

import (
	"context"
	"fmt"

	"menagerie/internal/config"
	"menagerie/internal/events"
	"menagerie/internal/gateway"
	"menagerie/internal/orchestrator"
	"menagerie/internal/personality"
	"menagerie/internal/server"
	"menagerie/internal/template"
	"menagerie/internal/vault"
	"menagerie/pkg/logging"
)

// Services holds every wired component of the control process.
type Services struct {
	Store        *config.Store
	Watcher      *config.Watcher
	Vault        *vault.Manager
	Templates    *template.Manager
	Orchestrator *orchestrator.Orchestrator
	Bus          *events.Bus
	Server       *server.Server
}

// InitializeServices wires the domain stack bottom-up and registers the API
// adapters with the locator.
func InitializeServices(cfg *Config, gw gateway.Client) (*Services, error) {
	store := config.NewStore(cfg.ConfigPath)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if gw == nil {
		gw = gateway.NewWSClient(cfg.GatewayURL)
	}

	creds := vault.NewManager(store)
	templates := template.NewManager(store)
	engine := personality.NewEngine()
	bus := events.NewBus()
	orch := orchestrator.New(store, creds, templates, engine, gw, bus)

	watcher := config.NewWatcher(store, func(ctx context.Context, doc config.Document) {
		orch.ApplyReload(ctx, doc)
	})

	orchestrator.NewAdapter(orch).Register()
	template.NewAdapter(templates).Register()
	vault.NewAdapter(creds).Register()

	srv := server.New(store.Settings().ListenAddr, bus)

	logging.Info("Bootstrap", "Services initialized (config %s)", cfg.ConfigPath)
	return &Services{
		Store:        store,
		Watcher:      watcher,
		Vault:        creds,
		Templates:    templates,
		Orchestrator: orch,
		Bus:          bus,
		Server:       srv,
	}, nil
}
