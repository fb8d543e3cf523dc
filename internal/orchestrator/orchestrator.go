// Package orchestrator implements the bot instance lifecycle: create, start,
// stop, restart, delete, plus boot reconciliation and config hot-reload. It
// owns the live registry, which is the only source of observed state; the
// config store persists operator intent (AutoStart) and never runtime state.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"menagerie/internal/api"
	"menagerie/internal/bot"
	"menagerie/internal/config"
	"menagerie/internal/events"
	"menagerie/internal/gateway"
	"menagerie/internal/personality"
	"menagerie/internal/template"
	"menagerie/internal/vault"
	"menagerie/pkg/logging"
)

// Orchestrator manages the full lifecycle of all bot instances.
type Orchestrator struct {
	store     *config.Store
	vault     *vault.Manager
	templates *template.Manager
	engine    personality.Engine
	gateway   gateway.Client
	bus       *events.Bus

	registry  *registry
	startedAt time.Time
}

// New creates an orchestrator. ReconcileOnBoot must be called before serving
// traffic so the registry covers every configured instance.
func New(store *config.Store, creds *vault.Manager, templates *template.Manager,
	engine personality.Engine, gw gateway.Client, bus *events.Bus) *Orchestrator {
	return &Orchestrator{
		store:     store,
		vault:     creds,
		templates: templates,
		engine:    engine,
		gateway:   gw,
		bus:       bus,
		registry:  newRegistry(),
		startedAt: time.Now(),
	}
}

// Create validates and persists a new instance config. The instance starts
// in the stopped state; nothing connects until Start.
func (o *Orchestrator) Create(ctx context.Context, req api.CreateInstanceRequest) (*api.InstanceStatus, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, api.NewConfigError("name", "instance name must not be empty")
	}
	if _, err := o.templates.Get(req.Template); err != nil {
		return nil, err
	}
	if err := o.checkCredential(req.Credential); err != nil {
		return nil, err
	}
	if req.Personality != "" {
		if _, err := o.engine.Resolve(req.Personality); err != nil {
			return nil, api.NewConfigError("personality", err.Error())
		}
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	cfg := config.InstanceConfig{
		ID:          id,
		Name:        req.Name,
		Template:    req.Template,
		Credential:  req.Credential,
		Personality: req.Personality,
		AutoStart:   req.AutoStart,
		CreatedAt:   time.Now().UTC(),
	}

	err := o.store.Mutate(func(doc *config.Document) error {
		if _, ok := doc.FindInstance(id); ok {
			return api.NewConfigError("id", fmt.Sprintf("instance %q already exists", id))
		}
		doc.Instances = append(doc.Instances, cfg)
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.registry.add(id, cfg)
	logging.Info("Orchestrator", "Created instance %s (%s)", id, req.Name)
	return o.Get(id)
}

// Update applies a partial config change. Changes to identity fields
// (template, credential, personality) on a live instance force a restart;
// name and autoStart apply in place.
func (o *Orchestrator) Update(ctx context.Context, id string, req api.UpdateInstanceRequest) (*api.InstanceStatus, error) {
	if req.Template != nil {
		if _, err := o.templates.Get(*req.Template); err != nil {
			return nil, err
		}
	}
	if req.Credential != nil {
		if err := o.checkCredential(*req.Credential); err != nil {
			return nil, err
		}
	}
	if req.Personality != nil && *req.Personality != "" {
		if _, err := o.engine.Resolve(*req.Personality); err != nil {
			return nil, api.NewConfigError("personality", err.Error())
		}
	}

	var before, after config.InstanceConfig
	err := o.store.Mutate(func(doc *config.Document) error {
		for i := range doc.Instances {
			if doc.Instances[i].ID != id {
				continue
			}
			before = doc.Instances[i]
			next := before
			if req.Name != nil {
				next.Name = *req.Name
			}
			if req.Template != nil {
				next.Template = *req.Template
			}
			if req.Credential != nil {
				next.Credential = *req.Credential
			}
			if req.Personality != nil {
				next.Personality = *req.Personality
			}
			if req.AutoStart != nil {
				next.AutoStart = *req.AutoStart
			}
			doc.Instances[i] = next
			after = next
			return nil
		}
		return api.NewInstanceNotFoundError(id)
	})
	if err != nil {
		return nil, err
	}

	o.registry.updateConfig(id, after)

	if !before.IdentityEquals(after) && o.registry.isLive(id) {
		logging.Info("Orchestrator", "Identity change on live instance %s, restarting", id)
		return o.Restart(ctx, id)
	}
	return o.Get(id)
}

// Start brings an instance to the running state. Starting an instance that
// is already running or starting is a no-op returning the current status.
func (o *Orchestrator) Start(ctx context.Context, id string) (*api.InstanceStatus, error) {
	entry, ok := o.registry.get(id)
	if !ok {
		return nil, api.NewInstanceNotFoundError(id)
	}

	switch entry.state {
	case api.StateRunning, api.StateStarting:
		return o.Get(id)
	case api.StateStopping:
		return nil, api.NewConfigError("state", fmt.Sprintf("instance %s is stopping", id))
	}

	resolved, err := o.resolve(entry.cfg)
	if err != nil {
		return nil, err
	}

	if !o.registry.transition(id, api.StateStarting, "start requested", o.publish) {
		return o.Get(id)
	}

	worker := bot.New(resolved, o.gateway)
	if err := worker.Start(ctx); err != nil {
		o.registry.fail(id, err, o.publish)
		return nil, err
	}

	if !o.registry.setRunning(id, worker, o.publish) {
		// A stop or delete arrived while the connect was in flight. The
		// worker must not outlive its registry entry, so tear it down here.
		stopCtx, cancel := context.WithTimeout(context.Background(), o.store.Settings().StopTimeout)
		if stopErr := worker.Stop(stopCtx); stopErr != nil {
			logging.Error("Orchestrator", stopErr, "Teardown of interrupted start for instance %s failed", id)
		}
		cancel()
		o.registry.abortStart(id, o.publish)
		return nil, api.NewConfigError("state", fmt.Sprintf("instance %s was stopped while starting", id))
	}

	go o.watch(id, worker)
	return o.Get(id)
}

// Stop brings a live instance to the stopped state, awaiting the worker's
// graceful disconnect bounded by the configured stop timeout. Stopping an
// instance that is already stopped or in error is a no-op.
func (o *Orchestrator) Stop(ctx context.Context, id string) (*api.InstanceStatus, error) {
	entry, ok := o.registry.get(id)
	if !ok {
		return nil, api.NewInstanceNotFoundError(id)
	}

	switch entry.state {
	case api.StateStopped, api.StateError:
		return o.Get(id)
	case api.StateStopping:
		return nil, api.NewConfigError("state", fmt.Sprintf("instance %s is already stopping", id))
	case api.StateStarting:
		if done := o.registry.interruptStart(id, o.publish); done != nil {
			select {
			case <-done:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return o.Get(id)
		}
		// The start settled in the window; stop whatever it left behind.
	}

	worker := o.registry.beginStop(id, o.publish)
	if worker == nil {
		return o.Get(id)
	}

	stopCtx, cancel := context.WithTimeout(ctx, o.store.Settings().StopTimeout)
	defer cancel()
	if err := worker.Stop(stopCtx); err != nil {
		logging.Error("Orchestrator", err, "Instance %s did not stop cleanly", id)
	}

	o.registry.setStopped(id, "stop requested", o.publish)
	return o.Get(id)
}

// Restart stops and then starts an instance, fully awaiting the stop first.
// Restarting a stopped instance just starts it.
func (o *Orchestrator) Restart(ctx context.Context, id string) (*api.InstanceStatus, error) {
	if _, ok := o.registry.get(id); !ok {
		return nil, api.NewInstanceNotFoundError(id)
	}
	if _, err := o.Stop(ctx, id); err != nil {
		return nil, err
	}
	return o.Start(ctx, id)
}

// Delete stops the instance if live, then removes its config. The isolated
// data directory is left on disk; recreating an instance with the same
// credential finds its facts again.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	if _, ok := o.registry.get(id); !ok {
		return api.NewInstanceNotFoundError(id)
	}
	if _, err := o.Stop(ctx, id); err != nil {
		return err
	}

	err := o.store.Mutate(func(doc *config.Document) error {
		for i := range doc.Instances {
			if doc.Instances[i].ID == id {
				doc.Instances = append(doc.Instances[:i], doc.Instances[i+1:]...)
				return nil
			}
		}
		return api.NewInstanceNotFoundError(id)
	})
	if err != nil {
		return err
	}

	o.registry.remove(id)
	logging.Info("Orchestrator", "Deleted instance %s", id)
	return nil
}

// Get returns the observed status of one instance.
func (o *Orchestrator) Get(id string) (*api.InstanceStatus, error) {
	status, ok := o.registry.status(id)
	if !ok {
		return nil, api.NewInstanceNotFoundError(id)
	}
	return &status, nil
}

// List returns the observed status of every instance, ordered by creation
// time.
func (o *Orchestrator) List() []api.InstanceStatus {
	return o.registry.list()
}

// Stats summarizes the orchestrator for the stats endpoint.
func (o *Orchestrator) Stats() api.SystemStats {
	statuses := o.registry.list()
	counts := make(map[api.InstanceState]int)
	for _, s := range statuses {
		counts[s.State]++
	}
	return api.SystemStats{
		Uptime:        time.Since(o.startedAt),
		InstanceCount: len(statuses),
		StateCounts:   counts,
	}
}

// ReconcileOnBoot seeds the registry from the persisted config and starts
// every AutoStart instance, pausing between starts to respect gateway rate
// limits. A start failure marks that instance error and moves on.
func (o *Orchestrator) ReconcileOnBoot(ctx context.Context) error {
	doc := o.store.Snapshot()
	for _, cfg := range doc.Instances {
		o.registry.add(cfg.ID, cfg)
	}

	stagger := doc.Settings.StartStagger
	started := 0
	for _, cfg := range doc.Instances {
		if !cfg.AutoStart {
			continue
		}
		if started > 0 && stagger > 0 {
			select {
			case <-time.After(stagger):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if _, err := o.Start(ctx, cfg.ID); err != nil {
			logging.Error("Orchestrator", err, "Boot start of instance %s failed", cfg.ID)
		}
		started++
	}

	logging.Info("Orchestrator", "Boot reconciliation done: %d instances, %d auto-start",
		len(doc.Instances), started)
	return nil
}

// ApplyReload reconciles the registry against a freshly reloaded document.
// Removed instances are stopped and dropped, new ones registered, and live
// instances whose identity fields changed are restarted; everything else
// applies in place.
func (o *Orchestrator) ApplyReload(ctx context.Context, doc config.Document) {
	desired := make(map[string]config.InstanceConfig, len(doc.Instances))
	for _, cfg := range doc.Instances {
		desired[cfg.ID] = cfg
	}

	for _, status := range o.registry.list() {
		if _, keep := desired[status.ID]; !keep {
			logging.Info("Orchestrator", "Instance %s removed by reload, stopping", status.ID)
			if _, err := o.Stop(ctx, status.ID); err != nil {
				logging.Error("Orchestrator", err, "Failed to stop removed instance %s", status.ID)
			}
			o.registry.remove(status.ID)
		}
	}

	for id, cfg := range desired {
		entry, known := o.registry.get(id)
		if !known {
			logging.Info("Orchestrator", "Instance %s added by reload", id)
			o.registry.add(id, cfg)
			if cfg.AutoStart {
				if _, err := o.Start(ctx, id); err != nil {
					logging.Error("Orchestrator", err, "Failed to start instance %s added by reload", id)
				}
			}
			continue
		}

		identityChanged := !entry.cfg.IdentityEquals(cfg)
		o.registry.updateConfig(id, cfg)
		if identityChanged && o.registry.isLive(id) {
			logging.Info("Orchestrator", "Reload changed identity of live instance %s, restarting", id)
			if _, err := o.Restart(ctx, id); err != nil {
				logging.Error("Orchestrator", err, "Failed to restart instance %s after reload", id)
			}
		}
	}
}

// StopAll stops every live instance, used during shutdown.
func (o *Orchestrator) StopAll(ctx context.Context) {
	for _, status := range o.registry.list() {
		if status.State == api.StateRunning || status.State == api.StateStarting {
			if _, err := o.Stop(ctx, status.ID); err != nil {
				logging.Error("Orchestrator", err, "Shutdown stop of instance %s failed", status.ID)
			}
		}
	}
}

// resolve builds the worker's start-time snapshot from the instance config,
// its template, and the credential vault.
func (o *Orchestrator) resolve(cfg config.InstanceConfig) (bot.ResolvedConfig, error) {
	tmpl, err := o.templates.Get(cfg.Template)
	if err != nil {
		return bot.ResolvedConfig{}, err
	}

	personalityID := cfg.Personality
	if personalityID == "" {
		personalityID = tmpl.Personality
	}
	descriptor, err := o.engine.Resolve(personalityID)
	if err != nil {
		return bot.ResolvedConfig{}, api.NewConfigError("personality", err.Error())
	}

	token, err := o.vault.Token(cfg.Credential)
	if err != nil {
		return bot.ResolvedConfig{}, err
	}

	settings := o.store.Settings()
	return bot.ResolvedConfig{
		InstanceID:        cfg.ID,
		Name:              cfg.Name,
		Personality:       descriptor,
		LoadEmbedder:      tmpl.LoadEmbedder,
		Token:             token,
		DataDir:           IsolationPath(settings.DataDir, cfg.Credential),
		HeartbeatInterval: settings.HeartbeatInterval,
	}, nil
}

func (o *Orchestrator) checkCredential(id string) error {
	cred, ok := o.store.Snapshot().FindCredential(id)
	if !ok {
		return api.NewCredentialNotFoundError(id)
	}
	if !cred.Active {
		return api.NewConfigError("credential", fmt.Sprintf("credential %s is inactive", id))
	}
	return nil
}

// watch moves the instance to error when its worker ends without a stop
// being requested. The registry checks that the ending worker is still the
// current one, so a restart racing this goroutine is safe.
func (o *Orchestrator) watch(id string, worker *bot.Instance) {
	<-worker.Done()
	if err := worker.Err(); err != nil {
		o.registry.crash(id, worker, err, o.publish)
	}
}

func (o *Orchestrator) publish(event api.TransitionEvent) {
	o.bus.Publish(event)
}

// IsolationPath derives the per-instance storage directory from the
// credential identity. Two instances with different credentials always get
// distinct directories; the same credential maps to a stable path across
// restarts.
func IsolationPath(dataDir, credentialID string) string {
	sum := sha256.Sum256([]byte(credentialID))
	return filepath.Join(dataDir, "instances", hex.EncodeToString(sum[:])[:16])
}
