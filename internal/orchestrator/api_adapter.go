package orchestrator

import (
	"context"

	"menagerie/internal/api"
)

// Adapter implements api.InstanceManagerHandler on top of Orchestrator.
type Adapter struct {
	orch *Orchestrator
}

// NewAdapter creates the API adapter for the orchestrator.
func NewAdapter(orch *Orchestrator) *Adapter {
	return &Adapter{orch: orch}
}

// Register registers this adapter with the API layer.
func (a *Adapter) Register() {
	api.RegisterInstanceManager(a)
}

func (a *Adapter) CreateInstance(ctx context.Context, req api.CreateInstanceRequest) (*api.InstanceStatus, error) {
	return a.orch.Create(ctx, req)
}

func (a *Adapter) UpdateInstance(ctx context.Context, id string, req api.UpdateInstanceRequest) (*api.InstanceStatus, error) {
	return a.orch.Update(ctx, id, req)
}

func (a *Adapter) StartInstance(ctx context.Context, id string) (*api.InstanceStatus, error) {
	return a.orch.Start(ctx, id)
}

func (a *Adapter) StopInstance(ctx context.Context, id string) (*api.InstanceStatus, error) {
	return a.orch.Stop(ctx, id)
}

func (a *Adapter) RestartInstance(ctx context.Context, id string) (*api.InstanceStatus, error) {
	return a.orch.Restart(ctx, id)
}

func (a *Adapter) DeleteInstance(ctx context.Context, id string) error {
	return a.orch.Delete(ctx, id)
}

func (a *Adapter) GetInstance(id string) (*api.InstanceStatus, error) {
	return a.orch.Get(id)
}

func (a *Adapter) ListInstances() []api.InstanceStatus {
	return a.orch.List()
}

func (a *Adapter) Stats() api.SystemStats {
	return a.orch.Stats()
}

func (a *Adapter) SubscribeTransitions() <-chan api.TransitionEvent {
	return a.orch.bus.Subscribe()
}
