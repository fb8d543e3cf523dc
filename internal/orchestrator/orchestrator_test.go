package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menagerie/internal/api"
	"menagerie/internal/config"
	"menagerie/internal/events"
	"menagerie/internal/gateway"
	"menagerie/internal/personality"
	"menagerie/internal/template"
	"menagerie/internal/vault"
)

type rig struct {
	orch   *Orchestrator
	client *gateway.FakeClient
	store  *config.Store
	vault  *vault.Manager
	bus    *events.Bus
	credID string
}

func newRig(t *testing.T) *rig {
	t.Helper()

	dir := t.TempDir()
	store := config.NewStore(filepath.Join(dir, "menagerie.yaml"))
	require.NoError(t, store.Load())
	require.NoError(t, store.Mutate(func(doc *config.Document) error {
		doc.Settings.DataDir = filepath.Join(dir, "data")
		doc.Settings.StopTimeout = 5 * time.Second
		doc.Settings.StartStagger = time.Millisecond
		doc.Settings.HeartbeatInterval = 50 * time.Millisecond
		return nil
	}))

	creds := vault.NewManager(store)
	credID, err := creds.Add("main", "gateway-token-for-tests")
	require.NoError(t, err)

	client := gateway.NewFakeClient()
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	orch := New(store, creds, template.NewManager(store), personality.NewEngine(), client, bus)
	return &rig{orch: orch, client: client, store: store, vault: creds, bus: bus, credID: credID}
}

func (r *rig) create(t *testing.T, name string) string {
	t.Helper()
	status, err := r.orch.Create(context.Background(), api.CreateInstanceRequest{
		Name:       name,
		Template:   "pure-grug",
		Credential: r.credID,
	})
	require.NoError(t, err)
	return status.ID
}

func awaitState(t *testing.T, orch *Orchestrator, id string, want api.InstanceState) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err := orch.Get(id)
		require.NoError(t, err)
		if status.State == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	status, _ := orch.Get(id)
	t.Fatalf("instance %s never reached %s (currently %s)", id, want, status.State)
}

func TestCreateValidatesReferences(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	_, err := r.orch.Create(ctx, api.CreateInstanceRequest{Name: "", Template: "pure-grug", Credential: r.credID})
	assert.True(t, api.IsConfigError(err))

	_, err = r.orch.Create(ctx, api.CreateInstanceRequest{Name: "x", Template: "nope", Credential: r.credID})
	assert.True(t, api.IsNotFound(err))

	_, err = r.orch.Create(ctx, api.CreateInstanceRequest{Name: "x", Template: "pure-grug", Credential: "nope"})
	assert.True(t, api.IsNotFound(err))

	require.NoError(t, r.vault.Deactivate(r.credID))
	_, err = r.orch.Create(ctx, api.CreateInstanceRequest{Name: "x", Template: "pure-grug", Credential: r.credID})
	assert.True(t, api.IsConfigError(err), "inactive credential must be refused")
}

func TestCreateStartsStopped(t *testing.T) {
	r := newRig(t)
	id := r.create(t, "grug-main")

	status, err := r.orch.Get(id)
	require.NoError(t, err)
	assert.Equal(t, api.StateStopped, status.State)
	assert.Equal(t, 0, r.client.ConnCount(), "create must not connect")

	// Persisted in the config document.
	_, ok := r.store.Snapshot().FindInstance(id)
	assert.True(t, ok)
}

func TestStartIsIdempotent(t *testing.T) {
	r := newRig(t)
	id := r.create(t, "grug-main")
	ctx := context.Background()

	status, err := r.orch.Start(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, api.StateRunning, status.State)
	assert.Equal(t, []string{"gateway-token-for-tests"}, r.client.Tokens())

	again, err := r.orch.Start(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, api.StateRunning, again.State)
	assert.Equal(t, 1, r.client.ConnCount(), "second start must not open a second session")
}

func TestStartFailureEntersErrorState(t *testing.T) {
	r := newRig(t)
	id := r.create(t, "grug-main")
	r.client.FailWith = errors.New("cloudflare says no")

	_, err := r.orch.Start(context.Background(), id)
	require.Error(t, err)
	assert.True(t, api.IsConnectError(err))

	status, getErr := r.orch.Get(id)
	require.NoError(t, getErr)
	assert.Equal(t, api.StateError, status.State)
	assert.Contains(t, status.LastError, "cloudflare")

	// Error state is recoverable: a later start succeeds.
	r.client.FailWith = nil
	started, err := r.orch.Start(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, api.StateRunning, started.State)
}

func TestStopIsIdempotent(t *testing.T) {
	r := newRig(t)
	id := r.create(t, "grug-main")
	ctx := context.Background()

	_, err := r.orch.Start(ctx, id)
	require.NoError(t, err)

	status, err := r.orch.Stop(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, api.StateStopped, status.State)
	assert.True(t, r.client.LastConn().Closed())

	again, err := r.orch.Stop(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, api.StateStopped, again.State)
}

func TestRestartReplacesSessionWithoutLeak(t *testing.T) {
	r := newRig(t)
	id := r.create(t, "grug-main")
	ctx := context.Background()

	_, err := r.orch.Start(ctx, id)
	require.NoError(t, err)
	first := r.client.LastConn()

	status, err := r.orch.Restart(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, api.StateRunning, status.State)
	assert.Equal(t, 2, r.client.ConnCount())
	assert.True(t, first.Closed(), "old session must be closed before the new one")
}

func TestDeleteWhileRunningStopsFirst(t *testing.T) {
	r := newRig(t)
	id := r.create(t, "grug-main")
	ctx := context.Background()

	_, err := r.orch.Start(ctx, id)
	require.NoError(t, err)

	require.NoError(t, r.orch.Delete(ctx, id))
	assert.True(t, r.client.LastConn().Closed(), "delete must await the worker stop")

	_, err = r.orch.Get(id)
	assert.True(t, api.IsNotFound(err))
	_, ok := r.store.Snapshot().FindInstance(id)
	assert.False(t, ok, "config row must be gone")

	assert.True(t, api.IsNotFound(r.orch.Delete(ctx, id)))
}

func TestDeleteDuringStartAwaitsWorkerTeardown(t *testing.T) {
	r := newRig(t)
	id := r.create(t, "grug-main")
	ctx := context.Background()

	gate := make(chan struct{})
	r.client.ConnectGate = gate

	startErr := make(chan error, 1)
	go func() {
		_, err := r.orch.Start(ctx, id)
		startErr <- err
	}()
	awaitState(t, r.orch, id, api.StateStarting)

	deleteErr := make(chan error, 1)
	go func() { deleteErr <- r.orch.Delete(ctx, id) }()

	// The connect is still in flight, so delete must be parked.
	select {
	case err := <-deleteErr:
		t.Fatalf("delete finished (%v) before the start settled", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(gate)

	require.NoError(t, <-deleteErr)
	err := <-startErr
	require.Error(t, err)
	assert.True(t, api.IsConfigError(err))

	conn := r.client.LastConn()
	require.NotNil(t, conn)
	assert.True(t, conn.Closed(), "the session opened mid-delete must be torn down")

	_, err = r.orch.Get(id)
	assert.True(t, api.IsNotFound(err))
	_, ok := r.store.Snapshot().FindInstance(id)
	assert.False(t, ok, "config row must be gone")
}

func TestStopDuringStartSettlesStopped(t *testing.T) {
	r := newRig(t)
	id := r.create(t, "grug-main")
	ctx := context.Background()

	gate := make(chan struct{})
	r.client.ConnectGate = gate

	startErr := make(chan error, 1)
	go func() {
		_, err := r.orch.Start(ctx, id)
		startErr <- err
	}()
	awaitState(t, r.orch, id, api.StateStarting)

	stopDone := make(chan struct{})
	go func() {
		defer close(stopDone)
		status, err := r.orch.Stop(ctx, id)
		assert.NoError(t, err)
		if status != nil {
			assert.Equal(t, api.StateStopped, status.State)
		}
	}()

	close(gate)
	<-stopDone
	<-startErr

	if conn := r.client.LastConn(); conn != nil {
		assert.True(t, conn.Closed(), "no session may outlive the stop")
	}

	// The instance is fully recoverable afterwards.
	r.client.ConnectGate = nil
	status, err := r.orch.Start(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, api.StateRunning, status.State)
}

func TestGatewayDropMovesInstanceToError(t *testing.T) {
	r := newRig(t)
	id := r.create(t, "grug-main")

	_, err := r.orch.Start(context.Background(), id)
	require.NoError(t, err)

	r.client.LastConn().Drop(errors.New("socket hang up"))
	awaitState(t, r.orch, id, api.StateError)

	status, err := r.orch.Get(id)
	require.NoError(t, err)
	assert.Contains(t, status.LastError, "socket hang up")

	// No auto-restart: the session count stays where it was.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, r.client.ConnCount())
}

func TestTransitionEventsPublishedInOrder(t *testing.T) {
	r := newRig(t)
	id := r.create(t, "grug-main")

	sub := r.bus.Subscribe()
	defer r.bus.Unsubscribe(sub)

	_, err := r.orch.Start(context.Background(), id)
	require.NoError(t, err)

	var states []api.InstanceState
	for len(states) < 2 {
		select {
		case event := <-sub:
			states = append(states, event.NewState)
		case <-time.After(5 * time.Second):
			t.Fatalf("missing transition events, got %v", states)
		}
	}
	assert.Equal(t, []api.InstanceState{api.StateStarting, api.StateRunning}, states)
}

func TestReconcileOnBootStartsAutoStartInstances(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	auto, err := r.orch.Create(ctx, api.CreateInstanceRequest{
		Name: "auto", Template: "pure-grug", Credential: r.credID, AutoStart: true,
	})
	require.NoError(t, err)
	manual := r.create(t, "manual")

	// Simulate a fresh boot: a new orchestrator over the same document.
	fresh := New(r.store, r.vault, template.NewManager(r.store), personality.NewEngine(), r.client, r.bus)
	require.NoError(t, fresh.ReconcileOnBoot(ctx))

	status, err := fresh.Get(auto.ID)
	require.NoError(t, err)
	assert.Equal(t, api.StateRunning, status.State)

	status, err = fresh.Get(manual)
	require.NoError(t, err)
	assert.Equal(t, api.StateStopped, status.State, "non-auto-start instances stay stopped")
}

func TestBootStartFailureIsolatedPerInstance(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	_, err := r.orch.Create(ctx, api.CreateInstanceRequest{
		Name: "a", Template: "pure-grug", Credential: r.credID, AutoStart: true,
	})
	require.NoError(t, err)
	b, err := r.orch.Create(ctx, api.CreateInstanceRequest{
		Name: "b", Template: "pure-grug", Credential: r.credID, AutoStart: true,
	})
	require.NoError(t, err)

	failing := gateway.NewFakeClient()
	failing.FailWith = errors.New("token revoked")
	fresh := New(r.store, r.vault, template.NewManager(r.store), personality.NewEngine(), failing, r.bus)
	require.NoError(t, fresh.ReconcileOnBoot(ctx), "one bad instance must not abort boot")

	status, err := fresh.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, api.StateError, status.State)
}

func TestUpdateNameAppliesInPlace(t *testing.T) {
	r := newRig(t)
	id := r.create(t, "grug-main")
	ctx := context.Background()

	_, err := r.orch.Start(ctx, id)
	require.NoError(t, err)

	newName := "grug-renamed"
	status, err := r.orch.Update(ctx, id, api.UpdateInstanceRequest{Name: &newName})
	require.NoError(t, err)
	assert.Equal(t, "grug-renamed", status.Name)
	assert.Equal(t, api.StateRunning, status.State)
	assert.Equal(t, 1, r.client.ConnCount(), "rename must not restart the worker")
}

func TestUpdateCredentialRestartsLiveInstance(t *testing.T) {
	r := newRig(t)
	id := r.create(t, "grug-main")
	ctx := context.Background()

	otherCred, err := r.vault.Add("backup", "second-gateway-token-xyz")
	require.NoError(t, err)

	_, err = r.orch.Start(ctx, id)
	require.NoError(t, err)

	status, err := r.orch.Update(ctx, id, api.UpdateInstanceRequest{Credential: &otherCred})
	require.NoError(t, err)
	assert.Equal(t, api.StateRunning, status.State)
	assert.Equal(t, 2, r.client.ConnCount(), "credential change must restart")
	assert.Equal(t, "second-gateway-token-xyz", r.client.Tokens()[1])
}

func TestApplyReloadRemovesAndRestarts(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	keep := r.create(t, "keep")
	drop := r.create(t, "drop")
	_, err := r.orch.Start(ctx, keep)
	require.NoError(t, err)
	_, err = r.orch.Start(ctx, drop)
	require.NoError(t, err)

	otherCred, err := r.vault.Add("backup", "second-gateway-token-xyz")
	require.NoError(t, err)

	// Simulate an external edit: drop one instance, repoint the other's
	// credential.
	doc := r.store.Snapshot()
	next := doc.Instances[:0]
	for _, inst := range doc.Instances {
		if inst.ID == drop {
			continue
		}
		inst.Credential = otherCred
		next = append(next, inst)
	}
	doc.Instances = next

	r.orch.ApplyReload(ctx, doc)

	_, err = r.orch.Get(drop)
	assert.True(t, api.IsNotFound(err), "removed instance leaves the registry")

	status, err := r.orch.Get(keep)
	require.NoError(t, err)
	assert.Equal(t, api.StateRunning, status.State)
	tokens := r.client.Tokens()
	assert.Equal(t, "second-gateway-token-xyz", tokens[len(tokens)-1], "identity change reconnects with the new credential")
}

func TestDeactivatedCredentialBlocksNextStartOnly(t *testing.T) {
	r := newRig(t)
	id := r.create(t, "grug-main")
	ctx := context.Background()

	_, err := r.orch.Start(ctx, id)
	require.NoError(t, err)

	require.NoError(t, r.vault.Deactivate(r.credID))

	status, err := r.orch.Get(id)
	require.NoError(t, err)
	assert.Equal(t, api.StateRunning, status.State, "deactivation must not kill a live instance")

	_, err = r.orch.Stop(ctx, id)
	require.NoError(t, err)

	_, err = r.orch.Start(ctx, id)
	assert.True(t, api.IsConfigError(err), "next start against an inactive credential is refused")
}

func TestStatsCountsStates(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()

	running := r.create(t, "running")
	r.create(t, "stopped")
	_, err := r.orch.Start(ctx, running)
	require.NoError(t, err)

	stats := r.orch.Stats()
	assert.Equal(t, 2, stats.InstanceCount)
	assert.Equal(t, 1, stats.StateCounts[api.StateRunning])
	assert.Equal(t, 1, stats.StateCounts[api.StateStopped])
	assert.GreaterOrEqual(t, stats.Uptime, time.Duration(0))
}

func TestIsolationPathProperties(t *testing.T) {
	a := IsolationPath("/data", "cred-a")
	b := IsolationPath("/data", "cred-b")
	assert.NotEqual(t, a, b, "different credentials get distinct directories")
	assert.Equal(t, a, IsolationPath("/data", "cred-a"), "path is stable across calls")
	assert.Contains(t, a, filepath.Join("/data", "instances"))
	assert.NotContains(t, a, "cred-a", "raw credential id never appears on disk")
}
