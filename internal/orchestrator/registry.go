package orchestrator

import (
	"sort"
	"sync"
	"time"

	"menagerie/internal/api"
	"menagerie/internal/bot"
	"menagerie/internal/config"
)

// entry is the live registry record for one instance. The state field here
// is the single source of observed state for the whole system.
type entry struct {
	cfg       config.InstanceConfig
	state     api.InstanceState
	worker    *bot.Instance
	lastError string

	// startDone is non-nil while a start is in flight and is closed once the
	// starter has settled the final state. Stop waits on it when it finds an
	// instance mid-start.
	startDone chan struct{}
}

func (e *entry) closeStartDone() {
	if e.startDone != nil {
		close(e.startDone)
		e.startDone = nil
	}
}

// snapshot is the read view handed out by get.
type snapshot struct {
	cfg   config.InstanceConfig
	state api.InstanceState
}

type publishFunc func(api.TransitionEvent)

// registry holds all live instance entries behind one mutex. State changes
// and their transition events happen atomically under the lock; publishing
// itself never blocks (the bus drops for slow subscribers).
type registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*entry)}
}

func (r *registry) add(id string, cfg config.InstanceConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return
	}
	r.entries[id] = &entry{cfg: cfg, state: api.StateStopped}
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

func (r *registry) get(id string) (snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return snapshot{}, false
	}
	return snapshot{cfg: e.cfg, state: e.state}, true
}

func (r *registry) updateConfig(id string, cfg config.InstanceConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.cfg = cfg
	}
}

func (r *registry) isLive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return ok && (e.state == api.StateRunning || e.state == api.StateStarting)
}

// transition moves an instance from a resting state (stopped or error) into
// starting. Returns false when another actor got there first.
func (r *registry) transition(id string, to api.InstanceState, reason string, publish publishFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	if e.state != api.StateStopped && e.state != api.StateError {
		return false
	}
	old := e.state
	e.state = to
	e.lastError = ""
	if to == api.StateStarting {
		e.startDone = make(chan struct{})
	}
	publish(transitionEvent(id, old, to, reason))
	return true
}

// setRunning records the started worker. Returns false when the entry is no
// longer in the starting state (a stop or delete arrived while the connect
// was in flight); the caller then owns tearing the worker down.
func (r *registry) setRunning(id string, worker *bot.Instance, publish publishFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.state != api.StateStarting {
		return false
	}
	old := e.state
	e.state = api.StateRunning
	e.worker = worker
	e.lastError = ""
	e.closeStartDone()
	publish(transitionEvent(id, old, api.StateRunning, "connected"))
	return true
}

// fail records a start failure. When a stop was requested while the connect
// was in flight the instance lands in stopped rather than error.
func (r *registry) fail(id string, err error, publish publishFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return
	}
	old := e.state
	e.worker = nil
	if e.state == api.StateStopping {
		e.state = api.StateStopped
		publish(transitionEvent(id, old, api.StateStopped, "stop requested"))
	} else {
		e.state = api.StateError
		e.lastError = err.Error()
		publish(transitionEvent(id, old, api.StateError, err.Error()))
	}
	e.closeStartDone()
}

// interruptStart moves a mid-start instance to stopping before its worker is
// registered. The returned channel closes once the starter has settled the
// final state; nil when the instance is not mid-start.
func (r *registry) interruptStart(id string, publish publishFunc) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.state != api.StateStarting || e.startDone == nil {
		return nil
	}
	old := e.state
	e.state = api.StateStopping
	publish(transitionEvent(id, old, api.StateStopping, "stop requested"))
	return e.startDone
}

// abortStart settles an instance whose start was interrupted after the
// connect succeeded. The caller has already stopped the worker.
func (r *registry) abortStart(id string, publish publishFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return
	}
	if e.state == api.StateStopping {
		old := e.state
		e.state = api.StateStopped
		e.worker = nil
		publish(transitionEvent(id, old, api.StateStopped, "stop requested"))
	}
	e.closeStartDone()
}

// beginStop moves a running instance to stopping and hands the worker to the
// caller, which owns awaiting its shutdown. Returns nil when there is no
// running worker to stop.
func (r *registry) beginStop(id string, publish publishFunc) *bot.Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.worker == nil || e.state != api.StateRunning {
		return nil
	}
	old := e.state
	e.state = api.StateStopping
	publish(transitionEvent(id, old, api.StateStopping, "stop requested"))
	return e.worker
}

// setStopped completes a stop.
func (r *registry) setStopped(id, reason string, publish publishFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return
	}
	old := e.state
	e.state = api.StateStopped
	e.worker = nil
	publish(transitionEvent(id, old, api.StateStopped, reason))
}

// crash moves a running instance to error after its worker ended on its own.
// The worker identity check makes a stale watcher from before a restart a
// no-op.
func (r *registry) crash(id string, worker *bot.Instance, err error, publish publishFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.worker != worker || e.state != api.StateRunning {
		return
	}
	old := e.state
	e.state = api.StateError
	e.worker = nil
	e.lastError = err.Error()
	publish(transitionEvent(id, old, api.StateError, err.Error()))
}

func (r *registry) status(id string) (api.InstanceStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return api.InstanceStatus{}, false
	}
	return statusOf(e), true
}

func (r *registry) list() []api.InstanceStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]api.InstanceStatus, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, statusOf(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func statusOf(e *entry) api.InstanceStatus {
	status := api.InstanceStatus{
		ID:          e.cfg.ID,
		Name:        e.cfg.Name,
		Template:    e.cfg.Template,
		Credential:  e.cfg.Credential,
		Personality: e.cfg.Personality,
		AutoStart:   e.cfg.AutoStart,
		State:       e.state,
		LastError:   e.lastError,
		CreatedAt:   e.cfg.CreatedAt,
	}
	if e.worker != nil && e.state == api.StateRunning {
		hb := e.worker.LastHeartbeat()
		status.LastHeartbeat = &hb
	}
	return status
}

func transitionEvent(id string, from, to api.InstanceState, reason string) api.TransitionEvent {
	return api.TransitionEvent{
		InstanceID: id,
		OldState:   from,
		NewState:   to,
		Reason:     reason,
		Timestamp:  time.Now().UTC(),
	}
}
