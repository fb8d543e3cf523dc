// Package bot implements the worker side of a bot instance: one gateway
// session plus its isolated fact store, supervised so a crash is reported as
// a terminal state instead of taking the control process down.
package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"menagerie/internal/api"
	"menagerie/internal/gateway"
	"menagerie/internal/knowledge"
	"menagerie/internal/personality"
	"menagerie/pkg/logging"
)

// ResolvedConfig is the fully resolved configuration a worker starts with.
// It is a snapshot: later edits to templates or instance config never reach
// a running worker.
type ResolvedConfig struct {
	InstanceID   string
	Name         string
	Personality  personality.Descriptor
	LoadEmbedder bool

	// Token is the raw gateway credential, present only for the connect call.
	Token string

	// DataDir is the instance's isolated storage directory.
	DataDir string

	HeartbeatInterval time.Duration
}

// Instance is one supervised bot worker.
type Instance struct {
	cfg    ResolvedConfig
	client gateway.Client

	mu        sync.Mutex
	conn      gateway.Conn
	facts     *knowledge.Handle
	heartbeat time.Time
	err       error
	stopping  bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a worker for the given resolved config. Start must be called
// to bring it up.
func New(cfg ResolvedConfig, client gateway.Client) *Instance {
	return &Instance{
		cfg:    cfg,
		client: client,
	}
}

// Start opens the isolated fact store and connects to the gateway. On any
// failure everything opened so far is torn down and a ConnectError is
// returned; the worker holds no resources afterwards.
func (i *Instance) Start(ctx context.Context) error {
	facts, err := knowledge.Open(i.cfg.DataDir)
	if err != nil {
		return api.NewConnectError(i.cfg.InstanceID, err)
	}

	conn, err := i.client.Connect(ctx, gateway.Identity{
		Token:      i.cfg.Token,
		Descriptor: i.cfg.Personality,
		Facts:      facts,
	})
	if err != nil {
		facts.Close()
		return api.NewConnectError(i.cfg.InstanceID, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	i.mu.Lock()
	i.conn = conn
	i.facts = facts
	i.heartbeat = time.Now()
	i.cancel = cancel
	i.done = make(chan struct{})
	i.mu.Unlock()

	go i.supervise(runCtx)

	logging.Info("Bot", "Worker %s (%s) connected as %s",
		i.cfg.InstanceID, i.cfg.Name, i.cfg.Personality.Name)
	return nil
}

// Stop disconnects the gateway session and closes the fact store. Bounded by
// ctx; when the graceful disconnect does not finish in time the session is
// torn down anyway. Safe to call on a worker that already ended.
func (i *Instance) Stop(ctx context.Context) error {
	i.mu.Lock()
	conn := i.conn
	cancel := i.cancel
	done := i.done
	i.stopping = true
	i.mu.Unlock()

	if conn == nil {
		return nil
	}

	disconnectErr := conn.Disconnect(ctx)
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("worker %s did not stop in time: %w", i.cfg.InstanceID, ctx.Err())
	}
	return disconnectErr
}

// Done is closed when the worker ends, whether by Stop, gateway drop, or
// crash.
func (i *Instance) Done() <-chan struct{} {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.done
}

// Err returns the terminal error after Done closes. Nil after a requested
// stop.
func (i *Instance) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}

// LastHeartbeat returns the worker's most recent liveness timestamp: the
// later of the heartbeat tick and the last gateway traffic.
func (i *Instance) LastHeartbeat() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	hb := i.heartbeat
	if i.conn != nil {
		if activity := i.conn.LastActivity(); activity.After(hb) {
			hb = activity
		}
	}
	return hb
}

// Facts exposes the worker's fact store for message handling.
func (i *Instance) Facts() *knowledge.Handle {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.facts
}

// supervise watches the gateway session and refreshes the heartbeat until
// the worker ends. A panic in the supervision path is converted into a
// CrashError rather than propagating.
func (i *Instance) supervise(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			i.mu.Lock()
			i.err = api.NewCrashError(i.cfg.InstanceID, fmt.Errorf("panic: %v", r))
			i.mu.Unlock()
			logging.Error("Bot", i.Err(), "Worker %s panicked", i.cfg.InstanceID)
		}
		i.teardown()
	}()

	interval := i.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	i.mu.Lock()
	conn := i.conn
	i.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return

		case <-conn.Done():
			i.mu.Lock()
			if !i.stopping {
				if connErr := conn.Err(); connErr != nil {
					i.err = api.NewCrashError(i.cfg.InstanceID, connErr)
				} else {
					i.err = api.NewCrashError(i.cfg.InstanceID, fmt.Errorf("gateway session ended unexpectedly"))
				}
			}
			i.mu.Unlock()
			return

		case <-ticker.C:
			i.mu.Lock()
			i.heartbeat = time.Now()
			i.mu.Unlock()
		}
	}
}

func (i *Instance) teardown() {
	i.mu.Lock()
	facts := i.facts
	done := i.done
	i.facts = nil
	i.mu.Unlock()

	if facts != nil {
		if err := facts.Close(); err != nil {
			logging.Error("Bot", err, "Worker %s failed to close fact store", i.cfg.InstanceID)
		}
	}
	close(done)
	logging.Info("Bot", "Worker %s stopped", i.cfg.InstanceID)
}
