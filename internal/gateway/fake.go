package gateway

import (
	"context"
	"sync"
	"time"
)

// FakeClient is an in-memory gateway used by tests. Connections succeed
// unless FailWith is set; established sessions can be dropped from the test
// side to simulate a crash.
type FakeClient struct {
	mu sync.Mutex

	// FailWith, when non-nil, makes every Connect fail with this error.
	FailWith error

	// ConnectGate, when non-nil, blocks Connect until the channel is closed
	// or the context ends, letting tests hold a connect in flight.
	ConnectGate chan struct{}

	conns      []*FakeConn
	identities []Identity
}

// NewFakeClient creates a fake gateway client.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

func (c *FakeClient) Connect(ctx context.Context, identity Identity) (Conn, error) {
	c.mu.Lock()
	gate := c.ConnectGate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FailWith != nil {
		return nil, c.FailWith
	}

	conn := &FakeConn{
		done:     make(chan struct{}),
		activity: time.Now(),
	}
	c.conns = append(c.conns, conn)
	c.identities = append(c.identities, identity)
	return conn, nil
}

// Tokens returns the tokens seen by Connect, in order.
func (c *FakeClient) Tokens() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.identities))
	for i, identity := range c.identities {
		out[i] = identity.Token
	}
	return out
}

// Identities returns the identities seen by Connect, in order.
func (c *FakeClient) Identities() []Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Identity(nil), c.identities...)
}

// LastConn returns the most recently established session, or nil.
func (c *FakeClient) LastConn() *FakeConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.conns) == 0 {
		return nil
	}
	return c.conns[len(c.conns)-1]
}

// ConnCount returns how many sessions were established.
func (c *FakeClient) ConnCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

// FakeConn is a scripted gateway session.
type FakeConn struct {
	mu       sync.Mutex
	err      error
	activity time.Time

	done     chan struct{}
	doneOnce sync.Once
}

func (c *FakeConn) Disconnect(ctx context.Context) error {
	c.doneOnce.Do(func() { close(c.done) })
	return nil
}

func (c *FakeConn) Done() <-chan struct{} {
	return c.done
}

func (c *FakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *FakeConn) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activity
}

// Drop ends the session from the gateway side with the given error,
// simulating a network failure or remote close.
func (c *FakeConn) Drop(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.doneOnce.Do(func() { close(c.done) })
}

// Closed reports whether the session has ended.
func (c *FakeConn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
