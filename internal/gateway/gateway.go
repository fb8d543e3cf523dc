// Package gateway abstracts the chat-platform connection a bot worker holds
// while running. The orchestrator and workers depend only on the Client and
// Conn interfaces; the websocket implementation lives in ws.go, and fake.go
// provides a scripted in-memory client for tests.
package gateway

import (
	"context"
	"time"

	"menagerie/internal/knowledge"
	"menagerie/internal/personality"
)

// Identity is everything a worker presents when connecting: the credential
// token, the personality it runs, and its fact store for session-scoped
// message handling.
type Identity struct {
	Token      string
	Descriptor personality.Descriptor
	Facts      *knowledge.Handle
}

// Client establishes gateway connections.
type Client interface {
	// Connect dials the gateway as the given identity. It returns once the
	// session is established or fails.
	Connect(ctx context.Context, identity Identity) (Conn, error)
}

// Conn is one live gateway session.
type Conn interface {
	// Disconnect closes the session gracefully. Bounded by ctx.
	Disconnect(ctx context.Context) error

	// Done is closed when the session ends for any reason.
	Done() <-chan struct{}

	// Err returns the terminal error after Done is closed, nil on a clean
	// disconnect.
	Err() error

	// LastActivity returns when traffic was last seen on the session.
	LastActivity() time.Time
}
