package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"menagerie/pkg/logging"
)

const (
	handshakeTimeout = 15 * time.Second
	pingInterval     = 25 * time.Second
	pongWait         = 60 * time.Second
	writeWait        = 10 * time.Second
)

// WSClient dials a chat gateway over websocket, authenticating with the
// credential token in the handshake.
type WSClient struct {
	// URL is the gateway websocket endpoint.
	URL string
}

// NewWSClient creates a websocket gateway client for the given endpoint.
func NewWSClient(url string) *WSClient {
	return &WSClient{URL: url}
}

// identifyPayload announces which personality the session runs, sent as the
// first frame after the handshake.
type identifyPayload struct {
	Op          string `json:"op"`
	Personality string `json:"personality"`
	Adaptive    bool   `json:"adaptive"`
}

func (c *WSClient) Connect(ctx context.Context, identity Identity) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	header := http.Header{}
	header.Set("Authorization", "Bot "+identity.Token)

	ws, resp, err := dialer.DialContext(ctx, c.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("gateway handshake failed (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("gateway dial failed: %w", err)
	}

	ws.SetWriteDeadline(time.Now().Add(writeWait))
	err = ws.WriteJSON(identifyPayload{
		Op:          "identify",
		Personality: identity.Descriptor.ID,
		Adaptive:    identity.Descriptor.Adaptive,
	})
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("gateway identify failed: %w", err)
	}

	conn := &wsConn{
		ws:       ws,
		done:     make(chan struct{}),
		activity: time.Now(),
	}

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		conn.touch()
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go conn.readPump()
	go conn.pingPump()

	logging.Debug("Gateway", "Session established with %s", c.URL)
	return conn, nil
}

type wsConn struct {
	ws *websocket.Conn

	mu       sync.Mutex
	activity time.Time
	err      error
	closing  bool

	done     chan struct{}
	doneOnce sync.Once
}

func (c *wsConn) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.ws.WriteControl(websocket.CloseMessage, msg, deadline)

	select {
	case <-c.done:
	case <-ctx.Done():
	}
	return c.ws.Close()
}

func (c *wsConn) Done() <-chan struct{} {
	return c.done
}

func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *wsConn) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activity
}

func (c *wsConn) touch() {
	c.mu.Lock()
	c.activity = time.Now()
	c.mu.Unlock()
}

// readPump drains inbound frames until the session ends. The gateway's
// payloads are consumed here for liveness only; message handling belongs to
// the worker's own processing.
func (c *wsConn) readPump() {
	defer c.finish()
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.mu.Lock()
			if !c.closing && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.err = err
			}
			c.mu.Unlock()
			return
		}
		c.touch()
	}
}

func (c *wsConn) pingPump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeWait)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (c *wsConn) finish() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}
