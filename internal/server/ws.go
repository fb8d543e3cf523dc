package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"menagerie/pkg/logging"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The management API is same-host tooling; cross-origin browsers are
	// not a supported client.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStatusFeed streams lifecycle transition events over a websocket.
// Delivery is at-most-once with no replay: a client that connects late or
// falls behind reconciles by listing instances.
func (s *Server) handleStatusFeed(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("Server", err, "Status feed upgrade failed")
		return
	}
	defer ws.Close()

	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	// Reader goroutine: the feed is write-only, but reading is required to
	// process close frames and detect a gone peer.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteJSON(event); err != nil {
				return
			}

		case <-ping.C:
			deadline := time.Now().Add(wsWriteWait)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}

		case <-clientGone:
			return

		case <-r.Context().Done():
			return
		}
	}
}
