package notifyhub

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/moyoez/blendconv/tool"
	"github.com/moyoez/blendconv/types"
)

const writeTimeout = 5 * time.Second

// Hub holds WebSocket connections and broadcasts attempt updates to all clients.
type Hub struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
	// gorilla allows one writer per connection, sagas broadcast from their own goroutines
	writeMu sync.Mutex
}

// New creates a new notify hub.
func New() *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Register adds a WebSocket connection to the hub.
func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

// Unregister removes a WebSocket connection from the hub.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast sends the notification as JSON to all registered connections.
func (h *Hub) Broadcast(notification *types.Notification) {
	if h == nil || notification == nil {
		return
	}
	payload, err := sonic.Marshal(notification)
	if err != nil {
		tool.DefaultLogger.Errorf("[NotifyHub] Failed to marshal notification: %v", err)
		return
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := h.writeLocked(conn, payload); err != nil {
			tool.DefaultLogger.Debugf("[NotifyHub] Dropping client: %v", err)
			h.Unregister(conn)
			_ = conn.Close()
		}
	}
}

// Attach registers conn and replays current, the latest snapshot of every
// attempt still in flight, so a UI that connects mid-attempt is caught up.
// Broadcasts wait until the replay is written.
func (h *Hub) Attach(conn *websocket.Conn, current func() []types.AttemptSnapshot) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	h.Register(conn)
	if current == nil {
		return nil
	}
	for _, snap := range current() {
		payload, err := sonic.Marshal(&types.Notification{Type: types.NotifyTypeAttemptUpdate, Data: snap})
		if err != nil {
			return err
		}
		if err := h.writeLocked(conn, payload); err != nil {
			h.Unregister(conn)
			return err
		}
	}
	return nil
}

// writeLocked writes one text frame; the caller holds writeMu.
func (h *Hub) writeLocked(conn *websocket.Conn, payload []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// BroadcastSnapshot wraps snap as an attempt_update notification.
func (h *Hub) BroadcastSnapshot(snap types.AttemptSnapshot) {
	h.Broadcast(&types.Notification{Type: types.NotifyTypeAttemptUpdate, Data: snap})
}
