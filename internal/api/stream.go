package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// streamMessage is sent to websocket clients on /api/stream.
type streamMessage struct {
	Type  string `json:"type"` // "line" or "state"
	Text  string `json:"text,omitempty"`
	State string `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
}

// streamHub manages websocket connections for the live console feed.
type streamHub struct {
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
}

// newStreamHub creates a hub that accepts upgrades from the given
// origins. Browsers always send an Origin header, so same-origin
// requests and non-browser clients (no Origin) pass unconditionally.
func newStreamHub(allowedOrigins []string) *streamHub {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
			continue
		}
		allowed[strings.ToLower(origin)] = true
	}

	return &streamHub{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowAll {
					return true
				}
				return allowed[strings.ToLower(origin)]
			},
		},
	}
}

// handleConn handles websocket upgrade and connection.
func (h *streamHub) handleConn(w http.ResponseWriter, req *http.Request) {
	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	// Keep connection alive until client disconnects
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// broadcast sends a message to all connected clients.
func (h *streamHub) broadcast(msg streamMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		err := client.WriteMessage(websocket.TextMessage, data)
		if err != nil {
			h.mu.Lock()
			delete(h.clients, client)
			h.mu.Unlock()
			client.Close()
		}
	}
}

// clientCount returns the number of connected clients.
func (h *streamHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// close closes all client connections.
func (h *streamHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}

// lineRing is a fixed-size ring of recent console lines.
type lineRing struct {
	mu   sync.Mutex
	buf  []string
	next int
	full bool
}

func newLineRing(size int) *lineRing {
	if size < 1 {
		size = 1
	}
	return &lineRing{buf: make([]string, size)}
}

func (r *lineRing) append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = line
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// recent returns up to n lines, oldest first.
func (r *lineRing) recent(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.buf)
	}
	if n > size {
		n = size
	}
	if n <= 0 {
		return []string{}
	}

	out := make([]string, 0, n)
	start := r.next - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

func (r *lineRing) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.buf)
	}
	return r.next
}
