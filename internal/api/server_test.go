package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanrcon-project/zanrcon/internal/config"
	"github.com/zanrcon-project/zanrcon/internal/events"
	"github.com/zanrcon-project/zanrcon/internal/rcon"
)

type stubController struct {
	mu       sync.Mutex
	commands []string
	sendErr  error
	state    rcon.State
	server   rcon.ServerState
	stats    rcon.Stats
	remote   string
}

func (f *stubController) SendCommand(command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.commands = append(f.commands, command)
	return nil
}

func (f *stubController) State() rcon.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *stubController) ServerState() rcon.ServerState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.server
}

func (f *stubController) Stats() rcon.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func (f *stubController) Remote() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remote
}

func (f *stubController) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.commands))
	copy(out, f.commands)
	return out
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *stubController) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Bridge.Enabled = true
	if mutate != nil {
		mutate(cfg)
	}

	ctrl := &stubController{
		state:  rcon.StateEstablished,
		remote: "192.0.2.10:10666",
	}
	srv := NewServer(cfg, ctrl, events.NewEventBus(), prometheus.NewRegistry())
	srv.router = srv.buildRouter()
	return srv, ctrl
}

func doRequest(srv *Server, method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	srv.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestStatusEndpoint(t *testing.T) {
	srv, ctrl := newTestServer(t, nil)
	ctrl.server = rcon.ServerState{
		MapName:    "map01",
		Players:    []string{"alpha", "beta"},
		AdminCount: 2,
		UpdatedAt:  time.Now(),
	}
	ctrl.stats = rcon.Stats{DatagramsSent: 7, BytesReceived: 512}

	w := doRequest(srv, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)

	session := body["session"].(map[string]any)
	assert.Equal(t, "established", session["state"])
	assert.Equal(t, "192.0.2.10:10666", session["server"])

	server := body["server"].(map[string]any)
	assert.Equal(t, "map01", server["map_name"])
	assert.Equal(t, []any{"alpha", "beta"}, server["players"])
	assert.Equal(t, float64(2), server["admin_count"])

	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(7), stats["datagrams_sent"])
	assert.Equal(t, float64(512), stats["bytes_received"])

	host := body["host"].(map[string]any)
	assert.Contains(t, host, "hostname")
	assert.Contains(t, host, "platform")
}

func TestCommandEndpoint(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bridge.Enabled = true

	bus := events.NewEventBus()
	received := make(chan events.Event, 1)
	bus.Subscribe(events.EventCommandSent, "test-sink", func(ctx context.Context, ev events.Event) error {
		received <- ev
		return nil
	})

	ctrl := &stubController{state: rcon.StateEstablished, remote: "192.0.2.10:10666"}
	srv := NewServer(cfg, ctrl, bus, prometheus.NewRegistry())
	srv.router = srv.buildRouter()

	w := doRequest(srv, http.MethodPost, "/api/command", strings.NewReader(`{"command":"map map24"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"map map24"}, ctrl.sent())

	select {
	case ev := <-received:
		payload := ev.Payload.(events.CommandSentPayload)
		assert.Equal(t, "map map24", payload.Command)
		assert.Equal(t, "bridge", ev.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("no command event on the bus")
	}
}

func TestCommandRejectsEmpty(t *testing.T) {
	srv, ctrl := newTestServer(t, nil)

	w := doRequest(srv, http.MethodPost, "/api/command", strings.NewReader(`{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(srv, http.MethodPost, "/api/command", strings.NewReader(`{"command":"   "}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, ctrl.sent())
}

func TestCommandWhenDisconnected(t *testing.T) {
	srv, ctrl := newTestServer(t, nil)
	ctrl.sendErr = rcon.ErrNotConnected

	w := doRequest(srv, http.MethodPost, "/api/command", strings.NewReader(`{"command":"sv_hostname"}`))
	assert.Equal(t, http.StatusConflict, w.Code)

	body := decodeBody(t, w)
	assert.Contains(t, body["error"], "not established")
}

func TestCommandSendFailure(t *testing.T) {
	srv, ctrl := newTestServer(t, nil)
	ctrl.sendErr = io.ErrClosedPipe

	w := doRequest(srv, http.MethodPost, "/api/command", strings.NewReader(`{"command":"sv_hostname"}`))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestLinesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	for _, line := range []string{"one\n", "two\n", "three\n", "four\n", `\cgfive\c-` + "\n"} {
		srv.Feed(line)
	}

	w := doRequest(srv, http.MethodGet, "/api/lines?count=3", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(3), body["count"])
	assert.Equal(t, []any{"three\n", "four\n", "five\n"}, body["lines"])
}

func TestLinesDefaultAndBadCount(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	srv.Feed("only\n")

	w := doRequest(srv, http.MethodGet, "/api/lines", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, []any{"only\n"}, body["lines"])

	w = doRequest(srv, http.MethodGet, "/api/lines?count=bogus", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, []any{"only\n"}, body["lines"])
}

func TestLineRingOverflow(t *testing.T) {
	ring := newLineRing(3)
	for _, line := range []string{"a", "b", "c", "d", "e"} {
		ring.append(line)
	}

	assert.Equal(t, 3, ring.len())
	assert.Equal(t, []string{"c", "d", "e"}, ring.recent(10))
	assert.Equal(t, []string{"d", "e"}, ring.recent(2))

	empty := newLineRing(4)
	assert.Empty(t, empty.recent(10))
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bridge.Enabled = true

	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zanrcon_bridge_test_total",
		Help: "Test counter.",
	})
	registry.MustRegister(counter)
	counter.Add(3)

	ctrl := &stubController{}
	srv := NewServer(cfg, ctrl, events.NewEventBus(), registry)
	srv.router = srv.buildRouter()

	w := doRequest(srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "zanrcon_bridge_test_total 3")
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doRequest(srv, http.MethodGet, "/api/status", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "zanrcon", w.Header().Get("Server"))

	// The scrape path skips the strict API policy.
	w = doRequest(srv, http.MethodGet, "/metrics", nil)
	assert.Empty(t, w.Header().Get("X-Frame-Options"))
}

func TestRateLimiter(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Bridge.RateLimitRPS = 1
	})

	// Burst allows 2x the rate, so the third immediate request trips.
	first := doRequest(srv, http.MethodGet, "/api/status", nil)
	second := doRequest(srv, http.MethodGet, "/api/status", nil)
	third := doRequest(srv, http.MethodGet, "/api/status", nil)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
}

func TestUnknownRoute(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doRequest(srv, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "endpoint not found", body["error"])
}

func TestStreamDeliversLinesAndState(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool {
		return srv.hub.clientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	srv.Feed("[server] hello\n")
	srv.PublishState("disconnected", rcon.ErrConnectionTimedOut)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg streamMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "line", msg.Type)
	assert.Equal(t, "[server] hello\n", msg.Text)

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "state", msg.Type)
	assert.Equal(t, "disconnected", msg.State)
	assert.Equal(t, "connection timed out", msg.Error)
}

func TestStreamRejectsUnknownOrigin(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Bridge.AllowedOrigins = []string{"http://dashboard.local"}
	})

	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream"
	header := http.Header{"Origin": []string{"http://attacker.test"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	if conn != nil {
		conn.Close()
	}
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, 0, srv.hub.clientCount())
}
