package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// Frame is a text frame the mock upstream received, tagged with the
// 1-based connection it arrived on.
type Frame struct {
	Conn int
	Data []byte
}

// MockSocketServer is a fake upstream WebSocket endpoint. It accepts any
// number of connections, records every text frame they send and lets tests
// push frames or close the latest connection.
type MockSocketServer struct {
	*httptest.Server

	// OnConnect, when set, runs right after a connection is accepted. n is
	// the 1-based connection number.
	OnConnect func(conn *websocket.Conn, n int)

	mu       sync.Mutex
	conns    []*websocket.Conn
	accepted []time.Time
	headers  []http.Header
	received []Frame
}

// NewMockSocketServer creates a new mock upstream socket server.
func NewMockSocketServer(t *testing.T) *MockSocketServer {
	t.Helper()
	m := &MockSocketServer{}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Close)
	return m
}

// Close drops every accepted connection and shuts the server down.
func (m *MockSocketServer) Close() {
	m.mu.Lock()
	conns := append([]*websocket.Conn(nil), m.conns...)
	m.mu.Unlock()
	for _, c := range conns {
		_ = c.CloseNow() //nolint:errcheck // best effort teardown
	}
	m.Server.Close()
}

// WSURL returns the ws:// address of the server.
func (m *MockSocketServer) WSURL() string {
	return "ws" + strings.TrimPrefix(m.URL, "http")
}

func (m *MockSocketServer) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}

	m.mu.Lock()
	m.conns = append(m.conns, conn)
	m.accepted = append(m.accepted, time.Now())
	m.headers = append(m.headers, r.Header.Clone())
	n := len(m.conns)
	onConnect := m.OnConnect
	m.mu.Unlock()

	if onConnect != nil {
		onConnect(conn, n)
	}

	for {
		typ, data, err := conn.Read(context.Background())
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		m.mu.Lock()
		m.received = append(m.received, Frame{Conn: n, Data: data})
		m.mu.Unlock()
	}
}

// Connections returns how many connections have been accepted so far.
func (m *MockSocketServer) Connections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// AcceptedAt returns when connection n (1-based) was accepted.
func (m *MockSocketServer) AcceptedAt(n int) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 1 || n > len(m.accepted) {
		return time.Time{}
	}
	return m.accepted[n-1]
}

// Header returns the request headers of connection n (1-based).
func (m *MockSocketServer) Header(n int) http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 1 || n > len(m.headers) {
		return nil
	}
	return m.headers[n-1]
}

// Received returns a copy of every recorded frame.
func (m *MockSocketServer) Received() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Frame, len(m.received))
	copy(out, m.received)
	return out
}

// Events returns the event tags of the frames received on connection n.
func (m *MockSocketServer) Events(n int) []string {
	var out []string
	for _, f := range m.Received() {
		if f.Conn != n {
			continue
		}
		var env struct {
			Event string `json:"event"`
		}
		_ = json.Unmarshal(f.Data, &env) //nolint:errcheck // unparsable frames are recorded as ""
		out = append(out, env.Event)
	}
	return out
}

func (m *MockSocketServer) latest() (*websocket.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.conns) == 0 {
		return nil, fmt.Errorf("no connection accepted yet")
	}
	return m.conns[len(m.conns)-1], nil
}

// PushRaw writes frame as a text message on the latest connection.
func (m *MockSocketServer) PushRaw(ctx context.Context, frame string) error {
	conn, err := m.latest()
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, []byte(frame))
}

// Push writes an {event, data} envelope on the latest connection.
func (m *MockSocketServer) Push(ctx context.Context, event string, data any) error {
	msg := map[string]any{"event": event}
	if data != nil {
		msg["data"] = data
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return m.PushRaw(ctx, string(b))
}

// PushBinary writes a binary message on the latest connection.
func (m *MockSocketServer) PushBinary(ctx context.Context, payload []byte) error {
	conn, err := m.latest()
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageBinary, payload)
}

// CloseLatest closes the latest connection with the given status code.
func (m *MockSocketServer) CloseLatest(code websocket.StatusCode, reason string) error {
	conn, err := m.latest()
	if err != nil {
		return err
	}
	return conn.Close(code, reason)
}

// DropLatest tears the latest connection down without a close handshake.
func (m *MockSocketServer) DropLatest() error {
	conn, err := m.latest()
	if err != nil {
		return err
	}
	return conn.CloseNow()
}
