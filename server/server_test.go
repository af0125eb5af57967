package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onnwee/overlay-relay/command"
	"github.com/onnwee/overlay-relay/config"
	"github.com/onnwee/overlay-relay/envelope"
	"github.com/onnwee/overlay-relay/hub"
	"github.com/onnwee/overlay-relay/projection"
	"github.com/onnwee/overlay-relay/session"
	"github.com/onnwee/overlay-relay/wsclient"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []envelope.Envelope
	err  error
}

func (f *fakeSender) Send(_ context.Context, env envelope.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeSender) envelopes() []envelope.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]envelope.Envelope(nil), f.sent...)
}

type fakeSurface struct {
	name     string
	ready    bool
	widget   session.Widget
	sender   *fakeSender
	commands *command.Commands
}

func newFakeSurface(t *testing.T, name string, ready bool) *fakeSurface {
	t.Helper()
	w, err := session.NewWidget(name, projection.Options{})
	require.NoError(t, err)
	sender := &fakeSender{}
	return &fakeSurface{name: name, ready: ready, widget: w, sender: sender, commands: command.New(name, sender, nil)}
}

func (f *fakeSurface) Surface() string             { return f.name }
func (f *fakeSurface) Ready() bool                 { return f.ready }
func (f *fakeSurface) Widget() session.Widget      { return f.widget }
func (f *fakeSurface) Commands() *command.Commands { return f.commands }
func (f *fakeSurface) Status() session.Status {
	state := wsclient.StateConnecting
	if f.ready {
		state = wsclient.StateReady
	}
	return session.Status{ID: "id-" + f.name, Surface: f.name, State: state.String(), Ready: f.ready}
}

func newTestMux(t *testing.T, cfg *config.Config, h *hub.Hub, surfaces ...*fakeSurface) http.Handler {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{RateLimitEnabled: false}
	}
	sessions := make([]Surface, 0, len(surfaces))
	for _, s := range surfaces {
		sessions = append(sessions, s)
	}
	return NewMux(t.Context(), Options{Config: cfg, Sessions: sessions, Hub: h})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthzOK(t *testing.T) {
	rr := do(t, newTestMux(t, nil, nil), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
	require.NotEmpty(t, rr.Header().Get("X-Correlation-ID"))
}

func TestCorrelationIDIsReused(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "abc123")
	rr := httptest.NewRecorder()
	newTestMux(t, nil, nil).ServeHTTP(rr, req)
	require.Equal(t, "abc123", rr.Header().Get("X-Correlation-ID"))
}

func TestReadyz(t *testing.T) {
	overlay := newFakeSurface(t, envelope.SurfaceOverlay, true)
	player := newFakeSurface(t, envelope.SurfacePlayer, false)

	rr := do(t, newTestMux(t, nil, nil, overlay, player), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "not_ready", body["status"])
	require.Equal(t, envelope.SurfacePlayer, body["failed_check"])
	require.Equal(t, "connection connecting", body["error"])

	player.ready = true
	rr = do(t, newTestMux(t, nil, nil, overlay, player), http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ready"}`, rr.Body.String())
}

func TestStatus(t *testing.T) {
	h := hub.New(nil)
	rr := do(t, newTestMux(t, nil, h, newFakeSurface(t, envelope.SurfaceOverlay, true), newFakeSurface(t, envelope.SurfaceSongRequest, false)), http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Sessions []session.Status `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Sessions, 2)
	require.Equal(t, envelope.SurfaceOverlay, body.Sessions[0].Surface)
	require.Equal(t, "ready", body.Sessions[0].State)
	require.Equal(t, "connecting", body.Sessions[1].State)
}

func TestMetricsEndpoint(t *testing.T) {
	rr := do(t, newTestMux(t, nil, nil), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestFragments(t *testing.T) {
	mux := newTestMux(t, nil, nil, newFakeSurface(t, envelope.SurfaceSongRequest, true))

	rr := do(t, mux, http.MethodGet, "/surfaces/songrequest/fragments", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var frags map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &frags))
	require.Contains(t, frags, "playlist")
	require.Contains(t, frags, "module_state")

	rr = do(t, mux, http.MethodGet, "/surfaces/songrequest/fragments/playlist", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Body.String(), `id="currentqueuebody"`)

	rr = do(t, mux, http.MethodGet, "/surfaces/songrequest/fragments/nope", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, mux, http.MethodGet, "/surfaces/donations/fragments", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCommandAccepted(t *testing.T) {
	admin := newFakeSurface(t, envelope.SurfaceSongRequest, true)
	mux := newTestMux(t, nil, nil, admin)

	rr := do(t, mux, http.MethodPost, "/surfaces/songrequest/commands/VOLUME", `{"volume":40}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.JSONEq(t, `{"status":"accepted","event":"VOLUME"}`, rr.Body.String())

	rr = do(t, mux, http.MethodPost, "/surfaces/songrequest/commands/NEXT", "")
	require.Equal(t, http.StatusAccepted, rr.Code)

	sent := admin.sender.envelopes()
	require.Len(t, sent, 2)
	require.Equal(t, envelope.CmdVolume, sent[0].Event)
	require.JSONEq(t, `{"volume":40}`, string(sent[0].Data))
	require.Equal(t, envelope.CmdNext, sent[1].Event)
	require.False(t, sent[1].HasData())
}

func TestCommandBuildsSongSelector(t *testing.T) {
	admin := newFakeSurface(t, envelope.SurfaceSongRequest, true)
	mux := newTestMux(t, nil, nil, admin)

	rr := do(t, mux, http.MethodPost, "/surfaces/songrequest/commands/FAVOURITE", `{"songinfo_database_id":"abc","hist_database_id":3,"database_id":7}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	sent := admin.sender.envelopes()
	require.Len(t, sent, 1)
	require.Equal(t, envelope.CmdFavourite, sent[0].Event)
	require.JSONEq(t, `{"songinfo_database_id":"abc"}`, string(sent[0].Data))
}

func TestCommandRejected(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		status int
	}{
		{name: "event not allowed on surface", target: "/surfaces/player/commands/BAN", status: http.StatusBadRequest},
		{name: "overlay sends nothing", target: "/surfaces/overlay/commands/NEXT", status: http.StatusBadRequest},
		{name: "body not json", target: "/surfaces/player/commands/SEEK", body: "seek=12", status: http.StatusBadRequest},
		{name: "missing arguments", target: "/surfaces/player/commands/SEEK", body: `{"volume":3}`, status: http.StatusBadRequest},
		{name: "wrong argument type", target: "/surfaces/player/commands/REMOVE", body: `{"database_id":"x"}`, status: http.StatusBadRequest},
		{name: "unknown surface", target: "/surfaces/donations/commands/NEXT", status: http.StatusNotFound},
	}
	player := newFakeSurface(t, envelope.SurfacePlayer, true)
	mux := newTestMux(t, nil, nil, player, newFakeSurface(t, envelope.SurfaceOverlay, true))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, mux, http.MethodPost, tt.target, tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}
	require.Empty(t, player.sender.envelopes())
}

func TestCommandUpstreamErrors(t *testing.T) {
	admin := newFakeSurface(t, envelope.SurfaceSongRequest, false)
	mux := newTestMux(t, nil, nil, admin)

	admin.sender.err = wsclient.ErrNotConnected
	rr := do(t, mux, http.MethodPost, "/surfaces/songrequest/commands/PAUSE", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	admin.sender.err = errors.New("broken pipe")
	rr = do(t, mux, http.MethodPost, "/surfaces/songrequest/commands/PAUSE", "")
	require.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestCommandMethodNotAllowed(t *testing.T) {
	rr := do(t, newTestMux(t, nil, nil, newFakeSurface(t, envelope.SurfaceSongRequest, true)), http.MethodGet, "/surfaces/songrequest/commands/NEXT", "")
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestCommandRequiresAdminAuth(t *testing.T) {
	admin := newFakeSurface(t, envelope.SurfaceSongRequest, true)
	mux := newTestMux(t, &config.Config{AdminToken: "s3cret"}, nil, admin)

	rr := do(t, mux, http.MethodPost, "/surfaces/songrequest/commands/NEXT", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/surfaces/songrequest/commands/NEXT", nil)
	req.Header.Set("X-Admin-Token", "s3cret")
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	// Reads stay public.
	rr = do(t, mux, http.MethodGet, "/surfaces/songrequest/fragments", "")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCommandRateLimited(t *testing.T) {
	mux := newTestMux(t, &config.Config{RateLimitEnabled: true, RateLimitRequests: 2, RateLimitWindow: 60}, nil,
		newFakeSurface(t, envelope.SurfaceSongRequest, true))

	for i := 0; i < 2; i++ {
		rr := do(t, mux, http.MethodPost, "/surfaces/songrequest/commands/NEXT", "")
		require.Equal(t, http.StatusAccepted, rr.Code)
	}
	rr := do(t, mux, http.MethodPost, "/surfaces/songrequest/commands/NEXT", "")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestEventsStream(t *testing.T) {
	h := hub.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(newTestMux(t, nil, h, newFakeSurface(t, envelope.SurfaceOverlay, true)))
	defer srv.Close()

	reqCtx, stop := context.WithCancel(context.Background())
	defer stop()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, srv.URL+"/surfaces/overlay/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan hub.Update, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64<<10), 1<<20)
		for sc.Scan() {
			line, ok := strings.CutPrefix(sc.Text(), "data: ")
			if !ok {
				continue
			}
			var u hub.Update
			if json.Unmarshal([]byte(line), &u) == nil {
				events <- u
			}
		}
		close(events)
	}()

	next := func() hub.Update {
		t.Helper()
		select {
		case u := <-events:
			return u
		case <-time.After(2 * time.Second):
			t.Fatal("no event received")
			return hub.Update{}
		}
	}

	// Snapshot first, sorted by fragment id.
	var snapshot []string
	for range 4 {
		u := next()
		require.Equal(t, hub.KindFragment, u.Kind)
		snapshot = append(snapshot, u.Fragment)
	}
	require.Equal(t, []string{"bets", "elements", "highlight", "notifications"}, snapshot)

	h.Publish(hub.Update{Surface: envelope.SurfaceSongRequest, Kind: hub.KindReload})
	h.Publish(hub.Update{Surface: envelope.SurfaceOverlay, Kind: hub.KindReload, Data: projection.ReloadCue{BypassCache: true}})

	u := next()
	require.Equal(t, envelope.SurfaceOverlay, u.Surface, "other surfaces are filtered out")
	require.Equal(t, hub.KindReload, u.Kind)
	require.Equal(t, map[string]any{"bypass_cache": true}, u.Data)
}

func TestStartAndShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Start(ctx, "127.0.0.1:0", newTestMux(t, nil, nil)) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
