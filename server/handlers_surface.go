package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/overlay-relay/command"
	"github.com/onnwee/overlay-relay/hub"
	"github.com/onnwee/overlay-relay/telemetry"
	"github.com/onnwee/overlay-relay/wsclient"
)

const (
	maxCommandBody    = 64 << 10
	subscriberBuffer  = 64
	keepAliveInterval = 25 * time.Second
)

// HandleFragments returns every rendered fragment of a surface keyed by id.
func (h *Handlers) HandleFragments(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Widget().Fragments())
}

// HandleFragment returns one fragment as HTML.
func (h *Handlers) HandleFragment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	frag, ok := s.Widget().Fragment(r.PathValue("id"))
	if !ok {
		http.Error(w, "unknown fragment", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, frag)
}

// HandleEvents streams a surface's updates as Server-Sent Events. Every
// current fragment is sent first so a new subscriber starts in sync.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if h.hub == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}

	client := &hub.Client{ID: uuid.NewString(), Surface: s.Surface(), Send: make(chan hub.Update, subscriberBuffer)}
	if !h.hub.Register(client) {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	defer h.hub.Unregister(client)
	telemetry.AddSSESubscribers(1)
	defer telemetry.AddSSESubscribers(-1)

	logger := telemetry.LoggerWithCorr(r.Context()).With(slog.String("component", "http"), slog.String("surface", s.Surface()), slog.String("client_id", client.ID))
	logger.Debug("event stream opened")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	frags := s.Widget().Fragments()
	ids := make([]string, 0, len(frags))
	for id := range frags {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	now := time.Now()
	for _, id := range ids {
		u := hub.Update{Surface: s.Surface(), Kind: hub.KindFragment, Fragment: id, HTML: frags[id], At: now}
		if err := writeEvent(w, u); err != nil {
			return
		}
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			logger.Debug("event stream closed by client")
			return
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case u, ok := <-client.Send:
			if !ok {
				logger.Debug("event stream dropped by hub")
				return
			}
			if err := writeEvent(w, u); err != nil {
				logger.Warn("failed to write SSE event", slog.Any("err", err))
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, u hub.Update) error {
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
		return fmt.Errorf("write update: %w", err)
	}
	return nil
}

// HandleCommand decodes the JSON request body into the arguments of {event}
// and sends it upstream. The send is fire-and-forget: 202 only means it
// reached the socket.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	event := r.PathValue("event")
	if !command.Allowed(s.Surface(), event) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("event %s is not allowed on %s", event, s.Surface())})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read request body"})
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "request body must be JSON"})
		return
	}

	err = s.Commands().Handle(r.Context(), event, body)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "event": event})
	case errors.Is(err, wsclient.ErrNotConnected):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "upstream not connected"})
	case errors.Is(err, command.ErrEventNotAllowed), errors.Is(err, command.ErrInvalidArgs):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		h.logger.Warn("command send failed", slog.String("surface", s.Surface()), slog.String("event", event), slog.Any("err", err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "command could not be sent"})
	}
}
