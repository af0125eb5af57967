// Package server exposes the HTTP API handlers.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/onnwee/overlay-relay/command"
	"github.com/onnwee/overlay-relay/hub"
	"github.com/onnwee/overlay-relay/session"
)

// Surface is what the handlers need from a running session.
type Surface interface {
	Surface() string
	Ready() bool
	Status() session.Status
	Widget() session.Widget
	Commands() *command.Commands
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	sessions map[string]Surface
	order    []string
	hub      *hub.Hub
	logger   *slog.Logger
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(sessions []Surface, h *hub.Hub, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	hs := &Handlers{
		sessions: make(map[string]Surface, len(sessions)),
		hub:      h,
		logger:   logger.With(slog.String("component", "http")),
	}
	for _, s := range sessions {
		hs.sessions[s.Surface()] = s
		hs.order = append(hs.order, s.Surface())
	}
	return hs
}

// lookup resolves the {surface} path value or writes 404.
func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (Surface, bool) {
	name := r.PathValue("surface")
	s, ok := h.sessions[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown surface: " + name})
		return nil, false
	}
	return s, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
