package server

import (
	"net/http"

	"github.com/onnwee/overlay-relay/session"
)

// HandleHealthz responds to liveness probes; the process is alive if it can answer.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports ready only when every session's connection is Ready.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, _ *http.Request) {
	for _, name := range h.order {
		s := h.sessions[name]
		if !s.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":       "not_ready",
				"failed_check": name,
				"error":        "connection " + s.Status().State,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HandleStatus reports every session's connection and last inbound event.
func (h *Handlers) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	type statusResponse struct {
		Sessions       []session.Status `json:"sessions"`
		SSESubscribers int              `json:"sse_subscribers"`
	}
	resp := statusResponse{Sessions: make([]session.Status, 0, len(h.order))}
	for _, name := range h.order {
		resp.Sessions = append(resp.Sessions, h.sessions[name].Status())
	}
	if h.hub != nil {
		resp.SSESubscribers = h.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}
