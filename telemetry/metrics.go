// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	FramesReceived    *prometheus.CounterVec // surface, event
	DispatchOutcomes  *prometheus.CounterVec // surface, outcome
	Reconnects        *prometheus.CounterVec // surface
	CommandsSent      *prometheus.CounterVec // surface, event
	CommandsFailed    *prometheus.CounterVec // surface, event
	ProjectionUpdates *prometheus.CounterVec // surface, fragment

	// Histograms (seconds)
	DispatchDuration *prometheus.HistogramVec // surface

	// Gauges
	ConnectionState *prometheus.GaugeVec // surface; value is the wsclient.State ordinal
	SSESubscribers  prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		FramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{Name: "overlay_frames_received_total", Help: "Text frames received from the upstream socket"}, []string{"surface", "event"})
		DispatchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{Name: "overlay_dispatch_total", Help: "Dispatch results by outcome (handled, no_event, unknown, malformed, bad_payload)"}, []string{"surface", "outcome"})
		Reconnects = promauto.NewCounterVec(prometheus.CounterOpts{Name: "overlay_reconnects_total", Help: "Reconnect attempts scheduled after a close or dial failure"}, []string{"surface"})
		CommandsSent = promauto.NewCounterVec(prometheus.CounterOpts{Name: "overlay_commands_sent_total", Help: "Outbound envelopes written to the socket"}, []string{"surface", "event"})
		CommandsFailed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "overlay_commands_failed_total", Help: "Outbound envelopes that could not be written"}, []string{"surface", "event"})
		ProjectionUpdates = promauto.NewCounterVec(prometheus.CounterOpts{Name: "overlay_projection_updates_total", Help: "Fragment re-renders published to subscribers"}, []string{"surface", "fragment"})
		DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "overlay_dispatch_duration_seconds", Help: "Time spent decoding and handling one frame", Buckets: prometheus.DefBuckets}, []string{"surface"})
		ConnectionState = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "overlay_connection_state", Help: "Connection state: 0=disconnected 1=connecting 2=open 3=authenticating 4=ready"}, []string{"surface"})
		SSESubscribers = promauto.NewGauge(prometheus.GaugeOpts{Name: "overlay_sse_subscribers", Help: "Currently connected event-stream subscribers"})
	})
}

// IncFrame counts one received frame. Safe to call before Init.
func IncFrame(surface, event string) {
	if FramesReceived != nil {
		FramesReceived.WithLabelValues(surface, event).Inc()
	}
}

// IncDispatch counts one dispatch outcome.
func IncDispatch(surface, outcome string) {
	if DispatchOutcomes != nil {
		DispatchOutcomes.WithLabelValues(surface, outcome).Inc()
	}
}

// IncReconnect counts one scheduled reconnect.
func IncReconnect(surface string) {
	if Reconnects != nil {
		Reconnects.WithLabelValues(surface).Inc()
	}
}

// IncCommand counts an outbound send, split by whether it reached the socket.
func IncCommand(surface, event string, ok bool) {
	if ok {
		if CommandsSent != nil {
			CommandsSent.WithLabelValues(surface, event).Inc()
		}
		return
	}
	if CommandsFailed != nil {
		CommandsFailed.WithLabelValues(surface, event).Inc()
	}
}

// IncProjection counts one published fragment update.
func IncProjection(surface, fragment string) {
	if ProjectionUpdates != nil {
		ProjectionUpdates.WithLabelValues(surface, fragment).Inc()
	}
}

// SetConnectionState records the current connection state ordinal.
func SetConnectionState(surface string, state int) {
	if ConnectionState != nil {
		ConnectionState.WithLabelValues(surface).Set(float64(state))
	}
}

// AddSSESubscribers adjusts the subscriber gauge by delta.
func AddSSESubscribers(delta int) {
	if SSESubscribers != nil {
		SSESubscribers.Add(float64(delta))
	}
}

// DispatchObserver returns the histogram observer for a surface or nil before Init.
func DispatchObserver(surface string) prometheus.Observer {
	if DispatchDuration == nil {
		return nil
	}
	return DispatchDuration.WithLabelValues(surface)
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
