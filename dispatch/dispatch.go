// Package dispatch routes inbound envelopes to the handler registered for
// their event tag.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/onnwee/overlay-relay/envelope"
	"github.com/onnwee/overlay-relay/telemetry"
)

// Outcome labels recorded for each dispatched frame.
const (
	OutcomeHandled    = "handled"
	OutcomeNoEvent    = "no_event"
	OutcomeUnknown    = "unknown"
	OutcomeMalformed  = "malformed"
	OutcomeBadPayload = "bad_payload"
)

// UnknownEventLabel is the frame-counter label for tags with no handler.
const UnknownEventLabel = "unregistered"

// Handler handles one decoded envelope. A returned error means the payload
// did not have the expected shape; it is logged and otherwise ignored.
type Handler func(ctx context.Context, env envelope.Envelope) error

// Result describes what happened to one frame.
type Result struct {
	Event   string
	Outcome string
}

// Dispatcher is a finite map from event tag to handler.
type Dispatcher struct {
	surface string
	logger  *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates an empty dispatcher for a surface.
func New(surface string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		surface:  surface,
		logger:   logger.With(slog.String("component", "dispatch"), slog.String("surface", surface)),
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for tag, replacing any previous handler.
func (d *Dispatcher) Handle(tag string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[tag] = h
}

// On registers a typed handler for tag. The envelope data is decoded into a
// fresh T before fn runs; a payload that does not decode is dropped.
func On[T any](d *Dispatcher, tag string, fn func(ctx context.Context, payload T)) {
	d.Handle(tag, func(ctx context.Context, env envelope.Envelope) error {
		var payload T
		if err := env.DecodeData(&payload); err != nil {
			return err
		}
		fn(ctx, payload)
		return nil
	})
}

// Tags returns the registered event tags.
func (d *Dispatcher) Tags() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tags := make([]string, 0, len(d.handlers))
	for tag := range d.handlers {
		tags = append(tags, tag)
	}
	return tags
}

// Dispatch decodes frame and invokes the handler for its tag. Frames without
// an event and unknown tags are dropped silently.
func (d *Dispatcher) Dispatch(ctx context.Context, frame []byte) Result {
	var res Result
	telemetry.TimeFunc(telemetry.DispatchObserver(d.surface), func() {
		res = d.dispatch(ctx, frame)
	})
	telemetry.IncDispatch(d.surface, res.Outcome)
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, frame []byte) Result {
	env, err := envelope.Decode(frame)
	switch {
	case errors.Is(err, envelope.ErrNoEvent):
		return Result{Outcome: OutcomeNoEvent}
	case err != nil:
		d.logger.Debug("dropping malformed frame", slog.Any("err", err))
		return Result{Outcome: OutcomeMalformed}
	}
	d.mu.RLock()
	h, ok := d.handlers[env.Event]
	d.mu.RUnlock()
	if !ok {
		// Tags are an open set; only registered ones become label values.
		telemetry.IncFrame(d.surface, UnknownEventLabel)
		return Result{Event: env.Event, Outcome: OutcomeUnknown}
	}
	telemetry.IncFrame(d.surface, env.Event)

	ctx, span := telemetry.StartSpan(ctx, "dispatch", "dispatch "+env.Event,
		telemetry.SurfaceAttr(d.surface), telemetry.EventAttr(env.Event))
	defer span.End()

	if err := h(ctx, env); err != nil {
		d.logger.Debug("ignoring unexpected payload", slog.String("event", env.Event), slog.Any("err", err))
		telemetry.RecordError(span, err)
		return Result{Event: env.Event, Outcome: OutcomeBadPayload}
	}
	telemetry.SetSpanSuccess(span)
	return Result{Event: env.Event, Outcome: OutcomeHandled}
}
