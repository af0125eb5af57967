// Package session binds one upstream connection, its dispatcher, the widget
// rendering its events and the command sender writing back to it.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/onnwee/overlay-relay/clock"
	"github.com/onnwee/overlay-relay/command"
	"github.com/onnwee/overlay-relay/dispatch"
	"github.com/onnwee/overlay-relay/envelope"
	"github.com/onnwee/overlay-relay/projection"
	"github.com/onnwee/overlay-relay/telemetry"
	"github.com/onnwee/overlay-relay/wsclient"
)

// Widget is the projection of one surface.
type Widget interface {
	Register(d *dispatch.Dispatcher)
	Surface() string
	Fragments() map[string]string
	Fragment(id string) (string, bool)
}

// Options configures a Session.
type Options struct {
	Surface     string
	URL         string
	TokenSource oauth2.TokenSource
	NewBackOff  func() backoff.BackOff

	Publisher projection.Publisher
	Clock     clock.Face
	Logger    *slog.Logger
}

// Status is the point-in-time view of a session reported over HTTP.
type Status struct {
	ID          string    `json:"id"`
	Surface     string    `json:"surface"`
	State       string    `json:"state"`
	Ready       bool      `json:"ready"`
	Reconnects  int64     `json:"reconnects"`
	LastEvent   string    `json:"last_event,omitempty"`
	LastEventAt time.Time `json:"last_event_at,omitzero"`
	ReadySince  time.Time `json:"ready_since,omitzero"`
}

// Session is the explicit context of one surface: handlers reach their
// connection and widget through it instead of page globals.
type Session struct {
	id      string
	surface string
	clock   clock.Face
	logger  *slog.Logger

	client     *wsclient.Client
	dispatcher *dispatch.Dispatcher
	widget     Widget
	commands   *command.Commands

	mu          sync.Mutex
	lastEvent   string
	lastEventAt time.Time
	readySince  time.Time
}

// NewWidget returns the widget rendering surface.
func NewWidget(surface string, opts projection.Options) (Widget, error) {
	switch surface {
	case envelope.SurfaceOverlay:
		return projection.NewOverlay(opts), nil
	case envelope.SurfaceSongRequest:
		return projection.NewSongRequestAdmin(opts), nil
	case envelope.SurfacePlayer:
		return projection.NewSongPlayer(opts), nil
	default:
		return nil, fmt.Errorf("unknown surface %q", surface)
	}
}

// New wires a session for opts.Surface. Call Run to connect.
func New(opts Options) (*Session, error) {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		id:      uuid.NewString(),
		surface: opts.Surface,
		clock:   opts.Clock,
	}
	s.logger = opts.Logger.With(slog.String("component", "session"), slog.String("surface", opts.Surface), slog.String("session_id", s.id))

	widget, err := NewWidget(opts.Surface, projection.Options{
		Publisher: opts.Publisher,
		Clock:     opts.Clock,
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	s.widget = widget
	s.dispatcher = dispatch.New(opts.Surface, opts.Logger)
	widget.Register(s.dispatcher)

	authEvent, authenticates := envelope.AuthEvent(opts.Surface)
	tokens := opts.TokenSource
	switch {
	case !authenticates:
		tokens = nil
	case tokens == nil:
		s.logger.Warn("no token source configured, connection will not authenticate")
	}
	s.client = wsclient.New(wsclient.Options{
		URL:         opts.URL,
		Surface:     opts.Surface,
		TokenSource: tokens,
		AuthEvent:   authEvent,
		NewBackOff:  opts.NewBackOff,
		OnFrame:     s.onFrame,
		OnState:     s.onState,
		Clock:       opts.Clock,
		Logger:      opts.Logger,
	})
	s.commands = command.New(opts.Surface, s.client, opts.Logger)
	return s, nil
}

// Run keeps the upstream connection alive until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("session starting")
	return s.client.Run(ctx)
}

func (s *Session) onFrame(ctx context.Context, frame []byte) {
	ctx = telemetry.WithCorrelation(ctx, s.id)
	res := s.dispatcher.Dispatch(ctx, frame)
	if res.Event == "" {
		return
	}
	s.mu.Lock()
	s.lastEvent = res.Event
	s.lastEventAt = s.clock.Now()
	s.mu.Unlock()
}

func (s *Session) onState(state wsclient.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == wsclient.StateReady {
		s.readySince = s.clock.Now()
	} else {
		s.readySince = time.Time{}
	}
}

// ID returns the random identifier of this session.
func (s *Session) ID() string { return s.id }

// Surface returns the surface the session serves.
func (s *Session) Surface() string { return s.surface }

// State returns the connection state.
func (s *Session) State() wsclient.State { return s.client.State() }

// Ready reports whether the connection is authenticated and usable.
func (s *Session) Ready() bool { return s.client.State() == wsclient.StateReady }

// Widget returns the surface projection.
func (s *Session) Widget() Widget { return s.widget }

// Commands returns the outbound command sender.
func (s *Session) Commands() *command.Commands { return s.commands }

// Status reports connection and inbound activity.
func (s *Session) Status() Status {
	state := s.client.State()
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		ID:          s.id,
		Surface:     s.surface,
		State:       state.String(),
		Ready:       state == wsclient.StateReady,
		Reconnects:  s.client.Reconnects(),
		LastEvent:   s.lastEvent,
		LastEventAt: s.lastEventAt,
		ReadySince:  s.readySince,
	}
}
