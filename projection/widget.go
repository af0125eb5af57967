// Package projection renders inbound events into replaceable HTML fragments.
//
// Every widget keeps only transient, UI-side state rebuilt from the latest
// snapshot or incremental event; the bot stays authoritative. Each render
// replaces a whole fragment and publishes it as a hub update.
package projection

import (
	"bytes"
	"html/template"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/onnwee/overlay-relay/clock"
	"github.com/onnwee/overlay-relay/hub"
	"github.com/onnwee/overlay-relay/telemetry"
)

// Publisher receives every fragment change.
type Publisher interface {
	Publish(u hub.Update)
}

// Options are shared by all widgets.
type Options struct {
	Publisher Publisher
	Clock     clock.Face
	Logger    *slog.Logger
	// Rand returns a value in [0, 1) used to place floating elements.
	Rand func() float64
}

type nopPublisher struct{}

func (nopPublisher) Publish(hub.Update) {}

// widget holds the rendered fragments of one surface. Callers hold mu while
// mutating widget state and calling render.
type widget struct {
	surface string
	tmpl    *template.Template
	pub     Publisher
	clock   clock.Face
	logger  *slog.Logger

	mu    sync.Mutex
	frags map[string]string
}

func newWidget(surface string, tmpl *template.Template, opts Options) *widget {
	if opts.Publisher == nil {
		opts.Publisher = nopPublisher{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &widget{
		surface: surface,
		tmpl:    tmpl,
		pub:     opts.Publisher,
		clock:   opts.Clock,
		logger:  opts.Logger.With(slog.String("component", "projection"), slog.String("surface", surface)),
		frags:   make(map[string]string),
	}
}

// render executes the template named id with data, stores the result as
// fragment id and publishes it. Must be called with w.mu held.
func (w *widget) render(id string, data any) {
	var buf bytes.Buffer
	if err := w.tmpl.ExecuteTemplate(&buf, id, data); err != nil {
		w.logger.Error("render fragment", slog.String("fragment", id), slog.Any("err", err))
		return
	}
	html := buf.String()
	w.frags[id] = html
	telemetry.IncProjection(w.surface, id)
	w.pub.Publish(hub.Update{
		Surface:  w.surface,
		Kind:     hub.KindFragment,
		Fragment: id,
		HTML:     html,
		At:       w.clock.Now(),
	})
}

// cue publishes a non-fragment update such as a sound or player command.
func (w *widget) cue(kind hub.Kind, data any) {
	w.pub.Publish(hub.Update{Surface: w.surface, Kind: kind, Data: data, At: w.clock.Now()})
}

// Surface returns the surface the widget renders for.
func (w *widget) Surface() string { return w.surface }

// Fragments returns a snapshot of every rendered fragment by id.
func (w *widget) Fragments() map[string]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return maps.Clone(w.frags)
}

// Fragment returns one rendered fragment.
func (w *widget) Fragment(id string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	html, ok := w.frags[id]
	return html, ok
}

// after runs f with w.mu held once d has elapsed.
func (w *widget) after(d time.Duration, f func()) clock.Timer {
	return w.clock.AfterFunc(d, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		f()
	})
}

// TimerSlot holds at most one pending expiry. Arming it again cancels the
// previous expiry, so overlapping effects of the same kind are last-wins.
type TimerSlot struct {
	clock clock.Face

	mu    sync.Mutex
	timer clock.Timer
	gen   uint64
}

// NewTimerSlot returns an empty slot driven by c.
func NewTimerSlot(c clock.Face) *TimerSlot {
	return &TimerSlot{clock: c}
}

// Arm cancels any pending expiry and schedules f after d.
func (s *TimerSlot) Arm(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		f()
	})
}

// Cancel drops the pending expiry, if any.
func (s *TimerSlot) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// Pending reports whether an expiry is scheduled.
func (s *TimerSlot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
