package projection

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/onnwee/overlay-relay/clock"
	"github.com/onnwee/overlay-relay/dispatch"
	"github.com/onnwee/overlay-relay/hub"
)

var epoch = time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

type recorder struct {
	mu      sync.Mutex
	updates []hub.Update
}

func (r *recorder) Publish(u hub.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = nil
}

func (r *recorder) ofKind(k hub.Kind) []hub.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []hub.Update
	for _, u := range r.updates {
		if u.Kind == k {
			out = append(out, u)
		}
	}
	return out
}

type fixture struct {
	clock *clock.Mock
	pub   *recorder
	d     *dispatch.Dispatcher
	opts  Options
}

func newFixture(t *testing.T, surface string) *fixture {
	t.Helper()
	f := &fixture{
		clock: clock.NewMock(epoch),
		pub:   &recorder{},
		d:     dispatch.New(surface, nil),
	}
	f.opts = Options{Publisher: f.pub, Clock: f.clock, Rand: func() float64 { return 0.25 }}
	return f
}

// send dispatches {event, data} and requires it to be handled.
func (f *fixture) send(t *testing.T, event string, data any) {
	t.Helper()
	msg := map[string]any{"event": event}
	if data != nil {
		msg["data"] = data
	}
	frame, err := json.Marshal(msg)
	require.NoError(t, err)
	res := f.d.Dispatch(context.Background(), frame)
	require.Equal(t, dispatch.OutcomeHandled, res.Outcome, "event %s", event)
}

func (f *fixture) sendRaw(t *testing.T, frame string) dispatch.Result {
	t.Helper()
	return f.d.Dispatch(context.Background(), []byte(frame))
}

// parse parses an HTML fragment; table fragments are wrapped in a table so
// the parser keeps their rows.
func parse(t *testing.T, fragment string) *html.Node {
	t.Helper()
	src := fragment
	if strings.HasPrefix(strings.TrimSpace(fragment), "<tbody") {
		src = "<table>" + fragment + "</table>"
	}
	doc, err := html.Parse(strings.NewReader(src))
	require.NoError(t, err)
	return doc
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func byTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == tag }
}

func byClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool { return hasClass(n, class) }
}

func byID(id string) func(*html.Node) bool {
	return func(n *html.Node) bool { return attr(n, "id") == id }
}

func byAttr(key, val string) func(*html.Node) bool {
	return func(n *html.Node) bool { return attr(n, key) == val }
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	return slices.Contains(strings.Fields(attr(n, "class")), class)
}

func text(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func fragment(t *testing.T, w interface{ Fragment(string) (string, bool) }, id string) *html.Node {
	t.Helper()
	frag, ok := w.Fragment(id)
	require.True(t, ok, "fragment %s not rendered", id)
	return parse(t, frag)
}
