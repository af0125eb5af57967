// Package wsclient keeps a persistent, self-reconnecting WebSocket connection
// to the bot's event endpoint.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"golang.org/x/oauth2"

	"github.com/onnwee/overlay-relay/clock"
	"github.com/onnwee/overlay-relay/envelope"
	"github.com/onnwee/overlay-relay/telemetry"
)

// ErrNotConnected is returned by Send while the connection is not Ready.
var ErrNotConnected = errors.New("wsclient: not connected")

const (
	// DefaultReconnectDelay is the fixed delay between a close and the next dial.
	DefaultReconnectDelay = 2500 * time.Millisecond
	defaultDialTimeout    = 10 * time.Second
	defaultReadLimit      = 1 << 20
)

// FrameHandler receives every inbound text frame in delivery order.
type FrameHandler func(ctx context.Context, frame []byte)

// Options configures a Client.
type Options struct {
	URL     string
	Surface string
	Header  http.Header

	// TokenSource, when set, supplies the access token sent in the
	// authentication envelope right after the socket opens.
	TokenSource oauth2.TokenSource
	// AuthEvent is the tag of the authentication envelope. Defaults to AUTH.
	AuthEvent string

	// NewBackOff builds the reconnect policy. Defaults to a fixed 2.5s delay.
	NewBackOff func() backoff.BackOff

	OnFrame FrameHandler
	OnState func(State)

	Clock       clock.Face
	Logger      *slog.Logger
	DialTimeout time.Duration
	ReadLimit   int64
}

// FixedBackOff returns a reconnect policy that always waits d.
func FixedBackOff(d time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.NewConstantBackOff(d)
	}
}

// ExponentialBackOff returns a reconnect policy that starts at initial and
// grows to at most maxDelay. The client resets it whenever a connection becomes Ready.
func ExponentialBackOff(initial, maxDelay time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = maxDelay
		b.Reset()
		return b
	}
}

// Client owns one upstream socket at a time and replaces it after every close.
type Client struct {
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	state State

	reconnects atomic.Int64
}

// New creates a client; call Run to start connecting.
func New(opts Options) *Client {
	if opts.AuthEvent == "" {
		opts.AuthEvent = envelope.CmdAuth
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = FixedBackOff(DefaultReconnectDelay)
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		opts:   opts,
		logger: logger.With(slog.String("component", "wsclient"), slog.String("surface", opts.Surface)),
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reconnects returns how many reconnects have been scheduled.
func (c *Client) Reconnects() int64 {
	return c.reconnects.Load()
}

// Run connects and keeps reconnecting until ctx is cancelled. Every close or
// dial failure schedules exactly one new attempt after the policy delay.
func (c *Client) Run(ctx context.Context) error {
	bo := c.opts.NewBackOff()
	bo.Reset()

	for {
		err := c.connectOnce(ctx, bo)
		c.setState(StateDisconnected)
		if ctx.Err() != nil {
			c.logger.Info("connection manager stopped")
			return nil
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			bo.Reset()
			delay = bo.NextBackOff()
		}
		c.reconnects.Add(1)
		telemetry.IncReconnect(c.opts.Surface)
		c.logger.Warn("connection closed, reconnecting",
			slog.Any("err", err),
			slog.Int("close_code", int(websocket.CloseStatus(err))),
			slog.Duration("delay", delay))

		if !c.wait(ctx, delay) {
			c.logger.Info("connection manager stopped")
			return nil
		}
	}
}

func (c *Client) wait(ctx context.Context, d time.Duration) bool {
	fired := make(chan struct{})
	t := c.opts.Clock.AfterFunc(d, func() { close(fired) })
	select {
	case <-fired:
		return true
	case <-ctx.Done():
		t.Stop()
		return false
	}
}

func (c *Client) connectOnce(ctx context.Context, bo backoff.BackOff) error {
	c.setState(StateConnecting)

	spanCtx, span := telemetry.StartSpan(ctx, "wsclient", "ws.connect",
		telemetry.SurfaceAttr(c.opts.Surface), telemetry.HTTPURLAttr(c.opts.URL))
	dialCtx, cancel := context.WithTimeout(spanCtx, c.opts.DialTimeout)
	conn, _, err := websocket.Dial(dialCtx, c.opts.URL, &websocket.DialOptions{HTTPHeader: c.opts.Header})
	cancel()
	if err != nil {
		err = fmt.Errorf("dial %s: %w", c.opts.URL, err)
		telemetry.RecordError(span, err)
		span.End()
		return err
	}
	conn.SetReadLimit(c.opts.ReadLimit)
	defer conn.Close(websocket.StatusNormalClosure, "") //nolint:errcheck // the socket is already gone on most paths
	c.setState(StateOpen)
	c.logger.Info("websocket connected", slog.String("url", c.opts.URL))

	if c.opts.TokenSource != nil {
		c.setState(StateAuthenticating)
		if err := c.authenticate(spanCtx, conn); err != nil {
			telemetry.RecordError(span, err)
			span.End()
			return err
		}
	}
	telemetry.SetSpanSuccess(span)
	span.End()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(StateReady)
	bo.Reset()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()
	return c.readLoop(ctx, conn)
}

// authenticate writes the auth envelope directly on conn, before the
// connection is published to Send, so it is always the first frame.
func (c *Client) authenticate(ctx context.Context, conn *websocket.Conn) error {
	tok, err := c.opts.TokenSource.Token()
	if err != nil {
		return fmt.Errorf("auth token: %w", err)
	}
	env, err := envelope.New(c.opts.AuthEvent, map[string]string{"access_token": tok.AccessToken})
	if err != nil {
		return err
	}
	frame, err := env.Encode()
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		telemetry.IncCommand(c.opts.Surface, c.opts.AuthEvent, false)
		return fmt.Errorf("write %s: %w", c.opts.AuthEvent, err)
	}
	telemetry.IncCommand(c.opts.Surface, c.opts.AuthEvent, true)
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if typ != websocket.MessageText {
			continue
		}
		if c.opts.OnFrame != nil {
			c.opts.OnFrame(ctx, data)
		}
	}
}

// Send writes env as a text frame. It is fire-and-forget: there is no ack or
// retry, and ErrNotConnected is returned unless the connection is Ready.
func (c *Client) Send(ctx context.Context, env envelope.Envelope) error {
	frame, err := env.Encode()
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		telemetry.IncCommand(c.opts.Surface, env.Event, false)
		return ErrNotConnected
	}

	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		telemetry.IncCommand(c.opts.Surface, env.Event, false)
		return fmt.Errorf("write %s: %w", env.Event, err)
	}
	telemetry.IncCommand(c.opts.Surface, env.Event, true)
	return nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	telemetry.SetConnectionState(c.opts.Surface, int(s))
	c.logger.Debug("connection state changed", slog.String("state", s.String()))
	if c.opts.OnState != nil {
		c.opts.OnState(s)
	}
}
