// Command overlay-relay keeps one self-reconnecting socket per configured
// page surface open to the bot, renders the events it receives into HTML
// fragments and serves them to browser sources.
// It:
//   - Loads configuration and initializes structured logging.
//   - Starts one session (connection, dispatcher, widget, command sender) per surface.
//   - Fans fragment updates out to event-stream subscribers through the hub.
//   - Exposes an HTTP server with /healthz, /readyz, /status, /metrics, the
//     fragment and event-stream endpoints and the command endpoint.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/overlay-relay/config"
	"github.com/onnwee/overlay-relay/envelope"
	"github.com/onnwee/overlay-relay/hub"
	"github.com/onnwee/overlay-relay/oauth"
	"github.com/onnwee/overlay-relay/server"
	"github.com/onnwee/overlay-relay/session"
	"github.com/onnwee/overlay-relay/telemetry"
	"github.com/onnwee/overlay-relay/wsclient"
)

const version = "1.0.0"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing(cfg.ServiceName, version)
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("overlay-relay exited with error", slog.Any("err", err))
		stop()
		shutdown()
		os.Exit(1)
	}
	slog.Info("shutting down")
}

func run(ctx context.Context, cfg *config.Config) error {
	updates := hub.New(slog.Default())

	var newBackOff func() backoff.BackOff
	switch cfg.ReconnectMode {
	case config.ReconnectExponential:
		newBackOff = wsclient.ExponentialBackOff(cfg.ReconnectDelay, cfg.ReconnectMaxDelay)
	default:
		newBackOff = wsclient.FixedBackOff(cfg.ReconnectDelay)
	}
	// Only the song-request pages authenticate; the overlay socket never sees the token.
	var tokens oauth2.TokenSource
	if lo.SomeBy(cfg.Surfaces, func(s string) bool { _, ok := envelope.AuthEvent(s); return ok }) {
		tokens = oauth.NewTokenSource(ctx, cfg.AuthToken, cfg.AuthTokenFile, cfg.AuthTokenRefresh)
	}

	sessions := make([]*session.Session, 0, len(cfg.Surfaces))
	surfaces := make([]server.Surface, 0, len(cfg.Surfaces))
	for _, surface := range cfg.Surfaces {
		s, err := session.New(session.Options{
			Surface:     surface,
			URL:         cfg.UpstreamURL(),
			TokenSource: tokens,
			NewBackOff:  newBackOff,
			Publisher:   updates,
			Logger:      slog.Default(),
		})
		if err != nil {
			return err
		}
		sessions = append(sessions, s)
		surfaces = append(surfaces, s)
	}
	slog.Info("starting sessions",
		slog.Any("surfaces", cfg.Surfaces),
		slog.String("upstream", cfg.UpstreamURL()),
		slog.String("reconnect_mode", cfg.ReconnectMode))

	startPprof()

	mux := server.NewMux(ctx, server.Options{Config: cfg, Sessions: surfaces, Hub: updates, Logger: slog.Default()})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		updates.Run(gctx)
		return nil
	})
	for _, s := range sessions {
		g.Go(func() error { return s.Run(gctx) })
	}
	g.Go(func() error { return server.Start(gctx, cfg.HTTPAddr, mux) })
	return g.Wait()
}

// startPprof enables profiling endpoints in debug mode (ENABLE_PPROF=1).
func startPprof() {
	if os.Getenv("ENABLE_PPROF") != "1" {
		return
	}
	pprofAddr := os.Getenv("PPROF_ADDR")
	if pprofAddr == "" {
		pprofAddr = "localhost:6060"
	}
	go func() {
		slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
		// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
		srv := &http.Server{
			Addr:              pprofAddr,
			Handler:           nil, // default mux exposes /debug/pprof
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("pprof server error", slog.Any("err", err))
		}
	}()
}
