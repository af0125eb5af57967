// Package config loads environment variables into the typed Config used across the service.
// Defaults let the binary run locally with only WS_HOST set.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/samber/lo"

	"github.com/onnwee/overlay-relay/envelope"
)

// Reconnect modes.
const (
	ReconnectFixed       = "fixed"
	ReconnectExponential = "exponential"
)

type Config struct {
	// Upstream
	WSHost    string   `env:"WS_HOST,required,notEmpty"`
	AuthToken string   `env:"WS_AUTH_TOKEN"`
	Surfaces  []string `env:"SURFACES" envSeparator:"," envDefault:"overlay"`

	// AuthTokenFile, when set, is re-read every AuthTokenRefresh and wins over AuthToken.
	AuthTokenFile    string        `env:"WS_AUTH_TOKEN_FILE"`
	AuthTokenRefresh time.Duration `env:"WS_AUTH_TOKEN_REFRESH" envDefault:"5m"`

	// Reconnect policy
	ReconnectMode     string        `env:"RECONNECT_MODE" envDefault:"fixed"`
	ReconnectDelay    time.Duration `env:"RECONNECT_DELAY" envDefault:"2500ms"`
	ReconnectMaxDelay time.Duration `env:"RECONNECT_MAX_DELAY" envDefault:"30s"`

	// HTTP
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	Env      string `env:"ENV"`

	// Admin auth for the command endpoint
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	AdminToken    string `env:"ADMIN_TOKEN"`

	// Rate limiting for the command endpoint
	RateLimitEnabled  bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRequests int  `env:"RATE_LIMIT_REQUESTS_PER_IP" envDefault:"60"`
	RateLimitWindow   int  `env:"RATE_LIMIT_WINDOW_SECONDS" envDefault:"60"`

	// CORS
	CORSPermissive     *bool    `env:"CORS_PERMISSIVE"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Telemetry
	ServiceName  string `env:"SERVICE_NAME" envDefault:"overlay-relay"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads environment variables, applies defaults and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Surfaces = lo.Uniq(lo.FilterMap(cfg.Surfaces, func(s string, _ int) (string, bool) {
		s = strings.ToLower(strings.TrimSpace(s))
		return s, s != ""
	}))
	cfg.CORSAllowedOrigins = lo.Compact(lo.Map(cfg.CORSAllowedOrigins, func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
	cfg.ReconnectMode = strings.ToLower(cfg.ReconnectMode)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Surfaces) == 0 {
		errs = append(errs, errors.New("SURFACES must name at least one surface"))
	}
	for _, s := range c.Surfaces {
		if !lo.Contains(envelope.Surfaces, s) {
			errs = append(errs, fmt.Errorf("SURFACES: unknown surface %q (want one of %s)", s, strings.Join(envelope.Surfaces, ", ")))
		}
	}
	if c.AuthToken == "" && c.AuthTokenFile == "" {
		for _, s := range c.Surfaces {
			if _, ok := envelope.AuthEvent(s); ok {
				errs = append(errs, fmt.Errorf("SURFACES: %s authenticates on open, set WS_AUTH_TOKEN or WS_AUTH_TOKEN_FILE", s))
			}
		}
	}
	if c.ReconnectMode != ReconnectFixed && c.ReconnectMode != ReconnectExponential {
		errs = append(errs, fmt.Errorf("RECONNECT_MODE: %q is not fixed or exponential", c.ReconnectMode))
	}
	if c.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("RECONNECT_DELAY must be positive"))
	}
	if c.ReconnectMode == ReconnectExponential && c.ReconnectMaxDelay < c.ReconnectDelay {
		errs = append(errs, errors.New("RECONNECT_MAX_DELAY must not be below RECONNECT_DELAY"))
	}
	return errors.Join(errs...)
}

// UpstreamURL returns the bot's socket endpoint. WS_HOST may be a bare
// host[:port][/path] (wss is assumed) or a full ws:// or wss:// URL.
func (c *Config) UpstreamURL() string {
	host := strings.TrimSuffix(c.WSHost, "/")
	if strings.HasPrefix(host, "ws://") || strings.HasPrefix(host, "wss://") {
		return host
	}
	return "wss://" + host
}

// AdminAuthEnabled reports whether the command endpoint requires credentials.
func (c *Config) AdminAuthEnabled() bool {
	return (c.AdminUsername != "" && c.AdminPassword != "") || c.AdminToken != ""
}

// CORSIsPermissive reports whether every origin is allowed. It defaults to
// true outside production unless CORS_PERMISSIVE says otherwise.
func (c *Config) CORSIsPermissive() bool {
	if c.CORSPermissive != nil {
		return *c.CORSPermissive
	}
	mode := strings.ToLower(c.Env)
	return mode == "" || mode == "dev" || mode == "development"
}
