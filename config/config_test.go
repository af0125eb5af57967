package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WS_HOST", "bot.example.com/clrsocket")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"overlay"}, cfg.Surfaces)
	require.Equal(t, ReconnectFixed, cfg.ReconnectMode)
	require.Equal(t, 2500*time.Millisecond, cfg.ReconnectDelay)
	require.Equal(t, 30*time.Second, cfg.ReconnectMaxDelay)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.True(t, cfg.RateLimitEnabled)
	require.Equal(t, "overlay-relay", cfg.ServiceName)
	require.Equal(t, "wss://bot.example.com/clrsocket", cfg.UpstreamURL())
}

func TestLoadRequiresHost(t *testing.T) {
	t.Setenv("WS_HOST", "")
	_, err := Load()
	require.Error(t, err)
}

func TestSurfacesNormalized(t *testing.T) {
	t.Setenv("WS_HOST", "ws://localhost:2345")
	t.Setenv("SURFACES", " Overlay, songrequest,,player ,overlay")
	t.Setenv("WS_AUTH_TOKEN", "tok")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"overlay", "songrequest", "player"}, cfg.Surfaces)
	require.Equal(t, "ws://localhost:2345", cfg.UpstreamURL())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown surface", env: map[string]string{"SURFACES": "donations"}},
		{name: "unknown reconnect mode", env: map[string]string{"RECONNECT_MODE": "linear"}},
		{name: "zero delay", env: map[string]string{"RECONNECT_DELAY": "0s"}},
		{name: "cap below delay", env: map[string]string{"RECONNECT_MODE": "exponential", "RECONNECT_DELAY": "10s", "RECONNECT_MAX_DELAY": "5s"}},
		{name: "bad duration", env: map[string]string{"RECONNECT_DELAY": "soon"}},
		{name: "songrequest without token", env: map[string]string{"SURFACES": "overlay,songrequest", "WS_AUTH_TOKEN": "", "WS_AUTH_TOKEN_FILE": ""}},
		{name: "player without token", env: map[string]string{"SURFACES": "player", "WS_AUTH_TOKEN": "", "WS_AUTH_TOKEN_FILE": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WS_HOST", "localhost")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestAuthTokenRequiredOnlyForAuthenticatingSurfaces(t *testing.T) {
	t.Setenv("WS_HOST", "localhost")
	t.Setenv("SURFACES", "overlay")
	_, err := Load()
	require.NoError(t, err, "the overlay runs without a token")

	t.Setenv("SURFACES", "player")
	t.Setenv("WS_AUTH_TOKEN_FILE", "/run/secrets/ws_token")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/run/secrets/ws_token", cfg.AuthTokenFile)
}

func TestExponentialMode(t *testing.T) {
	t.Setenv("WS_HOST", "localhost")
	t.Setenv("RECONNECT_MODE", "Exponential")
	t.Setenv("RECONNECT_DELAY", "1s")
	t.Setenv("RECONNECT_MAX_DELAY", "1m")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ReconnectExponential, cfg.ReconnectMode)
	require.Equal(t, time.Minute, cfg.ReconnectMaxDelay)
}

func TestAdminAuthEnabled(t *testing.T) {
	require.False(t, (&Config{}).AdminAuthEnabled())
	require.False(t, (&Config{AdminUsername: "admin"}).AdminAuthEnabled())
	require.True(t, (&Config{AdminUsername: "admin", AdminPassword: "pw"}).AdminAuthEnabled())
	require.True(t, (&Config{AdminToken: "t"}).AdminAuthEnabled())
}

func TestCORSIsPermissive(t *testing.T) {
	yes, no := true, false
	require.True(t, (&Config{}).CORSIsPermissive())
	require.True(t, (&Config{Env: "development"}).CORSIsPermissive())
	require.False(t, (&Config{Env: "production"}).CORSIsPermissive())
	require.True(t, (&Config{Env: "production", CORSPermissive: &yes}).CORSIsPermissive())
	require.False(t, (&Config{CORSPermissive: &no}).CORSIsPermissive())
}

func TestCORSOriginsTrimmed(t *testing.T) {
	t.Setenv("WS_HOST", "localhost")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}
