package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/fundraiser/internal/auth"
	"github.com/charlesng35/fundraiser/internal/auth/providers"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "fundraiser-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, "fundraiser-web", cfg.Auth.JWT.Audience)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 14, cfg.Auth.Refresh.TokenDays)
	require.True(t, cfg.Auth.Local.AutoConfirm)

	require.Equal(t, 2*time.Hour, cfg.Sessions.IdleTimeout)
	require.Equal(t, "@every 5m", cfg.Sessions.SweepSchedule)

	require.False(t, cfg.Geo.Enabled)
	require.Equal(t, "http://geo.internal/json", cfg.Geo.Endpoint)
	require.Equal(t, 500*time.Millisecond, cfg.Geo.Timeout)
	require.EqualValues(t, 3, cfg.Geo.BreakerFailures)

	require.Equal(t, []string{"ops@example.com", "security@example.com"}, cfg.Notifications.Recipients())
	require.Equal(t, 16, cfg.Notifications.QueueSize)
	require.Equal(t, 2, cfg.Notifications.Workers)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}

func TestLoadConfigDefaultsAndEnvOverrides(t *testing.T) {
	t.Setenv("FUNDRAISER_SERVER_PORT", "7000")
	t.Setenv("FUNDRAISER_SESSIONS_IDLE_TIMEOUT", "45m")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 7000, cfg.Server.Port)
	require.Equal(t, 45*time.Minute, cfg.Sessions.IdleTimeout)
	require.True(t, cfg.Sessions.EnforceActive)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/fundraiser.sqlite", cfg.Database.Path)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 7, cfg.Auth.Refresh.TokenDays)
	require.True(t, cfg.Geo.Enabled)
	require.Equal(t, 64, cfg.Notifications.QueueSize)
	require.Empty(t, cfg.Notifications.Recipients())
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := AuthConfig{
		JWT: JWTSettings{
			Secret:   "secret",
			Issuer:   "issuer",
			Audience: "audience",
			TTL:      30 * time.Minute,
		},
		Refresh: RefreshSettings{TokenDays: 3},
		Local:   LocalAuthSettings{AutoConfirm: true},
	}

	require.Equal(t, auth.JWTConfig{
		Secret:           "secret",
		Issuer:           "issuer",
		Audience:         "audience",
		AccessTokenTTL:   30 * time.Minute,
		RefreshTokenDays: 3,
	}, cfg.JWTServiceConfig())
	require.Equal(t, 72*time.Hour, cfg.RefreshTokenLifetime())
	require.Equal(t, providers.LocalConfig{AutoConfirm: true}, cfg.LocalProviderConfig())
}

func TestAuthConfigAdaptersFallback(t *testing.T) {
	var cfg AuthConfig

	jwtCfg := cfg.JWTServiceConfig()
	require.Equal(t, auth.DefaultAccessTokenTTL, jwtCfg.AccessTokenTTL)
	require.Equal(t, auth.DefaultRefreshTokenDays, jwtCfg.RefreshTokenDays)
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTokenLifetime())
}

func TestComponentConfigAdapters(t *testing.T) {
	email := EmailConfig{
		SMTP: SMTPConfig{
			Enabled:  true,
			Host:     "smtp.example.com",
			Port:     2525,
			Username: "user",
			Password: "pass",
			From:     "no-reply@example.com",
			UseTLS:   true,
			Timeout:  10 * time.Second,
		},
	}
	settings := email.SMTPSettings()
	require.True(t, settings.Enabled)
	require.Equal(t, "smtp.example.com", settings.Host)
	require.Equal(t, "no-reply@example.com", settings.From)
	require.Equal(t, 10*time.Second, settings.Timeout)

	queue := NotificationsConfig{QueueSize: 8, Workers: 3}.QueueConfig()
	require.Equal(t, 8, queue.Size)
	require.Equal(t, 3, queue.Workers)

	geoCfg := GeoConfig{Endpoint: "http://geo", Timeout: time.Second, BreakerFailures: 2, BreakerTimeout: time.Minute}.ClientConfig()
	require.Equal(t, "http://geo", geoCfg.Endpoint)
	require.Equal(t, time.Second, geoCfg.Timeout)
	require.EqualValues(t, 2, geoCfg.BreakerFailures)
	require.Equal(t, time.Minute, geoCfg.BreakerTimeout)
}
