package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/learning?sslmode=disable")
	t.Setenv("CERTIFICATES_BASE_URL", "https://certs.example.test")
}

func TestFromEnv_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "learning-engine", cfg.App.Name)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, time.UTC, cfg.App.Location)
	assert.Equal(t, 25, cfg.Database.MaxConns)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 5, cfg.Engine.RetryAttempts)
	assert.Equal(t, "@every 5m", cfg.Scheduler.CertificateRetrySpec)
	assert.Equal(t, 8081, cfg.Observability.HealthPort)
	assert.True(t, cfg.Features.IsEnabled(FeatureCatalogCache))
}

func TestFromEnv_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_TIMEZONE", "Asia/Almaty")
	t.Setenv("ENGINE_RETRY_ATTEMPTS", "9")
	t.Setenv("CERTIFICATES_ISSUE_TIMEOUT", "45s")
	t.Setenv("SCHEDULER_STALE_ATTEMPTS", "*/2 * * * *")
	t.Setenv("REDIS_DISABLED", "true")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("FEATURE_EVENTS_REDIS_FANOUT", "false")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "Asia/Almaty", cfg.App.Location.String())
	assert.Equal(t, 9, cfg.Engine.RetryAttempts)
	assert.Equal(t, 45*time.Second, cfg.Certificates.IssueTimeout)
	assert.Equal(t, "*/2 * * * *", cfg.Scheduler.StaleAttemptsSpec)
	assert.True(t, cfg.Redis.Disabled)
	assert.Equal(t, "console", cfg.Observability.LogFormat)
	assert.False(t, cfg.Features.IsEnabled(FeatureRedisFanout))
}

func TestFromEnv_DatabaseURLFromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CERTIFICATES_BASE_URL", "https://certs.example.test")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "engine")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "learning")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "postgres://engine:secret@db:5432/learning?sslmode=disable", cfg.Database.URL)
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_MAX_CONNS", "many")
	t.Setenv("ENGINE_RETRY_DELAY", "soon")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Database.MaxConns)
	assert.Equal(t, 5*time.Millisecond, cfg.Engine.RetryDelay)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("CERTIFICATES_BASE_URL", "")
	t.Setenv("DB_MIN_CONNS", "50")
	t.Setenv("ENGINE_RETRY_ATTEMPTS", "0")
	t.Setenv("LOG_FORMAT", "xml")
	t.Setenv("HEALTH_PORT", "70000")

	_, err := FromEnv()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"DATABASE_URL",
		"CERTIFICATES_BASE_URL",
		"ENGINE_RETRY_ATTEMPTS",
		"DB_MIN_CONNS",
		"LOG_FORMAT",
		"HEALTH_PORT",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestFeatureFlags(t *testing.T) {
	t.Setenv("FEATURE_JOBS_STALE_ATTEMPTS", "0")
	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureStaleAttempts))
	assert.False(t, ff.IsEnabled("no.such.feature"))

	require.NoError(t, ff.DisableFeature(FeatureCatalogCache))
	assert.False(t, ff.IsEnabled(FeatureCatalogCache))
	require.NoError(t, ff.EnableFeature(FeatureStaleAttempts))
	assert.True(t, ff.IsEnabled(FeatureStaleAttempts))
	assert.ErrorIs(t, ff.EnableFeature("no.such.feature"), ErrFeatureNotFound)

	assert.Equal(t, []string{
		FeatureAsyncEvents,
		FeatureRedisFanout,
		FeatureCertificateRetry,
		FeatureStaleAttempts,
	}, ff.Enabled())
}

func TestFeatureNameToEnvKey(t *testing.T) {
	assert.Equal(t, "FEATURE_CACHE_CATALOG", featureNameToEnvKey(FeatureCatalogCache))
}
