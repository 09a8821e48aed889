package config_test

import (
	"testing"
	"time"

	"fieldjob-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")
	t.Setenv("SUPABASE_JWT_SECRET", "jwt-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "job-media", cfg.SupabaseStorageBucket)
	assert.Equal(t, 5*time.Second, cfg.GeoTimeout)
	assert.Equal(t, int64(64), cfg.MaxUploadMB)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdleTTL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("GEO_TIMEOUT", "2s")
	t.Setenv("MAX_UPLOAD_MB", "10")
	t.Setenv("SUPABASE_STORAGE_BUCKET", "evidence")
	t.Setenv("SESSION_IDLE_TTL", "5m")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.SessionIdleTTL)
	assert.Equal(t, 2*time.Second, cfg.GeoTimeout)
	assert.Equal(t, int64(10), cfg.MaxUploadMB)
	assert.Equal(t, "evidence", cfg.SupabaseStorageBucket)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	setRequired(t)
	t.Setenv("GEO_TIMEOUT", "soon")
	t.Setenv("MAX_UPLOAD_MB", "lots")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.GeoTimeout)
	assert.Equal(t, int64(64), cfg.MaxUploadMB)
}

func TestLoad_MissingSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("SUPABASE_JWT_SECRET", "")

	_, err := config.Load()
	assert.ErrorContains(t, err, "SUPABASE_JWT_SECRET")
}

func TestLoadTooling(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_SERVICE_KEY", "")
	t.Setenv("DATABASE_URL", "")
	_, err := config.LoadTooling()
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/fieldjob")
	cfg, err := config.LoadTooling()
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/fieldjob", cfg.DatabaseURL)
}
