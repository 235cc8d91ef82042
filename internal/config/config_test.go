package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("HTTP_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 20*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Hour, cfg.IngestionInterval)
	assert.Equal(t, 5*time.Minute, cfg.RetryBackoff)
	assert.Equal(t, 3*time.Second, cfg.LocationDelay)
	assert.Equal(t, 5*time.Minute, cfg.HealthSnapshotTTL)
	assert.NotEmpty(t, cfg.UserAgent)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("INGESTION_INTERVAL", "30m")
	t.Setenv("INGESTION_LOCATION_DELAY", "500ms")
	t.Setenv("STORMGLASS_API_KEY", "sg-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.IngestionInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.LocationDelay)
	assert.Equal(t, "sg-key", cfg.StormGlassAPIKey)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "twenty seconds")

	_, err := Load()
	assert.Error(t, err)
}
