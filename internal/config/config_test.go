package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", " key ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "key", cfg.GeminiAPIKey)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.PreferIPv4)
	assert.Equal(t, 4, cfg.MaxConcurrent)
	assert.Equal(t, "gemini-3-flash-preview", cfg.AnalysisModel)
	assert.Equal(t, "gemini-2.5-flash-image", cfg.ImageModel)
	assert.Equal(t, "3:4", cfg.AspectRatio)
	assert.False(t, cfg.ParallelVariations)
	assert.Equal(t, 500*time.Millisecond, cfg.DownloadInterval())
	assert.Equal(t, 180*time.Second, cfg.HTTPTimeout())
	assert.Equal(t, ":8080", cfg.WebAddr)
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	require.EqualError(t, err, "GEMINI_API_KEY is required")
}

func TestLoadClampsInvalidValues(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("MAX_CONCURRENT", "0")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "-5")
	t.Setenv("LOG_LEVEL", " DEBUG ")
	t.Setenv("PARALLEL_VARIATIONS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.MaxConcurrent)
	assert.Equal(t, 300*time.Second, cfg.RequestTimeout())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.ParallelVariations)
}

func TestRequireTelegram(t *testing.T) {
	assert.Error(t, Config{}.RequireTelegram())
	assert.NoError(t, Config{TelegramToken: "t"}.RequireTelegram())
}
