package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("should_load_defaults_in_dev_without_api_key", func(t *testing.T) {
		t.Setenv("APP_ENV", "dev")
		t.Setenv("TICKETMASTER_API_KEY", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.HTTPAddr)
		assert.Equal(t, DefaultTicketmasterBaseURL, cfg.TicketmasterBaseURL)
		assert.Equal(t, 2, cfg.RetryMax)
		assert.Equal(t, 500*time.Millisecond, cfg.RetryInitialDelay)
		assert.Empty(t, cfg.RedisURL)
		assert.True(t, cfg.RLEnabled)
		assert.True(t, cfg.ZipLookupEnabled)
		assert.Equal(t, DefaultZipLookupURL, cfg.ZipLookupURL)
		assert.Equal(t, 2*time.Second, cfg.ZipLookupTimeout)
	})

	t.Run("should_allow_disabling_zip_lookup", func(t *testing.T) {
		t.Setenv("APP_ENV", "dev")
		t.Setenv("ZIP_LOOKUP_ENABLED", "false")
		t.Setenv("ZIP_LOOKUP_URL", "http://zips.local/")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.ZipLookupEnabled)
		assert.Equal(t, "http://zips.local", cfg.ZipLookupURL)
	})

	t.Run("should_fail_in_prod_if_api_key_is_missing", func(t *testing.T) {
		t.Setenv("APP_ENV", "prod")
		t.Setenv("TICKETMASTER_API_KEY", "")

		cfg, err := Load()
		assert.Nil(t, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "missing TICKETMASTER_API_KEY")
	})

	t.Run("should_trim_trailing_slash_from_base_url", func(t *testing.T) {
		t.Setenv("APP_ENV", "prod")
		t.Setenv("TICKETMASTER_API_KEY", "k")
		t.Setenv("TICKETMASTER_BASE_URL", "http://upstream.local/")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "http://upstream.local", cfg.TicketmasterBaseURL)
		assert.Equal(t, "k", cfg.TicketmasterAPIKey)
	})

	t.Run("should_reject_negative_retry_budget", func(t *testing.T) {
		t.Setenv("APP_ENV", "dev")
		t.Setenv("RETRY_MAX", "-1")

		cfg, err := Load()
		assert.Nil(t, cfg)
		assert.Error(t, err)
	})

	t.Run("should_read_values_from_env_file", func(t *testing.T) {
		t.Setenv("APP_ENV", "dev")
		// godotenv never overrides variables that are already set, so clear it first
		t.Setenv("CACHE_TTL", "")
		os.Unsetenv("CACHE_TTL")

		path := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(path, []byte("CACHE_TTL=2m\n"), 0o600))
		t.Cleanup(func() { os.Unsetenv("CACHE_TTL") })

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	})
}

func TestGetEnv(t *testing.T) {
	t.Run("should_trim_whitespace", func(t *testing.T) {
		t.Setenv("TEST_KEY", "  value_with_spaces  ")

		result := getEnv("TEST_KEY", "default")
		assert.Equal(t, "value_with_spaces", result)
	})
}

func TestGetDuration(t *testing.T) {
	t.Run("should_parse_valid_duration", func(t *testing.T) {
		t.Setenv("TEST_DUR", "5s")
		assert.Equal(t, 5*time.Second, getDuration("TEST_DUR", 10*time.Second))
	})

	t.Run("should_fall_back_on_garbage", func(t *testing.T) {
		t.Setenv("TEST_DUR", "soon")
		assert.Equal(t, 10*time.Second, getDuration("TEST_DUR", 10*time.Second))
	})
}

func TestGetFloatEnv(t *testing.T) {
	t.Setenv("TEST_RATIO", "0.25")
	assert.Equal(t, 0.25, getFloatEnv("TEST_RATIO", 1))

	t.Setenv("TEST_RATIO", "most")
	assert.Equal(t, 1.0, getFloatEnv("TEST_RATIO", 1))
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("TEST_INT", "x")
	assert.Equal(t, 7, getIntEnv("TEST_INT", 7))
}
