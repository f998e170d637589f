package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("VISION_API_URL", "https://vision.test/v1/extract")
	t.Setenv("VISION_API_KEY", "vk_test")
}

// TestLoad_Defaults verifies that default values are used when env vars are missing.
func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("APP_ENV")
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("SERVER_PORT")
	setRequiredEnv(t)

	cfg, err := Load(".")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "data/evidence.db", cfg.Evidence.DBPath)
	assert.Equal(t, 3, cfg.Sync.MaxAttempts)
	assert.Equal(t, 4, cfg.Sync.BatchConcurrency)
}

// TestLoad_EnvVars verifies that environment variables override defaults.
func TestLoad_EnvVars(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SYNC_MAX_ATTEMPTS", "5")
	t.Setenv("CAPTURE_TIMEOUT_SECONDS", "30")

	cfg, err := Load(".")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 5, cfg.Sync.MaxAttempts)
	assert.Equal(t, 30, cfg.Capture.TimeoutSeconds)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

// TestLoad_MissingRequired verifies that missing required values fail the load.
func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("VISION_API_URL", "https://vision.test/v1/extract")
	t.Setenv("VISION_API_KEY", "")

	cfg, err := Load(".")
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VISION_API_KEY")
}

// TestLeaseTTL_DerivedFromBudget verifies the 3x attempt budget default.
func TestLeaseTTL_DerivedFromBudget(t *testing.T) {
	cfg := &AppConfig{
		Capture: CaptureConfig{TimeoutSeconds: 60},
		Vision:  VisionConfig{TimeoutSeconds: 45},
	}

	budget := cfg.AttemptBudget()
	assert.Equal(t, 2*time.Minute, budget)
	assert.Equal(t, 6*time.Minute, cfg.LeaseTTL())
}

// TestLeaseTTL_Override verifies an explicit TTL wins over the derived one.
func TestLeaseTTL_Override(t *testing.T) {
	cfg := &AppConfig{
		Capture: CaptureConfig{TimeoutSeconds: 60},
		Vision:  VisionConfig{TimeoutSeconds: 45},
		Sync:    SyncConfig{LeaseTTLSeconds: 90},
	}

	assert.Equal(t, 90*time.Second, cfg.LeaseTTL())
}
