package ogsync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets the OGS_ variables for the duration of the test.
func clearEnv(t *testing.T) {
	for _, name := range []string{
		"OGS_BETA", "OGS_BASE_URL", "OGS_REALTIME_URL",
		"OGS_CONNECT_TIMEOUT", "OGS_SETTLE_DELAY", "OGS_REQUEST_TIMEOUT",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("OGS_BETA", "true")
	t.Setenv("OGS_SETTLE_DELAY", "250ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BetaConfig().RealtimeURL, cfg.RealtimeURL)
	assert.Equal(t, "https://beta.online-go.com", cfg.BaseURL)
	assert.Equal(t, 250*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"OGS_BASE_URL=http://localhost:8080\n"+
			"OGS_CONNECT_TIMEOUT=5s\n"), 0600))

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, DefaultConfig().RealtimeURL, cfg.RealtimeURL)
}

func TestLoadConfig_Errors(t *testing.T) {
	for name, env := range map[string][2]string{
		"bad bool":     {"OGS_BETA", "maybe"},
		"bad duration": {"OGS_REQUEST_TIMEOUT", "soon"},
	} {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(env[0], env[1])
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), env[0])
		})
	}

	t.Run("missing env file", func(t *testing.T) {
		clearEnv(t)
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
		require.Error(t, err)
	})
}
