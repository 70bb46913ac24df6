package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]string{"--env-file", "does-not-exist.env"})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 720*time.Hour, cfg.Auth.AccessTokenDuration)
	assert.Equal(t, "https://api.vapi.ai", cfg.Voice.ProviderURL)
	assert.Equal(t, "https://openlibrary.org", cfg.OpenLibrary.BaseURL)
	assert.NotEmpty(t, cfg.Storage.DataPath)
	assert.True(t, filepath.IsAbs(cfg.Storage.DataPath))
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load([]string{
		"--env-file", "does-not-exist.env",
		"--port", "7070",
	})
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port, "flag should win over env var")
	assert.Equal(t, "error", cfg.Logger.Level, "env var should win over default")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# comment line\nSERVER_PORT=6060\nVOICE_PROVIDER_KEY=\"secret-key\"\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	// loadEnvFile writes into the process env, so scrub afterwards.
	t.Setenv("SERVER_PORT", "")
	t.Setenv("VOICE_PROVIDER_KEY", "")
	os.Unsetenv("SERVER_PORT")
	os.Unsetenv("VOICE_PROVIDER_KEY")

	cfg, err := Load([]string{"--env-file", envPath})
	require.NoError(t, err)

	assert.Equal(t, "6060", cfg.Server.Port)
	assert.Equal(t, "secret-key", cfg.Voice.ProviderKey, "quotes should be stripped")
}

func TestLoadInvalidEnvironment(t *testing.T) {
	_, err := Load([]string{"--env-file", "does-not-exist.env", "--env", "qa"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid environment")
}

func TestLoadInvalidDuration(t *testing.T) {
	_, err := Load([]string{"--env-file", "does-not-exist.env", "--access-token-duration", "soon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access token duration")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/books/data", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "books", "data"), got)

	got, err = expandPath("", "/fallback")
	require.NoError(t, err)
	assert.Equal(t, "/fallback", got)

	got, err = expandPath("/already/abs", "")
	require.NoError(t, err)
	assert.Equal(t, "/already/abs", got)
}
