package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadParsesTOMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "caesar.toml")
	content := "app_host = \"192.168.1.1\"\napp_port = \"9999\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", cfg.AppHost)
	assert.Equal(t, "9999", cfg.AppPort)
	assert.Equal(t, Default().AppOrigin, cfg.AppOrigin)
}

func TestApplyEnvOverridesNonEmptyOnly(t *testing.T) {
	cfg := Default()
	t.Setenv("APP_PORT", "1234")

	cfg.ApplyEnv()
	assert.Equal(t, "1234", cfg.AppPort)
	assert.Equal(t, Default().AppHost, cfg.AppHost)
}
