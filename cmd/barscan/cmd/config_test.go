package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "barscan.yaml")

	out, _, err := runCLI(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, config.DefaultConfig().Pipeline, cfg.Pipeline)

	_, _, err = runCLI(t, "config", "init", path)
	require.Error(t, err, "existing files are never overwritten")
}

func TestConfigShowCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path,
		[]byte("server:\n  port: 9090\ntelegram:\n  token: secret-token\n"), 0o600))

	out, _, err := runCLI(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# loaded from "+path)
	assert.Contains(t, out, "port: 9090")
	assert.NotContains(t, out, "secret-token")
}

func TestConfigShowEnvironmentOverride(t *testing.T) {
	t.Setenv("BARSCAN_PIPELINE_DETECTOR_MIN_AREA", "2500")

	out, _, err := runCLI(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "min_area: 2500")
}

func TestConfigShowInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: loud\n"), 0o600))

	_, _, err := runCLI(t, "--config", path, "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestConfigPathsCommand(t *testing.T) {
	out, _, err := runCLI(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, out, "/etc/barscan")
}
