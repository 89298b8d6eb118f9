package cmd

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	assert.NotNil(t, rootCmd)
	assert.Equal(t, "barscan", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommandHelp(t *testing.T) {
	out, _, err := runCLI(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "finds the dominant barcode")
	assert.Contains(t, out, "Available Commands:")
	assert.Contains(t, out, "Usage:")
}

func TestRootCommandWithoutArgsShowsHelp(t *testing.T) {
	out, _, err := runCLI(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Available Commands:")
}

func TestRootCommandVersion(t *testing.T) {
	out, _, err := runCLI(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "barscan dev")
	assert.Contains(t, out, "commit:")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "barscan dev")

	_, _, err = runCLI(t, "version", "extra")
	assert.Error(t, err)
}

func TestRootCommandSubcommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, expected := range []string{"image", "batch", "pdf", "serve", "bot", "benchmark", "config", "version"} {
		assert.Contains(t, names, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	_, _, err := runCLI(t, "--no-such-flag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		verbose bool
		level   string
		want    slog.Level
	}{
		{false, "debug", slog.LevelDebug},
		{false, "info", slog.LevelInfo},
		{false, "warn", slog.LevelWarn},
		{false, "error", slog.LevelError},
		{false, "bogus", slog.LevelInfo},
		{true, "error", slog.LevelDebug},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, logLevel(tt.verbose, tt.level))
		})
	}
}

func TestResetFlags(t *testing.T) {
	require.NoError(t, imageCmd.Flags().Set("format", "json"))
	require.NoError(t, imageCmd.Flags().Set("formats", "qr,ean13"))

	ResetFlags(rootCmd)

	f := imageCmd.Flags().Lookup("format")
	assert.False(t, f.Changed)
	assert.Equal(t, "text", f.Value.String())
	formats, err := imageCmd.Flags().GetStringSlice("formats")
	require.NoError(t, err)
	assert.Empty(t, formats)
}
