package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/rectify"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Pipeline.Detector.BlurKernel)
	assert.Equal(t, 11, cfg.Pipeline.Detector.AdaptiveBlockSize)
	assert.InDelta(t, 2.0, cfg.Pipeline.Detector.AdaptiveOffset, 1e-9)
	assert.Equal(t, 9, cfg.Pipeline.Detector.MorphKernel)
	assert.InDelta(t, 1000.0, cfg.Pipeline.Detector.MinArea, 1e-9)
	assert.Equal(t, "cubic", cfg.Pipeline.Rectify.Interpolation)
	assert.Equal(t, "replicate", cfg.Pipeline.Rectify.BorderMode)
	assert.Equal(t, "zxing", cfg.Pipeline.Decoder.Name)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Positive(t, cfg.Batch.Workers)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"output format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"even blur kernel", func(c *Config) { c.Pipeline.Detector.BlurKernel = 4 }, "pipeline.detector"},
		{"small block", func(c *Config) { c.Pipeline.Detector.AdaptiveBlockSize = 1 }, "pipeline.detector"},
		{"interpolation", func(c *Config) { c.Pipeline.Rectify.Interpolation = "lanczos" }, "pipeline.rectify"},
		{"border", func(c *Config) { c.Pipeline.Rectify.BorderMode = "wrap" }, "pipeline.rectify"},
		{"padding", func(c *Config) { c.Pipeline.Rectify.Padding = -1 }, "pipeline.rectify"},
		{"decoder", func(c *Config) { c.Pipeline.Decoder.Name = "magic" }, "pipeline.decoder"},
		{"formats", func(c *Config) { c.Pipeline.Decoder.Formats = []string{"nope"} }, "pipeline.decoder.formats"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "invalid max upload size"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "invalid timeout"},
		{"rate limit", func(c *Config) {
			c.Server.RateLimitEnabled = true
			c.Server.RequestsPerHour = -1
		}, "invalid rate limit"},
		{"workers", func(c *Config) { c.Batch.Workers = 0 }, "invalid batch workers"},
		{"telegram", func(c *Config) { c.Telegram.TimeoutSec = -1 }, "invalid telegram timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_EmptyOutputFormatAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Format = ""
	assert.NoError(t, cfg.Validate())
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Detector.BlurKernel = 7
	cfg.Pipeline.Detector.MinArea = 500
	cfg.Pipeline.Rectify.Interpolation = "Linear"
	cfg.Pipeline.Rectify.BorderMode = "constant"
	cfg.Pipeline.Rectify.Padding = 4
	cfg.Pipeline.Decoder.Formats = []string{"qr_code", "code_128"}
	cfg.Pipeline.Decoder.PureBarcode = true
	cfg.Pipeline.StagesDir = "/tmp/stages"
	cfg.Batch.Workers = 3
	cfg.Batch.FailFast = true

	pc := cfg.ToPipelineConfig()
	assert.Equal(t, 7, pc.Detector.BlurKernel)
	assert.Equal(t, 7, pc.Rectify.BlurKernel)
	assert.InDelta(t, 500.0, pc.Detector.MinArea, 1e-9)
	assert.Equal(t, rectify.InterpolationLinear, pc.Rectify.Interpolation)
	assert.Equal(t, rectify.BorderConstant, pc.Rectify.BorderMode)
	assert.Equal(t, 4, pc.Rectify.Padding)
	assert.Equal(t, []barcode.Format{barcode.FormatQR, barcode.FormatCode128}, pc.Barcode.Formats)
	assert.True(t, pc.Barcode.TryHarder)
	assert.True(t, pc.Barcode.PureBarcode)
	assert.Equal(t, "zxing", pc.DecoderName)
	assert.Equal(t, "/tmp/stages", pc.StagesDir)
	assert.Equal(t, 3, pc.Parallel.MaxWorkers)
	assert.True(t, pc.Parallel.FailFast)
	require.NoError(t, pc.Rectify.Validate())
	require.NoError(t, pc.Detector.Validate())
}
