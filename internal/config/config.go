package config

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/MeKo-Tech/barscan/internal/barcode"
	"github.com/MeKo-Tech/barscan/internal/detector"
	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/rectify"
)

// DefaultConfig returns a configuration with the reference stage parameters.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	rect := rectify.DefaultConfig()
	return Config{
		LogLevel: "info",
		Pipeline: PipelineConfig{
			Detector: DetectorConfig{
				BlurKernel:         det.BlurKernel,
				BlurSigma:          det.BlurSigma,
				AdaptiveBlockSize:  det.AdaptiveBlockSize,
				AdaptiveOffset:     det.AdaptiveOffset,
				MorphKernel:        det.MorphKernel,
				MorphIterations:    det.MorphIterations,
				MinArea:            det.MinArea,
				ApproxEpsilonRatio: det.ApproxEpsilonRatio,
			},
			Rectify: RectifyConfig{
				Interpolation: string(rect.Interpolation),
				BorderMode:    string(rect.BorderMode),
				Padding:       rect.Padding,
			},
			Decoder: DecoderConfig{
				Name:      "zxing",
				Formats:   []string{},
				TryHarder: true,
			},
		},
		Output: OutputConfig{
			Format: pipeline.FormatText,
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8080,
			CORSOrigin:        "*",
			MaxUploadMB:       20,
			TimeoutSec:        30,
			ShutdownTimeout:   10,
			OverlayEnabled:    false,
			RateLimitEnabled:  false,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
			MaxRequestsPerDay: 5000,
			MaxDataPerDay:     100 * 1024 * 1024,
		},
		Batch: BatchConfig{
			Workers: runtime.NumCPU(),
		},
		Telegram: TelegramConfig{
			TimeoutSec:   60,
			AllowedUsers: []int64{},
		},
	}
}

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validFormats   = []string{pipeline.FormatText, pipeline.FormatJSON, pipeline.FormatCSV, pipeline.FormatYAML}
)

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if err := c.toDetectorConfig().Validate(); err != nil {
		return fmt.Errorf("pipeline.detector: %w", err)
	}
	if err := c.toRectifyConfig().Validate(); err != nil {
		return fmt.Errorf("pipeline.rectify: %w", err)
	}
	if _, err := barcode.NewDecoder(c.Pipeline.Decoder.Name); err != nil {
		return fmt.Errorf("pipeline.decoder: %w", err)
	}
	if _, err := barcode.ParseFormats(c.Pipeline.Decoder.Formats); err != nil {
		return fmt.Errorf("pipeline.decoder.formats: %w", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimitEnabled && (c.Server.RequestsPerMinute < 0 || c.Server.RequestsPerHour < 0 ||
		c.Server.MaxRequestsPerDay < 0 || c.Server.MaxDataPerDay < 0) {
		return errors.New("invalid rate limit: limits must not be negative")
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.Telegram.TimeoutSec <= 0 {
		return fmt.Errorf("invalid telegram timeout: %d (must be positive)", c.Telegram.TimeoutSec)
	}
	return nil
}

// ToPipelineConfig converts the config into the pipeline configuration.
// Decoder formats are assumed valid; unknown names are dropped.
func (c *Config) ToPipelineConfig() pipeline.Config {
	formats, _ := barcode.ParseFormats(c.Pipeline.Decoder.Formats)
	cfg := pipeline.DefaultConfig()
	cfg.Detector = c.toDetectorConfig()
	cfg.Rectify = c.toRectifyConfig()
	cfg.Barcode = barcode.Options{
		Formats:     formats,
		TryHarder:   c.Pipeline.Decoder.TryHarder,
		PureBarcode: c.Pipeline.Decoder.PureBarcode,
	}
	cfg.DecoderName = c.Pipeline.Decoder.Name
	cfg.StagesDir = c.Pipeline.StagesDir
	cfg.Parallel.MaxWorkers = c.Batch.Workers
	cfg.Parallel.FailFast = c.Batch.FailFast
	return cfg
}

func (c *Config) toDetectorConfig() detector.Config {
	d := c.Pipeline.Detector
	return detector.Config{
		BlurKernel:         d.BlurKernel,
		BlurSigma:          d.BlurSigma,
		AdaptiveBlockSize:  d.AdaptiveBlockSize,
		AdaptiveOffset:     d.AdaptiveOffset,
		MorphKernel:        d.MorphKernel,
		MorphIterations:    d.MorphIterations,
		MinArea:            d.MinArea,
		ApproxEpsilonRatio: d.ApproxEpsilonRatio,
	}
}

// toRectifyConfig shares the detector blur kernel so the ROI re-smoothing
// matches the noise suppression stage.
func (c *Config) toRectifyConfig() rectify.Config {
	r := c.Pipeline.Rectify
	return rectify.Config{
		Interpolation: rectify.Interpolation(strings.ToLower(r.Interpolation)),
		BorderMode:    rectify.BorderMode(strings.ToLower(r.BorderMode)),
		BlurKernel:    c.Pipeline.Detector.BlurKernel,
		BlurSigma:     c.Pipeline.Detector.BlurSigma,
		Padding:       r.Padding,
		DebugDir:      r.DebugDir,
	}
}
