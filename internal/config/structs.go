//nolint:lll
package config

// Config represents the complete configuration of the barscan application.
// It covers every command (image, batch, pdf, serve, bot) and is loaded from
// configuration files, .env files, environment variables and command-line
// flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output" json:"output"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch" json:"batch"`
	PDF      PDFConfig      `mapstructure:"pdf" yaml:"pdf" json:"pdf"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram" json:"telegram"`
}

// PipelineConfig contains the stage parameters.
type PipelineConfig struct {
	Detector DetectorConfig `mapstructure:"detector" yaml:"detector" json:"detector"`
	Rectify  RectifyConfig  `mapstructure:"rectify" yaml:"rectify" json:"rectify"`
	Decoder  DecoderConfig  `mapstructure:"decoder" yaml:"decoder" json:"decoder"`

	// StagesDir writes every stage raster as PNG when set.
	StagesDir string `mapstructure:"stages_dir" yaml:"stages_dir" json:"stages_dir"`
}

// DetectorConfig contains the detection stage settings.
type DetectorConfig struct {
	BlurKernel         int     `mapstructure:"blur_kernel" yaml:"blur_kernel" json:"blur_kernel"`
	BlurSigma          float64 `mapstructure:"blur_sigma" yaml:"blur_sigma" json:"blur_sigma"`
	AdaptiveBlockSize  int     `mapstructure:"adaptive_block_size" yaml:"adaptive_block_size" json:"adaptive_block_size"`
	AdaptiveOffset     float64 `mapstructure:"adaptive_offset" yaml:"adaptive_offset" json:"adaptive_offset"`
	MorphKernel        int     `mapstructure:"morph_kernel" yaml:"morph_kernel" json:"morph_kernel"`
	MorphIterations    int     `mapstructure:"morph_iterations" yaml:"morph_iterations" json:"morph_iterations"`
	MinArea            float64 `mapstructure:"min_area" yaml:"min_area" json:"min_area"`
	ApproxEpsilonRatio float64 `mapstructure:"approx_epsilon_ratio" yaml:"approx_epsilon_ratio" json:"approx_epsilon_ratio"`
}

// RectifyConfig contains the skew correction and ROI settings.
type RectifyConfig struct {
	Interpolation string `mapstructure:"interpolation" yaml:"interpolation" json:"interpolation"`
	BorderMode    string `mapstructure:"border_mode" yaml:"border_mode" json:"border_mode"`
	Padding       int    `mapstructure:"padding" yaml:"padding" json:"padding"`
	DebugDir      string `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
}

// DecoderConfig selects and tunes the symbol decoder.
type DecoderConfig struct {
	Name        string   `mapstructure:"name" yaml:"name" json:"name"`
	Formats     []string `mapstructure:"formats" yaml:"formats" json:"formats"`
	TryHarder   bool     `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	PureBarcode bool     `mapstructure:"pure_barcode" yaml:"pure_barcode" json:"pure_barcode"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format     string `mapstructure:"format" yaml:"format" json:"format"`
	File       string `mapstructure:"file" yaml:"file" json:"file"`
	OverlayDir string `mapstructure:"overlay_dir" yaml:"overlay_dir" json:"overlay_dir"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool   `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`

	// Rate limiting, applied per client IP.
	RateLimitEnabled  bool  `mapstructure:"rate_limit_enabled" yaml:"rate_limit_enabled" json:"rate_limit_enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers   int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive bool `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	FailFast  bool `mapstructure:"fail_fast" yaml:"fail_fast" json:"fail_fast"`
}

// PDFConfig contains PDF scanning settings.
type PDFConfig struct {
	Pages string `mapstructure:"pages" yaml:"pages" json:"pages"`
}

// TelegramConfig contains the chat bot settings. The token is usually
// supplied through BARSCAN_TELEGRAM_TOKEN or a .env file.
type TelegramConfig struct {
	Token        string  `mapstructure:"token" yaml:"token" json:"-"`
	Debug        bool    `mapstructure:"debug" yaml:"debug" json:"debug"`
	TimeoutSec   int     `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	AllowedUsers []int64 `mapstructure:"allowed_users" yaml:"allowed_users" json:"allowed_users"`
}
