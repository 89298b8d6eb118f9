package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/barscan/internal/config"
	"github.com/MeKo-Tech/barscan/internal/version"
	"github.com/spf13/cobra"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Error of the last configuration load.
	configErr error
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "barscan",
	Short: "Barcode localization, deskew and decoding pipeline",
	Long: `barscan finds the dominant barcode in an image, corrects its skew,
crops the region of interest and decodes it.

This tool provides:
- Gradient based barcode localization with adaptive thresholding
- Skew estimation from the minimum-area rectangle and rotation correction
- Symbol decoding (QR, Data Matrix, Code 128, EAN and more)
- PDF scanning of embedded images
- HTTP server, websocket stage streaming and a Telegram bot

Examples:
  barscan image label.png
  barscan batch photos/ --recursive --format csv
  barscan pdf invoice.pdf --pages 1-2 --format json
  barscan serve --port 8080
  barscan benchmark photos/ --iterations 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags that apply to all commands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is barscan.yaml in ., $HOME, $XDG_CONFIG_HOME/barscan, /etc/barscan)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")
	annotateFlags(rootCmd.PersistentFlags(), []flagBinding{
		{"verbose", "verbose"},
		{"log_level", "log-level"},
	})

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		v := GetConfigLoader().GetViper()
		if err := bindFlags(cmd, v); err != nil {
			return err
		}
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel(v.GetBool("verbose"), v.GetString("log_level")),
		}))
		slog.SetDefault(logger)
		return nil
	}
}

// logLevel maps the configured level; verbose wins over the level name.
func logLevel(verbose bool, level string) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initConfig reads in config file and ENV variables if set. Load errors are
// reported by GetConfig so commands that need no configuration still run.
func initConfig() {
	configLoader = config.NewLoader()

	if cfgFile != "" {
		globalConfig, configErr = configLoader.LoadWithFileWithoutValidation(cfgFile)
	} else {
		globalConfig, configErr = configLoader.LoadWithoutValidation()
	}
}

// GetConfig returns the validated configuration including command-line
// flags.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil && configErr == nil {
		initConfig()
	}
	if configErr != nil {
		return nil, fmt.Errorf("error loading configuration: %w", configErr)
	}

	// Flags are bound after the initial load, so unmarshal again.
	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
