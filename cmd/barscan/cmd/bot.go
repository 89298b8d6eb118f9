package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/barscan/internal/telegram"
	"github.com/spf13/cobra"
)

// botCmd represents the Telegram bot command.
var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot front-end",
	Long: `Run a Telegram bot that answers photos with the decoded barcode and the
straightened barcode region.

The bot token is read from --token, BARSCAN_TELEGRAM_TOKEN or a .env file in
the working directory. telegram.allowed_users in the config file restricts
the bot to the listed user IDs.

Examples:
  BARSCAN_TELEGRAM_TOKEN=123:abc barscan bot
  barscan bot --config barscan.yaml --verbose`,
	SilenceUsage: true,
	RunE:         runBot,
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	if cfg.Telegram.Token == "" {
		return errors.New("telegram token is required (--token or BARSCAN_TELEGRAM_TOKEN)")
	}
	pl, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	bot, err := telegram.NewBot(telegram.Config{
		Token:        cfg.Telegram.Token,
		Debug:        cfg.Telegram.Debug,
		TimeoutSec:   cfg.Telegram.TimeoutSec,
		AllowedUsers: cfg.Telegram.AllowedUsers,
	}, pl)
	if err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Bot is running", "allowed_users", len(cfg.Telegram.AllowedUsers))
	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bot stopped: %w", err)
	}
	slog.Info("Bot stopped")
	return nil
}

func init() {
	rootCmd.AddCommand(botCmd)
	addPipelineFlags(botCmd)

	botCmd.Flags().String("token", "", "Telegram bot token")
	botCmd.Flags().Bool("api-debug", false, "log Telegram API traffic")
	botCmd.Flags().Int("poll-timeout", 60, "long polling timeout in seconds")
	annotateFlags(botCmd.Flags(), []flagBinding{
		{"telegram.token", "token"},
		{"telegram.debug", "api-debug"},
		{"telegram.timeout_sec", "poll-timeout"},
	})
}
