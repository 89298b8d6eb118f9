// Package telegram exposes the pipeline as a chat bot: users send a photo
// of a barcode and get the decoded symbols plus the rectified region back.
package telegram

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/utils"
)

const (
	msgStart = `Hi! Send me a photo of a barcode or QR code and I will locate it, straighten it and read it.

Commands:
/help - usage tips`

	msgHelp = `How to use:
1. Send a photo (or an image file) containing one barcode
2. I reply with the decoded text and the straightened barcode region

Tips:
- Fill a good part of the frame with the code
- Avoid glare and motion blur`

	msgSendPhoto      = "Please send a photo containing a barcode."
	msgUnknownCommand = "Unknown command. Use /help for usage."
	msgUnauthorized   = "Sorry, this bot is private."
	msgNoBarcode      = "No barcode region found. Try a closer, sharper photo."
	msgNoSymbols      = "Found a barcode region but could not decode it."
	msgProcessingErr  = "Could not process the image. Please try another photo."
)

// maxDownloadBytes caps attachment downloads.
const maxDownloadBytes = 20 << 20

// botAPI is the subset of *tgbotapi.BotAPI used by the bot.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFileDirectURL(fileID string) (string, error)
}

// Config holds bot settings.
type Config struct {
	Token        string
	Debug        bool
	TimeoutSec   int
	AllowedUsers []int64
}

// Bot answers photo messages with pipeline results.
type Bot struct {
	api      botAPI
	pipeline *pipeline.Pipeline
	client   *http.Client
	timeout  int
	allowed  map[int64]bool
}

// NewBot authorizes against the Telegram API and creates a bot.
func NewBot(cfg Config, pl *pipeline.Pipeline) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	api.Debug = cfg.Debug
	slog.Info("Authorized on Telegram", "account", api.Self.UserName)
	return newBot(api, pl, cfg), nil
}

func newBot(api botAPI, pl *pipeline.Pipeline, cfg Config) *Bot {
	b := &Bot{
		api:      api,
		pipeline: pl,
		client:   &http.Client{Timeout: 30 * time.Second},
		timeout:  cfg.TimeoutSec,
	}
	if b.timeout <= 0 {
		b.timeout = 60
	}
	if len(cfg.AllowedUsers) > 0 {
		b.allowed = make(map[int64]bool, len(cfg.AllowedUsers))
		for _, id := range cfg.AllowedUsers {
			b.allowed[id] = true
		}
	}
	return b
}

// Run processes updates until ctx is canceled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if b.allowed != nil && (msg.From == nil || !b.allowed[msg.From.ID]) {
		b.sendMessage(msg.Chat.ID, msgUnauthorized)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}

	if fileID := imageFileID(msg); fileID != "" {
		b.handleImage(ctx, msg.Chat.ID, fileID)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendPhoto)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.sendMessage(msg.Chat.ID, msgStart)
	case "help":
		b.sendMessage(msg.Chat.ID, msgHelp)
	default:
		b.sendMessage(msg.Chat.ID, msgUnknownCommand)
	}
}

// imageFileID returns the largest photo size, or an image document.
func imageFileID(msg *tgbotapi.Message) string {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID
	}
	return ""
}

func (b *Bot) handleImage(ctx context.Context, chatID int64, fileID string) {
	data, err := b.downloadFile(ctx, fileID)
	if err != nil {
		slog.Warn("Telegram download failed", "chat_id", chatID, "error", err)
		b.sendMessage(chatID, msgProcessingErr)
		return
	}

	img, _, err := utils.DecodeImageBytes(data)
	if err != nil {
		slog.Info("Telegram image rejected", "chat_id", chatID, "error", err)
		b.sendMessage(chatID, msgProcessingErr)
		return
	}

	res, err := b.pipeline.Process(ctx, img)
	slog.Info("Telegram image processed", "chat_id", chatID, "symbols", len(res.Symbols), "error", err)
	b.sendMessage(chatID, replyText(res, err))
	if err != nil {
		return
	}

	if roi := res.Artifacts.ROIImage(); roi != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, roi); err != nil {
			slog.Error("Failed to encode ROI", "error", err)
			return
		}
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "roi.png", Bytes: buf.Bytes()})
		photo.Caption = fmt.Sprintf("Straightened region (%.1f°)", res.Skew.Angle)
		if _, err := b.api.Send(photo); err != nil {
			slog.Error("Failed to send ROI photo", "error", err)
		}
	}
}

// replyText summarizes a pipeline outcome for the chat.
func replyText(res *pipeline.Result, err error) string {
	switch {
	case err != nil && pipeline.IsGeometryError(err):
		return msgNoBarcode
	case err != nil:
		return msgProcessingErr
	case len(res.Symbols) == 0:
		return msgNoSymbols
	}
	var sb strings.Builder
	for i, s := range res.Symbols {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s: %s", s.Type, s.Text)
	}
	return sb.String()
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxDownloadBytes {
		return nil, fmt.Errorf("file exceeds %d bytes", maxDownloadBytes)
	}
	return data, nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		slog.Error("Failed to send message", "chat_id", chatID, "error", err)
	}
}
