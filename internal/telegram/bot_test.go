package telegram

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/testutil"
)

// fakeAPI records outgoing messages and serves files from a URL map.
type fakeAPI struct {
	mu      sync.Mutex
	sent    []tgbotapi.Chattable
	files   map[string]string
	updates chan tgbotapi.Update
	stopped bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{files: map[string]string{}, updates: make(chan tgbotapi.Update, 4)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	url, ok := f.files[fileID]
	if !ok {
		return "", errors.New("file not found")
	}
	return url, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) photos() []tgbotapi.PhotoConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.PhotoConfig
	for _, c := range f.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

func newTestBot(t *testing.T, cfg Config) (*Bot, *fakeAPI) {
	t.Helper()
	pl, err := pipeline.NewBuilder().WithDecoder(testutil.StubDecoder{}).Build()
	require.NoError(t, err)
	api := newFakeAPI()
	return newBot(api, pl, cfg), api
}

// serveFile publishes data under fileID through an httptest server.
func serveFile(t *testing.T, api *fakeAPI, fileID string, data []byte) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	api.files[fileID] = srv.URL + "/" + fileID
}

func commandMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 1},
		Chat:     &tgbotapi.Chat{ID: 42},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}
}

func photoMessage(fileIDs ...string) *tgbotapi.Message {
	msg := &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 42}}
	for _, id := range fileIDs {
		msg.Photo = append(msg.Photo, tgbotapi.PhotoSize{FileID: id})
	}
	return msg
}

func scenePNG(t *testing.T, payload string, angle float64) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.EmbedRotated(testutil.BarcodeLabel(payload), angle, testutil.LargeSize)))
	return buf.Bytes()
}

func TestHandleMessage_Commands(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/start", msgStart},
		{"/help", msgHelp},
		{"/frobnicate", msgUnknownCommand},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			bot, api := newTestBot(t, Config{})
			bot.handleMessage(context.Background(), commandMessage(tt.text))
			assert.Equal(t, []string{tt.want}, api.texts())
		})
	}
}

func TestHandleMessage_PlainText(t *testing.T) {
	bot, api := newTestBot(t, Config{})
	bot.handleMessage(context.Background(), &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}, Text: "hello"})
	assert.Equal(t, []string{msgSendPhoto}, api.texts())
}

func TestHandleMessage_Unauthorized(t *testing.T) {
	bot, api := newTestBot(t, Config{AllowedUsers: []int64{7}})
	bot.handleMessage(context.Background(), commandMessage("/start"))
	assert.Equal(t, []string{msgUnauthorized}, api.texts())
}

func TestHandleMessage_PhotoDecoded(t *testing.T) {
	bot, api := newTestBot(t, Config{})
	serveFile(t, api, "large", scenePNG(t, "BC", 12))

	// The largest size is the last one.
	bot.handleMessage(context.Background(), photoMessage("thumb", "large"))

	assert.Equal(t, []string{"SYNTHETIC: BC"}, api.texts())
	photos := api.photos()
	require.Len(t, photos, 1)
	assert.Equal(t, int64(42), photos[0].ChatID)
	assert.Contains(t, photos[0].Caption, "Straightened region")

	fb, ok := photos[0].File.(tgbotapi.FileBytes)
	require.True(t, ok)
	roi, err := png.Decode(bytes.NewReader(fb.Bytes))
	require.NoError(t, err)
	aspect := float64(roi.Bounds().Dx()) / float64(roi.Bounds().Dy())
	assert.InDelta(t, 2.0, aspect, 0.2)
}

func TestHandleMessage_ImageDocument(t *testing.T) {
	bot, api := newTestBot(t, Config{})
	serveFile(t, api, "doc", scenePNG(t, "OK", 0))

	msg := &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 1},
		Chat:     &tgbotapi.Chat{ID: 42},
		Document: &tgbotapi.Document{FileID: "doc", MimeType: "image/png"},
	}
	bot.handleMessage(context.Background(), msg)
	assert.Equal(t, []string{"SYNTHETIC: OK"}, api.texts())
}

func TestHandleMessage_NoBarcode(t *testing.T) {
	bot, api := newTestBot(t, Config{})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.BlankImage(testutil.SmallSize, 90)))
	serveFile(t, api, "blank", buf.Bytes())

	bot.handleMessage(context.Background(), photoMessage("blank"))
	assert.Equal(t, []string{msgNoBarcode}, api.texts())
	assert.Empty(t, api.photos())
}

func TestHandleMessage_DownloadFailures(t *testing.T) {
	bot, api := newTestBot(t, Config{})

	bot.handleMessage(context.Background(), photoMessage("missing"))
	serveFile(t, api, "junk", []byte("not an image"))
	bot.handleMessage(context.Background(), photoMessage("junk"))

	assert.Equal(t, []string{msgProcessingErr, msgProcessingErr}, api.texts())
}

func TestReplyText(t *testing.T) {
	res := &pipeline.Result{Symbols: []pipeline.SymbolResult{{Type: "QR_CODE", Text: "hi"}, {Type: "EAN_13", Text: "123"}}}
	assert.Equal(t, "QR_CODE: hi\nEAN_13: 123", replyText(res, nil))
	assert.Equal(t, msgNoSymbols, replyText(&pipeline.Result{}, nil))
	assert.Equal(t, msgProcessingErr, replyText(&pipeline.Result{}, errors.New("boom")))
}

func TestRun_StopsOnCancel(t *testing.T) {
	bot, api := newTestBot(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	api.updates <- tgbotapi.Update{Message: commandMessage("/help")}
	api.updates <- tgbotapi.Update{}
	require.Eventually(t, func() bool { return len(api.texts()) == 1 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	api.mu.Lock()
	assert.True(t, api.stopped)
	api.mu.Unlock()
}

func TestRun_ChannelClosed(t *testing.T) {
	bot, api := newTestBot(t, Config{})
	close(api.updates)
	assert.NoError(t, bot.Run(context.Background()))
}

func TestNewBot_RequiresToken(t *testing.T) {
	_, err := NewBot(Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")
}
