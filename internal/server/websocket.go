package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketRequest is a detection request sent as a text message. Binary
// messages are treated as raw image bytes with default options.
type WebSocketRequest struct {
	Image []byte `json:"image"`
	// Stages asks for every stage raster as a PNG in the stage events.
	Stages bool `json:"stages,omitempty"`
}

// WebSocketEvent is one message streamed back to the client. A request
// produces one "stage" event per completed stage followed by a "result" or
// "error" event.
type WebSocketEvent struct {
	Type      string           `json:"type"`
	RequestID string           `json:"request_id,omitempty"`
	Stage     string           `json:"stage,omitempty"`
	Title     string           `json:"title,omitempty"`
	Width     int              `json:"width,omitempty"`
	Height    int              `json:"height,omitempty"`
	PNG       []byte           `json:"png,omitempty"`
	Result    *pipeline.Result `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorType string           `json:"error_type,omitempty"`
}

// WebSocketConnWriter is the part of a websocket connection used to send
// events.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

var requestSeq atomic.Uint64

// detectWebSocketHandler streams stage events for each image received on the
// connection. The "stages=1" query parameter enables stage PNGs for binary
// requests.
func (s *Server) detectWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	defaultStages := r.URL.Query().Get("stages") == "1"

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read failed", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		req := WebSocketRequest{Image: data, Stages: defaultStages}
		if messageType == websocket.TextMessage {
			req = WebSocketRequest{}
			if err := json.Unmarshal(data, &req); err != nil {
				sendEvent(conn, WebSocketEvent{Type: "error", Error: fmt.Sprintf("invalid request: %v", err), ErrorType: errTypeInvalidRequest})
				continue
			}
		}
		s.processWebSocketRequest(r, conn, req)
	}
}

// processWebSocketRequest runs one request, writing events to conn from the
// pipeline goroutine.
func (s *Server) processWebSocketRequest(r *http.Request, conn WebSocketConnWriter, req WebSocketRequest) {
	id := strconv.FormatUint(requestSeq.Add(1), 10)
	if len(req.Image) == 0 {
		observeDetection("websocket", errTypeInvalidRequest, 0, 0)
		sendEvent(conn, WebSocketEvent{Type: "error", RequestID: id, Error: "no image data provided", ErrorType: errTypeInvalidRequest})
		return
	}
	img, _, err := utils.DecodeImageBytes(req.Image)
	if err != nil {
		observeDetection("websocket", errTypeLoad, 0, 0)
		sendEvent(conn, WebSocketEvent{Type: "error", RequestID: id, Error: err.Error(), ErrorType: errTypeLoad})
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	obs := &wsObserver{conn: conn, requestID: id, withPNG: req.Stages}
	start := time.Now()
	res, err := s.pipeline.WithObserver(obs).Process(ctx, img)
	elapsed := time.Since(start)

	if err != nil {
		_, errType := classifyError(err)
		observeDetection("websocket", errType, elapsed, 0)
		sendEvent(conn, WebSocketEvent{Type: "error", RequestID: id, Result: res, Error: err.Error(), ErrorType: errType})
		return
	}
	observeDetection("websocket", outcomeOK, elapsed, len(res.Symbols))
	sendEvent(conn, WebSocketEvent{Type: "result", RequestID: id, Result: res})
}

// wsObserver forwards stage rasters to a websocket client.
type wsObserver struct {
	conn      WebSocketConnWriter
	requestID string
	withPNG   bool
}

func (o *wsObserver) Observe(stage pipeline.Stage, title string, img image.Image) {
	b := img.Bounds()
	ev := WebSocketEvent{
		Type:      "stage",
		RequestID: o.requestID,
		Stage:     stage.String(),
		Title:     title,
		Width:     b.Dx(),
		Height:    b.Dy(),
	}
	if o.withPNG {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err == nil {
			ev.PNG = buf.Bytes()
		}
	}
	sendEvent(o.conn, ev)
}

func sendEvent(conn WebSocketConnWriter, ev WebSocketEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("Failed to marshal WebSocket event", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("Failed to send WebSocket event", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
