package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/testutil"
)

// recordingConn collects the events written to it.
type recordingConn struct {
	events []WebSocketEvent
}

func (c *recordingConn) WriteMessage(messageType int, data []byte) error {
	var ev WebSocketEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	c.events = append(c.events, ev)
	return nil
}

func dialDetect(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(newTestMux(newTestServer(t, Config{})))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/detect" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntilDone reads events until a result or error event arrives.
func readUntilDone(t *testing.T, conn *websocket.Conn) []WebSocketEvent {
	t.Helper()
	var events []WebSocketEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(30*time.Second)))
	for {
		var ev WebSocketEvent
		require.NoError(t, conn.ReadJSON(&ev))
		events = append(events, ev)
		if ev.Type == "result" || ev.Type == "error" {
			return events
		}
	}
}

func stageNames(events []WebSocketEvent) []string {
	var out []string
	for _, ev := range events {
		if ev.Type == "stage" {
			out = append(out, ev.Stage)
		}
	}
	return out
}

func allStageNames(n int) []string {
	var out []string
	for _, s := range pipeline.Stages()[:n] {
		out = append(out, s.String())
	}
	return out
}

func TestWebSocket_BinaryImageStreamsStages(t *testing.T) {
	conn := dialDetect(t, "")
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, sceneBytes(t, "BC", 15)))

	events := readUntilDone(t, conn)
	last := events[len(events)-1]
	require.Equal(t, "result", last.Type, last.Error)
	require.NotNil(t, last.Result)
	require.Len(t, last.Result.Symbols, 1)
	assert.Equal(t, "BC", last.Result.Symbols[0].Text)

	assert.Equal(t, allStageNames(len(pipeline.Stages())), stageNames(events))
	for _, ev := range events {
		assert.Equal(t, last.RequestID, ev.RequestID)
		if ev.Type == "stage" {
			assert.Empty(t, ev.PNG, "stage images are opt-in")
			assert.Positive(t, ev.Width)
			assert.NotEmpty(t, ev.Title)
		}
	}
}

func TestWebSocket_JSONRequestWithStageImages(t *testing.T) {
	conn := dialDetect(t, "")
	req := WebSocketRequest{Image: encodePNG(t, testutil.BlankImage(testutil.SmallSize, 0)), Stages: true}
	require.NoError(t, conn.WriteJSON(req))

	events := readUntilDone(t, conn)
	last := events[len(events)-1]
	assert.Equal(t, "error", last.Type)
	assert.Equal(t, errTypeNoBarcode, last.ErrorType)
	require.NotNil(t, last.Result)

	assert.Equal(t, allStageNames(6), stageNames(events))
	assert.NotEmpty(t, events[0].PNG)
}

func TestWebSocket_MultipleRequestsOnOneConnection(t *testing.T) {
	conn := dialDetect(t, "")
	var ids []string
	for _, payload := range []string{"AB", "XY"} {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, sceneBytes(t, payload, -5)))
		events := readUntilDone(t, conn)
		last := events[len(events)-1]
		require.Equal(t, "result", last.Type)
		require.Len(t, last.Result.Symbols, 1)
		assert.Equal(t, payload, last.Result.Symbols[0].Text)
		ids = append(ids, last.RequestID)
	}
	assert.NotEqual(t, ids[0], ids[1])
}

func TestWebSocket_InvalidMessages(t *testing.T) {
	conn := dialDetect(t, "")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	events := readUntilDone(t, conn)
	require.Len(t, events, 1)
	assert.Equal(t, errTypeInvalidRequest, events[0].ErrorType)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("not an image")))
	events = readUntilDone(t, conn)
	require.Len(t, events, 1)
	assert.Equal(t, errTypeLoad, events[0].ErrorType)
}

func TestProcessWebSocketRequest_EmptyImage(t *testing.T) {
	s := newTestServer(t, Config{})
	conn := &recordingConn{}
	s.processWebSocketRequest(httptest.NewRequest("GET", "/ws/detect", nil), conn, WebSocketRequest{})

	require.Len(t, conn.events, 1)
	assert.Equal(t, "error", conn.events[0].Type)
	assert.Equal(t, errTypeInvalidRequest, conn.events[0].ErrorType)
}

func TestWSObserver_EncodesPNG(t *testing.T) {
	conn := &recordingConn{}
	obs := &wsObserver{conn: conn, requestID: "7", withPNG: true}
	obs.Observe(pipeline.StageThreshold, "Adaptive threshold", testutil.BlankImage(testutil.SmallSize, 255))

	require.Len(t, conn.events, 1)
	ev := conn.events[0]
	assert.Equal(t, "stage", ev.Type)
	assert.Equal(t, "7", ev.RequestID)
	assert.Equal(t, pipeline.StageThreshold.String(), ev.Stage)
	assert.Equal(t, testutil.SmallSize.Width, ev.Width)
	assert.Equal(t, testutil.SmallSize.Height, ev.Height)
	assert.NotEmpty(t, ev.PNG)
}
