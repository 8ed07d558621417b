package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/energy-pipeline/internal/status"
)

func dial(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestFeedStreamsStatus(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reporter := status.NewReporter(nil)
	reporter.Set("Ready")
	hub := NewHub()
	srv := httptest.NewServer(NewHandler(reporter, hub, "", true))
	defer srv.Close()

	conn := dial(t, ctx, srv)

	first := readMessage(t, ctx, conn)
	assert.Equal(t, "status", first.Type)
	assert.Equal(t, "Ready", first.Message)
	require.NotNil(t, first.UpdatedAt)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	reporter.Set("Simulating data and uploading file...")
	next := readMessage(t, ctx, conn)
	assert.Equal(t, "Simulating data and uploading file...", next.Message)

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)))
	pong := readMessage(t, ctx, conn)
	assert.Equal(t, "pong", pong.Type)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "done"))
	require.Eventually(t, func() bool { return hub.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestFeedInitialStatusEmpty(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := httptest.NewServer(NewHandler(status.NewReporter(nil), NewHub(), "", true))
	defer srv.Close()

	msg := readMessage(t, ctx, dial(t, ctx, srv))
	assert.Equal(t, "status", msg.Type)
	assert.Empty(t, msg.Message)
	assert.Nil(t, msg.UpdatedAt)
}

func TestHubCloseAll(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub := NewHub()
	srv := httptest.NewServer(NewHandler(status.NewReporter(nil), hub, "", true))
	defer srv.Close()

	conn := dial(t, ctx, srv)
	readMessage(t, ctx, conn)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	// The close handshake completes only while the client is reading.
	readErr := make(chan error, 1)
	go func() {
		_, _, err := conn.Read(ctx)
		readErr <- err
	}()

	hub.CloseAll()
	assert.Equal(t, 0, hub.Count())

	err := <-readErr
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

func TestFeedRejectsForeignOrigin(t *testing.T) {
	h := NewHandler(status.NewReporter(nil), NewHub(), "https://dashboard.example.com", false)

	req := httptest.NewRequest(http.MethodGet, "/ws/status", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHubUnregisterUnknown(t *testing.T) {
	hub := NewHub()
	id := hub.Register(&websocket.Conn{})
	hub.Unregister("feed-missing")
	assert.Equal(t, 1, hub.Count())
	hub.Unregister(id)
	assert.Equal(t, 0, hub.Count())
}
