package finnhub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"FinSqueeze/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleFrameKeepsNewest(t *testing.T) {
	tr := New("", "ws://unused", nil)

	tr.handleFrame([]byte(`{"type":"trade","data":[{"s":"AAPL","p":190.5,"v":10,"t":1700000002000}]}`))
	tr.handleFrame([]byte(`{"type":"trade","data":[{"s":"AAPL","p":180,"v":1,"t":1700000001000}]}`))
	tr.handleFrame([]byte(`{"type":"ping"}`))
	tr.handleFrame([]byte(`not json`))

	q, err := tr.LastQuote(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, 190.5, q.Price)
	assert.Equal(t, int64(1700000002000), q.Timestamp.UnixMilli())

	_, err = tr.LastQuote(context.Background(), "MSFT")
	assert.True(t, errors.Is(err, models.ErrDataUnavailable))
}

func TestRunSubscribesAndTracks(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.URL.Query().Get("token"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var sub map[string]string
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub["symbol"]
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"trade","data":[{"s":"MSFT","p":410.25,"v":3,"t":1700000000000}]}`))
		// hold the connection until the client goes away
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	tr := New("k", "ws"+strings.TrimPrefix(srv.URL, "http"), []string{"msft"}, WithIntervals(10*time.Millisecond, time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	select {
	case s := <-subscribed:
		assert.Equal(t, "MSFT", s)
	case <-time.After(5 * time.Second):
		t.Fatal("no subscription received")
	}

	require.Eventually(t, func() bool {
		q, err := tr.LastQuote(context.Background(), "MSFT")
		return err == nil && q.Price == 410.25
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("tracker did not stop")
	}
}
