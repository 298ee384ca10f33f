package ingestion_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketmirror/internal/event"
	"marketmirror/internal/ingestion"
	"marketmirror/internal/observability"
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// ============================================================================
// Test: feed connection
// ============================================================================

func TestFeed_SynthesizesStartThenStreamsFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "JWT feed-key", r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		frame := `{"type":"heartbeat","ticks":1,"run_id":"run-a","timestamp":1}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var kinds []event.Type
	handler := func(ctx context.Context, evt event.Event) error {
		mu.Lock()
		kinds = append(kinds, evt.Kind())
		mu.Unlock()
		if evt.Kind() == event.TypeHeartbeat {
			cancel()
		}
		return nil
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	feed := ingestion.NewFeed(wsURL(server), "feed-key", handler, metrics, zerolog.Nop())
	err := feed.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, kinds)
	assert.Equal(t, event.TypeWebsocketStarting, kinds[0])
	assert.Contains(t, kinds, event.TypeHeartbeat)
}

// ============================================================================
// Test: repeater
// ============================================================================

func TestRepeater_BroadcastsToConnectedClients(t *testing.T) {
	repeater := ingestion.NewRepeater(zerolog.Nop())
	server := httptest.NewServer(http.HandlerFunc(repeater.Handler))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server), nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration completes asynchronously after the handshake; keep
	// broadcasting until the client sees a frame.
	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		frame := []byte(`{"type":"heartbeat","ticks":1}`)
		for {
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
				repeater.Broadcast(frame)
			}
		}
	}()

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"heartbeat","ticks":1}`, string(data))
}
