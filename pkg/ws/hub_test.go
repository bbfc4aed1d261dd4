package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"rentkar/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	return NewHub(logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT}))
}

// dialHub spins up a server that registers every incoming connection on
// the hub and returns a connected client plus the server-side conn.
func dialHub(t *testing.T, hub *Hub, id string) (client *websocket.Conn, server *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	serverConns := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		hub.Add(id, conn)
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	select {
	case sc := <-serverConns:
		return conn, sc
	case <-time.After(2 * time.Second):
		t.Fatal("server side connection never registered")
		return nil, nil
	}
}

func TestHubAddRemoveCount(t *testing.T) {
	hub := newTestHub()
	require.Equal(t, 0, hub.Count())

	_, _ = dialHub(t, hub, "viewer-1")
	assert.Equal(t, 1, hub.Count())

	hub.Remove("viewer-1")
	assert.Equal(t, 0, hub.Count())

	// Removing an unknown id is a no-op.
	hub.Remove("viewer-1")
	assert.Equal(t, 0, hub.Count())
}

func TestHubBroadcastDeliversToViewer(t *testing.T) {
	hub := newTestHub()
	conn, _ := dialHub(t, hub, "viewer-1")

	hub.Broadcast([]byte("position"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "position", string(payload))
}

func TestHubConcurrentBroadcastsDoNotInterleaveWrites(t *testing.T) {
	hub := newTestHub()
	conn, _ := dialHub(t, hub, "viewer-1")

	const (
		writers           = 4
		messagesPerWriter = 50
	)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < messagesPerWriter; j++ {
				hub.Broadcast([]byte("ping"))
			}
		}()
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for i := 0; i < writers*messagesPerWriter; i++ {
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)
		require.Equal(t, "ping", string(payload))
	}
	wg.Wait()
}

func TestHubBroadcastDropsFailedConnections(t *testing.T) {
	hub := newTestHub()
	_, serverConn := dialHub(t, hub, "viewer-1")

	// Kill the registered connection out from under the hub; the next
	// broadcast must evict it instead of erroring forever.
	require.NoError(t, serverConn.Close())

	hub.Broadcast([]byte("ping"))
	assert.Equal(t, 0, hub.Count())
}
