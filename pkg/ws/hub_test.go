package ws

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHub(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub(zerolog.New(os.Stdout).Level(zerolog.Disabled))
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub, url := testHub(t)
	c1 := dial(t, url)
	c2 := dial(t, url)
	waitForClients(t, hub, 2)

	hub.Broadcast("extension-health", map[string]any{"ok": true})

	for _, conn := range []*websocket.Conn{c1, c2} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg EventMessage
		require.NoError(t, json.Unmarshal(payload, &msg))
		assert.Equal(t, "event", msg.Type)
		assert.Equal(t, "extension-health", msg.Event)
		assert.NotZero(t, msg.Timestamp)
	}
}

func TestHub_SequenceIncreases(t *testing.T) {
	hub, url := testHub(t)
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	hub.Broadcast("a", nil)
	hub.Broadcast("b", nil)

	var first, second EventMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, p1, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(p1, &first))
	_, p2, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(p2, &second))

	assert.Greater(t, second.Seq, first.Seq)
}

func TestHub_ConnectDisconnectCallbacks(t *testing.T) {
	hub, url := testHub(t)

	var connects, disconnects atomic.Int64
	hub.OnConnect(func(string) { connects.Add(1) })
	hub.OnDisconnect(func(string) { disconnects.Add(1) })

	conn := dial(t, url)
	waitForClients(t, hub, 1)
	assert.EqualValues(t, 1, connects.Load())

	_ = conn.Close()
	waitForClients(t, hub, 0)

	deadline := time.Now().Add(2 * time.Second)
	for disconnects.Load() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.EqualValues(t, 1, disconnects.Load())
}

func TestHub_CloseAll(t *testing.T) {
	hub, url := testHub(t)
	conn := dial(t, url)
	waitForClients(t, hub, 1)

	hub.CloseAll()
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "connection closed by hub")
}
