package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(r.URL.Query().Get("conversation"), conn).Serve()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, conversationID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?conversation=" + conversationID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubDeliversToConversationSubscribers(t *testing.T) {
	hub := NewHub()
	srv := newTestServer(t, hub)

	a := dial(t, srv, "c1")
	other := dial(t, srv, "c2")
	require.Eventually(t, func() bool {
		return hub.ClientCount("c1") == 1 && hub.ClientCount("c2") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Broadcast(Event{Type: EventMessageNew, ConversationID: "c1", MessageID: "m1"})

	var ev Event
	require.NoError(t, a.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, a.ReadJSON(&ev))
	assert.Equal(t, Event{Type: EventMessageNew, ConversationID: "c1", MessageID: "m1"}, ev)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	assert.Error(t, other.ReadJSON(&ev), "subscribers of other conversations get nothing")
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub()
	srv := newTestServer(t, hub)

	conn := dial(t, srv, "c1")
	require.Eventually(t, func() bool { return hub.ClientCount("c1") == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount("c1") == 0 }, time.Second, 10*time.Millisecond)

	// broadcasting to an empty conversation is a no-op
	hub.Broadcast(Event{Type: EventMessageNew, ConversationID: "c1"})
}

func TestUnregisterTwice(t *testing.T) {
	hub := NewHub()
	c := hub.Register("c1", nil)
	hub.Unregister(c)
	hub.Unregister(c)
	assert.Zero(t, hub.ClientCount("c1"))
}
