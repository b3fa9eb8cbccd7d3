package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskhub/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeAuth map[string]*model.User

func (f fakeAuth) Authenticate(_ context.Context, token string) (*model.User, *model.AccessToken, error) {
	u, ok := f[token]
	if !ok {
		return nil, nil, errors.New("invalid token")
	}
	return u, &model.AccessToken{ID: uuid.New(), UserID: u.ID}, nil
}

func startHub(t *testing.T, auth fakeAuth) (*Hub, string, context.CancelFunc) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(nil, discardLogger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", ServeWs(hub, auth))
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", cancel
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubDeliversToOwnConnections(t *testing.T) {
	alice := &model.User{ID: uuid.New()}
	bob := &model.User{ID: uuid.New()}
	hub, url, _ := startHub(t, fakeAuth{"a": alice, "b": bob})

	a1 := dial(t, url+"?token=a")
	a2 := dial(t, url+"?token=a")
	b := dial(t, url+"?token=b")
	require.Eventually(t, func() bool {
		return hub.Connected(alice.ID) == 2 && hub.Connected(bob.ID) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Notify(alice.ID, "task.created", map[string]string{"title": "Write report"})

	for _, conn := range []*websocket.Conn{a1, a2} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev struct {
			Event string            `json:"event"`
			Data  map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, "task.created", ev.Event)
		assert.Equal(t, "Write report", ev.Data["title"])
	}

	require.NoError(t, b.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := b.ReadMessage()
	assert.Error(t, err, "bob receives nothing")
}

func TestHubDropsClosedConnections(t *testing.T) {
	alice := &model.User{ID: uuid.New()}
	hub, url, _ := startHub(t, fakeAuth{"a": alice})

	conn := dial(t, url+"?token=a")
	require.Eventually(t, func() bool { return hub.Connected(alice.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Connected(alice.ID) == 0 }, 2*time.Second, 10*time.Millisecond)

	// Nobody listening is not an error
	hub.Notify(alice.ID, "task.deleted", nil)
}

func TestHubShutdownClosesClients(t *testing.T) {
	alice := &model.User{ID: uuid.New()}
	hub, url, cancel := startHub(t, fakeAuth{"a": alice})

	conn := dial(t, url+"?token=a")
	require.Eventually(t, func() bool { return hub.Connected(alice.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "connection is closed by the hub")
	require.Eventually(t, func() bool { return hub.Connected(alice.ID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWsRejectsBadTokens(t *testing.T) {
	_, url, _ := startHub(t, fakeAuth{})

	for _, suffix := range []string{"", "?token=nope"} {
		_, resp, err := websocket.DefaultDialer.Dial(url+suffix, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := originChecker(nil)
	assert.True(t, open(req("https://evil.example")))

	wildcard := originChecker([]string{"https://app.example", "*"})
	assert.True(t, wildcard(req("https://evil.example")))

	strict := originChecker([]string{"https://app.example"})
	assert.True(t, strict(req("https://app.example")))
	assert.True(t, strict(req("")))
	assert.False(t, strict(req("https://evil.example")))
}
