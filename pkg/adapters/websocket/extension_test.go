package websocket_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/relite/pkg/adapters/websocket"
	"github.com/aretw0/relite/pkg/domain"
	"github.com/aretw0/relite/pkg/ports"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inspector is a minimal hub: it records envelopes and writes commands back.
type inspector struct {
	upgrader ws.Upgrader

	mu      sync.Mutex
	sockets map[string]*ws.Conn
	frames  map[string][]domain.Envelope
}

func newInspector(t *testing.T) (*inspector, string) {
	i := &inspector{
		sockets: make(map[string]*ws.Conn),
		frames:  make(map[string][]domain.Envelope),
	}
	srv := httptest.NewServer(http.HandlerFunc(i.serve))
	t.Cleanup(srv.Close)
	return i, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (i *inspector) serve(w http.ResponseWriter, r *http.Request) {
	socket, err := i.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer socket.Close()

	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			return
		}
		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		i.mu.Lock()
		if env.Kind == domain.KindConnect {
			i.sockets[env.Instance] = socket
		}
		i.frames[env.Instance] = append(i.frames[env.Instance], env)
		i.mu.Unlock()
	}
}

func (i *inspector) Inject(t *testing.T, instance string, msg domain.DevToolMessage) {
	var socket *ws.Conn
	require.Eventually(t, func() bool {
		i.mu.Lock()
		defer i.mu.Unlock()
		socket = i.sockets[instance]
		return socket != nil
	}, 2*time.Second, 10*time.Millisecond)

	data, err := json.Marshal(domain.Envelope{Kind: domain.KindCommand, Instance: instance, Message: &msg})
	require.NoError(t, err)

	i.mu.Lock()
	defer i.mu.Unlock()
	require.NoError(t, socket.WriteMessage(ws.TextMessage, data))
}

func (i *inspector) Outbound(_ *testing.T, instance string) []domain.Envelope {
	i.mu.Lock()
	defer i.mu.Unlock()
	return slices.Clone(i.frames[instance])
}

func TestWebSocketExtension_Contract(t *testing.T) {
	insp, url := newInspector(t)
	ports.RunExtensionContract(t, websocket.NewExtension(url), insp)
}

func TestWebSocketExtension_DialFailure(t *testing.T) {
	ext := websocket.NewExtension("ws://127.0.0.1:1/ws")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := ext.Connect(ctx, domain.ConnectConfig{Name: "x"})
	assert.ErrorIs(t, err, domain.ErrDevToolUnavailable)
}

func TestWebSocketExtension_CloseFlushesQueuedFrames(t *testing.T) {
	insp, url := newInspector(t)
	conn, err := websocket.NewExtension(url).Connect(context.Background(), domain.ConnectConfig{Name: "x", InstanceID: "flush"})
	require.NoError(t, err)

	for n := range 10 {
		require.NoError(t, conn.Send(domain.DevToolAction{Type: "tick"}, n))
	}
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return len(insp.Outbound(t, "flush")) == 11
	}, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, conn.Send(domain.DevToolAction{Type: "late"}, 0), domain.ErrDevToolUnavailable)
}

func TestWebSocketExtension_PongWait(t *testing.T) {
	settings := websocket.DefaultSettings()
	settings.PingInterval = 20 * time.Millisecond
	settings.PongWait = 80 * time.Millisecond

	t.Run("answering hub keeps the connection", func(t *testing.T) {
		_, url := newInspector(t)
		conn, err := websocket.NewExtension(url, websocket.WithSettings(settings)).
			Connect(context.Background(), domain.ConnectConfig{Name: "x", InstanceID: "alive"})
		require.NoError(t, err)
		defer conn.Close()

		time.Sleep(5 * settings.PongWait)
		assert.NoError(t, conn.Send(domain.DevToolAction{Type: "tick"}, 1))
	})

	t.Run("silent hub is dropped", func(t *testing.T) {
		stop := make(chan struct{})
		upgrader := ws.Upgrader{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			socket, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer socket.Close()
			// Never read, so pings go unanswered.
			<-stop
		}))
		t.Cleanup(srv.Close)
		t.Cleanup(func() { close(stop) })

		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		conn, err := websocket.NewExtension(url, websocket.WithSettings(settings)).
			Connect(context.Background(), domain.ConnectConfig{Name: "x", InstanceID: "silent"})
		require.NoError(t, err)
		defer conn.Close()

		require.Eventually(t, func() bool {
			return errors.Is(conn.Send(domain.DevToolAction{Type: "tick"}, 1), domain.ErrDevToolUnavailable)
		}, 2*time.Second, 20*time.Millisecond)
	})
}
