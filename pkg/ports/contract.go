package ports

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/relite/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ExtensionHarness is the inspector side of a transport under test.
type ExtensionHarness interface {
	// Inject delivers msg to the connection of instance as if the inspector sent it.
	Inject(t *testing.T, instance string, msg domain.DevToolMessage)

	// Outbound returns every envelope the inspector received from instance so far.
	Outbound(t *testing.T, instance string) []domain.Envelope
}

// contractWait bounds the wait for asynchronous transports.
const contractWait = 2 * time.Second

// RunExtensionContract runs a suite of tests to verify that an Extension implementation
// adheres to the defined interface contract.
func RunExtensionContract(t *testing.T, ext Extension, harness ExtensionHarness) {
	ctx := context.Background()
	instance := "contract-" + time.Now().Format("20060102150405.000000000")

	conn, err := ext.Connect(ctx, domain.ConnectConfig{
		Name:             "contract",
		InstanceID:       instance,
		ActionsAllowlist: []string{"increment"},
	})
	require.NoError(t, err, "Connect should not return error")
	defer func() { _ = conn.Close() }()

	waitFor := func(t *testing.T, kind domain.EnvelopeKind, n int) []domain.Envelope {
		t.Helper()
		var got []domain.Envelope
		require.Eventually(t, func() bool {
			got = got[:0]
			for _, env := range harness.Outbound(t, instance) {
				if env.Kind == kind {
					got = append(got, env)
				}
			}
			return len(got) >= n
		}, contractWait, 10*time.Millisecond, "expected %d %s envelope(s)", n, kind)
		return got
	}

	t.Run("Connect announces the instance", func(t *testing.T) {
		envs := waitFor(t, domain.KindConnect, 1)
		require.NotNil(t, envs[0].Config)
		assert.Equal(t, "contract", envs[0].Config.Name)
		assert.Equal(t, instance, envs[0].Instance)
		assert.Equal(t, []string{"increment"}, envs[0].Config.ActionsAllowlist)
	})

	t.Run("Init carries the state", func(t *testing.T) {
		require.NoError(t, conn.Init(map[string]int{"count": 0}))

		envs := waitFor(t, domain.KindInit, 1)
		assert.JSONEq(t, `{"count":0}`, string(envs[len(envs)-1].State))
	})

	t.Run("Send carries action and state", func(t *testing.T) {
		require.NoError(t, conn.Send(domain.DevToolAction{Type: "increment", Payload: 2}, map[string]int{"count": 2}))

		envs := waitFor(t, domain.KindAction, 1)
		last := envs[len(envs)-1]
		require.NotNil(t, last.Action)
		assert.Equal(t, "increment", last.Action.Type)
		assert.EqualValues(t, 2, last.Action.Payload)
		assert.JSONEq(t, `{"count":2}`, string(last.State))
	})

	t.Run("Inbound messages reach subscribers", func(t *testing.T) {
		var mu sync.Mutex
		var first, second []domain.DevToolMessage

		unsubFirst := conn.Subscribe(func(msg domain.DevToolMessage) {
			mu.Lock()
			first = append(first, msg)
			mu.Unlock()
		})
		unsubSecond := conn.Subscribe(func(msg domain.DevToolMessage) {
			mu.Lock()
			second = append(second, msg)
			mu.Unlock()
		})
		defer unsubSecond()

		state, _ := json.Marshal(map[string]int{"count": 5})
		harness.Inject(t, instance, domain.DevToolMessage{
			Type:    domain.MessageDispatch,
			Payload: map[string]any{"type": domain.CommandJumpToState},
			State:   string(state),
		})

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(first) == 1 && len(second) == 1
		}, contractWait, 10*time.Millisecond)

		mu.Lock()
		assert.Equal(t, domain.MessageDispatch, first[0].Type)
		assert.Equal(t, domain.CommandJumpToState, first[0].Payload["type"])
		assert.JSONEq(t, `{"count":5}`, first[0].State)
		mu.Unlock()

		unsubFirst()
		unsubFirst()
		harness.Inject(t, instance, domain.DevToolMessage{Type: domain.MessageStart})

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(second) == 2
		}, contractWait, 10*time.Millisecond)

		mu.Lock()
		assert.Len(t, first, 1, "unsubscribed listener must not receive further messages")
		mu.Unlock()
	})

	t.Run("Close is idempotent", func(t *testing.T) {
		assert.NoError(t, conn.Close())
		assert.NoError(t, conn.Close())
	})
}
