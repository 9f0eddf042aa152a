package hub_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/relite/internal/hub"
	"github.com/aretw0/relite/pkg/adapters/redis"
	"github.com/aretw0/relite/pkg/devtool"
	"github.com/aretw0/relite/pkg/domain"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RelayRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	h := hub.New()
	ctx, cancel := context.WithCancel(context.Background())
	relayed := make(chan error, 1)
	go func() { relayed <- h.RelayRedis(ctx, client, "") }()

	// Wait for the relay subscription before the instance publishes.
	require.Eventually(t, func() bool {
		n, err := client.PubSubNumSub(ctx, redis.OutChannel(redis.DefaultPrefix)).Result()
		return err == nil && n[redis.OutChannel(redis.DefaultPrefix)] > 0
	}, 2*time.Second, 10*time.Millisecond)

	st := newCounter(t)
	bridge := devtool.New(redis.NewFromClient(client))
	defer bridge.Close()
	devtool.Attach(bridge, st)

	for range 3 {
		_, err := st.Dispatch("increment", nil)
		require.NoError(t, err)
	}

	var id string
	require.Eventually(t, func() bool {
		instances := h.Instances()
		if len(instances) != 1 {
			return false
		}
		id = instances[0].ID
		return instances[0].Entries == 4
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, h.Command(id, domain.DevToolMessage{
		Type:    domain.MessageDispatch,
		Payload: map[string]any{"type": domain.CommandJumpToAction, "actionId": 1},
	}))
	require.Eventually(t, func() bool {
		return st.GetState().Count == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-relayed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}

	info, err := h.Instance(id)
	require.NoError(t, err)
	assert.False(t, info.Connected)
}
