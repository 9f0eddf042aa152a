package hub

import (
	"context"
	"encoding/json"

	"github.com/aretw0/relite/pkg/adapters/redis"
	"github.com/aretw0/relite/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// RelayRedis feeds the hub with instances attached through the Redis transport
// until ctx is canceled. Commands for those instances are published back on
// their command channel.
func (h *Hub) RelayRedis(ctx context.Context, client *backend.Client, prefix string) error {
	if prefix == "" {
		prefix = redis.DefaultPrefix
	}

	pubsub := client.Subscribe(ctx, redis.OutChannel(prefix))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}
	defer pubsub.Close()

	// All Redis instances share this relay as their peer.
	peer := &struct{ prefix string }{prefix}
	defer h.Disconnect(peer)

	h.logger.Info("Relaying Redis instances", "channel", redis.OutChannel(prefix))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env domain.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("Invalid frame", "err", err)
				continue
			}
			if env.Instance == "" {
				continue
			}
			instance := env.Instance
			h.Record(env, peer, func(cmd domain.Envelope) error {
				data, err := json.Marshal(cmd)
				if err != nil {
					return err
				}
				return client.Publish(context.Background(), redis.InChannel(prefix, instance), data).Err()
			})
		}
	}
}
