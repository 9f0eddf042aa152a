// Package redis carries devtool traffic over Redis pub/sub.
//
// Instances publish envelopes on a shared outbound channel (<prefix>out) and
// listen for commands on their own channel (<prefix><instance>:in). A sorted
// set (<prefix>index) lists live instances for discovery.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/relite/internal/logging"
	"github.com/aretw0/relite/pkg/domain"
	"github.com/aretw0/relite/pkg/ports"
	"github.com/aretw0/relite/pkg/store"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key and channel.
const DefaultPrefix = "relite:devtool:"

const (
	// sendBufferSize bounds envelopes waiting for the writer goroutine.
	sendBufferSize = 64
	// DefaultPublishTimeout bounds one publish from the writer goroutine.
	DefaultPublishTimeout = 2 * time.Second
)

// OutChannel is the channel all instances publish on.
func OutChannel(prefix string) string {
	return prefix + "out"
}

// InChannel is the command channel of one instance.
func InChannel(prefix, instance string) string {
	return prefix + instance + ":in"
}

// Extension implements ports.Extension over Redis pub/sub.
type Extension struct {
	client  *backend.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures an Extension.
type Option func(*Extension)

// WithPrefix sets the key and channel prefix.
func WithPrefix(prefix string) Option {
	return func(e *Extension) {
		e.prefix = prefix
	}
}

// WithTTL sets how long an instance stays listed without activity.
// Zero keeps instances listed until they close.
func WithTTL(ttl time.Duration) Option {
	return func(e *Extension) {
		e.ttl = ttl
	}
}

// WithPublishTimeout bounds each queued publish.
func WithPublishTimeout(timeout time.Duration) Option {
	return func(e *Extension) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithLogger configures a logger for transport diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates a new Redis extension with options.
func New(address, password string, db int, opts ...Option) *Extension {
	return NewFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewFromClient creates a new Redis extension from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Extension {
	e := &Extension{
		client:  client,
		prefix:  DefaultPrefix,
		timeout: DefaultPublishTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ ports.Extension = (*Extension)(nil)

// Close releases the underlying client. Open connections stop receiving commands.
func (e *Extension) Close() error {
	return e.client.Close()
}

func (e *Extension) indexKey() string {
	return e.prefix + "index"
}

// score is the index expiry of an instance touched now.
func (e *Extension) score() float64 {
	if e.ttl == 0 {
		return 4102444800 // 2100-01-01
	}
	return float64(time.Now().Add(e.ttl).Unix())
}

// Connect subscribes to the instance command channel and announces cfg.
func (e *Extension) Connect(ctx context.Context, cfg domain.ConnectConfig) (ports.Connection, error) {
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if err := e.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDevToolUnavailable, err)
	}

	pubsub := e.client.Subscribe(ctx, InChannel(e.prefix, cfg.InstanceID))
	// Wait for the subscription so no command published after Connect is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("%w: %w", domain.ErrDevToolUnavailable, err)
	}

	handleCtx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ext:      e,
		ctx:      handleCtx,
		cancel:   cancel,
		instance: cfg.InstanceID,
		pubsub:   pubsub,
		bus:      store.NewBroadcaster[domain.DevToolMessage](e.logger),
		logger:   e.logger.With("instance", cfg.InstanceID),
		send:     make(chan domain.Envelope, sendBufferSize),
		done:     make(chan struct{}),
		written:  make(chan struct{}),
	}

	if err := c.publish(ctx, c.stamp(domain.Envelope{Kind: domain.KindConnect, Config: &cfg})); err != nil {
		pubsub.Close()
		cancel()
		return nil, err
	}
	go c.writeLoop()
	go c.readLoop()
	return c, nil
}

// Instances returns the instances listed in the index, pruning expired ones.
func (e *Extension) Instances(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := e.client.ZRemRangeByScore(ctx, e.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired instances: %w", err)
	}

	instances, err := e.client.ZRange(ctx, e.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	return instances, nil
}

// Conn is one instance's pub/sub connection.
type Conn struct {
	ext      *Extension
	ctx      context.Context
	cancel   context.CancelFunc
	instance string
	pubsub   *backend.PubSub
	bus      *store.Broadcaster[domain.DevToolMessage]
	logger   *slog.Logger

	send chan domain.Envelope

	closeOnce sync.Once
	done      chan struct{}
	written   chan struct{}
}

var _ ports.Connection = (*Conn)(nil)

// Init queues an init envelope.
func (c *Conn) Init(state any) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return c.enqueue(domain.Envelope{Kind: domain.KindInit, State: raw})
}

// Send queues an action envelope. It never waits on Redis: when the queue
// is full the envelope is dropped and an error returned.
func (c *Conn) Send(action domain.DevToolAction, state any) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return c.enqueue(domain.Envelope{Kind: domain.KindAction, Action: &action, State: raw})
}

// Subscribe registers fn for commands published on the instance channel.
func (c *Conn) Subscribe(fn func(domain.DevToolMessage)) func() {
	return c.bus.Subscribe(func(msg domain.DevToolMessage) error {
		fn(msg)
		return nil
	})
}

// Close flushes queued envelopes, unsubscribes and removes the instance from
// the index.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.written

		err = c.pubsub.Close()
		<-c.done

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if zerr := c.ext.client.ZRem(ctx, c.ext.indexKey(), c.instance).Err(); zerr != nil {
			c.logger.Debug("DevTool index cleanup failed", "err", zerr)
		}
	})
	return err
}

func (c *Conn) stamp(env domain.Envelope) domain.Envelope {
	env.Instance = c.instance
	env.Time = time.Now()
	return env
}

func (c *Conn) enqueue(env domain.Envelope) error {
	select {
	case <-c.ctx.Done():
		return domain.ErrDevToolUnavailable
	default:
	}

	select {
	case c.send <- c.stamp(env):
		return nil
	default:
		c.logger.Warn("DevTool envelope dropped", "kind", env.Kind)
		return fmt.Errorf("send queue full for %s", c.instance)
	}
}

func (c *Conn) writeLoop() {
	defer close(c.written)

	for {
		select {
		case <-c.ctx.Done():
			c.flush()
			return
		case env := <-c.send:
			if err := c.publishWithTimeout(env); err != nil {
				c.logger.Warn("DevTool publish failed", "kind", env.Kind, "err", err)
			}
		}
	}
}

// flush publishes what is still queued and gives up on the first failure.
func (c *Conn) flush() {
	for {
		select {
		case env := <-c.send:
			if err := c.publishWithTimeout(env); err != nil {
				c.logger.Debug("DevTool flush stopped", "err", err)
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) publishWithTimeout(env domain.Envelope) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.ext.timeout)
	defer cancel()
	return c.publish(ctx, env)
}

func (c *Conn) publish(ctx context.Context, env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	pipe := c.ext.client.Pipeline()
	pipe.Publish(ctx, OutChannel(c.ext.prefix), data)
	pipe.ZAdd(ctx, c.ext.indexKey(), backend.Z{Score: c.ext.score(), Member: c.instance})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

func (c *Conn) readLoop() {
	defer close(c.done)

	for msg := range c.pubsub.Channel() {
		var env domain.Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			c.logger.Warn("DevTool frame ignored", "err", err)
			continue
		}
		if env.Kind != domain.KindCommand || env.Message == nil {
			continue
		}
		if err := c.bus.Publish(*env.Message); err != nil {
			c.logger.Warn("DevTool subscriber failed", "err", err)
		}
	}
}
