// Package memory provides an in-process devtool extension.
//
// It records every outbound frame and lets the host (usually a test) emit
// inspector commands synchronously, which makes bridge behavior deterministic.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/relite/pkg/domain"
	"github.com/aretw0/relite/pkg/ports"
	"github.com/aretw0/relite/pkg/store"
	"github.com/google/uuid"
)

// Extension implements ports.Extension in memory.
// Safe for concurrent use.
type Extension struct {
	mu          sync.RWMutex
	conns       map[string]*Conn
	sent        map[string][]domain.Envelope
	clock       func() time.Time
	unavailable bool
}

// Option configures an Extension.
type Option func(*Extension)

// WithClock overrides the time stamped on recorded envelopes.
func WithClock(clock func() time.Time) Option {
	return func(e *Extension) {
		e.clock = clock
	}
}

// Unavailable makes Connect fail as if no inspector were installed.
func Unavailable() Option {
	return func(e *Extension) {
		e.unavailable = true
	}
}

// NewExtension creates an empty in-memory extension.
func NewExtension(opts ...Option) *Extension {
	e := &Extension{
		conns: make(map[string]*Conn),
		sent:  make(map[string][]domain.Envelope),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ ports.Extension = (*Extension)(nil)

// Connect registers a connection for cfg.InstanceID, generating one when empty.
func (e *Extension) Connect(ctx context.Context, cfg domain.ConnectConfig) (ports.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.unavailable {
		return nil, domain.ErrDevToolUnavailable
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	conn := &Conn{
		ext:      e,
		instance: cfg.InstanceID,
		bus:      store.NewBroadcaster[domain.DevToolMessage](nil),
	}

	e.mu.Lock()
	e.conns[cfg.InstanceID] = conn
	e.mu.Unlock()

	c := cfg
	e.record(domain.Envelope{Kind: domain.KindConnect, Instance: cfg.InstanceID, Config: &c})
	return conn, nil
}

// Emit delivers msg to the connection of instance on the calling goroutine.
func (e *Extension) Emit(instance string, msg domain.DevToolMessage) error {
	e.mu.RLock()
	conn, ok := e.conns[instance]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, instance)
	}
	return conn.deliver(msg)
}

// Sent returns a copy of the envelopes recorded for instance.
func (e *Extension) Sent(instance string) []domain.Envelope {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.sent[instance])
}

// Instances returns the IDs of open connections, sorted.
func (e *Extension) Instances() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Sorted(maps.Keys(e.conns))
}

// Reset forgets every recorded envelope.
func (e *Extension) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = make(map[string][]domain.Envelope)
}

func (e *Extension) record(env domain.Envelope) {
	env.Time = e.clock()
	e.mu.Lock()
	e.sent[env.Instance] = append(e.sent[env.Instance], env)
	e.mu.Unlock()
}

func (e *Extension) drop(instance string, conn *Conn) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conns[instance] == conn {
		delete(e.conns, instance)
	}
}

// Conn is one in-memory connection.
type Conn struct {
	ext      *Extension
	instance string
	bus      *store.Broadcaster[domain.DevToolMessage]

	mu     sync.Mutex
	closed bool
}

var _ ports.Connection = (*Conn)(nil)

// Instance returns the instance ID the connection was opened for.
func (c *Conn) Instance() string {
	return c.instance
}

// Init records an init envelope.
func (c *Conn) Init(state any) error {
	return c.send(domain.Envelope{Kind: domain.KindInit}, state)
}

// Send records an action envelope.
func (c *Conn) Send(action domain.DevToolAction, state any) error {
	return c.send(domain.Envelope{Kind: domain.KindAction, Action: &action}, state)
}

func (c *Conn) send(env domain.Envelope, state any) error {
	if c.isClosed() {
		return domain.ErrDevToolUnavailable
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	env.Instance = c.instance
	env.State = raw
	c.ext.record(env)
	return nil
}

// Subscribe registers fn for messages passed to Extension.Emit.
func (c *Conn) Subscribe(fn func(domain.DevToolMessage)) func() {
	return c.bus.Subscribe(func(msg domain.DevToolMessage) error {
		fn(msg)
		return nil
	})
}

// Close detaches the connection from its extension.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.ext.drop(c.instance, c)
	return nil
}

func (c *Conn) deliver(msg domain.DevToolMessage) error {
	if c.isClosed() {
		return domain.ErrDevToolUnavailable
	}
	return c.bus.Publish(msg)
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
