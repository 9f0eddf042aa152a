// Package websocket connects devtool bridges to a relite hub over WebSocket.
//
// Every frame is one JSON domain.Envelope. The client writes connect, init and
// action envelopes and reads command envelopes.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/relite/internal/logging"
	"github.com/aretw0/relite/pkg/domain"
	"github.com/aretw0/relite/pkg/ports"
	"github.com/aretw0/relite/pkg/store"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

// sendBufferSize bounds frames waiting for the writer goroutine.
const sendBufferSize = 64

// Settings tunes the connection timeouts.
//
// The hub must answer a ping or send a frame within PongWait, otherwise the
// connection is considered dead. A PongWait not longer than PingInterval is
// replaced by PingInterval+WriteTimeout.
type Settings struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	PongWait     time.Duration
	CloseTimeout time.Duration
}

// DefaultSettings returns the settings used by NewExtension.
func DefaultSettings() Settings {
	return Settings{
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
		PongWait:     60 * time.Second,
		CloseTimeout: time.Second,
	}
}

func (s Settings) pongWait() time.Duration {
	if s.PongWait <= s.PingInterval {
		return s.PingInterval + s.WriteTimeout
	}
	return s.PongWait
}

// Extension implements ports.Extension by dialing a hub.
type Extension struct {
	url      string
	header   http.Header
	dialer   *ws.Dialer
	settings Settings
	logger   *slog.Logger
}

// Option configures an Extension.
type Option func(*Extension)

// WithLogger configures a logger for transport diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHeader adds HTTP headers to the handshake.
func WithHeader(header http.Header) Option {
	return func(e *Extension) {
		e.header = header
	}
}

// WithSettings overrides the connection timeouts.
func WithSettings(settings Settings) Option {
	return func(e *Extension) {
		e.settings = settings
	}
}

// NewExtension creates an extension dialing url (ws:// or wss://).
func NewExtension(url string, opts ...Option) *Extension {
	e := &Extension{
		url:      url,
		dialer:   ws.DefaultDialer,
		settings: DefaultSettings(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ ports.Extension = (*Extension)(nil)

// Connect dials the hub and announces cfg. Dial failures are reported as
// domain.ErrDevToolUnavailable.
func (e *Extension) Connect(ctx context.Context, cfg domain.ConnectConfig) (ports.Connection, error) {
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	socket, _, err := e.dialer.DialContext(ctx, e.url, e.header)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDevToolUnavailable, err)
	}

	handleCtx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ctx:      handleCtx,
		cancel:   cancel,
		socket:   socket,
		instance: cfg.InstanceID,
		settings: e.settings,
		logger:   e.logger.With("instance", cfg.InstanceID),
		send:     make(chan []byte, sendBufferSize),
		bus:      store.NewBroadcaster[domain.DevToolMessage](e.logger),
		done:     make(chan struct{}),
	}

	if err := c.enqueue(domain.Envelope{Kind: domain.KindConnect, Config: &cfg}); err != nil {
		socket.Close()
		cancel()
		return nil, err
	}

	go c.writeLoop()
	go c.readLoop()
	return c, nil
}

// Conn is one WebSocket connection to the hub.
type Conn struct {
	ctx      context.Context
	cancel   context.CancelFunc
	socket   *ws.Conn
	instance string
	settings Settings
	logger   *slog.Logger

	send chan []byte
	bus  *store.Broadcaster[domain.DevToolMessage]

	closeOnce sync.Once
	done      chan struct{}
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

// Send queues an action envelope.
func (c *Conn) Send(action domain.DevToolAction, state any) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return c.enqueue(domain.Envelope{Kind: domain.KindAction, Action: &action, State: raw})
}

// Subscribe registers fn for commands read from the hub.
func (c *Conn) Subscribe(fn func(domain.DevToolMessage)) func() {
	return c.bus.Subscribe(func(msg domain.DevToolMessage) error {
		fn(msg)
		return nil
	})
}

// Close flushes queued frames, says goodbye and closes the socket.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		select {
		case <-c.done:
		case <-time.After(c.settings.CloseTimeout + c.settings.WriteTimeout):
		}
		c.socket.Close()
	})
	return nil
}

func (c *Conn) enqueue(env domain.Envelope) error {
	env.Instance = c.instance
	env.Time = time.Now()
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	select {
	case <-c.ctx.Done():
		return domain.ErrDevToolUnavailable
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.ctx.Done():
		return domain.ErrDevToolUnavailable
	case <-time.After(c.settings.WriteTimeout):
		return fmt.Errorf("send queue full for %s", c.instance)
	}
}

func (c *Conn) writeLoop() {
	defer close(c.done)

	ping := time.NewTicker(c.settings.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.flush()
			return
		case data := <-c.send:
			if err := c.write(ws.TextMessage, data); err != nil {
				c.logger.Warn("DevTool write failed", "err", err)
				c.cancel()
				return
			}
		case <-ping.C:
			if err := c.write(ws.PingMessage, nil); err != nil {
				c.logger.Debug("DevTool ping failed", "err", err)
				c.cancel()
				return
			}
		}
	}
}

// flush writes the frames still queued and a close frame.
func (c *Conn) flush() {
	for {
		select {
		case data := <-c.send:
			if err := c.write(ws.TextMessage, data); err != nil {
				return
			}
		default:
			msg := ws.FormatCloseMessage(ws.CloseNormalClosure, "")
			_ = c.socket.WriteControl(ws.CloseMessage, msg, time.Now().Add(c.settings.CloseTimeout))
			return
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	c.socket.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
	return c.socket.WriteMessage(messageType, data)
}

func (c *Conn) readLoop() {
	defer c.cancel()

	wait := c.settings.pongWait()
	c.socket.SetReadDeadline(time.Now().Add(wait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		messageType, data, err := c.socket.ReadMessage()
		if err != nil {
			select {
			case <-c.ctx.Done():
			default:
				c.logger.Debug("DevTool read ended", "err", err)
			}
			return
		}
		c.socket.SetReadDeadline(time.Now().Add(wait))
		if messageType != ws.TextMessage {
			continue
		}

		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
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
