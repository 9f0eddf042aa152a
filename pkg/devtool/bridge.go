package devtool

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/relite/internal/logging"
	"github.com/aretw0/relite/pkg/domain"
	"github.com/aretw0/relite/pkg/ports"
	"github.com/aretw0/relite/pkg/store"
	"github.com/google/uuid"
)

// Bridge connects stores to one inspector extension.
// Safe for concurrent use.
type Bridge struct {
	ext    ports.Extension
	cfg    config
	logger *slog.Logger

	mu       sync.Mutex
	attached map[any]*handle
	closed   bool
}

// handle is the type-erased view of an attached store.
// A nil detach marks an attachment still connecting.
type handle struct {
	instance string
	detach   func()
}

// New creates a bridge over ext. A nil ext behaves like NopExtension.
func New(ext ports.Extension, opts ...Option) *Bridge {
	if ext == nil {
		ext = NopExtension{}
	}
	cfg := config{
		mode:           ModeTwoWay,
		enabled:        true,
		logger:         logging.NewNop(),
		connectTimeout: 5 * time.Second,
		maxAge:         DefaultMaxAge,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Bridge{
		ext:      ext,
		cfg:      cfg,
		logger:   cfg.logger,
		attached: make(map[any]*handle),
	}
}

// Mode returns the synchronization mode.
func (b *Bridge) Mode() Mode {
	return b.cfg.mode
}

// Attach connects st to the bridge's inspector. It is idempotent per bridge
// and store, and never fails: problems are logged and st keeps working
// without an inspector.
func Attach[S any](b *Bridge, st *store.Store[S]) {
	if b == nil || st == nil || !b.cfg.enabled {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if _, ok := b.attached[st]; ok {
		b.mu.Unlock()
		return
	}
	h := &handle{instance: uuid.NewString()}
	b.attached[st] = h
	b.mu.Unlock()

	sess, err := connect(b, st, h.instance)
	if err != nil {
		b.logger.Warn("DevTool unavailable, store runs without inspector", "store", st.Name(), "err", err)
		b.mu.Lock()
		delete(b.attached, st)
		b.mu.Unlock()
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || b.attached[st] != h {
		// Closed or detached while connecting.
		sess.close()
		return
	}
	h.detach = sess.close
}

// Detach disconnects a store previously passed to Attach.
func (b *Bridge) Detach(st any) {
	b.mu.Lock()
	h, ok := b.attached[st]
	if ok {
		delete(b.attached, st)
	}
	b.mu.Unlock()

	if ok && h.detach != nil {
		h.detach()
	}
}

// Attached reports whether st is connected through this bridge.
func (b *Bridge) Attached(st any) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.attached[st]
	return ok && h.detach != nil
}

// Close detaches every store. Later calls to Attach are ignored.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	handles := b.attached
	b.attached = make(map[any]*handle)
	b.mu.Unlock()

	for _, h := range handles {
		if h.detach != nil {
			h.detach()
		}
	}
}

func (b *Bridge) connectConfig(name, instance string, actions []string) domain.ConnectConfig {
	if b.cfg.instanceName != "" {
		name = b.cfg.instanceName
	}
	if name == "" {
		name = "relite"
	}
	return domain.ConnectConfig{
		Name:             name,
		InstanceID:       instance,
		ActionsAllowlist: actions,
	}
}

func (b *Bridge) dial(cfg domain.ConnectConfig) (ports.Connection, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.connectTimeout)
	defer cancel()
	return b.ext.Connect(ctx, cfg)
}
