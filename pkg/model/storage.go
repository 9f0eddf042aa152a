package model

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/relite/internal/logging"
	"github.com/aretw0/relite/pkg/devtool"
	"github.com/aretw0/relite/pkg/domain"
	"github.com/aretw0/relite/pkg/store"
)

// Storage keeps at most one store per model and merges their records.
// Entries are created lazily and never removed. Safe for concurrent use.
type Storage struct {
	mu      sync.Mutex
	entries map[any]any
	order   []string

	bus    *store.Broadcaster[domain.ChangeRecord[any]]
	bridge *devtool.Bridge
	logger *slog.Logger
	seeds  []Seed
}

// Seed is a store to create when the storage is built. See Preload.
type Seed interface {
	plant(st *Storage) error
}

type seed[S any] struct {
	model   *Model[S]
	initial []S
}

func (s seed[S]) plant(st *Storage) error {
	_, err := GetStore(st, s.model, s.initial...)
	return err
}

// Preload schedules the store of m to be created by NewStorage.
func Preload[S any](m *Model[S], initial ...S) Seed {
	return seed[S]{model: m, initial: initial}
}

// Option configures a Storage.
type Option func(*Storage)

// WithPreload creates the stores of seeds eagerly, in order.
func WithPreload(seeds ...Seed) Option {
	return func(s *Storage) {
		s.seeds = append(s.seeds, seeds...)
	}
}

// WithDevTool attaches every store the storage creates to b.
func WithDevTool(b *devtool.Bridge) Option {
	return func(s *Storage) {
		s.bridge = b
	}
}

// WithLogger configures a logger for storage diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStorage creates a storage, building the preloaded stores first.
func NewStorage(opts ...Option) (*Storage, error) {
	s := &Storage{
		entries: make(map[any]any),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bus = store.NewBroadcaster[domain.ChangeRecord[any]](s.logger)

	for i, sd := range s.seeds {
		if sd == nil {
			continue
		}
		if err := sd.plant(s); err != nil {
			return nil, fmt.Errorf("preload #%d: %w", i, err)
		}
	}
	s.seeds = nil
	return s, nil
}

// GetStore returns the store of m, creating it on first use.
// initial only matters on creation; it replaces the model's default state.
func GetStore[S any](s *Storage, m *Model[S], initial ...S) (*store.Store[S], error) {
	if s == nil || m == nil {
		return nil, fmt.Errorf("model.GetStore: nil storage or model")
	}

	s.mu.Lock()
	if existing, ok := s.entries[m]; ok {
		s.mu.Unlock()
		return existing.(*store.Store[S]), nil
	}

	st, err := m.NewStore(initial...)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	st.Subscribe(func(rec domain.ChangeRecord[S]) error {
		return s.bus.Publish(domain.Erase(rec))
	})
	s.entries[m] = st
	s.order = append(s.order, st.Name())
	s.mu.Unlock()

	s.logger.Debug("Store created", "store", st.Name(), "mode", st.Mode())
	if s.bridge != nil {
		devtool.Attach(s.bridge, st)
	}
	return st, nil
}

// Subscribe receives the records of every managed store.
// Records do not say which store produced them.
func (s *Storage) Subscribe(listener store.Listener[any]) func() {
	if listener == nil {
		return func() {}
	}
	return s.bus.Subscribe(listener)
}

// Len returns the number of stores created so far.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Names returns the store names in creation order. Unnamed stores appear as "".
func (s *Storage) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}
