package store

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aretw0/relite/internal/logging"
	"github.com/aretw0/relite/pkg/domain"
)

// Broadcaster is an ordered list of listeners with snapshot-before-publish semantics.
// Safe for concurrent use.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   []*subscription[T]
	logger *slog.Logger
}

type subscription[T any] struct {
	fn func(T) error
}

// NewBroadcaster creates an empty broadcaster. A nil logger disables diagnostics.
func NewBroadcaster[T any](logger *slog.Logger) *Broadcaster[T] {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Broadcaster[T]{logger: logger}
}

// Subscribe appends fn to the listener list and returns its unsubscribe function.
// Unsubscribing removes exactly this subscription; later calls are no-ops.
func (b *Broadcaster[T]) Subscribe(fn func(T) error) func() {
	sub := &subscription[T]{fn: fn}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return func() {
		b.remove(sub)
	}
}

func (b *Broadcaster[T]) remove(sub *subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	idx := slices.Index(b.subs, sub)
	if idx == -1 {
		b.logger.Warn("Unsubscribe of a listener that is not subscribed, it may have been unsubscribed already")
		return
	}
	b.subs = slices.Delete(b.subs, idx, idx+1)
}

// Publish calls every listener subscribed when the call started, in order.
// Listeners added or removed meanwhile only affect the next publish.
// Errors (and panics) of individual listeners are joined and returned after
// all of them ran.
func (b *Broadcaster[T]) Publish(v T) error {
	b.mu.Lock()
	snapshot := slices.Clone(b.subs)
	b.mu.Unlock()

	var errs []error
	for _, sub := range snapshot {
		if err := sub.call(v); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrListener, errors.Join(errs...))
}

// Len returns the number of subscribed listeners.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (s *subscription[T]) call(v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return s.fn(v)
}
