package store

import (
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/relite/internal/logging"
	"github.com/aretw0/relite/pkg/domain"
)

// maxCommitAttempts bounds how often Dispatch reruns an action whose base was
// replaced underneath it.
const maxCommitAttempts = 3

// Listener receives the record of every committed transition.
type Listener[S any] func(rec domain.ChangeRecord[S]) error

// Store owns one state value and the actions allowed to change it.
//
// GetState may be called from any goroutine. At most one dispatch runs at a
// time: a Dispatch issued while another is producing its next state fails with
// domain.ErrReentrantDispatch instead of waiting.
type Store[S any] struct {
	name    string
	mode    Mode
	table   ActionTable[S]
	actions map[string]BoundAction[S]
	clock   func() time.Time
	logger  *slog.Logger

	lock dispatchLock

	mu      sync.RWMutex
	current S

	bus *Broadcaster[domain.ChangeRecord[S]]
}

// New creates a store holding initial and driven by the actions of table.
// It fails with domain.ErrActionNotFunction or domain.ErrReservedAction when the
// table is misconfigured.
func New[S any](table ActionTable[S], initial S, opts ...Option) (*Store[S], error) {
	if err := Validate(table); err != nil {
		return nil, err
	}

	cfg := config{
		logger: logging.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger
	if cfg.name != "" {
		logger = logger.With("store", cfg.name)
	}

	st := &Store[S]{
		name:    cfg.name,
		mode:    ModeOf(initial),
		table:   maps.Clone(table),
		clock:   cfg.clock,
		logger:  logger,
		current: initial,
		bus:     NewBroadcaster[domain.ChangeRecord[S]](logger),
	}
	if st.table == nil {
		st.table = ActionTable[S]{}
	}

	st.actions = make(map[string]BoundAction[S], len(st.table))
	for name := range st.table {
		st.actions[name] = func(payload any) (S, error) {
			return st.Dispatch(name, payload)
		}
	}

	return st, nil
}

// Name returns the display name given with WithName.
func (s *Store[S]) Name() string {
	return s.name
}

// Mode returns the mutation mode chosen from the initial state.
func (s *Store[S]) Mode() Mode {
	return s.mode
}

// GetState returns the current state. Callers must not modify it.
func (s *Store[S]) GetState() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Actions returns the curried actions, keyed by action type.
func (s *Store[S]) Actions() map[string]BoundAction[S] {
	return maps.Clone(s.actions)
}

// Action returns the curried form of one action.
func (s *Store[S]) Action(actionType string) (BoundAction[S], bool) {
	fn, ok := s.actions[actionType]
	return fn, ok
}

// ActionTypes returns the registered action types in lexical order.
func (s *Store[S]) ActionTypes() []string {
	return sortedKeys(s.table)
}

// Subscribe adds a listener and returns the function removing it.
func (s *Store[S]) Subscribe(listener Listener[S]) func() {
	if listener == nil {
		return func() {}
	}
	return s.bus.Subscribe(listener)
}

// Publish sends rec to every listener without touching the state.
func (s *Store[S]) Publish(rec domain.ChangeRecord[S]) error {
	return s.bus.Publish(rec)
}

// ReplaceState swaps the state for next and, unless silent, publishes rec.
// An empty rec.ActionType is tagged domain.ActionReplace.
//
// It does not wait for a dispatch in progress. That dispatch notices the
// replacement before committing and reruns its action on next.
func (s *Store[S]) ReplaceState(next S, rec domain.ChangeRecord[S], silent bool) error {
	s.commit(next)
	if silent {
		return nil
	}
	if rec.ActionType == "" {
		rec.ActionType = domain.ActionReplace
	}
	return s.bus.Publish(rec)
}

// Dispatch runs the named action against the current state.
//
// When the action leaves the state identical to the previous one nothing is
// committed or published and the previous state is returned. Otherwise the
// next state is committed, a record is published and the next state returned;
// listener failures are reported wrapped in domain.ErrListener, with the state
// already committed.
func (s *Store[S]) Dispatch(actionType string, payload any) (S, error) {
	var zero S

	release, err := s.lock.acquire()
	if err != nil {
		s.logger.Debug("Dispatch rejected", "action", actionType, "err", err)
		return zero, err
	}
	defer release()

	start := s.clock()
	var rec domain.ChangeRecord[S]
	for attempt := 1; ; attempt++ {
		prev := s.GetState()

		next, changed, err := s.produce(prev, actionType, payload)
		if err != nil {
			s.logger.Debug("Dispatch failed", "action", actionType, "err", err)
			return zero, err
		}
		if !changed {
			return prev, nil
		}

		rec = domain.ChangeRecord[S]{
			ActionType:    actionType,
			ActionPayload: payload,
			PreviousState: prev,
			CurrentState:  next,
			Start:         start,
			End:           s.clock(),
		}
		if s.commitIf(prev, next) {
			break
		}
		// ReplaceState landed while the action ran: redo it on the new state.
		s.logger.Debug("Dispatch retried on replaced state", "action", actionType, "attempt", attempt)
		if attempt == maxCommitAttempts {
			return zero, fmt.Errorf("%w: action %q", domain.ErrStateReplaced, actionType)
		}
	}
	release()
	next := rec.CurrentState

	s.logger.Debug("Dispatch committed", "action", actionType, "duration", rec.Duration())
	if err := s.bus.Publish(rec); err != nil {
		return next, err
	}
	return next, nil
}

// Compute runs one action against base and returns the candidate state
// without committing or publishing it. It works on a private draft and may run
// while a dispatch is in progress.
func (s *Store[S]) Compute(base S, actionType string, payload any) (S, error) {
	next, _, err := s.produce(base, actionType, payload)
	if err != nil {
		return base, err
	}
	return next, nil
}

// produce applies the action according to the store mode.
// changed is false when the candidate is identical to base.
func (s *Store[S]) produce(base S, actionType string, payload any) (next S, changed bool, err error) {
	fn, ok := s.table[actionType]
	if !ok {
		return base, false, fmt.Errorf("%w: %q", domain.ErrUnknownAction, actionType)
	}

	d := newDraft(base, s.mode, s.table)
	if err := fn(d, payload); err != nil {
		return base, false, fmt.Errorf("action %q: %w", actionType, err)
	}

	if s.mode == ModeOpaque && !d.replaced {
		if isNil(reflect.ValueOf(&base).Elem()) {
			return base, false, nil
		}
		return base, false, fmt.Errorf("%w: action %q", domain.ErrMissingReturn, actionType)
	}

	next = d.work
	return next, !Identical(base, next), nil
}

func (s *Store[S]) commit(next S) {
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
}

// commitIf stores next only while the current state is still prev.
func (s *Store[S]) commitIf(prev, next S) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !Identical(s.current, prev) {
		return false
	}
	s.current = next
	return true
}

// dispatchLock admits one dispatch at a time and never blocks.
type dispatchLock struct {
	mu sync.Mutex
}

// acquire returns a release function that is safe to call more than once.
func (l *dispatchLock) acquire() (func(), error) {
	if !l.mu.TryLock() {
		return nil, domain.ErrReentrantDispatch
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

func sortedKeys[S any](table ActionTable[S]) []string {
	return slices.Sorted(maps.Keys(table))
}
