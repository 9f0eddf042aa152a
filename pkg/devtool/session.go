package devtool

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/relite/pkg/domain"
	"github.com/aretw0/relite/pkg/ports"
	"github.com/aretw0/relite/pkg/store"
)

// syncState is the echo-suppression state machine of one attached store.
type syncState int32

const (
	stateIdle syncState = iota
	stateApplyingRemote
)

func (s syncState) String() string {
	if s == stateApplyingRemote {
		return "ApplyingRemoteChange"
	}
	return "Idle"
}

// entry is one forwarded record kept for replay.
type entry[S any] struct {
	id      int
	action  domain.DevToolAction
	state   S
	skipped bool
}

// session binds one store to one connection.
type session[S any] struct {
	st      *store.Store[S]
	conn    ports.Connection
	logger  *slog.Logger
	maxAge  int
	initial S

	phase atomic.Int32

	mu      sync.Mutex
	base    S
	history []entry[S]
	nextID  int
	locked  bool
	paused  bool

	unsubs    []func()
	closeOnce sync.Once
}

func connect[S any](b *Bridge, st *store.Store[S], instance string) (*session[S], error) {
	cfg := b.connectConfig(st.Name(), instance, st.ActionTypes())
	conn, err := b.dial(cfg)
	if err != nil {
		return nil, err
	}

	current := st.GetState()
	s := &session[S]{
		st:      st,
		conn:    conn,
		logger:  b.logger.With("store", cfg.Name, "instance", instance),
		maxAge:  b.cfg.maxAge,
		initial: current,
		base:    current,
		nextID:  1,
	}

	if err := conn.Init(current); err != nil {
		s.logger.Warn("DevTool init failed", "err", err)
	}

	s.unsubs = append(s.unsubs, st.Subscribe(s.forward))
	if b.cfg.mode == ModeTwoWay {
		s.unsubs = append(s.unsubs, conn.Subscribe(s.handle))
	}

	s.logger.Debug("DevTool attached", "mode", b.cfg.mode)
	return s, nil
}

func (s *session[S]) close() {
	s.closeOnce.Do(func() {
		for _, unsub := range s.unsubs {
			unsub()
		}
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("DevTool close failed", "err", err)
		}
		s.logger.Debug("DevTool detached")
	})
}

// forward sends a local record to the inspector and keeps it for replay.
// Transport errors are logged, never returned to the store.
func (s *session[S]) forward(rec domain.ChangeRecord[S]) error {
	if syncState(s.phase.Load()) != stateIdle || domain.IsDevToolAction(rec.ActionType) {
		return nil
	}

	s.mu.Lock()
	if s.paused || s.locked {
		s.mu.Unlock()
		return nil
	}
	action := domain.DevToolAction{Type: rec.ActionType, Payload: rec.ActionPayload}
	s.history = append(s.history, entry[S]{id: s.nextID, action: action, state: rec.CurrentState})
	s.nextID++
	if over := len(s.history) - s.maxAge; over > 0 {
		s.base = s.history[over-1].state
		s.history = slices.Delete(s.history, 0, over)
	}
	s.mu.Unlock()

	if err := s.conn.Send(action, rec.CurrentState); err != nil {
		s.logger.Warn("DevTool send failed", "action", rec.ActionType, "err", err)
	}
	return nil
}

// apply replaces the store state on behalf of the inspector.
// Records published meanwhile are not forwarded. It reports whether the state
// was replaced.
func (s *session[S]) apply(next S, actionType string, payload any) bool {
	if !s.phase.CompareAndSwap(int32(stateIdle), int32(stateApplyingRemote)) {
		s.logger.Warn("DevTool command ignored while another one is applied", "action", actionType)
		return false
	}
	defer s.phase.Store(int32(stateIdle))

	now := time.Now()
	rec := domain.ChangeRecord[S]{
		ActionType:    actionType,
		ActionPayload: payload,
		PreviousState: s.st.GetState(),
		CurrentState:  next,
		Start:         now,
		End:           now,
	}
	if err := s.st.ReplaceState(next, rec, false); err != nil {
		s.logger.Warn("Listener failed on devtool change", "action", actionType, "err", err)
	}
	return true
}

// reinit makes the current state the inspector's new starting point.
func (s *session[S]) reinit() {
	current := s.st.GetState()

	s.mu.Lock()
	s.base = current
	s.history = nil
	s.nextID = 1
	s.mu.Unlock()

	if err := s.conn.Init(current); err != nil {
		s.logger.Warn("DevTool init failed", "err", err)
	}
}

// stateAt returns the state right after the action with the given id.
// Id 0 is the state the history starts from.
func (s *session[S]) stateAt(id int) (S, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == 0 {
		return s.base, true
	}
	for _, e := range s.history {
		if e.id == id {
			return e.state, true
		}
	}
	var zero S
	return zero, false
}

// replay recomputes the history from its base, skipping toggled entries.
// s.mu must be held.
func (s *session[S]) replay() S {
	state := s.base
	for i := range s.history {
		e := &s.history[i]
		if !e.skipped {
			next, err := s.st.Compute(state, e.action.Type, e.action.Payload)
			if err != nil {
				s.logger.Warn("DevTool replay skipped an action", "action", e.action.Type, "id", e.id, "err", err)
			} else {
				state = next
			}
		}
		e.state = state
	}
	return state
}

func (s *session[S]) indexOf(id int) int {
	return slices.IndexFunc(s.history, func(e entry[S]) bool { return e.id == id })
}
