package devtool

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/relite/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// command is the payload of a DISPATCH message.
type command struct {
	Type            string         `mapstructure:"type"`
	ActionID        int            `mapstructure:"actionId"`
	BeforeActionID  int            `mapstructure:"beforeActionId"`
	Index           int            `mapstructure:"index"`
	ID              int            `mapstructure:"id"`
	Status          bool           `mapstructure:"status"`
	NextLiftedState map[string]any `mapstructure:"nextLiftedState"`
}

// remoteAction is the payload of an ACTION message.
type remoteAction struct {
	Type    string `mapstructure:"type"`
	Payload any    `mapstructure:"payload"`
}

// liftedState is the inspector's export format.
type liftedState struct {
	ComputedStates []struct {
		State any `mapstructure:"state" json:"state"`
	} `mapstructure:"computedStates" json:"computedStates"`
	CurrentStateIndex *int `mapstructure:"currentStateIndex" json:"currentStateIndex"`
}

// current returns the state the lifted state points at.
func (l liftedState) current() (any, error) {
	n := len(l.ComputedStates)
	if n == 0 {
		return nil, fmt.Errorf("lifted state has no computed states")
	}
	idx := n - 1
	if l.CurrentStateIndex != nil {
		idx = *l.CurrentStateIndex
	}
	if idx < 0 || idx >= n {
		return nil, fmt.Errorf("current state index %d out of range [0:%d]", idx, n)
	}
	return l.ComputedStates[idx].State, nil
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// decodeState parses a JSON state snapshot into S.
func decodeState[S any](raw string) (S, error) {
	var s S
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return s, fmt.Errorf("invalid state: %w", err)
	}
	return s, nil
}

// convertState turns a generic JSON value into S.
func convertState[S any](v any) (S, error) {
	var s S
	raw, err := json.Marshal(v)
	if err != nil {
		return s, fmt.Errorf("invalid state: %w", err)
	}
	return decodeState[S](string(raw))
}

// handle applies one inbound message. Malformed messages are logged and dropped.
func (s *session[S]) handle(msg domain.DevToolMessage) {
	if err := s.dispatchMessage(msg); err != nil {
		s.logger.Warn("DevTool message ignored", "type", msg.Type, "err", err)
	}
}

func (s *session[S]) dispatchMessage(msg domain.DevToolMessage) error {
	switch msg.Type {
	case domain.MessageStart, domain.MessageUpdate:
		s.reinit()
		return nil
	case domain.MessageStop:
		s.logger.Debug("DevTool monitor stopped")
		return nil
	case domain.MessageAction:
		return s.remoteAction(msg)
	case domain.MessageImport:
		return s.importLifted(msg.State)
	case domain.MessageDispatch:
		var cmd command
		if err := decode(msg.Payload, &cmd); err != nil {
			return fmt.Errorf("invalid command: %w", err)
		}
		return s.command(cmd, msg.State)
	}
	s.logger.Debug("DevTool message type not handled", "type", msg.Type)
	return nil
}

func (s *session[S]) remoteAction(msg domain.DevToolMessage) error {
	s.mu.Lock()
	locked := s.locked
	s.mu.Unlock()
	if locked {
		return fmt.Errorf("changes are locked")
	}

	var act remoteAction
	if err := decode(msg.Payload, &act); err != nil {
		return fmt.Errorf("invalid action: %w", err)
	}
	if act.Type == "" {
		return fmt.Errorf("action without type")
	}
	if _, err := s.st.Dispatch(act.Type, act.Payload); err != nil {
		return fmt.Errorf("dispatch %q: %w", act.Type, err)
	}
	return nil
}

func (s *session[S]) command(cmd command, rawState string) error {
	switch cmd.Type {
	case domain.CommandJumpToState, domain.CommandJumpToAction:
		next, err := s.jumpTarget(cmd, rawState)
		if err != nil {
			return err
		}
		s.apply(next, domain.ActionDevToolJump, map[string]any{"actionId": cmd.ActionID})
		return nil

	case domain.CommandImportState:
		if cmd.NextLiftedState == nil {
			return fmt.Errorf("%s without nextLiftedState", cmd.Type)
		}
		var lifted liftedState
		if err := decode(cmd.NextLiftedState, &lifted); err != nil {
			return fmt.Errorf("invalid lifted state: %w", err)
		}
		return s.applyLifted(lifted)

	case domain.CommandRollback:
		next := s.snapshotBase()
		if rawState != "" {
			parsed, err := decodeState[S](rawState)
			if err != nil {
				return err
			}
			next = parsed
		}
		if s.apply(next, domain.ActionDevToolRollback, nil) {
			s.reinit()
		}
		return nil

	case domain.CommandCommit:
		s.reinit()
		return nil

	case domain.CommandReset:
		if s.apply(s.initial, domain.ActionDevToolReset, nil) {
			s.reinit()
		}
		return nil

	case domain.CommandToggleAction:
		s.mu.Lock()
		idx := s.indexOf(cmd.ID)
		if idx == -1 {
			s.mu.Unlock()
			return fmt.Errorf("unknown action id %d", cmd.ID)
		}
		s.history[idx].skipped = !s.history[idx].skipped
		next := s.replay()
		s.mu.Unlock()
		s.apply(next, domain.ActionDevToolReplay, map[string]any{"toggled": cmd.ID})
		return nil

	case domain.CommandReorderAction:
		s.mu.Lock()
		from := s.indexOf(cmd.ActionID)
		to := s.indexOf(cmd.BeforeActionID)
		if from == -1 {
			s.mu.Unlock()
			return fmt.Errorf("unknown action id %d", cmd.ActionID)
		}
		moved := s.history[from]
		s.history = append(s.history[:from:from], s.history[from+1:]...)
		if to == -1 {
			s.history = append(s.history, moved)
		} else {
			if to > from {
				to--
			}
			s.history = append(s.history[:to], append([]entry[S]{moved}, s.history[to:]...)...)
		}
		next := s.replay()
		s.mu.Unlock()
		s.apply(next, domain.ActionDevToolReplay, map[string]any{"moved": cmd.ActionID})
		return nil

	case domain.CommandSweep:
		s.mu.Lock()
		kept := s.history[:0:0]
		for _, e := range s.history {
			if !e.skipped {
				kept = append(kept, e)
			}
		}
		s.history = kept
		next := s.replay()
		s.mu.Unlock()
		s.apply(next, domain.ActionDevToolReplay, nil)
		return nil

	case domain.CommandLockChanges:
		s.mu.Lock()
		s.locked = cmd.Status
		s.mu.Unlock()
		return nil

	case domain.CommandPauseRecording:
		s.mu.Lock()
		s.paused = cmd.Status
		s.mu.Unlock()
		return nil
	}

	s.logger.Debug("DevTool command not handled", "command", cmd.Type)
	return nil
}

// jumpTarget prefers the snapshot sent by the inspector and falls back to the
// local history.
func (s *session[S]) jumpTarget(cmd command, rawState string) (S, error) {
	if rawState != "" {
		return decodeState[S](rawState)
	}
	next, ok := s.stateAt(cmd.ActionID)
	if !ok {
		return next, fmt.Errorf("unknown action id %d", cmd.ActionID)
	}
	return next, nil
}

func (s *session[S]) importLifted(raw string) error {
	if raw == "" {
		return fmt.Errorf("import without state")
	}
	var lifted liftedState
	if err := json.Unmarshal([]byte(raw), &lifted); err != nil {
		return fmt.Errorf("invalid lifted state: %w", err)
	}
	return s.applyLifted(lifted)
}

func (s *session[S]) applyLifted(lifted liftedState) error {
	v, err := lifted.current()
	if err != nil {
		return err
	}
	next, err := convertState[S](v)
	if err != nil {
		return err
	}
	if s.apply(next, domain.ActionDevToolImport, nil) {
		s.reinit()
	}
	return nil
}

func (s *session[S]) snapshotBase() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}
