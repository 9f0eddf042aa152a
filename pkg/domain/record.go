package domain

import "time"

// ChangeRecord is the audit record of one committed state transition.
// It is created once per successful dispatch and passed by value to every listener.
type ChangeRecord[S any] struct {
	// ActionType identifies the action that produced the transition.
	ActionType string `json:"actionType"`

	// ActionPayload is the payload the action was dispatched with.
	ActionPayload any `json:"actionPayload,omitempty"`

	// PreviousState is the state the action ran against.
	PreviousState S `json:"previousState"`

	// CurrentState is the committed state after the transition.
	CurrentState S `json:"currentState"`

	// Start is when the dispatch began.
	Start time.Time `json:"start"`

	// End is when the next state was computed.
	End time.Time `json:"end"`
}

// Duration returns how long the action took to produce the next state.
func (r ChangeRecord[S]) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Erase converts a typed record into one carrying untyped states.
// The registry uses it to merge records of stores with different state types.
func Erase[S any](r ChangeRecord[S]) ChangeRecord[any] {
	return ChangeRecord[any]{
		ActionType:    r.ActionType,
		ActionPayload: r.ActionPayload,
		PreviousState: r.PreviousState,
		CurrentState:  r.CurrentState,
		Start:         r.Start,
		End:           r.End,
	}
}
