package domain

import "errors"

// ErrUnknownAction is returned when dispatching an action type that is not in the action table.
var ErrUnknownAction = errors.New("unknown action")

// ErrReentrantDispatch is returned when Dispatch is called while another dispatch
// is still running on the same store (for example, from inside an action).
var ErrReentrantDispatch = errors.New("store.dispatch: handler may not dispatch")

// ErrStateReplaced is returned when ReplaceState keeps replacing the state while
// a dispatch is running its action.
var ErrStateReplaced = errors.New("state replaced during dispatch")

// ErrActionNotFunction is returned at store construction when an action table entry is nil.
var ErrActionNotFunction = errors.New("action must be a function")

// ErrMissingReturn is returned when an action on a non-draftable state does not replace it.
var ErrMissingReturn = errors.New("an action on a non-draftable value must return a new value")

// ErrReservedAction is returned at store construction when an action name uses the reserved "@@" prefix.
var ErrReservedAction = errors.New("action type is reserved")

// ErrListener wraps the aggregated errors of listeners that failed during a publish.
var ErrListener = errors.New("listener failed")

// ErrPayloadType is returned by typed actions when the payload has an unexpected dynamic type.
var ErrPayloadType = errors.New("unexpected payload type")

// ErrInvalidPath is returned by draft path operations that cannot reach their target.
var ErrInvalidPath = errors.New("invalid draft path")

// ErrNotDraftable is returned by draft mutations on a store holding an opaque state.
var ErrNotDraftable = errors.New("state is not draftable")

// ErrDevToolUnavailable is returned by extensions that cannot reach an inspector.
var ErrDevToolUnavailable = errors.New("devtool extension unavailable")

// ErrInstanceNotFound is returned by the inspector hub for unknown instance IDs.
var ErrInstanceNotFound = errors.New("instance not found")
