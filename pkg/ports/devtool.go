package ports

import (
	"context"

	"github.com/aretw0/relite/pkg/domain"
)

// Extension is the entry point of an external time-travel inspector.
type Extension interface {
	// Connect opens a connection for one store instance.
	// Returns domain.ErrDevToolUnavailable when no inspector can be reached.
	Connect(ctx context.Context, cfg domain.ConnectConfig) (Connection, error)
}

// Connection is one store's channel to the inspector.
type Connection interface {
	// Init announces the current state, resetting the inspector's history.
	Init(state any) error

	// Send reports one committed action together with the resulting state.
	Send(action domain.DevToolAction, state any) error

	// Subscribe registers fn for inbound messages and returns its unsubscribe function.
	// fn is called from the connection's reader goroutine.
	Subscribe(fn func(domain.DevToolMessage)) (unsubscribe func())

	// Close releases the connection. It is safe to call more than once.
	Close() error
}
