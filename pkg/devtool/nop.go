package devtool

import (
	"context"

	"github.com/aretw0/relite/pkg/domain"
	"github.com/aretw0/relite/pkg/ports"
)

// NopExtension stands in when no inspector is installed.
type NopExtension struct{}

var _ ports.Extension = NopExtension{}

// Connect always fails with domain.ErrDevToolUnavailable.
func (NopExtension) Connect(context.Context, domain.ConnectConfig) (ports.Connection, error) {
	return nil, domain.ErrDevToolUnavailable
}
