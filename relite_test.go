package relite_test

import (
	"bytes"
	"testing"

	"github.com/aretw0/relite"
	"github.com/aretw0/relite/pkg/devtool"
	"github.com/aretw0/relite/pkg/domain"
	"github.com/aretw0/relite/pkg/logger"
	"github.com/aretw0/relite/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var counterTable = relite.ActionTable[int]{
	"inc": store.Reducer(func(n int, _ any) int { return n + 1 }),
}

func TestCreateStore_Name(t *testing.T) {
	named, err := relite.CreateStore(counterTable, 0, "counter")
	require.NoError(t, err)
	assert.Equal(t, "counter", named.Name())

	unnamed, err := relite.CreateStore(counterTable, 0)
	require.NoError(t, err)
	assert.Empty(t, unnamed.Name())
}

func TestCreateStore_RejectsReservedAction(t *testing.T) {
	_, err := relite.CreateStore(relite.ActionTable[int]{
		domain.ActionReplace: store.Reducer(func(n int, _ any) int { return n }),
	}, 0)
	assert.ErrorIs(t, err, domain.ErrReservedAction)
}

func TestCreateLogger(t *testing.T) {
	st, err := relite.CreateStore(counterTable, 41, "answer")
	require.NoError(t, err)

	var buf bytes.Buffer
	st.Subscribe(relite.CreateLogger[int](logger.WithWriter(&buf)))

	_, err = st.Dispatch("inc", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "action inc")
	assert.Contains(t, buf.String(), "next state 42")
}

func TestAttachDevTool_NilExtension(t *testing.T) {
	st, err := relite.CreateStore(counterTable, 0)
	require.NoError(t, err)

	bridge := relite.NewDevTool(nil, devtool.WithMode(devtool.ModeOneWay))
	defer bridge.Close()

	relite.AttachDevTool(bridge, st)
	assert.False(t, bridge.Attached(st), "the no-op extension never connects")

	_, err = st.Dispatch("inc", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, st.GetState())
}
