package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/relite/pkg/domain"
	"github.com/aretw0/relite/pkg/logger"
	"github.com/aretw0/relite/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	Count int `json:"count"`
}

func newCounter(t *testing.T) *store.Store[counter] {
	t.Helper()
	tick := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(1500 * time.Microsecond)
		return tick
	}
	st, err := store.New(store.ActionTable[counter]{
		"INCREMENT": store.Reducer(func(s counter, _ any) counter {
			return counter{Count: s.Count + 1}
		}),
	}, counter{}, store.WithClock(clock))
	require.NoError(t, err)
	return st
}

func TestLogger_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	st := newCounter(t)
	st.Subscribe(logger.New[counter](logger.WithWriter(&buf), logger.WithTitle("[counter]")))

	_, err := st.Dispatch("INCREMENT", nil)
	require.NoError(t, err)

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[counter] action INCREMENT @ 10:00:00.003 (in 1.50 ms)", lines[0])
	assert.Equal(t, `  prev state {"count":0}`, lines[1])
	assert.Equal(t, `  action     {"type":"INCREMENT"}`, lines[2])
	assert.Equal(t, `  next state {"count":1}`, lines[3])
	assert.NotContains(t, out, "\x1b[", "no escape codes when the writer is not a terminal")
}

func TestLogger_ForcedColor(t *testing.T) {
	var buf bytes.Buffer
	st := newCounter(t)
	st.Subscribe(logger.New[counter](logger.WithWriter(&buf), logger.WithColor(true)))

	_, err := st.Dispatch("INCREMENT", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestLogger_Indent(t *testing.T) {
	var buf bytes.Buffer
	st := newCounter(t)
	st.Subscribe(logger.New[counter](logger.WithWriter(&buf), logger.WithIndent()))

	_, err := st.Dispatch("INCREMENT", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "\"count\": 1")
}

func TestLogger_Slog(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	st := newCounter(t)
	st.Subscribe(logger.New[counter](logger.WithSlog(log), logger.WithTitle("counter")))

	_, err := st.Dispatch("INCREMENT", nil)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "State changed", entry["msg"])
	assert.Equal(t, "INCREMENT", entry["action"])
	assert.Equal(t, "counter", entry["store"])
	assert.Equal(t, map[string]any{"count": float64(1)}, entry["next"])
}

func TestLogger_UnencodableState(t *testing.T) {
	var buf bytes.Buffer
	listener := logger.New[any](logger.WithWriter(&buf))

	err := listener(domain.ChangeRecord[any]{
		ActionType:    "swap",
		PreviousState: func() {},
		CurrentState:  1,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "next state 1")
}
