package devtool_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/aretw0/relite/pkg/adapters/memory"
	"github.com/aretw0/relite/pkg/devtool"
	"github.com/aretw0/relite/pkg/domain"
	"github.com/aretw0/relite/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	Count int `json:"count"`
}

type journal struct {
	Lines []string `json:"lines"`
}

func newCounter(t *testing.T) *store.Store[counter] {
	t.Helper()
	st, err := store.New(store.ActionTable[counter]{
		"increment": store.Reducer(func(s counter, _ any) counter {
			return counter{Count: s.Count + 1}
		}),
		"add": store.Reducer(func(s counter, n int) counter {
			return counter{Count: s.Count + n}
		}),
	}, counter{}, store.WithName("counter"))
	require.NoError(t, err)
	return st
}

func newJournal(t *testing.T) *store.Store[journal] {
	t.Helper()
	st, err := store.New(store.ActionTable[journal]{
		"push": store.Reducer(func(s journal, line string) journal {
			return journal{Lines: append(append([]string(nil), s.Lines...), line)}
		}),
	}, journal{}, store.WithName("journal"))
	require.NoError(t, err)
	return st
}

// attach connects st to a fresh in-memory inspector and returns its instance ID.
func attach[S any](t *testing.T, st *store.Store[S], opts ...devtool.Option) (*memory.Extension, *devtool.Bridge, string) {
	t.Helper()
	ext := memory.NewExtension()
	b := devtool.New(ext, opts...)
	t.Cleanup(b.Close)

	devtool.Attach(b, st)
	instances := ext.Instances()
	require.Len(t, instances, 1)
	return ext, b, instances[0]
}

func kinds(envs []domain.Envelope, kind domain.EnvelopeKind) []domain.Envelope {
	var out []domain.Envelope
	for _, env := range envs {
		if env.Kind == kind {
			out = append(out, env)
		}
	}
	return out
}

func jump(t *testing.T, ext *memory.Extension, instance string, state any) {
	t.Helper()
	raw, err := json.Marshal(state)
	require.NoError(t, err)
	require.NoError(t, ext.Emit(instance, domain.DevToolMessage{
		Type:    domain.MessageDispatch,
		Payload: map[string]any{"type": domain.CommandJumpToState, "actionId": 0},
		State:   string(raw),
	}))
}

func command(t *testing.T, ext *memory.Extension, instance string, payload map[string]any) {
	t.Helper()
	require.NoError(t, ext.Emit(instance, domain.DevToolMessage{Type: domain.MessageDispatch, Payload: payload}))
}

func TestBridge_ForwardsEveryRecord(t *testing.T) {
	st := newCounter(t)
	ext, _, id := attach(t, st, devtool.WithMode(devtool.ModeOneWay))

	sent := ext.Sent(id)
	require.Len(t, sent, 2)
	assert.Equal(t, domain.KindConnect, sent[0].Kind)
	assert.Equal(t, "counter", sent[0].Config.Name)
	assert.Equal(t, []string{"add", "increment"}, sent[0].Config.ActionsAllowlist)
	assert.Equal(t, domain.KindInit, sent[1].Kind)
	assert.JSONEq(t, `{"count":0}`, string(sent[1].State))

	_, err := st.Dispatch("increment", nil)
	require.NoError(t, err)
	_, err = st.Dispatch("add", 4)
	require.NoError(t, err)

	actions := kinds(ext.Sent(id), domain.KindAction)
	require.Len(t, actions, 2)
	assert.Equal(t, "increment", actions[0].Action.Type)
	assert.JSONEq(t, `{"count":1}`, string(actions[0].State))
	assert.Equal(t, "add", actions[1].Action.Type)
	assert.Equal(t, 4, actions[1].Action.Payload)
	assert.JSONEq(t, `{"count":5}`, string(actions[1].State))
}

func TestBridge_AttachIsIdempotent(t *testing.T) {
	st := newCounter(t)
	ext, b, id := attach(t, st)

	devtool.Attach(b, st)
	devtool.Attach(b, st)
	assert.Len(t, ext.Instances(), 1)
	assert.True(t, b.Attached(st))

	_, err := st.Dispatch("increment", nil)
	require.NoError(t, err)
	assert.Len(t, kinds(ext.Sent(id), domain.KindAction), 1)
	assert.Len(t, kinds(ext.Sent(id), domain.KindConnect), 1)
}

func TestBridge_JumpToStateIsNotEchoed(t *testing.T) {
	st := newCounter(t)
	ext, _, id := attach(t, st)

	var local []domain.ChangeRecord[counter]
	st.Subscribe(func(rec domain.ChangeRecord[counter]) error {
		local = append(local, rec)
		return nil
	})

	for range 3 {
		_, err := st.Dispatch("increment", nil)
		require.NoError(t, err)
	}
	require.Len(t, kinds(ext.Sent(id), domain.KindAction), 3)

	jump(t, ext, id, counter{Count: 5})

	assert.Equal(t, counter{Count: 5}, st.GetState())
	assert.Len(t, kinds(ext.Sent(id), domain.KindAction), 3, "the jump must not be sent back")
	require.Len(t, local, 4)
	assert.Equal(t, domain.ActionDevToolJump, local[3].ActionType)
	assert.Equal(t, counter{Count: 3}, local[3].PreviousState)

	// The bridge is idle again: local changes flow out.
	_, err := st.Dispatch("increment", nil)
	require.NoError(t, err)
	actions := kinds(ext.Sent(id), domain.KindAction)
	require.Len(t, actions, 4)
	assert.JSONEq(t, `{"count":6}`, string(actions[3].State))
}

func TestBridge_JumpToActionUsesHistory(t *testing.T) {
	st := newCounter(t)
	ext, _, id := attach(t, st)

	for _, n := range []int{1, 10, 100} {
		_, err := st.Dispatch("add", n)
		require.NoError(t, err)
	}

	command(t, ext, id, map[string]any{"type": domain.CommandJumpToAction, "actionId": 2})
	assert.Equal(t, 11, st.GetState().Count)

	command(t, ext, id, map[string]any{"type": domain.CommandJumpToAction, "actionId": 0.0})
	assert.Equal(t, 0, st.GetState().Count)

	command(t, ext, id, map[string]any{"type": domain.CommandJumpToAction, "actionId": "3"})
	assert.Equal(t, 111, st.GetState().Count)

	command(t, ext, id, map[string]any{"type": domain.CommandJumpToAction, "actionId": 42})
	assert.Equal(t, 111, st.GetState().Count, "unknown ids are ignored")
	assert.Len(t, kinds(ext.Sent(id), domain.KindAction), 3)
}

func TestBridge_ToggleAndSweep(t *testing.T) {
	st := newCounter(t)
	ext, _, id := attach(t, st)

	for _, n := range []int{1, 10, 100} {
		_, err := st.Dispatch("add", n)
		require.NoError(t, err)
	}

	command(t, ext, id, map[string]any{"type": domain.CommandToggleAction, "id": 2})
	assert.Equal(t, 101, st.GetState().Count)

	command(t, ext, id, map[string]any{"type": domain.CommandToggleAction, "id": 2})
	assert.Equal(t, 111, st.GetState().Count)

	command(t, ext, id, map[string]any{"type": domain.CommandToggleAction, "id": 1})
	assert.Equal(t, 110, st.GetState().Count)

	command(t, ext, id, map[string]any{"type": domain.CommandSweep})
	assert.Equal(t, 110, st.GetState().Count)

	// The swept action is gone from the history.
	command(t, ext, id, map[string]any{"type": domain.CommandJumpToAction, "actionId": 1})
	assert.Equal(t, 110, st.GetState().Count)
	command(t, ext, id, map[string]any{"type": domain.CommandJumpToAction, "actionId": 2})
	assert.Equal(t, 10, st.GetState().Count)

	assert.Len(t, kinds(ext.Sent(id), domain.KindAction), 3)
}

func TestBridge_ReorderAction(t *testing.T) {
	st := newJournal(t)
	ext, _, id := attach(t, st)

	for _, line := range []string{"a", "b", "c"} {
		_, err := st.Dispatch("push", line)
		require.NoError(t, err)
	}

	command(t, ext, id, map[string]any{"type": domain.CommandReorderAction, "actionId": 3, "beforeActionId": 1})
	assert.Equal(t, []string{"c", "a", "b"}, st.GetState().Lines)

	command(t, ext, id, map[string]any{"type": domain.CommandReorderAction, "actionId": 3, "beforeActionId": 99})
	assert.Equal(t, []string{"a", "b", "c"}, st.GetState().Lines)
}

func TestBridge_CommitRollbackReset(t *testing.T) {
	st := newCounter(t)
	ext, _, id := attach(t, st)

	_, err := st.Dispatch("add", 2)
	require.NoError(t, err)

	command(t, ext, id, map[string]any{"type": domain.CommandCommit})
	inits := kinds(ext.Sent(id), domain.KindInit)
	require.Len(t, inits, 2)
	assert.JSONEq(t, `{"count":2}`, string(inits[1].State))

	_, err = st.Dispatch("add", 3)
	require.NoError(t, err)
	require.Equal(t, 5, st.GetState().Count)

	// Without a snapshot, rollback returns to the last commit.
	command(t, ext, id, map[string]any{"type": domain.CommandRollback})
	assert.Equal(t, 2, st.GetState().Count)

	require.NoError(t, ext.Emit(id, domain.DevToolMessage{
		Type:    domain.MessageDispatch,
		Payload: map[string]any{"type": domain.CommandRollback},
		State:   `{"count":7}`,
	}))
	assert.Equal(t, 7, st.GetState().Count)

	command(t, ext, id, map[string]any{"type": domain.CommandReset})
	assert.Equal(t, 0, st.GetState().Count)
	assert.Len(t, kinds(ext.Sent(id), domain.KindAction), 2)
}

func TestBridge_ImportState(t *testing.T) {
	st := newCounter(t)
	ext, _, id := attach(t, st)

	command(t, ext, id, map[string]any{
		"type": domain.CommandImportState,
		"nextLiftedState": map[string]any{
			"computedStates": []any{
				map[string]any{"state": map[string]any{"count": 1}},
				map[string]any{"state": map[string]any{"count": 9}},
			},
		},
	})
	assert.Equal(t, 9, st.GetState().Count)

	require.NoError(t, ext.Emit(id, domain.DevToolMessage{
		Type:  domain.MessageImport,
		State: `{"computedStates":[{"state":{"count":4}},{"state":{"count":8}}],"currentStateIndex":0}`,
	}))
	assert.Equal(t, 4, st.GetState().Count)
	assert.Empty(t, kinds(ext.Sent(id), domain.KindAction))
}

func TestBridge_RemoteActionAndLock(t *testing.T) {
	st := newCounter(t)
	ext, _, id := attach(t, st)

	action := domain.DevToolMessage{
		Type:    domain.MessageAction,
		Payload: map[string]any{"type": "add", "payload": 5},
	}
	require.NoError(t, ext.Emit(id, action))
	assert.Equal(t, 5, st.GetState().Count)
	assert.Len(t, kinds(ext.Sent(id), domain.KindAction), 1, "inspector actions are regular dispatches")

	command(t, ext, id, map[string]any{"type": domain.CommandLockChanges, "status": true})
	require.NoError(t, ext.Emit(id, action))
	assert.Equal(t, 5, st.GetState().Count)

	// Local dispatches still apply but are not recorded while locked.
	_, err := st.Dispatch("increment", nil)
	require.NoError(t, err)
	assert.Len(t, kinds(ext.Sent(id), domain.KindAction), 1)

	command(t, ext, id, map[string]any{"type": domain.CommandLockChanges, "status": false})
	require.NoError(t, ext.Emit(id, action))
	assert.Equal(t, 11, st.GetState().Count)
}

func TestBridge_PauseRecording(t *testing.T) {
	st := newCounter(t)
	ext, _, id := attach(t, st)

	command(t, ext, id, map[string]any{"type": domain.CommandPauseRecording, "status": true})
	_, err := st.Dispatch("increment", nil)
	require.NoError(t, err)
	assert.Empty(t, kinds(ext.Sent(id), domain.KindAction))

	command(t, ext, id, map[string]any{"type": domain.CommandPauseRecording, "status": false})
	_, err = st.Dispatch("increment", nil)
	require.NoError(t, err)
	assert.Len(t, kinds(ext.Sent(id), domain.KindAction), 1)
}

func TestBridge_StartReinitializes(t *testing.T) {
	st := newCounter(t)
	ext, _, id := attach(t, st)

	_, err := st.Dispatch("add", 3)
	require.NoError(t, err)
	require.NoError(t, ext.Emit(id, domain.DevToolMessage{Type: domain.MessageStart}))

	inits := kinds(ext.Sent(id), domain.KindInit)
	require.Len(t, inits, 2)
	assert.JSONEq(t, `{"count":3}`, string(inits[1].State))
}

func TestBridge_OneWayIgnoresInbound(t *testing.T) {
	st := newCounter(t)
	ext, _, id := attach(t, st, devtool.WithMode(devtool.ModeOneWay))

	jump(t, ext, id, counter{Count: 5})
	assert.Equal(t, counter{}, st.GetState())
}

func TestBridge_MalformedMessagesAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	st := newCounter(t)
	ext, _, id := attach(t, st, devtool.WithLogger(logger))

	require.NoError(t, ext.Emit(id, domain.DevToolMessage{
		Type:    domain.MessageDispatch,
		Payload: map[string]any{"type": domain.CommandJumpToState},
		State:   "not json",
	}))
	require.NoError(t, ext.Emit(id, domain.DevToolMessage{
		Type:    domain.MessageDispatch,
		Payload: map[string]any{"type": domain.CommandJumpToAction, "actionId": map[string]any{"nested": 1}},
	}))
	require.NoError(t, ext.Emit(id, domain.DevToolMessage{
		Type:    domain.MessageAction,
		Payload: map[string]any{"type": "explode"},
	}))

	assert.Equal(t, counter{}, st.GetState())
	assert.Contains(t, buf.String(), "DevTool message ignored")
}

func TestBridge_MaxAge(t *testing.T) {
	st := newCounter(t)
	ext, _, id := attach(t, st, devtool.WithMaxAge(2))

	for _, n := range []int{1, 10, 100} {
		_, err := st.Dispatch("add", n)
		require.NoError(t, err)
	}

	command(t, ext, id, map[string]any{"type": domain.CommandJumpToAction, "actionId": 1})
	assert.Equal(t, 111, st.GetState().Count, "evicted entries cannot be jumped to")

	command(t, ext, id, map[string]any{"type": domain.CommandJumpToAction, "actionId": 0})
	assert.Equal(t, 1, st.GetState().Count, "the oldest kept state becomes the base")

	command(t, ext, id, map[string]any{"type": domain.CommandJumpToAction, "actionId": 2})
	assert.Equal(t, 11, st.GetState().Count)
}

func TestBridge_Unavailable(t *testing.T) {
	st := newCounter(t)

	b := devtool.New(nil)
	devtool.Attach(b, st)
	assert.False(t, b.Attached(st))

	b = devtool.New(memory.NewExtension(memory.Unavailable()))
	devtool.Attach(b, st)
	assert.False(t, b.Attached(st))

	_, err := st.Dispatch("increment", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, st.GetState().Count)
}

func TestBridge_Disabled(t *testing.T) {
	st := newCounter(t)
	ext := memory.NewExtension()
	b := devtool.New(ext, devtool.WithEnabled(false))

	devtool.Attach(b, st)
	assert.Empty(t, ext.Instances())

	var nilStore *store.Store[counter]
	devtool.Attach(b, nilStore)
	devtool.Attach[counter](nil, st)
}

func TestBridge_DetachAndClose(t *testing.T) {
	st := newCounter(t)
	ext, b, id := attach(t, st)

	b.Detach(st)
	b.Detach(st)
	assert.False(t, b.Attached(st))
	assert.Empty(t, ext.Instances())

	_, err := st.Dispatch("increment", nil)
	require.NoError(t, err)
	assert.Empty(t, kinds(ext.Sent(id), domain.KindAction))
	assert.ErrorIs(t, ext.Emit(id, domain.DevToolMessage{Type: domain.MessageStart}), domain.ErrInstanceNotFound)

	other := newCounter(t)
	devtool.Attach(b, other)
	assert.Len(t, ext.Instances(), 1)

	b.Close()
	assert.Empty(t, ext.Instances())
	devtool.Attach(b, st)
	assert.Empty(t, ext.Instances(), "a closed bridge ignores Attach")
}

func TestBridge_InstanceName(t *testing.T) {
	st := newCounter(t)
	ext, _, id := attach(t, st, devtool.WithInstanceName("checkout"))
	assert.Equal(t, "checkout", ext.Sent(id)[0].Config.Name)
}

func TestBridge_ToggleWhileDispatching(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	st, err := store.New(store.ActionTable[counter]{
		"increment": store.Reducer(func(s counter, _ any) counter {
			return counter{Count: s.Count + 1}
		}),
		"slow": func(d *store.Draft[counter], _ any) error {
			select {
			case entered <- struct{}{}:
			default:
			}
			<-release
			return d.Mutate(func(s *counter) { s.Count += 10 })
		},
	}, counter{}, store.WithName("counter"))
	require.NoError(t, err)
	ext, _, id := attach(t, st)

	for range 3 {
		_, err := st.Dispatch("increment", nil)
		require.NoError(t, err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := st.Dispatch("slow", nil)
		done <- err
	}()
	<-entered

	command(t, ext, id, map[string]any{"type": domain.CommandToggleAction, "id": 3})
	assert.Equal(t, 2, st.GetState().Count)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 12, st.GetState().Count)

	actions := kinds(ext.Sent(id), domain.KindAction)
	require.Len(t, actions, 4)
	assert.Equal(t, "slow", actions[3].Action.Type)
	assert.JSONEq(t, `{"count":12}`, string(actions[3].State))
}

func TestBridge_RejectedCommandDoesNotReinit(t *testing.T) {
	st := newCounter(t)
	ext, _, id := attach(t, st)

	_, err := st.Dispatch("add", 3)
	require.NoError(t, err)

	// A reset arriving while the jump is being applied is dropped.
	var nested error
	st.Subscribe(func(rec domain.ChangeRecord[counter]) error {
		if rec.ActionType == domain.ActionDevToolJump {
			nested = ext.Emit(id, domain.DevToolMessage{
				Type:    domain.MessageDispatch,
				Payload: map[string]any{"type": domain.CommandReset},
			})
		}
		return nil
	})

	jump(t, ext, id, counter{Count: 8})
	require.NoError(t, nested)
	assert.Equal(t, 8, st.GetState().Count)
	assert.Len(t, kinds(ext.Sent(id), domain.KindInit), 1)

	command(t, ext, id, map[string]any{"type": domain.CommandReset})
	assert.Equal(t, 0, st.GetState().Count)
	assert.Len(t, kinds(ext.Sent(id), domain.KindInit), 2)
}
