/*
Package store implements the relite state container.

A Store holds one state value and changes it only through the actions of its
ActionTable. Each action runs against a Draft, a copy-on-write working copy of
the current state; the resulting value is committed and a domain.ChangeRecord
is published to every listener.

# Mutation modes

The mode is chosen once, from the initial state:

  - ModeDraftable: structs, maps, slices, arrays and pointers to them. Actions
    may mutate the draft (Mutate, SetIn, UpdateIn, DeleteIn) or replace it.
    Untouched branches of the state keep their identity.
  - ModeOpaque: scalars, nil values and external handles. Actions must call
    Replace; a nil state is returned unchanged when they do not.

A dispatch whose next state is Identical to the previous one commits and
publishes nothing.

# Usage

	type Counter struct{ Count int }

	st, err := store.New(store.ActionTable[Counter]{
		"increment": store.Reducer(func(s Counter, _ any) Counter {
			return Counter{Count: s.Count + 1}
		}),
	}, Counter{}, store.WithName("counter"))
	if err != nil {
		log.Fatal(err)
	}

	unsubscribe := st.Subscribe(func(rec domain.ChangeRecord[Counter]) error {
		log.Println(rec.ActionType, rec.CurrentState.Count)
		return nil
	})
	defer unsubscribe()

	st.Actions()["increment"](nil)
*/
package store
