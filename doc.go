/*
Package relite is a small state container: a store owns one state value and
changes it only through named actions.

Actions receive a copy-on-write draft of the current state. Whatever the action
leaves in the draft becomes the next state, with unchanged parts keeping their
identity. Every committed transition produces a ChangeRecord that is published
to the subscribers of the store.

# Key Features

  - Copy-on-write drafts: actions mutate a draft; maps, slices and pointers are only copied along the written path.
  - Curried actions: each action is also exposed as a function of its payload bound to the store.
  - Storage: one lazily created store per Model, with a merged subscription across all of them.
  - DevTool bridge: one-way or two-way sync with a Redux DevTools style inspector, with time travel and without echo loops.

# Usage

	table := relite.ActionTable[Counter]{
		"increment": store.Reducer(func(s Counter, _ any) Counter {
			return Counter{Count: s.Count + 1}
		}),
	}

	st, err := relite.CreateStore(table, Counter{}, "counter")
	if err != nil {
		log.Fatal(err)
	}
	st.Subscribe(relite.CreateLogger[Counter]())

	st.Dispatch("increment", nil)

For multiple stores, describe them with CreateModel and fetch them from a
Storage created with CreateStorage.

# Inspector

The relite command serves an inspector hub. Processes attach their stores with
a devtool bridge over WebSocket or Redis, and the hub lists instances, keeps
their history and sends time travel commands back:

	relite serve
	relite demo
	relite instances
	relite jump <instance> <action-id>

See the pkg/ directory for the individual packages.
*/
package relite
