package store

import (
	"fmt"
	"reflect"

	"github.com/aretw0/relite/pkg/domain"
)

// Action is a named transition. It either replaces the state through the
// draft (d.Replace) or mutates the draft; returning an error aborts the dispatch.
type Action[S any] func(d *Draft[S], payload any) error

// ActionTable maps action types to their implementation.
// A store copies the table at construction and never changes it afterwards.
type ActionTable[S any] map[string]Action[S]

// BoundAction is an action pre-bound to its store and name.
type BoundAction[S any] func(payload any) (S, error)

// Reducer adapts a function returning the next state into an Action.
// Returning the state unchanged makes the dispatch a no-op.
func Reducer[S, P any](fn func(state S, payload P) S) Action[S] {
	return func(d *Draft[S], payload any) error {
		p, err := PayloadAs[P](payload)
		if err != nil {
			return err
		}
		d.Replace(fn(d.Current(), p))
		return nil
	}
}

// Mutator adapts a function working on the draft with a typed payload into an Action.
func Mutator[S, P any](fn func(d *Draft[S], payload P) error) Action[S] {
	return func(d *Draft[S], payload any) error {
		p, err := PayloadAs[P](payload)
		if err != nil {
			return err
		}
		return fn(d, p)
	}
}

// PayloadAs asserts the dynamic type of a payload. A nil payload yields the zero value.
func PayloadAs[P any](payload any) (P, error) {
	var zero P
	if payload == nil {
		return zero, nil
	}
	p, ok := payload.(P)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %s", domain.ErrPayloadType, payload, reflect.TypeFor[P]())
	}
	return p, nil
}

// Bind returns a typed caller for one action of the store.
func Bind[S, P any](st *Store[S], actionType string) func(payload P) (S, error) {
	return func(payload P) (S, error) {
		return st.Dispatch(actionType, payload)
	}
}

// Validate checks an action table the way New does.
func Validate[S any](table ActionTable[S]) error {
	for _, name := range sortedKeys(table) {
		if domain.IsReserved(name) {
			return fmt.Errorf("%w: %q", domain.ErrReservedAction, name)
		}
		if table[name] == nil {
			return fmt.Errorf("%w: %q is nil", domain.ErrActionNotFunction, name)
		}
	}
	return nil
}
