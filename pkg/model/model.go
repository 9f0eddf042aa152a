// Package model groups stores by model and relays their records through one channel.
//
// A Model is a recipe for a store: an action table, a default initial state
// and store options. Its pointer is the registry key, so two models with the
// same content still get two stores.
package model

import (
	"maps"

	"github.com/aretw0/relite/pkg/store"
)

// Model describes how to build one store.
type Model[S any] struct {
	table   store.ActionTable[S]
	initial S
	opts    []store.Option
}

// New validates table and returns a model with initial as default state.
func New[S any](table store.ActionTable[S], initial S, opts ...store.Option) (*Model[S], error) {
	if err := store.Validate(table); err != nil {
		return nil, err
	}
	return &Model[S]{
		table:   maps.Clone(table),
		initial: initial,
		opts:    opts,
	}, nil
}

// Initial returns the default initial state.
func (m *Model[S]) Initial() S {
	return m.initial
}

// NewStore builds an independent store from the model. The first value of
// initial, when given, replaces the default initial state.
func (m *Model[S]) NewStore(initial ...S) (*store.Store[S], error) {
	state := m.initial
	if len(initial) > 0 {
		state = initial[0]
	}
	return store.New(m.table, state, m.opts...)
}
