package relite

import (
	"github.com/aretw0/relite/pkg/devtool"
	"github.com/aretw0/relite/pkg/domain"
	"github.com/aretw0/relite/pkg/logger"
	"github.com/aretw0/relite/pkg/model"
	"github.com/aretw0/relite/pkg/ports"
	"github.com/aretw0/relite/pkg/store"
)

// Version of the relite module and CLI.
const Version = "0.1.0"

type (
	// Store owns one state value and the actions that change it.
	Store[S any] = store.Store[S]
	// ActionTable maps action types to actions.
	ActionTable[S any] = store.ActionTable[S]
	// Draft is the copy-on-write view an action works on.
	Draft[S any] = store.Draft[S]
	// Listener receives the records of a store.
	Listener[S any] = store.Listener[S]
	// ChangeRecord describes one committed transition.
	ChangeRecord[S any] = domain.ChangeRecord[S]
	// Model identifies a kind of store inside a Storage.
	Model[S any] = model.Model[S]
	// Storage holds at most one store per model.
	Storage = model.Storage
	// Bridge connects stores to an inspector.
	Bridge = devtool.Bridge
)

// CreateStore builds a store. The optional name labels it in the inspector.
func CreateStore[S any](table ActionTable[S], initial S, name ...string) (*Store[S], error) {
	return store.New(table, initial, nameOption(name)...)
}

// CreateModel describes a store to be created lazily by a Storage.
func CreateModel[S any](table ActionTable[S], initial S, name ...string) (*Model[S], error) {
	return model.New(table, initial, nameOption(name)...)
}

// CreateStorage builds a storage, creating the stores of seeds eagerly.
// Use Preload to build seeds.
func CreateStorage(seeds ...model.Seed) (*Storage, error) {
	return model.NewStorage(model.WithPreload(seeds...))
}

// Preload schedules the store of m for eager creation by CreateStorage.
func Preload[S any](m *Model[S], initial ...S) model.Seed {
	return model.Preload(m, initial...)
}

// GetStore returns the store of m held by s, creating it on first use.
func GetStore[S any](s *Storage, m *Model[S], initial ...S) (*Store[S], error) {
	return model.GetStore(s, m, initial...)
}

// NewDevTool builds a bridge over ext. A nil ext yields a bridge that never connects.
func NewDevTool(ext ports.Extension, opts ...devtool.Option) *Bridge {
	return devtool.New(ext, opts...)
}

// AttachDevTool connects st to the inspector behind b. Attaching twice is a no-op.
func AttachDevTool[S any](b *Bridge, st *Store[S]) {
	devtool.Attach(b, st)
}

// CreateLogger returns a listener printing every record of a store.
func CreateLogger[S any](opts ...logger.Option) Listener[S] {
	return logger.New[S](opts...)
}

func nameOption(name []string) []store.Option {
	if len(name) == 0 || name[0] == "" {
		return nil
	}
	return []store.Option{store.WithName(name[0])}
}
