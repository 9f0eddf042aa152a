package store

import (
	"errors"
	"testing"

	"github.com/aretw0/relite/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_SnapshotSemantics(t *testing.T) {
	b := NewBroadcaster[int](nil)

	var got []string
	var unsubLate func()
	unsubB := func() {}

	b.Subscribe(func(v int) error {
		got = append(got, "a")
		if v == 1 {
			// Added during a publish: only sees the next one.
			unsubLate = b.Subscribe(func(int) error {
				got = append(got, "late")
				return nil
			})
			// Removed during a publish: still called for this one.
			unsubB()
		}
		return nil
	})
	unsubB = b.Subscribe(func(int) error {
		got = append(got, "b")
		return nil
	})

	require.NoError(t, b.Publish(1))
	assert.Equal(t, []string{"a", "b"}, got)

	got = nil
	require.NoError(t, b.Publish(2))
	assert.Equal(t, []string{"a", "late"}, got)

	unsubLate()
	assert.Equal(t, 1, b.Len())
}

func TestBroadcaster_UnsubscribeByIdentity(t *testing.T) {
	b := NewBroadcaster[string](nil)

	var got []string
	listener := func(name string) func(string) error {
		return func(string) error {
			got = append(got, name)
			return nil
		}
	}

	unsubA := b.Subscribe(listener("a"))
	unsubB := b.Subscribe(listener("b"))
	unsubC := b.Subscribe(listener("c"))
	b.Subscribe(listener("d"))

	unsubB()
	unsubB()
	unsubA()
	unsubB()

	require.NoError(t, b.Publish("x"))
	assert.Equal(t, []string{"c", "d"}, got)

	unsubC()
	got = nil
	require.NoError(t, b.Publish("y"))
	assert.Equal(t, []string{"d"}, got)
}

func TestBroadcaster_AggregatesErrors(t *testing.T) {
	b := NewBroadcaster[int](nil)
	errA := errors.New("a failed")
	errC := errors.New("c failed")

	called := 0
	b.Subscribe(func(int) error { called++; return errA })
	b.Subscribe(func(int) error { called++; return nil })
	b.Subscribe(func(int) error { called++; return errC })

	err := b.Publish(0)
	assert.Equal(t, 3, called)
	assert.ErrorIs(t, err, domain.ErrListener)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)
}
