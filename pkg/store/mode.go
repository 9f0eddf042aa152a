package store

import "reflect"

// Mode is the mutation strategy of a store, chosen once from the initial state.
type Mode int

const (
	// ModeDraftable stores hold structured values (structs, maps, slices, arrays
	// or pointers to them). Actions may mutate a copy-on-write draft.
	ModeDraftable Mode = iota

	// ModeOpaque stores hold scalars, nil values or external handles.
	// Actions must replace the state with a new value.
	ModeOpaque
)

func (m Mode) String() string {
	switch m {
	case ModeDraftable:
		return "draftable"
	case ModeOpaque:
		return "opaque"
	}
	return "unknown"
}

// ModeOf classifies a state value.
func ModeOf[S any](state S) Mode {
	return modeOf(reflect.ValueOf(&state).Elem())
}

func modeOf(v reflect.Value) Mode {
	if isNil(v) {
		return ModeOpaque
	}
	switch v.Kind() {
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
		return ModeDraftable
	case reflect.Interface:
		return modeOf(v.Elem())
	case reflect.Pointer:
		switch v.Elem().Kind() {
		case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array:
			return ModeDraftable
		}
	}
	return ModeOpaque
}
