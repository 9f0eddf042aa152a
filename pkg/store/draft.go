package store

import (
	"fmt"
	"reflect"

	"github.com/aretw0/relite/pkg/domain"
)

// Draft is the working copy an action runs against.
//
// Reads see the state as modified so far. Writes never touch the state the
// draft was opened on: every container on a modified path (map, slice, array,
// struct, pointer) is copied once, while untouched branches keep their
// identity. Replace swaps the whole value, which is the only write allowed on
// an opaque store.
type Draft[S any] struct {
	base     S
	work     S
	mode     Mode
	table    ActionTable[S]
	replaced bool
	modified bool

	// owned holds containers created by this draft; they may be written in place.
	// Keeping the values referenced pins their addresses for the draft's lifetime.
	owned map[uintptr]reflect.Value
}

func newDraft[S any](base S, mode Mode, table ActionTable[S]) *Draft[S] {
	return &Draft[S]{
		base:  base,
		work:  base,
		mode:  mode,
		table: table,
	}
}

// Base returns the state the draft was opened on.
func (d *Draft[S]) Base() S {
	return d.base
}

// Current returns the state including the changes made so far.
// The result shares structure with the draft and must be treated as read-only.
func (d *Draft[S]) Current() S {
	return d.work
}

// Modified reports whether the draft was replaced or written to.
func (d *Draft[S]) Modified() bool {
	return d.replaced || d.modified
}

// Mode returns the mutation mode of the owning store.
func (d *Draft[S]) Mode() Mode {
	return d.mode
}

// Replace makes next the candidate state outright.
func (d *Draft[S]) Replace(next S) {
	d.work = next
	d.replaced = true
	d.owned = nil
}

// Call runs another action of the same table against this draft.
// It is how actions compose without dispatching on their own store.
func (d *Draft[S]) Call(actionType string, payload any) error {
	fn, ok := d.table[actionType]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownAction, actionType)
	}
	return fn(d, payload)
}

// Mutate hands fn a pointer to a shallow copy of the state.
// Assigning top-level fields (or entries, for map and slice states) is safe;
// nested containers are still shared with the previous state, use SetIn,
// UpdateIn or DeleteIn to change them.
func (d *Draft[S]) Mutate(fn func(state *S)) error {
	if d.mode == ModeOpaque {
		return domain.ErrNotDraftable
	}

	root := reflect.ValueOf(&d.work).Elem()
	if isNil(root) {
		return fmt.Errorf("%w: state is nil", domain.ErrNotDraftable)
	}

	prev := d.work
	cloned := false
	if d.needsClone(root) {
		root.Set(d.clone(root))
		cloned = true
	}

	fn(&d.work)

	if cloned && sameContents(reflect.ValueOf(&prev).Elem(), root) {
		d.disown(root)
		d.work = prev
		return nil
	}
	d.modified = true
	return nil
}

// GetIn reads the value at path. Strings address struct fields and string map
// keys, integers address slice and array indexes and integer map keys.
func (d *Draft[S]) GetIn(path ...any) (any, bool) {
	v := reflect.ValueOf(&d.work).Elem()
	for _, key := range path {
		next, ok := step(v, key)
		if !ok {
			return nil, false
		}
		v = next
	}
	if !v.IsValid() || !v.CanInterface() {
		return nil, false
	}
	return v.Interface(), true
}

// SetIn writes value at path, copying the containers along the way.
// Setting the index equal to a slice's length appends. An empty path replaces the root.
func (d *Draft[S]) SetIn(value any, path ...any) error {
	return d.write(path, func(_ reflect.Value, _ bool, typ reflect.Type) (reflect.Value, bool, error) {
		v, err := valueFor(value, typ)
		return v, false, err
	})
}

// UpdateIn replaces the value at path with fn applied to it.
// fn receives nil when the path ends at a missing map key.
func (d *Draft[S]) UpdateIn(fn func(current any) any, path ...any) error {
	return d.write(path, func(cur reflect.Value, exists bool, typ reflect.Type) (reflect.Value, bool, error) {
		var in any
		if exists && cur.IsValid() && cur.CanInterface() {
			in = cur.Interface()
		}
		v, err := valueFor(fn(in), typ)
		return v, false, err
	})
}

// DeleteIn removes a map entry or slice element. Struct fields and array
// elements are reset to their zero value. Deleting a missing key is a no-op.
func (d *Draft[S]) DeleteIn(path ...any) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", domain.ErrInvalidPath)
	}
	return d.write(path, func(_ reflect.Value, _ bool, typ reflect.Type) (reflect.Value, bool, error) {
		return reflect.Zero(typ), true, nil
	})
}

// leafFunc computes the new value at the end of a path.
// remove asks the container to drop the entry instead of storing next.
type leafFunc func(cur reflect.Value, exists bool, typ reflect.Type) (next reflect.Value, remove bool, err error)

func (d *Draft[S]) write(path []any, leaf leafFunc) error {
	if d.mode == ModeOpaque {
		return domain.ErrNotDraftable
	}

	root := reflect.ValueOf(&d.work).Elem()
	if len(path) == 0 {
		next, _, err := leaf(root, true, root.Type())
		if err != nil {
			return err
		}
		if !identical(root, next) {
			root.Set(next)
			d.owned = nil
			d.modified = true
		}
		return nil
	}

	next, changed, err := d.assoc(root, path, leaf)
	if err != nil {
		return err
	}
	if changed {
		root.Set(next)
		d.modified = true
	}
	return nil
}

// assoc returns v with the value at path updated by leaf. When nothing changes
// it returns v itself so callers keep the original identity.
func (d *Draft[S]) assoc(v reflect.Value, path []any, leaf leafFunc) (reflect.Value, bool, error) {
	key, rest := path[0], path[1:]

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return v, false, fmt.Errorf("%w: nil value at %v", domain.ErrInvalidPath, key)
		}
		inner, changed, err := d.assoc(v.Elem(), path, leaf)
		if err != nil || !changed {
			return v, false, err
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(inner)
		return out, true, nil

	case reflect.Pointer:
		if v.IsNil() {
			return v, false, fmt.Errorf("%w: nil pointer at %v", domain.ErrInvalidPath, key)
		}
		inner, changed, err := d.assoc(v.Elem(), path, leaf)
		if err != nil || !changed {
			return v, false, err
		}
		if d.isOwned(v) {
			v.Elem().Set(inner)
			return v, true, nil
		}
		p := reflect.New(v.Type().Elem())
		p.Elem().Set(inner)
		d.own(p)
		return p, true, nil

	case reflect.Struct:
		name, ok := key.(string)
		if !ok {
			return v, false, fmt.Errorf("%w: struct %s needs a field name, got %T", domain.ErrInvalidPath, v.Type(), key)
		}
		sf, ok := v.Type().FieldByName(name)
		if !ok || !sf.IsExported() || len(sf.Index) != 1 {
			return v, false, fmt.Errorf("%w: %s has no settable field %q", domain.ErrInvalidPath, v.Type(), name)
		}
		cur := v.Field(sf.Index[0])
		next, changed, err := d.descend(cur, true, sf.Type, rest, leaf)
		if err != nil || !changed {
			return v, false, err
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		out.Field(sf.Index[0]).Set(next)
		return out, true, nil

	case reflect.Map:
		if v.IsNil() {
			return v, false, fmt.Errorf("%w: nil map at %v", domain.ErrInvalidPath, key)
		}
		k, err := valueFor(key, v.Type().Key())
		if err != nil {
			return v, false, err
		}
		cur := v.MapIndex(k)
		if !cur.IsValid() && len(rest) > 0 {
			return v, false, fmt.Errorf("%w: missing key %v", domain.ErrInvalidPath, key)
		}
		if len(rest) == 0 {
			next, remove, err := leaf(cur, cur.IsValid(), v.Type().Elem())
			if err != nil {
				return v, false, err
			}
			if remove {
				if !cur.IsValid() {
					return v, false, nil
				}
				m := d.writable(v)
				m.SetMapIndex(k, reflect.Value{})
				return m, true, nil
			}
			if cur.IsValid() && identical(cur, next) {
				return v, false, nil
			}
			m := d.writable(v)
			m.SetMapIndex(k, next)
			return m, true, nil
		}
		next, changed, err := d.assoc(cur, rest, leaf)
		if err != nil || !changed {
			return v, false, err
		}
		m := d.writable(v)
		m.SetMapIndex(k, next)
		return m, true, nil

	case reflect.Slice:
		idx, err := indexFor(key)
		if err != nil {
			return v, false, err
		}
		n := v.Len()
		if len(rest) == 0 && idx == n {
			next, remove, err := leaf(reflect.Value{}, false, v.Type().Elem())
			if err != nil || remove {
				return v, false, err
			}
			out := reflect.MakeSlice(v.Type(), n+1, n+1)
			reflect.Copy(out, v)
			out.Index(n).Set(next)
			d.own(out)
			return out, true, nil
		}
		if idx < 0 || idx >= n {
			return v, false, fmt.Errorf("%w: index %d out of range [0:%d]", domain.ErrInvalidPath, idx, n)
		}
		cur := v.Index(idx)
		if len(rest) == 0 {
			next, remove, err := leaf(cur, true, v.Type().Elem())
			if err != nil {
				return v, false, err
			}
			if remove {
				out := reflect.MakeSlice(v.Type(), 0, n-1)
				out = reflect.AppendSlice(out, v.Slice(0, idx))
				out = reflect.AppendSlice(out, v.Slice(idx+1, n))
				d.own(out)
				return out, true, nil
			}
			if identical(cur, next) {
				return v, false, nil
			}
			s := d.writable(v)
			s.Index(idx).Set(next)
			return s, true, nil
		}
		next, changed, err := d.assoc(cur, rest, leaf)
		if err != nil || !changed {
			return v, false, err
		}
		s := d.writable(v)
		s.Index(idx).Set(next)
		return s, true, nil

	case reflect.Array:
		idx, err := indexFor(key)
		if err != nil {
			return v, false, err
		}
		if idx < 0 || idx >= v.Len() {
			return v, false, fmt.Errorf("%w: index %d out of range [0:%d]", domain.ErrInvalidPath, idx, v.Len())
		}
		next, changed, err := d.descend(v.Index(idx), true, v.Type().Elem(), rest, leaf)
		if err != nil || !changed {
			return v, false, err
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		out.Index(idx).Set(next)
		return out, true, nil
	}

	return v, false, fmt.Errorf("%w: cannot descend into %s at %v", domain.ErrInvalidPath, v.Type(), key)
}

// descend applies leaf when rest is empty and recurses otherwise.
// It is used by containers whose elements always exist (struct fields, arrays).
func (d *Draft[S]) descend(cur reflect.Value, exists bool, typ reflect.Type, rest []any, leaf leafFunc) (reflect.Value, bool, error) {
	if len(rest) > 0 {
		return d.assoc(cur, rest, leaf)
	}
	next, _, err := leaf(cur, exists, typ)
	if err != nil {
		return cur, false, err
	}
	if identical(cur, next) {
		return cur, false, nil
	}
	return next, true, nil
}

// writable returns a map or slice that may be written in place,
// copying it first unless this draft created it.
func (d *Draft[S]) writable(v reflect.Value) reflect.Value {
	if d.isOwned(v) {
		return v
	}
	return d.clone(v)
}

func (d *Draft[S]) needsClone(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer:
		return !v.IsNil() && !d.isOwned(v)
	case reflect.Interface:
		return !v.IsNil() && d.needsClone(v.Elem())
	}
	return false
}

// clone copies one level of a container and marks the copy as owned.
func (d *Draft[S]) clone(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		m := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			m.SetMapIndex(iter.Key(), iter.Value())
		}
		d.own(m)
		return m
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		s := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(s, v)
		d.own(s)
		return s
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		p := reflect.New(v.Type().Elem())
		p.Elem().Set(v.Elem())
		d.own(p)
		return p
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(d.clone(v.Elem()))
		return out
	}
	return v
}

func (d *Draft[S]) own(v reflect.Value) {
	if d.owned == nil {
		d.owned = make(map[uintptr]reflect.Value)
	}
	d.owned[v.Pointer()] = v
}

func (d *Draft[S]) disown(v reflect.Value) {
	if v.Kind() == reflect.Interface {
		if !v.IsNil() {
			d.disown(v.Elem())
		}
		return
	}
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer:
		delete(d.owned, v.Pointer())
	}
}

func (d *Draft[S]) isOwned(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer:
		if v.IsNil() {
			return false
		}
		_, ok := d.owned[v.Pointer()]
		return ok
	}
	return false
}

// sameContents compares a container with its shallow copy.
func sameContents(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() || a.Type() != b.Type() {
		return false
	}
	switch a.Kind() {
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return sameContents(a.Elem(), b.Elem())
	case reflect.Pointer:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return identical(a.Elem(), b.Elem())
	case reflect.Map:
		if a.IsNil() != b.IsNil() || a.Len() != b.Len() {
			return false
		}
		iter := b.MapRange()
		for iter.Next() {
			av := a.MapIndex(iter.Key())
			if !av.IsValid() || !identical(av, iter.Value()) {
				return false
			}
		}
		return true
	case reflect.Slice:
		if a.IsNil() != b.IsNil() || a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !identical(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	}
	return identical(a, b)
}

// step reads one path element without copying.
func step(v reflect.Value, key any) (reflect.Value, bool) {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		name, ok := key.(string)
		if !ok {
			return reflect.Value{}, false
		}
		sf, ok := v.Type().FieldByName(name)
		if !ok || !sf.IsExported() || len(sf.Index) != 1 {
			return reflect.Value{}, false
		}
		return v.Field(sf.Index[0]), true
	case reflect.Map:
		k, err := valueFor(key, v.Type().Key())
		if err != nil {
			return reflect.Value{}, false
		}
		e := v.MapIndex(k)
		return e, e.IsValid()
	case reflect.Slice, reflect.Array:
		idx, err := indexFor(key)
		if err != nil || idx < 0 || idx >= v.Len() {
			return reflect.Value{}, false
		}
		return v.Index(idx), true
	}
	return reflect.Value{}, false
}

// valueFor converts x into a value assignable to typ. A nil x yields the zero value.
func valueFor(x any, typ reflect.Type) (reflect.Value, error) {
	if x == nil {
		return reflect.Zero(typ), nil
	}
	v := reflect.ValueOf(x)
	if v.Type().AssignableTo(typ) {
		if v.Type() == typ {
			return v, nil
		}
		out := reflect.New(typ).Elem()
		out.Set(v)
		return out, nil
	}
	if typ.Kind() == reflect.String && v.Kind() == reflect.String {
		return v.Convert(typ), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: cannot use %T as %s", domain.ErrInvalidPath, x, typ)
}

func indexFor(key any) (int, error) {
	v := reflect.ValueOf(key)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(v.Uint()), nil
	}
	return 0, fmt.Errorf("%w: index must be an integer, got %T", domain.ErrInvalidPath, key)
}
