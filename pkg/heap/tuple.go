package heap

import (
	"fmt"

	"github.com/cuemby/shardbridge/pkg/catalog"
)

// Tuple is one heap-resident row: a null bitmap, a payload of Go-native
// field values keyed by the owning TupleDef's field order, and the
// bookkeeping spec §4.E calls for — an immutable shadow copy for
// change-detection and a flag distinguishing rows fetched from a backend
// from ones created locally.
type Tuple struct {
	Pointer     HTP
	Def         *catalog.TupleDef
	FromBackend bool

	values []any
	nulls  []bool
	shadow *Tuple
}

// NewTuple allocates a zero-filled tuple for def at pointer. Every field
// whose innermost type registered a Construct operator method is
// initialized via that constructor (spec §4.E: "allocator calls the type
// constructors that request construction for tuple"); fields without one
// are zero-valued nil. Newly allocated tuples start with every bit of the
// null bitmap clear (not null), matching "zero-filled... payload" — a
// buffer-owned string's zero value is the empty string, not SQL NULL.
func NewTuple(pointer HTP, def *catalog.TupleDef, fromBackend bool) (*Tuple, error) {
	t := &Tuple{
		Pointer:     pointer,
		Def:         def,
		FromBackend: fromBackend,
		values:      make([]any, len(def.Fields)),
		nulls:       make([]bool, len(def.Fields)),
	}
	for i, f := range def.Fields {
		inner := f.Stack.Innermost()
		if inner == nil {
			continue
		}
		if inner.OM.Construct != nil {
			v, err := inner.OM.Construct()
			if err != nil {
				return nil, fmt.Errorf("heap: constructing field %q: %w", f.Name, err)
			}
			t.values[i] = v
		}
	}
	return t, nil
}

// FieldByName implements value.TupleAccessor.
func (t *Tuple) FieldByName(name string) (any, bool, error) {
	f, ok := t.Def.Field(name)
	if !ok {
		return nil, false, fmt.Errorf("heap: tuple has no field %q", name)
	}
	return t.FieldByOrdinal(f.NullOrd)
}

// FieldByOrdinal implements value.TupleAccessor.
func (t *Tuple) FieldByOrdinal(i int) (any, bool, error) {
	if i < 0 || i >= len(t.values) {
		return nil, false, fmt.Errorf("heap: field ordinal %d out of range", i)
	}
	if t.nulls[i] {
		return nil, false, nil
	}
	return t.values[i], true, nil
}

// FieldByHeapField implements value.TupleAccessor.
func (t *Tuple) FieldByHeapField(f *catalog.HeapField) (any, bool, error) {
	return t.FieldByOrdinal(f.NullOrd)
}

// SetField overwrites the named field's value, clearing its null bit. Pass
// isNull true to set the field to SQL NULL instead.
func (t *Tuple) SetField(name string, v any, isNull bool) error {
	f, ok := t.Def.Field(name)
	if !ok {
		return fmt.Errorf("heap: tuple has no field %q", name)
	}
	t.values[f.NullOrd] = v
	t.nulls[f.NullOrd] = isNull
	return nil
}

// IsNull reports whether the named field currently holds SQL NULL.
func (t *Tuple) IsNull(name string) (bool, error) {
	f, ok := t.Def.Field(name)
	if !ok {
		return false, fmt.Errorf("heap: tuple has no field %q", name)
	}
	return t.nulls[f.NullOrd], nil
}

// ImmutableCopy snapshots the tuple's current field values into a shadow
// record via each field's MemCopy access method, so Changed can later
// report which fields an update actually touched (spec §4.E).
func (t *Tuple) ImmutableCopy() error {
	shadow := &Tuple{
		Pointer:     t.Pointer,
		Def:         t.Def,
		FromBackend: t.FromBackend,
		values:      make([]any, len(t.values)),
		nulls:       make([]bool, len(t.nulls)),
	}
	copy(shadow.nulls, t.nulls)
	for i, f := range t.Def.Fields {
		if t.nulls[i] {
			continue
		}
		inner := f.Stack.Innermost()
		if inner == nil || inner.AM.MemCopy == nil {
			shadow.values[i] = t.values[i]
			continue
		}
		v, err := inner.AM.MemCopy(t.values[i], false)
		if err != nil {
			return fmt.Errorf("heap: snapshotting field %q: %w", f.Name, err)
		}
		shadow.values[i] = v
	}
	t.shadow = shadow
	return nil
}

// Changed returns the fields whose current value or nullness differs from
// the shadow snapshot taken by ImmutableCopy. It returns every field if no
// snapshot was ever taken — there is nothing to diff against.
func (t *Tuple) Changed() ([]*catalog.HeapField, error) {
	if t.shadow == nil {
		return t.Def.Fields, nil
	}
	var changed []*catalog.HeapField
	for i, f := range t.Def.Fields {
		if t.nulls[i] != t.shadow.nulls[i] {
			changed = append(changed, f)
			continue
		}
		if t.nulls[i] {
			continue
		}
		inner := f.Stack.Innermost()
		if inner == nil || inner.OM.Compare == nil {
			if !valuesEqual(t.values[i], t.shadow.values[i]) {
				changed = append(changed, f)
			}
			continue
		}
		cmp, err := inner.OM.Compare(t.values[i], t.shadow.values[i])
		if err != nil {
			return nil, fmt.Errorf("heap: comparing field %q: %w", f.Name, err)
		}
		if cmp != 0 {
			changed = append(changed, f)
		}
	}
	return changed, nil
}

func valuesEqual(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// Release invokes the Destruct operator method for every field whose
// innermost type registered one, so a buffer close walks every tuple and
// leaks no varlen payload (spec §4.E).
func (t *Tuple) Release() error {
	for i, f := range t.Def.Fields {
		if t.nulls[i] {
			continue
		}
		inner := f.Stack.Innermost()
		if inner == nil || inner.OM.Destruct == nil {
			continue
		}
		if err := inner.OM.Destruct(t.values[i]); err != nil {
			return fmt.Errorf("heap: destructing field %q: %w", f.Name, err)
		}
	}
	return nil
}
