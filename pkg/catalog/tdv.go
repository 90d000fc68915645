package catalog

import (
	"errors"
	"fmt"
)

// MaxPrimaryKeyFields bounds the primary key field list (spec §3: "Primary
// key is set by field list reference (max 8 fields)").
const MaxPrimaryKeyFields = 8

// ForeignKey references another table's primary key by name.
type ForeignKey struct {
	Name          string
	Fields        []string
	ReferencedTDV string
	Referenced    []string
}

// ErrLateBindingAlreadyBound is returned by BindColumns when a late-binding
// TupleDef that already resolved its columns from one result set is handed
// a second, different column set (spec §9 Open Question 4: "an implementer
// should reject mismatches explicitly").
var ErrLateBindingAlreadyBound = errors.New("catalog: late-binding tuple definition already bound to a different column set")

// TupleDef (TDV — Tuple Definition Version) is the ordered, immutable-once-
// published schema for one version of a table's rows (spec §3, §4.F).
type TupleDef struct {
	Name        string
	Version     int
	Fields      []*HeapField
	PrimaryKey  []string
	ForeignKeys []*ForeignKey

	payloadSize   int
	nullBitWidth  int
	published     bool
	lateBinding   bool
	lateBound     bool
}

// NewTupleDef creates an empty, unpublished TDV at version 1. When
// lateBinding is true, AddField is expected to be called by the executor
// once per result column on first row materialization (spec §4.F, S5).
func NewTupleDef(name string, lateBinding bool) *TupleDef {
	return &TupleDef{Name: name, Version: 1, lateBinding: lateBinding}
}

// NullBitmapWidth returns ceil(field_count/8), the invariant width spec §3
// requires of every tuple's null bitmap.
func (td *TupleDef) NullBitmapWidth() int {
	return (len(td.Fields) + 7) / 8
}

// PayloadSize returns the total byte width of the tuple payload computed so
// far (fields laid out in addition order, each aligned to its type's
// requirement).
func (td *TupleDef) PayloadSize() int {
	return td.payloadSize
}

// AddField appends a field, assigning it an aligned offset and the next
// null-bitmap ordinal, and bumps the TDV's version (spec §4.F: "A version is
// bumped when a field is added or removed; all new tuples reference the
// leading version").
func (td *TupleDef) AddField(name string, stack Stack) (*HeapField, error) {
	if err := stack.Validate(); err != nil {
		return nil, err
	}
	align := 1
	size := 0
	if inner := stack.Innermost(); inner != nil {
		align = inner.Align
		size = inner.Size
	}
	offset := alignUp(td.payloadSize, align)

	f := &HeapField{
		Name:    name,
		Offset:  offset,
		NullOrd: len(td.Fields),
		Stack:   stack,
		Size:    size,
	}
	td.Fields = append(td.Fields, f)
	td.payloadSize = offset + f.width()
	td.nullBitWidth = td.NullBitmapWidth()
	td.Version++
	return f, nil
}

// RemoveField drops a field by name, recomputing offsets, the null bitmap
// width, and bumping the version.
func (td *TupleDef) RemoveField(name string) error {
	idx := -1
	for i, f := range td.Fields {
		if f.Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("catalog: field %q not found on %q", name, td.Name)
	}
	td.Fields = append(td.Fields[:idx], td.Fields[idx+1:]...)
	td.relayout()
	td.Version++
	return nil
}

func (td *TupleDef) relayout() {
	offset := 0
	for i, f := range td.Fields {
		align := 1
		if inner := f.Stack.Innermost(); inner != nil {
			align = inner.Align
		}
		offset = alignUp(offset, align)
		f.Offset = offset
		f.NullOrd = i
		offset += f.width()
	}
	td.payloadSize = offset
	td.nullBitWidth = td.NullBitmapWidth()
}

// Field looks up a field by name.
func (td *TupleDef) Field(name string) (*HeapField, bool) {
	for _, f := range td.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// SetPrimaryKey sets the ordered primary key field list by name, enforcing
// MaxPrimaryKeyFields and that every named field exists.
func (td *TupleDef) SetPrimaryKey(names ...string) error {
	if len(names) > MaxPrimaryKeyFields {
		return fmt.Errorf("catalog: primary key exceeds %d fields", MaxPrimaryKeyFields)
	}
	for _, n := range names {
		if _, ok := td.Field(n); !ok {
			return fmt.Errorf("catalog: primary key field %q not found on %q", n, td.Name)
		}
	}
	td.PrimaryKey = names
	return nil
}

// Publish sets the TDV's published flag, which Published reports.
// AddField and RemoveField do not consult the flag: they still change a
// published TDV in place.
func (td *TupleDef) Publish() {
	td.published = true
}

// Published reports whether this TDV has been published to the catalog.
func (td *TupleDef) Published() bool {
	return td.published
}

// LateBinding reports whether this TDV is awaiting its first result set.
func (td *TupleDef) LateBinding() bool {
	return td.lateBinding && !td.lateBound
}

// ColumnSpec names one result column for BindColumns.
type ColumnSpec struct {
	Name  string
	Stack Stack
}

// BindColumns resolves a late-binding TDV's fields from a driver's result
// metadata, called once before the first row of a raw query materializes
// (spec §4.F, scenario S5). A second call with a different set of columns
// fails explicitly per Open Question 4's resolution.
func (td *TupleDef) BindColumns(cols []ColumnSpec) error {
	if !td.lateBinding {
		return fmt.Errorf("catalog: %q is not a late-binding tuple definition", td.Name)
	}
	if td.lateBound {
		if !sameColumns(td.Fields, cols) {
			return ErrLateBindingAlreadyBound
		}
		return nil
	}
	for _, c := range cols {
		if _, err := td.AddField(c.Name, c.Stack); err != nil {
			return err
		}
	}
	td.lateBound = true
	td.published = true
	return nil
}

func sameColumns(fields []*HeapField, cols []ColumnSpec) bool {
	if len(fields) != len(cols) {
		return false
	}
	for i, f := range fields {
		if f.Name != cols[i].Name {
			return false
		}
	}
	return true
}
