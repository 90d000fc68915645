package value

import (
	"errors"
	"fmt"

	"github.com/cuemby/shardbridge/pkg/catalog"
)

// ErrVarArrayIndexRange is returned by VarArray element accessors when the
// requested index is outside [0, Count).
var ErrVarArrayIndexRange = errors.New("value: array index out of range")

// Var is the heap form of a typed value (spec §4.D): a payload-aligned
// allocation whose type-tag header is locatable from the payload alone via
// the terminator bit, without separate bookkeeping. All public operations
// over a Var are expressed in terms of its Go-native payload plus the Stack
// that describes how to (de)serialize it; there is no raw pointer
// arithmetic to perform in this runtime, only the header/terminator
// round-trip catalog.Stack already implements.
type Var struct {
	Stack catalog.Stack
	Value any
}

// NewVar wraps a Go-native value with its describing type stack.
func NewVar(stack catalog.Stack, v any) *Var {
	return &Var{Stack: stack, Value: v}
}

// Header encodes this Var's type-tag header, innermost-first with the
// terminator bit on the outermost word (catalog.Stack.EncodeHeader).
func (v *Var) Header() []catalog.TypeID {
	return v.Stack.EncodeHeader()
}

// VarArray is the array form of a typed value (spec §3 "TypedValue (array
// form)"): a single header describing the element stack plus a contiguous,
// growable element buffer. Each element's effective header is the shared
// ElementStack — elements do not carry individual headers, matching the
// "header back-links to the array header" description.
type VarArray struct {
	ElementStack catalog.Stack
	Stride       int
	elements     []any
	nulls        []bool
}

// NewVarArray creates an empty array of elements typed by elementStack,
// with capacity pre-reserved.
func NewVarArray(elementStack catalog.Stack, capacity int) *VarArray {
	stride := 0
	if inner := elementStack.Innermost(); inner != nil {
		stride = inner.Size
	}
	return &VarArray{
		ElementStack: elementStack,
		Stride:       stride,
		elements:     make([]any, 0, capacity),
		nulls:        make([]bool, 0, capacity),
	}
}

// Count returns the live element count.
func (a *VarArray) Count() int {
	return len(a.elements)
}

// Append adds a value to the end of the array, growing its buffer.
func (a *VarArray) Append(v any) {
	a.elements = append(a.elements, v)
	a.nulls = append(a.nulls, false)
}

// AppendNull adds a SQL NULL element.
func (a *VarArray) AppendNull() {
	a.elements = append(a.elements, nil)
	a.nulls = append(a.nulls, true)
}

// Get returns the element at i and whether it is null.
func (a *VarArray) Get(i int) (any, bool, error) {
	if i < 0 || i >= len(a.elements) {
		return nil, false, fmt.Errorf("%w: index %d, count %d", ErrVarArrayIndexRange, i, len(a.elements))
	}
	return a.elements[i], a.nulls[i], nil
}

// Set overwrites the element at i.
func (a *VarArray) Set(i int, v any) error {
	if i < 0 || i >= len(a.elements) {
		return fmt.Errorf("%w: index %d, count %d", ErrVarArrayIndexRange, i, len(a.elements))
	}
	a.elements[i] = v
	a.nulls[i] = false
	return nil
}

// ToSlice returns a defensive copy of the live elements, in order.
func (a *VarArray) ToSlice() []any {
	out := make([]any, len(a.elements))
	copy(out, a.elements)
	return out
}
