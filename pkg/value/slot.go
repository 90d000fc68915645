package value

import (
	"fmt"

	"github.com/cuemby/shardbridge/pkg/catalog"
)

// Slot is a stack-allocatable value holder: a type stack plus either an
// inline by-value payload or an owned out-of-line buffer (spec §4.D). Slots
// are the currency of parameter passing — built once per call site, copied
// or moved cheaply, reset between reuses.
type Slot struct {
	Stack catalog.Stack
	value any
	owned bool
	null  bool
}

// NewSlot builds a Slot carrying value under stack. owned marks whether the
// Slot's payload is an out-of-line buffer this Slot is responsible for
// releasing (e.g. a varlen string it allocated itself, as opposed to one
// borrowed from a tuple pointer).
func NewSlot(stack catalog.Stack, v any, owned bool) Slot {
	return Slot{Stack: stack, value: v, owned: owned}
}

// NullSlot builds a null Slot typed with stack.
func NullSlot(stack catalog.Stack) Slot {
	return Slot{Stack: stack, null: true}
}

// IsNull reports whether this Slot holds SQL NULL.
func (s Slot) IsNull() bool {
	return s.null
}

// Value returns the Go-native payload, or nil if the Slot is null.
func (s Slot) Value() any {
	if s.null {
		return nil
	}
	return s.value
}

// Owned reports whether this Slot owns an out-of-line buffer that must be
// released on Reset.
func (s Slot) Owned() bool {
	return s.owned
}

// Copy produces an independent Slot holding a deep copy of the payload via
// the innermost type's MemCopyFunc, never transferring buffer ownership
// (spec §4.C: memcopy TAM). Copying a null Slot yields another null Slot.
func (s Slot) Copy() (Slot, error) {
	if s.null {
		return NullSlot(s.Stack), nil
	}
	inner := s.Stack.Innermost()
	if inner == nil || inner.AM.MemCopy == nil {
		return Slot{}, fmt.Errorf("value: type stack has no memcopy access method")
	}
	copied, err := inner.AM.MemCopy(s.value, false)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Stack: s.Stack, value: copied, owned: true}, nil
}

// Move transfers ownership of s's payload to the returned Slot and resets s
// to null, mirroring the "keep the source's owning buffer id" MemCopy path
// (spec §4.C's transferBufferID flag) without performing a physical copy.
func (s *Slot) Move() Slot {
	moved := Slot{Stack: s.Stack, value: s.value, owned: s.owned, null: s.null}
	s.value = nil
	s.owned = false
	s.null = true
	return moved
}

// Reset clears the Slot to null. Destruct is invoked first when the Slot
// owns an out-of-line buffer and the type registered one, so varlen
// payloads this Slot is responsible for do not leak.
func (s *Slot) Reset() error {
	if s.owned && !s.null {
		if inner := s.Stack.Innermost(); inner != nil && inner.OM.Destruct != nil {
			if err := inner.OM.Destruct(s.value); err != nil {
				return err
			}
		}
	}
	s.value = nil
	s.owned = false
	s.null = true
	return nil
}
