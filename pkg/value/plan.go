package value

import (
	"fmt"

	"github.com/cuemby/shardbridge/pkg/catalog"
)

// Source identifies where an operand's runtime value comes from (spec
// §4.D step 1's "flags bitmask describing where LHS, RHS, and RET values
// are sourced").
type Source int

const (
	// SourceValue takes the operand directly from OperandSpec.Literal.
	SourceValue Source = iota
	// SourceTuplePointer resolves the operand from a TupleAccessor field.
	SourceTuplePointer
	// SourceSlot resolves the operand from a bound *Slot.
	SourceSlot
	// SourceTextLiteral parses the operand from a text literal through the
	// type's TextSet access method.
	SourceTextLiteral
	// SourceString binds the operand from a caller-supplied Go string,
	// routed through the type's TextSet the same way SourceTextLiteral is,
	// distinguished because a bound string may be rebound across replays
	// (spec §4.D step 3) while a literal is fixed at plan-build time.
	SourceString
)

// FieldIdent names how a tuple-sourced operand identifies its field (spec
// §4.D: "field name, ordinal, HeapField pointer, format pattern").
type FieldIdent int

const (
	FieldByName FieldIdent = iota
	FieldByOrdinal
	FieldByPointer
)

// TupleAccessor is the minimal surface an ExecPlan needs from a tuple
// pointer to resolve a SourceTuplePointer operand: get a field's current
// Go-native value by name, ordinal, or a pre-resolved HeapField, and report
// nullness. pkg/heap's Tuple implements this.
type TupleAccessor interface {
	FieldByName(name string) (any, bool, error)
	FieldByOrdinal(i int) (any, bool, error)
	FieldByHeapField(f *catalog.HeapField) (any, bool, error)
}

// OperandSpec describes one side (LHS, RHS, or RET) of an operator
// execution: where its value comes from and, for tuple-sourced operands,
// how the field is identified.
type OperandSpec struct {
	Source     Source
	FieldIdent FieldIdent
	FieldName  string
	FieldOrd   int
	Field      *catalog.HeapField
	Pattern    string
	Literal    any
	Stack      catalog.Stack
}

// BeginHook acquires any resource a bound operand needs for the duration of
// one Execute call — e.g. pinning a tuple pointer's backing page or binding
// a caller-supplied string buffer (spec §4.D step 3).
type BeginHook func(ctx *ExecContext) error

// EndHook releases whatever the matching BeginHook acquired.
type EndHook func(ctx *ExecContext)

// ExecContext carries the per-call bindings an ExecPlan resolves operands
// against: a tuple accessor for SourceTuplePointer operands, a Slot for
// SourceSlot operands, and a string for SourceString operands. A single
// ExecPlan may run Execute many times against different contexts — the
// "fast-path reuse" spec §4.D calls for.
type ExecContext struct {
	Tuple  TupleAccessor
	Slot   *Slot
	String string
}

// ExecPlan is a resolved, reusable operator execution plan: the operator
// function and per-side begin/end hooks are computed once at BuildPlan time
// so that replaying the same comparison or assignment across many rows pays
// resolution cost exactly once (spec §4.D step 2).
type ExecPlan struct {
	Op       string
	LHS, RHS OperandSpec
	lhsType  *catalog.Type
	rhsType  *catalog.Type
	compare  catalog.CompareFunc
	operator catalog.OperatorFunc
	isAssign bool

	lhsBegin BeginHook
	lhsEnd   EndHook
	rhsBegin BeginHook
	rhsEnd   EndHook
}

// BuildPlan resolves an ExecPlan for a binary operator between two operand
// specs, using registry's OperatorRegistry for arithmetic/assignment ops
// and the LHS type's Compare for comparison ops. Assignment (`=`) between
// identical type stacks fast-paths to the memcopy access method per spec
// §4.C; on such stacks `=` is therefore an assignment, and `==` is the
// equality comparison.
func BuildPlan(registry *catalog.Registry, op string, lhs, rhs OperandSpec) (*ExecPlan, error) {
	lhsType := lhs.Stack.Innermost()
	rhsType := rhs.Stack.Innermost()
	if lhsType == nil || rhsType == nil {
		return nil, fmt.Errorf("value: operand type stack must have an innermost type")
	}

	plan := &ExecPlan{
		Op: op, LHS: lhs, RHS: rhs,
		lhsType: lhsType, rhsType: rhsType,
		lhsBegin: beginHookFor(lhs), lhsEnd: endHookFor(lhs),
		rhsBegin: beginHookFor(rhs), rhsEnd: endHookFor(rhs),
	}

	if op == "=" && sameStack(lhs.Stack, rhs.Stack) {
		plan.isAssign = true
		plan.operator = func(_, rhsVal any) (any, error) {
			if lhsType.AM.MemCopy == nil {
				return rhsVal, nil
			}
			return lhsType.AM.MemCopy(rhsVal, false)
		}
		return plan, nil
	}

	if catalog.NormalizeCompareOp(op) != catalog.CompareUnknown {
		if lhsType.OM.Compare == nil {
			return nil, fmt.Errorf("value: type %s has no compare operator method", lhsType)
		}
		plan.compare = lhsType.OM.Compare
		return plan, nil
	}

	fn, ok := registry.Operators().Lookup(lhsType, op, rhsType)
	if !ok {
		return nil, &catalog.ErrOperatorNotFound{LHS: lhsType, RHS: rhsType, Op: op}
	}
	plan.operator = fn
	return plan, nil
}

func sameStack(a, b catalog.Stack) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func beginHookFor(spec OperandSpec) BeginHook {
	switch spec.Source {
	case SourceTuplePointer:
		return func(ctx *ExecContext) error {
			if ctx.Tuple == nil {
				return fmt.Errorf("value: exec context missing tuple accessor for tuple-sourced operand")
			}
			return nil
		}
	case SourceSlot:
		return func(ctx *ExecContext) error {
			if ctx.Slot == nil {
				return fmt.Errorf("value: exec context missing slot for slot-sourced operand")
			}
			return nil
		}
	default:
		return nil
	}
}

func endHookFor(spec OperandSpec) EndHook {
	return nil
}

func resolveOperand(spec OperandSpec, ctx *ExecContext) (any, bool, error) {
	switch spec.Source {
	case SourceValue:
		return spec.Literal, false, nil
	case SourceTextLiteral:
		typ := spec.Stack.Innermost()
		if typ == nil || typ.AM.TextSet == nil {
			return nil, false, fmt.Errorf("value: type has no text-set access method")
		}
		text, _ := spec.Literal.(string)
		v, err := typ.AM.TextSet(text, nil)
		return v, false, err
	case SourceString:
		typ := spec.Stack.Innermost()
		if typ == nil || typ.AM.TextSet == nil {
			return nil, false, fmt.Errorf("value: type has no text-set access method")
		}
		v, err := typ.AM.TextSet(ctx.String, nil)
		return v, false, err
	case SourceSlot:
		if ctx.Slot == nil {
			return nil, false, fmt.Errorf("value: exec context missing bound slot")
		}
		return ctx.Slot.Value(), ctx.Slot.IsNull(), nil
	case SourceTuplePointer:
		if ctx.Tuple == nil {
			return nil, false, fmt.Errorf("value: exec context missing tuple accessor")
		}
		switch spec.FieldIdent {
		case FieldByName:
			v, ok, err := ctx.Tuple.FieldByName(spec.FieldName)
			return v, !ok, err
		case FieldByOrdinal:
			v, ok, err := ctx.Tuple.FieldByOrdinal(spec.FieldOrd)
			return v, !ok, err
		case FieldByPointer:
			v, ok, err := ctx.Tuple.FieldByHeapField(spec.Field)
			return v, !ok, err
		default:
			return nil, false, fmt.Errorf("value: unknown field identification kind")
		}
	default:
		return nil, false, fmt.Errorf("value: unknown operand source")
	}
}

// Execute runs the plan against ctx: begin hooks acquire any pins/bindings,
// the resolved compare or operator function fires, end hooks release
// whatever was acquired (spec §4.D step 3). A nil operand (NULL SQL
// semantics) short-circuits to (nil, true, nil) without invoking the
// operator function.
func (p *ExecPlan) Execute(ctx *ExecContext) (result any, isNull bool, err error) {
	if p.lhsBegin != nil {
		if err := p.lhsBegin(ctx); err != nil {
			return nil, false, err
		}
	}
	if p.rhsBegin != nil {
		if err := p.rhsBegin(ctx); err != nil {
			return nil, false, err
		}
	}
	defer func() {
		if p.lhsEnd != nil {
			p.lhsEnd(ctx)
		}
		if p.rhsEnd != nil {
			p.rhsEnd(ctx)
		}
	}()

	lhsVal, lhsNull, err := resolveOperand(p.LHS, ctx)
	if err != nil {
		return nil, false, err
	}
	rhsVal, rhsNull, err := resolveOperand(p.RHS, ctx)
	if err != nil {
		return nil, false, err
	}
	if lhsNull || rhsNull {
		return nil, true, nil
	}

	if p.compare != nil {
		ok, err := catalog.ApplyCompare(p.compare, lhsVal, rhsVal, p.Op)
		return ok, false, err
	}
	v, err := p.operator(lhsVal, rhsVal)
	return v, false, err
}

// IsAssign reports whether this plan fast-pathed to a same-stack memcopy
// assignment.
func (p *ExecPlan) IsAssign() bool {
	return p.isAssign
}
