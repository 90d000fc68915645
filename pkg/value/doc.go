// Package value implements the Typed Value Slot and Typed Var (spec §4.D):
// a compact, runtime-typed value carrying its own type stack, plus the
// operator execution plan machinery (compare, arithmetic, assignment) that
// lets the planner and executor build a resolved dispatch plan once and
// replay it across many rows.
package value
