// Package catalog implements the engine's type registry, per-type access
// methods, and tuple definition (TDV) / field layout machinery (spec §4.C,
// §4.F).
//
// A Type is registered once, at process start, before any worker goroutine
// begins planning or executing queries (spec §5: "The Type Registry and
// Table Catalog must be fully initialized before any worker thread starts").
// Types compose into a type stack — outermost to innermost, bounded at
// MaxStackDepth — so "array of range of date" is representable by chaining
// three Types' access methods, each handling its own level and delegating
// to the rest of the stack.
//
// TupleDef (TDV — Tuple Definition Version) is the ordered list of
// HeapFields that describes one version of a table's row shape. Adding or
// removing a field changes the TupleDef in place and bumps its Version;
// this is not blocked once the TupleDef is published.
package catalog
