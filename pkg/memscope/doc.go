// Package memscope implements the engine's hierarchical memory scope tree.
//
// A Scope is a named allocation region that can have children; destroying a
// scope recursively destroys its descendants and releases everything
// allocated under it. Query node trees, tuple definitions, and per-plan
// working storage are all owned by exactly one scope, so teardown is a
// single call instead of a field-by-field free.
//
// The allocator abstraction here does not replace Go's garbage collector —
// there is no manual free of raw bytes. Instead a Scope tracks *handles*:
// values (tuples, pages, buffers) that carry external resources or that must
// become unusable once their owning scope closes. This mirrors the source
// system's arena, minus pointer arithmetic.
package memscope
