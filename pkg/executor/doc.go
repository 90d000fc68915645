// Package executor walks a planner.ExecStep tree, acquiring a backend
// connection per leaf step and driving its Execute call with the
// collector the step's shape calls for: rows pushed onto a flat result
// list, deduplicated by a set of fields, or matched back onto the
// in-memory tuples a write step acted on.
package executor
