// Package query implements the Query Node Tree (spec §4.G): a
// parent/child/sibling tree of tagged, per-tag-payload nodes, tree walk and
// subtree-copy operations, and the pluggable SQL-fragment emission contract
// the planner and executor drive against a target backend's formatter.
package query
