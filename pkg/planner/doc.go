// Package planner turns a query.Node tree into an ExecStep tree the
// executor can walk: it resolves each referenced table to a shard via the
// table's Beacon, chooses a single-shard, funnel, or (today, unsupported)
// cross-beacon execution shape, and emits the Query Result Projection a
// Fetch step's backend driver uses to materialize rows into tuples.
package planner
