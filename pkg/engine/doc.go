// Package engine is the embedding API: the single facade a host process
// links against to start the data access layer, register backends/types/
// tables, run one-shot statements, and drive transactions (spec §6). It
// wires together pkg/catalog, pkg/shard, pkg/planner, pkg/executor, and
// pkg/txn the way cmd/warren's main.go wires pkg/manager's collaborators,
// but as a library entry point rather than a process's own main.
package engine
