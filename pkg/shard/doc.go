// Package shard resolves which backend shard owns a given tuple, table, or
// container name, and keeps that assignment available under a Beacon
// interface two implementations satisfy: a fixed single-shard beacon for
// unpartitioned backends, and a replicated partition beacon that keeps its
// partition-to-shard table consistent across a cluster via raft.
package shard
