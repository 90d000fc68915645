package shard

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"
)

// partitionCommand is the raft log entry payload for RaftBeacon, mirroring
// the {Op, Data} envelope cuemby-warren's cluster FSM applies, generalized
// from cluster-resource mutations to partition-table mutations.
type partitionCommand struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opRegisterShard   = "register_shard"
	opRemoveShard     = "remove_shard"
	opAssignPartition = "assign_partition"
)

type registerShardPayload struct {
	ID      ID     `json:"id"`
	Driver  string `json:"driver"`
	Address string `json:"address"`
	Role    Role   `json:"role"`
}

type assignPartitionPayload struct {
	Partition int `json:"partition"`
	ShardID   ID  `json:"shard_id"`
}

// beaconFSM holds the state a RaftBeacon replicates: the shard registry and
// the partition-to-shard assignment table. It applies committed log entries
// the same way cuemby-warren's WarrenFSM dispatches a Command by Op, just
// against partition-routing state instead of cluster-resource state.
type beaconFSM struct {
	mu         sync.RWMutex
	shards     map[ID]*Shard
	partitions map[int]ID
}

func newBeaconFSM() *beaconFSM {
	return &beaconFSM{
		shards:     make(map[ID]*Shard),
		partitions: make(map[int]ID),
	}
}

func (f *beaconFSM) Apply(log *raft.Log) interface{} {
	var cmd partitionCommand
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("shard: failed to unmarshal raft command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opRegisterShard:
		var p registerShardPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		f.shards[p.ID] = &Shard{ID: p.ID, Driver: p.Driver, Address: p.Address, Role: p.Role}
		return nil

	case opRemoveShard:
		var id ID
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		delete(f.shards, id)
		for part, sid := range f.partitions {
			if sid == id {
				delete(f.partitions, part)
			}
		}
		return nil

	case opAssignPartition:
		var p assignPartitionPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			return err
		}
		f.partitions[p.Partition] = p.ShardID
		return nil

	default:
		return fmt.Errorf("shard: unknown raft command %q", cmd.Op)
	}
}

func (f *beaconFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	shards := make([]*Shard, 0, len(f.shards))
	for _, s := range f.shards {
		shards = append(shards, s)
	}
	partitions := make(map[int]ID, len(f.partitions))
	for k, v := range f.partitions {
		partitions[k] = v
	}

	return &beaconSnapshot{Shards: shards, Partitions: partitions}, nil
}

func (f *beaconFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap beaconSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("shard: failed to decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.shards = make(map[ID]*Shard, len(snap.Shards))
	for _, s := range snap.Shards {
		f.shards[s.ID] = s
	}
	f.partitions = snap.Partitions
	if f.partitions == nil {
		f.partitions = make(map[int]ID)
	}
	return nil
}

func (f *beaconFSM) shard(id ID) (*Shard, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.shards[id]
	return s, ok
}

func (f *beaconFSM) shardForPartition(partition int) (*Shard, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	id, ok := f.partitions[partition]
	if !ok {
		return nil, false
	}
	s, ok := f.shards[id]
	return s, ok
}

func (f *beaconFSM) allShards() []*Shard {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Shard, 0, len(f.shards))
	for _, s := range f.shards {
		out = append(out, s)
	}
	return out
}

type beaconSnapshot struct {
	Shards     []*Shard
	Partitions map[int]ID
}

func (s *beaconSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *beaconSnapshot) Release() {}
