package shard

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/cuemby/shardbridge/pkg/metrics"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
)

// RaftBeaconConfig configures a replicated partition beacon, which Connect
// bootstraps as the sole member of its own raft cluster. RaftBeacon has no
// operation for joining an existing cluster or adding members to one.
type RaftBeaconConfig struct {
	NodeID            string
	BindAddr          string
	DataDir           string
	PartitionCount    int
	SubPartitionCount int
}

// RaftBeacon keeps a partition-to-shard assignment table consistent across
// a cluster via raft, grounded directly on cuemby-warren's manager
// Bootstrap/Join/FSM pattern: a TCP transport, a file snapshot store, and
// BoltDB-backed log/stable stores, generalized from cluster-resource state
// to partition-routing state.
type RaftBeacon struct {
	cfg  RaftBeaconConfig
	fsm  *beaconFSM
	raft *raft.Raft

	mu         sync.Mutex
	assignment *assignmentTable
	connected  bool
}

// NewRaftBeacon constructs an unconnected beacon; call Connect to bootstrap
// or join the raft cluster before routing any tuples.
func NewRaftBeacon(cfg RaftBeaconConfig) *RaftBeacon {
	if cfg.PartitionCount <= 0 {
		cfg.PartitionCount = 1
	}
	return &RaftBeacon{
		cfg:        cfg,
		fsm:        newBeaconFSM(),
		assignment: newAssignmentTable(),
	}
}

// Connect bootstraps a brand-new single-node raft cluster rooted at this
// beacon. It does not join an existing cluster, and RaftBeacon has no
// separate join operation.
func (b *RaftBeacon) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connected {
		return nil
	}

	r, err := b.newRaftNode()
	if err != nil {
		return err
	}
	b.raft = r

	future := b.raft.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: raft.ServerID(b.cfg.NodeID), Address: raft.ServerAddress(b.cfg.BindAddr)}},
	})
	if err := future.Error(); err != nil {
		return fmt.Errorf("shard: failed to bootstrap raft cluster: %w", err)
	}

	b.connected = true
	return nil
}

func (b *RaftBeacon) newRaftNode() (*raft.Raft, error) {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(b.cfg.NodeID)

	// Tuned for LAN-local failover the same way cuemby-warren's cluster
	// manager tunes its raft config: hashicorp/raft's WAN-oriented defaults
	// leave single-node election taking longer than it needs to here.
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", b.cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("shard: failed to resolve bind address: %w", err)
	}

	transport, err := raft.NewTCPTransport(b.cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("shard: failed to create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(b.cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("shard: failed to create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(b.cfg.DataDir, "shard-raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("shard: failed to create log store: %w", err)
	}

	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(b.cfg.DataDir, "shard-raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("shard: failed to create stable store: %w", err)
	}

	return raft.NewRaft(config, b.fsm, logStore, stableStore, snapshotStore, transport)
}

// Disconnect shuts the raft node down without discarding its on-disk state.
// Connect does not resume from that state: it only bootstraps a new
// cluster.
func (b *RaftBeacon) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return ErrConnectOutOfOrder
	}
	if err := b.raft.Shutdown().Error(); err != nil {
		return fmt.Errorf("shard: failed to shut down raft: %w", err)
	}
	b.connected = false
	return nil
}

// Finalize disconnects (if still connected) and releases the beacon's
// in-memory state.
func (b *RaftBeacon) Finalize() error {
	b.mu.Lock()
	wasConnected := b.connected
	b.mu.Unlock()
	if wasConnected {
		if err := b.Disconnect(); err != nil {
			return err
		}
	}
	b.assignment = newAssignmentTable()
	return nil
}

// RegisterShard adds shard to the replicated shard registry. Must be
// called on the raft leader; followers reject writes via raft.Apply's
// ErrNotLeader.
func (b *RaftBeacon) RegisterShard(s *Shard) error {
	data, err := json.Marshal(registerShardPayload{ID: s.ID, Driver: s.Driver, Address: s.Address, Role: s.Role})
	if err != nil {
		return err
	}
	return b.apply(opRegisterShard, data)
}

// RemoveShard drops a shard from the registry and clears any partitions
// assigned to it.
func (b *RaftBeacon) RemoveShard(id ID) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return b.apply(opRemoveShard, data)
}

func (b *RaftBeacon) apply(op string, data json.RawMessage) error {
	cmd, err := json.Marshal(partitionCommand{Op: op, Data: data})
	if err != nil {
		return err
	}
	future := b.raft.Apply(cmd, 5*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("shard: raft apply failed: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}
	return nil
}

// assignPartition resolves (assigning if unassigned) the shard that owns
// partition, via round-robin over the registered shards the first time a
// partition is seen, then records the choice in the replicated table.
func (b *RaftBeacon) assignPartition(partition int) (*Shard, error) {
	if s, ok := b.fsm.shardForPartition(partition); ok {
		return s, nil
	}

	shards := b.fsm.allShards()
	if len(shards) == 0 {
		return nil, ErrNoShardsConfigured
	}
	chosen := shards[partition%len(shards)]

	data, err := json.Marshal(assignPartitionPayload{Partition: partition, ShardID: chosen.ID})
	if err != nil {
		return nil, err
	}
	if err := b.apply(opAssignPartition, data); err != nil {
		return nil, err
	}
	return chosen, nil
}

func (b *RaftBeacon) ShardForTuple(ptr heap.HTP, assign bool) (*Shard, error) {
	if id, ok := b.assignment.get(ptr); ok {
		if s, ok := b.fsm.shard(id); ok {
			return s, nil
		}
	}
	if !assign {
		return nil, fmt.Errorf("shard: tuple %v has no recorded shard assignment", ptr)
	}

	shards := b.fsm.allShards()
	if len(shards) == 0 {
		return nil, ErrNoShardsConfigured
	}
	s := shards[0]
	b.assignment.set(ptr, s.ID)
	return s, nil
}

func (b *RaftBeacon) ShardsForTuples(ptrs []heap.HTP, assign bool, keyBy func(heap.HTP) string) (map[ID][]heap.HTP, error) {
	out := make(map[ID][]heap.HTP)
	for _, ptr := range ptrs {
		if id, ok := b.assignment.get(ptr); ok {
			out[id] = append(out[id], ptr)
			continue
		}
		if !assign {
			return nil, fmt.Errorf("shard: tuple %v has no recorded shard assignment", ptr)
		}

		var s *Shard
		var err error
		if keyBy != nil {
			partition, _ := PartitionID(keyBy(ptr), b.cfg.PartitionCount, b.cfg.SubPartitionCount)
			s, err = b.assignPartition(partition)
		} else {
			shards := b.fsm.allShards()
			if len(shards) == 0 {
				err = ErrNoShardsConfigured
			} else {
				s = shards[0]
			}
		}
		if err != nil {
			return nil, err
		}

		b.assignment.set(ptr, s.ID)
		out[s.ID] = append(out[s.ID], ptr)
	}
	return out, nil
}

func (b *RaftBeacon) ShardForTable(td *catalog.TupleDef) (*Shard, error) {
	partition, _ := PartitionID(td.Name, b.cfg.PartitionCount, b.cfg.SubPartitionCount)
	s, err := b.assignPartition(partition)
	if err != nil {
		metrics.ShardLookups.WithLabelValues(td.Name, "error").Inc()
		return nil, err
	}
	metrics.ShardLookups.WithLabelValues(td.Name, "ok").Inc()
	return s, nil
}

func (b *RaftBeacon) LoadSchema(_ *catalog.Registry) error {
	return ErrSchemaLoadUnsupported
}

func (b *RaftBeacon) Shards() []*Shard {
	return b.fsm.allShards()
}

// IsLeader reports whether this node currently holds the raft leadership
// for the beacon's cluster; only the leader can successfully RegisterShard
// or have a partition assignment committed.
func (b *RaftBeacon) IsLeader() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected && b.raft.State() == raft.Leader
}
