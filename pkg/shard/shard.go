package shard

import (
	"errors"
	"sync"

	"github.com/cuemby/shardbridge/pkg/catalog"
	"github.com/cuemby/shardbridge/pkg/heap"
	"github.com/google/uuid"
)

// ID identifies a shard uniquely within a beacon's routing table.
type ID string

// NewID mints a fresh, random shard id.
func NewID() ID {
	return ID(uuid.NewString())
}

// Role distinguishes the shard a write lands on from shards that merely
// hold a replica of it.
type Role int

const (
	RolePrimary Role = iota
	RoleBackup
)

// Shard is a single backend-reachable partition: a driver name (used to
// group shards for batched execution) plus the address a backend adapter
// connects to.
type Shard struct {
	ID      ID
	Driver  string
	Address string
	Role    Role
}

// ErrNoShardsConfigured is returned by a beacon that has not been given any
// shard to route to.
var ErrNoShardsConfigured = errors.New("shard: no shards configured")

// ErrSchemaLoadUnsupported is returned by LoadSchema on beacons that do not
// back a queryable catalog store.
var ErrSchemaLoadUnsupported = errors.New("shard: LoadSchema not supported by this beacon")

// ErrConnectOutOfOrder is returned when Disconnect is called on a beacon
// that is not connected, whether never connected or already disconnected.
var ErrConnectOutOfOrder = errors.New("shard: beacon is not connected")

// Beacon resolves shard ownership for tuples, batches of tuples, and whole
// tables, and owns the connect/disconnect/finalize lifecycle of whatever
// routing infrastructure backs it (a fixed address for SimpleBeacon, a raft
// cluster for RaftBeacon).
type Beacon interface {
	// ShardForTuple resolves the shard that owns ptr. If the beacon has no
	// record of ptr and assign is true, it picks a default shard, records
	// the assignment, and returns it; if assign is false a cache miss
	// returns ErrNoShardsConfigured's sibling logic is left to the
	// implementation (SimpleBeacon never misses; RaftBeacon returns an
	// error naming the unassigned pointer).
	ShardForTuple(ptr heap.HTP, assign bool) (*Shard, error)

	// ShardsForTuples resolves shards for a batch of tuples at once,
	// grouping the result by shard. keyBy derives a partition key (e.g. a
	// container name) from a tuple pointer; it is consulted only on an
	// assign-eligible cache miss, and may be nil when the beacon does not
	// need one (SimpleBeacon, or a batch that is known fully assigned).
	ShardsForTuples(ptrs []heap.HTP, assign bool, keyBy func(heap.HTP) string) (map[ID][]heap.HTP, error)

	// ShardForTable resolves the shard (or, for a partition beacon, the
	// primary shard) that owns td's container.
	ShardForTable(td *catalog.TupleDef) (*Shard, error)

	Connect() error
	Disconnect() error
	Finalize() error

	// LoadSchema pulls table definitions from the backend(s) a beacon
	// fronts into registry. Optional: beacons that do not back a catalog
	// store return ErrSchemaLoadUnsupported.
	LoadSchema(registry *catalog.Registry) error

	// Shards returns every shard currently known to the beacon, in no
	// particular order.
	Shards() []*Shard
}

// ShardAccess pairs a resolved shard with the beacon that resolved it, the
// unit of routing information the transaction manager's connection catalog
// acquires a backend connection from.
type ShardAccess struct {
	Shard  *Shard
	Beacon Beacon
}

// GroupByDriver partitions a set of shards by backend driver name so the
// planner and executor can batch execution per driver instead of per shard.
func GroupByDriver(shards []*Shard) map[string][]*Shard {
	out := make(map[string][]*Shard)
	for _, s := range shards {
		out[s.Driver] = append(out[s.Driver], s)
	}
	return out
}

// assignmentTable is the shared cache-of-record both beacon implementations
// use to remember which shard owns a tuple pointer once it has been
// resolved or assigned.
type assignmentTable struct {
	mu   sync.RWMutex
	byID map[heap.HTP]ID
}

func newAssignmentTable() *assignmentTable {
	return &assignmentTable{byID: make(map[heap.HTP]ID)}
}

func (a *assignmentTable) get(ptr heap.HTP) (ID, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.byID[ptr]
	return id, ok
}

func (a *assignmentTable) set(ptr heap.HTP, id ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byID[ptr] = id
}
