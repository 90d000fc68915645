package txn

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/shardbridge/pkg/backend"
	"github.com/cuemby/shardbridge/pkg/credential"
	"github.com/cuemby/shardbridge/pkg/log"
	"github.com/cuemby/shardbridge/pkg/shard"
)

// DefaultConnectionSlots is the per-shard-access connection ceiling when a
// ConnectionCatalog is built without an explicit slot count.
const DefaultConnectionSlots = 10

// shardEntry owns every connection ever opened for one shard, plus a
// buffered channel standing in for the fixed-size slot array and in-use
// bitmap: free is seeded with every slot index once, so acquiring a slot is
// a channel receive and releasing one is a channel send, and len(free)
// always equals the count of currently idle slots. This is the same
// bounded-work-queue shape the reference codebase reaches for whenever it
// needs serialized access to a small fixed resource pool (a buffered
// eventCh, a stopCh) rather than a condition variable, and it composes with
// ctx cancellation for free via select.
type shardEntry struct {
	mu       sync.Mutex
	driver   backend.Driver
	cred     credential.Value
	database string
	conns    []backend.Connection
	free     chan int
}

func newShardEntry(driver backend.Driver, cred credential.Value, database string, slots int) *shardEntry {
	free := make(chan int, slots)
	for i := 0; i < slots; i++ {
		free <- i
	}
	return &shardEntry{
		driver:   driver,
		cred:     cred,
		database: database,
		conns:    make([]backend.Connection, slots),
		free:     free,
	}
}

// acquire blocks until a slot is free or ctx is done, lazily creating and
// connecting the slot's backend.Connection the first time it is drawn.
func (e *shardEntry) acquire(ctx context.Context) (backend.Connection, int, error) {
	select {
	case idx := <-e.free:
		conn, err := e.connAt(ctx, idx)
		if err != nil {
			e.free <- idx
			return nil, 0, err
		}
		return conn, idx, nil
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	}
}

func (e *shardEntry) connAt(ctx context.Context, idx int) (backend.Connection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conns[idx] != nil {
		return e.conns[idx], nil
	}
	conn, err := e.driver.CreateConnection()
	if err != nil {
		return nil, fmt.Errorf("txn: creating connection: %w", err)
	}
	if err := conn.Connect(ctx, e.cred, e.database); err != nil {
		return nil, fmt.Errorf("txn: connecting: %w", err)
	}
	e.conns[idx] = conn
	log.Logger.Debug().Str("driver", e.driver.Name()).Int("slot", idx).Msg("opened connection slot")
	return conn, nil
}

func (e *shardEntry) release(idx int) {
	e.free <- idx
}

// ConnectionCatalog hands out and reclaims backend connections per shard,
// bounding the live connection count per shard to a small fixed slot count
// the way spec §5 describes (default 10, acquisition serialized per
// shard-access entry).
type ConnectionCatalog struct {
	mu      sync.Mutex
	drivers map[string]backend.Driver
	entries map[shard.ID]*shardEntry
	slots   int
}

// NewConnectionCatalog builds a catalog whose per-shard entries cap out at
// slots live connections. slots <= 0 falls back to DefaultConnectionSlots.
func NewConnectionCatalog(slots int) *ConnectionCatalog {
	if slots <= 0 {
		slots = DefaultConnectionSlots
	}
	return &ConnectionCatalog{
		drivers: make(map[string]backend.Driver),
		entries: make(map[shard.ID]*shardEntry),
		slots:   slots,
	}
}

// RegisterDriver makes d's connections available to any shard naming its
// driver name. Drivers are expected to register once at process start,
// before any transaction begins.
func (c *ConnectionCatalog) RegisterDriver(d backend.Driver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drivers[d.Name()] = d
}

// RegisterShard opens a slot pool for s, authenticating future connections
// against cred/database. Calling it again for the same shard ID replaces
// the pool (any connections already leased from the old pool are orphaned,
// so this is meant for setup time, not mid-transaction reconfiguration).
func (c *ConnectionCatalog) RegisterShard(s *shard.Shard, cred credential.Value, database string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	driver, ok := c.drivers[s.Driver]
	if !ok {
		return fmt.Errorf("txn: no driver registered for %q", s.Driver)
	}
	c.entries[s.ID] = newShardEntry(driver, cred, database, c.slots)
	return nil
}

func (c *ConnectionCatalog) entryFor(id shard.ID) (*shardEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("txn: no connection pool registered for shard %q", id)
	}
	return e, nil
}

// Acquire draws a connection for access.Shard, blocking until one is free
// or ctx is canceled. The caller must pair a successful Acquire with a
// later Release of the same shard ID and slot index.
func (c *ConnectionCatalog) Acquire(ctx context.Context, access *shard.ShardAccess) (backend.Connection, int, error) {
	e, err := c.entryFor(access.Shard.ID)
	if err != nil {
		return nil, 0, err
	}
	return e.acquire(ctx)
}

// Release returns a previously-acquired slot to its shard's pool.
func (c *ConnectionCatalog) Release(id shard.ID, idx int) {
	c.mu.Lock()
	e, ok := c.entries[id]
	c.mu.Unlock()
	if !ok {
		return
	}
	e.release(idx)
}

// PoolStats reports one shard's slot pool occupancy.
type PoolStats struct {
	Slots int
	InUse int
}

// Stats snapshots every registered shard's slot pool occupancy, for a
// metrics collector to sample periodically.
func (c *ConnectionCatalog) Stats() map[shard.ID]PoolStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[shard.ID]PoolStats, len(c.entries))
	for id, e := range c.entries {
		out[id] = PoolStats{Slots: c.slots, InUse: c.slots - len(e.free)}
	}
	return out
}
