package metrics

import (
	"time"
)

// PoolStats reports one shard's connection slot pool occupancy, mirroring
// whatever pool type the caller's connection catalog uses without this
// package needing to import it.
type PoolStats struct {
	Slots int
	InUse int
}

// Collector periodically samples connection pool occupancy into the
// ConnectionPoolSlots/ConnectionPoolInUse gauges, the way the teacher's
// manager metrics collector samples cluster-state gauges on a fixed tick
// instead of pushing them at every mutation site. statsFn is supplied by
// the caller (typically a closure over a ConnectionCatalog.Stats call) so
// this package never needs to import the transaction manager, which
// itself depends on packages this package instruments.
type Collector struct {
	statsFn func() map[string]PoolStats
	stopCh  chan struct{}
}

// NewCollector builds a Collector sampling statsFn on each tick.
func NewCollector(statsFn func() map[string]PoolStats) *Collector {
	return &Collector{
		statsFn: statsFn,
		stopCh:  make(chan struct{}),
	}
}

// Start begins sampling on a 15-second tick until Stop is called.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts sampling.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for label, stats := range c.statsFn() {
		ConnectionPoolSlots.WithLabelValues(label).Set(float64(stats.Slots))
		ConnectionPoolInUse.WithLabelValues(label).Set(float64(stats.InUse))
	}
}
