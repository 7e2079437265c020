// Package observer publishes document processing events and keeps the
// validation outcome counters.
package observer

import (
	"sync/atomic"

	"github.com/anime-shed/idcard-inspector-go/pkg/models"
)

// Counters tallies validation outcomes. The zero value is ready to use.
type Counters struct {
	success atomic.Int64
	failure atomic.Int64
}

// Record counts one validation outcome and returns the updated tallies.
func (c *Counters) Record(success bool) models.CounterSnapshot {
	if success {
		c.success.Add(1)
	} else {
		c.failure.Add(1)
	}
	return c.Snapshot()
}

// Snapshot returns the current tallies.
func (c *Counters) Snapshot() models.CounterSnapshot {
	return models.CounterSnapshot{
		Success: c.success.Load(),
		Failure: c.failure.Load(),
	}
}

// Reset zeroes both tallies and returns the values they had.
func (c *Counters) Reset() models.CounterSnapshot {
	return models.CounterSnapshot{
		Success: c.success.Swap(0),
		Failure: c.failure.Swap(0),
	}
}
