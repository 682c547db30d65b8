package report

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/TobiSchelling/NLStats/internal/database"
)

// Loader reads what a snapshot is built from.
type Loader interface {
	GetMostRecentCompleteEvent() (*database.CollectionEvent, error)
	GetVideoStatsForEvent(eventID int64) ([]database.VideoStat, error)
}

// ErrNoData is returned when no collection event has completed yet.
var ErrNoData = errors.New("no complete collection event")

// Cache holds the snapshot of the most recent complete event and rebuilds
// it only when a newer complete event appears.
type Cache struct {
	loader Loader

	mu   sync.Mutex
	snap *Snapshot
}

// NewCache creates an empty cache. Nothing is loaded until Refresh.
func NewCache(loader Loader) *Cache {
	return &Cache{loader: loader}
}

// Refresh rebuilds the snapshot if the most recent complete event differs
// from the cached one. It reports whether a rebuild happened.
func (c *Cache) Refresh() (*Snapshot, bool, error) {
	event, err := c.loader.GetMostRecentCompleteEvent()
	if errors.Is(err, database.ErrNotFound) {
		return nil, false, ErrNoData
	}
	if err != nil {
		return nil, false, fmt.Errorf("finding latest complete event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snap != nil && c.snap.EventID == event.ID {
		return c.snap, false, nil
	}

	stats, err := c.loader.GetVideoStatsForEvent(event.ID)
	if err != nil {
		return nil, false, fmt.Errorf("loading stats for event %d: %w", event.ID, err)
	}
	snap := Build(FromVideoStats(stats))
	snap.EventID = event.ID
	snap.PulledAt = event.PullDatetime
	c.snap = snap

	log.Printf("Built report for collection event %d (%d videos, %d games)", event.ID, len(snap.Videos), len(snap.Games))
	return snap, true, nil
}

// Snapshot returns the current snapshot, refreshing it first.
func (c *Cache) Snapshot() (*Snapshot, error) {
	snap, _, err := c.Refresh()
	return snap, err
}
