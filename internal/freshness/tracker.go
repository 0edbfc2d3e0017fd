// Package freshness tracks the last-refresh timestamp for each table in
// the Schema Catalog. Loading Census data is an out-of-scope batch
// process (see spec's ingestion non-goal); this package only records
// when that process last touched a table, so query responses can stamp
// their results with how current the underlying data is.
package freshness

import (
	"sync"
	"time"
)

// Tracker is a concurrency-safe map from table name to its last-refresh
// time. The zero value is not usable; construct with New.
type Tracker struct {
	mu    sync.RWMutex
	stamp map[string]time.Time
}

// New constructs a Tracker, optionally seeded with known refresh times
// (e.g. loaded from the ingestion job's own completion log at startup).
func New(seed map[string]time.Time) *Tracker {
	stamp := make(map[string]time.Time, len(seed))
	for table, at := range seed {
		stamp[table] = at
	}

	return &Tracker{stamp: stamp}
}

// Touch records that table was refreshed at the given time. Called by
// the ingestion job's completion hook, never by the query path itself.
func (t *Tracker) Touch(table string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stamp[table] = at
}

// Get returns table's last known refresh time.
func (t *Tracker) Get(table string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	at, ok := t.stamp[table]

	return at, ok
}

// Snapshot returns the freshness stamp for each of the given tables,
// keyed by table name. Tables with no recorded refresh are omitted.
func (t *Tracker) Snapshot(tables []string) map[string]time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]time.Time, len(tables))

	for _, table := range tables {
		if at, ok := t.stamp[table]; ok {
			out[table] = at
		}
	}

	return out
}
