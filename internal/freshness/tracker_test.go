package freshness_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/censusql/gateway/internal/freshness"
)

func TestTracker_TouchAndGet(t *testing.T) {
	tr := freshness.New(nil)

	_, ok := tr.Get("state_data")
	assert.False(t, ok)

	now := time.Now()
	tr.Touch("state_data", now)

	got, ok := tr.Get("state_data")
	assert.True(t, ok)
	assert.True(t, got.Equal(now))
}

func TestTracker_SnapshotOmitsUnknownTables(t *testing.T) {
	now := time.Now()
	tr := freshness.New(map[string]time.Time{"county_data": now})

	snap := tr.Snapshot([]string{"county_data", "tract_data"})

	assert.Len(t, snap, 1)
	assert.Contains(t, snap, "county_data")
	assert.NotContains(t, snap, "tract_data")
}
