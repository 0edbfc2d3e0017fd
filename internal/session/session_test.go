package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/censusql/gateway/internal/session"
)

func TestManager_CreateAndTouch(t *testing.T) {
	m := session.NewManager(session.Config{CleanupInterval: time.Hour, IdleTimeout: time.Hour})
	defer m.Close()

	sess := m.Create("user-1")
	require.NotEmpty(t, sess.ID)

	touched, ok := m.Touch(sess.ID)
	require.True(t, ok)
	assert.Equal(t, int64(1), touched.CallCount)
}

func TestManager_OneSessionPerUser(t *testing.T) {
	m := session.NewManager(session.Config{CleanupInterval: time.Hour, IdleTimeout: time.Hour})
	defer m.Close()

	first := m.Create("user-1")
	second := m.Create("user-1")

	_, ok := m.Get(first.ID)
	assert.False(t, ok, "first session should be evicted when the user creates a second")

	_, ok = m.Get(second.ID)
	assert.True(t, ok)
}

func TestManager_CapacityEvictsLRU(t *testing.T) {
	m := session.NewManager(session.Config{Capacity: 2, CleanupInterval: time.Hour, IdleTimeout: time.Hour})
	defer m.Close()

	a := m.Create("")
	_ = m.Create("")
	_ = m.Create("") // should evict a, the least recently used

	_, ok := m.Get(a.ID)
	assert.False(t, ok)
	assert.Equal(t, 2, m.Count())
}

func TestManager_CapacityEvictsBatchAtScale(t *testing.T) {
	m := session.NewManager(session.Config{Capacity: 100, CleanupInterval: time.Hour, IdleTimeout: time.Hour})
	defer m.Close()

	var oldest []*session.Session
	for i := 0; i < 100; i++ {
		oldest = append(oldest, m.Create(""))
	}

	m.Create("") // crosses capacity, evicts a 10% batch rather than just one

	assert.Equal(t, 91, m.Count())

	for i := 0; i < 10; i++ {
		_, ok := m.Get(oldest[i].ID)
		assert.False(t, ok, "oldest session %d should have been evicted in the batch", i)
	}

	_, ok := m.Get(oldest[10].ID)
	assert.True(t, ok, "11th-oldest session should survive a 10-session batch eviction")
}

func TestManager_Terminate(t *testing.T) {
	m := session.NewManager(session.Config{CleanupInterval: time.Hour, IdleTimeout: time.Hour})
	defer m.Close()

	sess := m.Create("user-1")
	assert.True(t, m.Terminate(sess.ID))
	assert.False(t, m.Terminate(sess.ID))

	_, ok := m.Get(sess.ID)
	assert.False(t, ok)
}

func TestNewResumableHandle_IsUnique(t *testing.T) {
	a, err := session.NewResumableHandle()
	require.NoError(t, err)
	b, err := session.NewResumableHandle()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 64)
}

func TestSession_HashedHandleDiffersFromRaw(t *testing.T) {
	sess := &session.Session{ResumableHandle: "super-secret-handle"}

	hashed := sess.HashedHandle()
	assert.NotEmpty(t, hashed)
	assert.NotEqual(t, sess.ResumableHandle, hashed)
}

func TestManager_Stats(t *testing.T) {
	m := session.NewManager(session.Config{CleanupInterval: time.Hour, IdleTimeout: time.Hour})
	defer m.Close()

	empty := m.Stats()
	assert.Equal(t, 0, empty.Count)
	assert.True(t, empty.Oldest.IsZero())

	a := m.Create("user-1")
	b := m.Create("user-2")

	_, _ = m.Touch(a.ID)
	_, _ = m.Touch(a.ID)
	_, _ = m.Touch(b.ID)

	stats := m.Stats()
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, int64(3), stats.TotalQueries)
	assert.False(t, stats.Oldest.IsZero())
}
