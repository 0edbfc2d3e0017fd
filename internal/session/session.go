// Package session manages protocol-level Session state: creation on an
// initialize call, last-used bumping on every subsequent call, and
// destruction by explicit terminate, idle expiry, or capacity eviction.
package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultIdleTimeout     = 30 * time.Minute
	defaultCapacity        = 10_000
	defaultCleanupInterval = time.Minute
)

// Session is one protocol-level conversation's state.
type Session struct {
	ID         string
	CreatedAt  time.Time
	LastUsed   time.Time
	UserID     string
	// ResumableHandle is an opaque secret the caller can present to resume
	// this conversation from a different connection. Never logged in the
	// clear — HashedHandle derives a bcrypt digest that is safe to log
	// instead.
	ResumableHandle string
	CallCount       int64

	element *list.Element // backing the LRU eviction list; Manager-owned
}

// HashedHandle returns the bcrypt digest of ResumableHandle, safe to write
// to a log line. Returns an empty string if no handle is set.
func (s *Session) HashedHandle() string {
	if s.ResumableHandle == "" {
		return ""
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(s.ResumableHandle), bcrypt.DefaultCost)
	if err != nil {
		return ""
	}

	return string(digest)
}

// Config controls idle expiry, capacity eviction, and the sweep cadence.
type Config struct {
	IdleTimeout     time.Duration
	Capacity        int
	CleanupInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.Capacity <= 0 {
		c.Capacity = defaultCapacity
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = defaultCleanupInterval
	}

	return c
}

// Manager owns the live Session set: one session per user_id, an LRU list
// for capacity eviction, and a background sweep for idle expiry.
type Manager struct {
	cfg Config

	mu         sync.Mutex
	byID       map[string]*Session
	byUser     map[string]string // userID -> sessionID, enforces one session per user
	lru        *list.List        // front = most recently used

	done chan struct{}
	wg   sync.WaitGroup
}

// NewManager constructs and starts a Manager's background idle sweep.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		cfg:    cfg.withDefaults(),
		byID:   make(map[string]*Session),
		byUser: make(map[string]string),
		lru:    list.New(),
		done:   make(chan struct{}),
	}

	m.wg.Add(1)
	go m.sweepLoop()

	return m
}

// Create starts a new session. If userID is non-empty and already owns a
// session, that prior session is evicted first — one session per user.
func (m *Manager) Create(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if userID != "" {
		if existingID, ok := m.byUser[userID]; ok {
			m.removeLocked(existingID)
		}
	}

	if m.lru.Len() >= m.cfg.Capacity {
		m.evictLRULocked()
	}

	now := stableNow()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		LastUsed:  now,
		UserID:    userID,
	}
	sess.element = m.lru.PushFront(sess.ID)

	m.byID[sess.ID] = sess
	if userID != "" {
		m.byUser[userID] = sess.ID
	}

	return sess
}

// Touch bumps last-used and moves the session to the front of the LRU
// list, as any call after initialize does.
func (m *Manager) Touch(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.byID[id]
	if !ok {
		return nil, false
	}

	sess.LastUsed = stableNow()
	sess.CallCount++
	m.lru.MoveToFront(sess.element)

	return sess, true
}

// Get returns the session without mutating its last-used time.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.byID[id]

	return sess, ok
}

// Terminate explicitly destroys a session.
func (m *Manager) Terminate(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return false
	}

	m.removeLocked(id)

	return true
}

// Count returns the number of live sessions, for the health snapshot.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.byID)
}

// Stats is the aggregate roll-up spec.md §4.7's stats() contract exposes
// through the protocol server's health endpoint: live session count, the
// oldest live session's creation time, and the total calls served across
// all live sessions.
type Stats struct {
	Count        int
	Oldest       time.Time
	TotalQueries int64
}

// Stats computes the current roll-up. Oldest is the zero time when no
// sessions are live.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{Count: len(m.byID)}

	for _, sess := range m.byID {
		stats.TotalQueries += sess.CallCount

		if stats.Oldest.IsZero() || sess.CreatedAt.Before(stats.Oldest) {
			stats.Oldest = sess.CreatedAt
		}
	}

	return stats
}

func (m *Manager) removeLocked(id string) {
	sess, ok := m.byID[id]
	if !ok {
		return
	}

	m.lru.Remove(sess.element)
	delete(m.byID, id)

	if sess.UserID != "" && m.byUser[sess.UserID] == id {
		delete(m.byUser, sess.UserID)
	}
}

// evictLRULocked removes the least-recently-used 10% of capacity (at least
// one session) to make room once the capacity cap is reached, so a single
// burst of creations doesn't immediately trigger eviction again on the
// very next call. Caller holds m.mu.
func (m *Manager) evictLRULocked() {
	batch := m.cfg.Capacity / 10
	if batch < 1 {
		batch = 1
	}

	for i := 0; i < batch; i++ {
		back := m.lru.Back()
		if back == nil {
			return
		}

		m.removeLocked(back.Value.(string))
	}
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweepIdle()
		}
	}
}

func (m *Manager) sweepIdle() {
	cutoff := stableNow().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []string
	for id, sess := range m.byID {
		if sess.LastUsed.Before(cutoff) {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		m.removeLocked(id)
	}
}

// Close stops the background sweep.
func (m *Manager) Close() {
	close(m.done)
	m.wg.Wait()
}

// stableNow is a seam around time.Now so tests can wrap a Manager with a
// deterministic clock if idle-expiry timing needs to be exercised without
// sleeping; production always uses wall-clock time.
var stableNow = time.Now
