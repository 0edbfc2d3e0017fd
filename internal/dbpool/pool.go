// Package dbpool manages a bounded pool of connections to the embedded
// DuckDB analytics engine, guarding acquisition with a circuit breaker so a
// wedged database degrades into fast failures instead of piling up
// goroutines behind a dead backend.
package dbpool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/censusql/gateway/internal/breaker"
	"github.com/censusql/gateway/internal/errkind"
)

// Config controls pool sizing and the embedded engine's resource limits.
type Config struct {
	// Path is the DuckDB database file path, or ":memory:" for an
	// in-process, non-durable catalog.
	Path string
	// MaxConns bounds how many connections database/sql may open against
	// the DuckDB handle concurrently.
	MaxConns int
	// MaxIdleConns bounds how many idle connections are kept warm.
	MaxIdleConns int
	// AcquireTimeout is the default deadline applied to Acquire when the
	// caller's context carries none.
	AcquireTimeout time.Duration
	// HealthCheckInterval is how often the background prober pings the
	// pool to detect a wedged engine before a caller does.
	HealthCheckInterval time.Duration
	// MemoryLimit is passed to DuckDB's memory_limit PRAGMA, e.g. "4GB".
	MemoryLimit string
	// Threads is passed to DuckDB's threads PRAGMA. Zero leaves the
	// engine default.
	Threads int
	// BreakerConfig configures the circuit breaker guarding Acquire.
	BreakerConfig breaker.Config
}

func (c Config) withDefaults() Config {
	if c.MaxConns <= 0 {
		c.MaxConns = 8
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = c.MaxConns
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 5 * time.Second
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = time.Minute
	}
	if c.BreakerConfig.Name == "" {
		c.BreakerConfig.Name = "dbpool"
	}

	return c
}

// Metrics tracks lock-free pool counters for the observability snapshot.
type Metrics struct {
	Acquires      atomic.Int64
	Releases      atomic.Int64
	AcquireErrors atomic.Int64
	HealthFails   atomic.Int64
	AcquireWaitNs atomic.Int64
	Waiting       atomic.Int64
	Unhealthy     atomic.Int64
}

// PoolHealth is a point-in-time snapshot of the pool's connection
// accounting, surfaced on the /health endpoint.
type PoolHealth struct {
	Total     int
	Idle      int
	InUse     int
	Waiting   int
	Unhealthy int
}

// Pool acquires and releases *sql.Conn handles against an embedded DuckDB
// database, with a circuit breaker protecting acquisition and a background
// prober that detects a wedged engine between caller acquisitions.
type Pool struct {
	cfg Config
	db  *sql.DB
	cb  *breaker.Breaker[*sql.Conn]

	metrics Metrics

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// Open configures and opens the DuckDB handle, applies the memory/thread
// PRAGMAs, and starts the background health prober.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	cfg = cfg.withDefaults()

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("dbpool: open duckdb: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := applyPragmas(ctx, db, cfg); err != nil {
		_ = db.Close()

		return nil, err
	}

	p := &Pool{
		cfg:  cfg,
		db:   db,
		cb:   breaker.New[*sql.Conn](cfg.BreakerConfig),
		done: make(chan struct{}),
	}

	p.wg.Add(1)
	go p.healthLoop()

	return p, nil
}

func applyPragmas(ctx context.Context, db *sql.DB, cfg Config) error {
	if cfg.MemoryLimit != "" {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA memory_limit='%s'", cfg.MemoryLimit)); err != nil {
			return fmt.Errorf("dbpool: set memory_limit: %w", err)
		}
	}

	if cfg.Threads > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA threads=%d", cfg.Threads)); err != nil {
			return fmt.Errorf("dbpool: set threads: %w", err)
		}
	}

	return nil
}

// Acquire checks out a connection, subject to the circuit breaker and the
// caller's context deadline (or the pool's AcquireTimeout default).
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	start := time.Now()
	defer func() {
		p.metrics.Acquires.Add(1)
		p.metrics.AcquireWaitNs.Add(int64(time.Since(start)))
	}()

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return nil, errkind.New(errkind.PoolTimeout, "connection pool is closed")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.AcquireTimeout)
		defer cancel()
	}

	p.metrics.Waiting.Add(1)
	defer p.metrics.Waiting.Add(-1)

	conn, err := p.cb.Do(ctx, func(ctx context.Context) (*sql.Conn, error) {
		return p.db.Conn(ctx)
	})
	if err != nil {
		p.metrics.AcquireErrors.Add(1)

		if errors.Is(err, breaker.ErrOpen) {
			return nil, errkind.Wrap(errkind.ServiceUnavailable, "database connection pool breaker is open", err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errkind.Wrap(errkind.PoolTimeout, "timed out acquiring a database connection", err)
		}

		return nil, errkind.Wrap(errkind.PoolTimeout, "failed to acquire a database connection", err)
	}

	return conn, nil
}

// Release returns a connection to the underlying database/sql pool. unhealthy
// marks a connection that raised a driver-level error during use — closing it
// here rather than letting database/sql reuse it forces the next Acquire to
// open a replacement rather than hand back a connection left in an unknown
// state. Any error closing the connection is reported as the return value;
// callers typically log and discard it.
func (p *Pool) Release(conn *sql.Conn, unhealthy bool) error {
	defer p.metrics.Releases.Add(1)

	if conn == nil {
		return nil
	}

	if unhealthy {
		p.metrics.Unhealthy.Add(1)

		// Returning driver.ErrBadConn from Raw makes database/sql discard the
		// underlying connection instead of putting it back in the idle set.
		if err := conn.Raw(func(any) error { return driver.ErrBadConn }); !errors.Is(err, driver.ErrBadConn) {
			return err
		}

		return nil
	}

	return conn.Close()
}

// Health reports the pool's current connection accounting: how many
// database/sql connections are open, idle, and checked out, how many
// Acquire calls are currently blocked waiting for one, and how many
// connections have been released unhealthy over the pool's lifetime.
func (p *Pool) Health() PoolHealth {
	stats := p.db.Stats()

	return PoolHealth{
		Total:     stats.OpenConnections,
		Idle:      stats.Idle,
		InUse:     stats.InUse,
		Waiting:   int(p.metrics.Waiting.Load()),
		Unhealthy: int(p.metrics.Unhealthy.Load()),
	}
}

// DB exposes the underlying *sql.DB for callers (notably the migrator and
// schema loader) that need to run statements outside the Acquire/Release
// discipline.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Stats returns the database/sql pool's own accounting, for the
// observability health snapshot.
func (p *Pool) Stats() sql.DBStats {
	return p.db.Stats()
}

// BreakerState reports the circuit breaker's current state for the health
// snapshot and admin controls.
func (p *Pool) BreakerState() breaker.State {
	return p.cb.State()
}

// ForceOpenBreaker and ForceClearBreaker expose the admin override surface
// served under /api/v1/admin/breakers.
func (p *Pool) ForceOpenBreaker()  { p.cb.ForceOpen() }
func (p *Pool) ForceClearBreaker() { p.cb.ForceClear() }

func (p *Pool) healthLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.probe()
		}
	}
}

func (p *Pool) probe() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.AcquireTimeout)
	defer cancel()

	if err := p.db.PingContext(ctx); err != nil {
		p.metrics.HealthFails.Add(1)
	}
}

// Close stops the health prober and closes the underlying database handle.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()

		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()

	return p.db.Close()
}
