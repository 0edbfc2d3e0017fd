package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/censusql/gateway/internal/errkind"
	"github.com/censusql/gateway/internal/sqlguard"
)

// execute runs validated.Sanitized against a pooled connection, scanning
// rows until exhaustion or cancellation. The scan loop selects against
// ctx.Done() between rows rather than relying solely on QueryContext's own
// cancellation, so a caller that cancels mid-scan gets a clean CANCELLED
// outcome instead of racing the driver's own teardown.
func (p *Pipeline) execute(ctx context.Context, validated sqlguard.ValidatedSQL) (*QueryResult, error) {
	start := time.Now()

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	released := false
	unhealthy := false
	release := func() {
		if !released {
			_ = p.pool.Release(conn, unhealthy)
			released = true
		}
	}
	defer release()

	rows, err := conn.QueryContext(ctx, validated.Sanitized)
	if err != nil {
		unhealthy = true

		return nil, errkind.Wrap(errkind.ExecutionError, "database rejected the statement at runtime", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errkind.Wrap(errkind.ExecutionError, "failed to read result columns", err)
	}

	result := &QueryResult{
		Columns:      columns,
		Rows:         make([]map[string]any, 0, 16),
		SourceTables: validated.TouchedTables,
	}

	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := scanRow(rows, columns)
		if err != nil {
			unhealthy = true

			return nil, errkind.Wrap(errkind.ExecutionError, "failed to scan result row", err)
		}

		result.Rows = append(result.Rows, record)
	}

	if err := rows.Err(); err != nil {
		unhealthy = true

		return nil, errkind.Wrap(errkind.ExecutionError, "error iterating result rows", err)
	}

	result.RowCount = len(result.Rows)
	result.ExecutionTime = time.Since(start)

	if p.freshness != nil {
		result.Freshness = p.freshness.Snapshot(validated.TouchedTables)
	}

	return result, nil
}

// scanRow reads one row into a column-name-keyed map. Integer columns are
// widened to int64 so the result shape can represent any 64-bit magnitude
// regardless of the underlying DuckDB column width, per spec.md §3's
// QueryResult invariant.
func scanRow(rows *sql.Rows, columns []string) (map[string]any, error) {
	values := make([]any, len(columns))
	pointers := make([]any, len(columns))

	for i := range values {
		pointers[i] = &values[i]
	}

	if err := rows.Scan(pointers...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	record := make(map[string]any, len(columns))
	for i, col := range columns {
		record[col] = widen(values[i])
	}

	return record, nil
}

func widen(v any) any {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int16:
		return int64(n)
	case int8:
		return int64(n)
	case int:
		return int64(n)
	case []byte:
		return string(n)
	default:
		return v
	}
}
