package audit

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "postgres" database/sql driver.
	_ "github.com/lib/pq"
)

// PostgresSink writes audit records to a Postgres table, created by the
// migrations the Postgres-backed deployment runs at startup. Intended as a
// secondary sink for operators who want SQL-queryable audit history
// instead of (or alongside) the primary append-only file sink.
type PostgresSink struct {
	db *sql.DB
}

// OpenPostgresSink opens a connection pool against connStr. Callers run
// migrations separately (see cmd/censusql and internal/config's test
// helper) before writing records.
func OpenPostgresSink(connStr string) (*PostgresSink, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("audit: open postgres sink: %w", err)
	}

	return &PostgresSink{db: db}, nil
}

const insertAuditRecordSQL = `
INSERT INTO audit_records (
	correlation_id, recorded_at, caller_identity, original_question,
	candidate_sql, validation_verdict, rejection_reasons, execution_time_ms,
	row_count, error_class, outcome
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func (s *PostgresSink) Write(ctx context.Context, rec Record) error {
	reasons := make([]string, 0, len(rec.RejectionReasons))
	for _, r := range rec.RejectionReasons {
		reasons = append(reasons, string(r.Tag)+": "+r.Phrase)
	}

	_, err := s.db.ExecContext(ctx, insertAuditRecordSQL,
		rec.CorrelationID, rec.Timestamp, rec.CallerIdentity, rec.OriginalQuestion,
		rec.CandidateSQL, string(rec.ValidationVerdict), pqTextArray(reasons),
		rec.ExecutionTime.Milliseconds(), rec.RowCount, rec.ErrorClass, rec.Outcome,
	)
	if err != nil {
		return fmt.Errorf("audit: insert record: %w", err)
	}

	return nil
}

// pqTextArray renders a Go string slice as a Postgres text[] literal,
// matching the format lib/pq expects for array-typed parameters.
func pqTextArray(values []string) string {
	out := "{"
	for i, v := range values {
		if i > 0 {
			out += ","
		}
		out += `"` + escapePQArrayElement(v) + `"`
	}

	return out + "}"
}

func escapePQArrayElement(s string) string {
	escaped := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, s[i])
	}

	return string(escaped)
}

// Close releases the connection pool.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
