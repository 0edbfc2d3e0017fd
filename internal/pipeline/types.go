// Package pipeline orchestrates the three-stage query execution path —
// translate, validate, execute — shaping every outcome (success, rejection,
// translation failure, execution fault, cancellation) into a uniform
// Result and emitting exactly one audit.Record per run. Grounded on
// isthmus's QueryService.Execute (validate → execute → audit →
// instrument), extended with the translation stage spec.md requires and
// using this repository's correlation tracker in place of OpenTelemetry
// spans (no OTel dependency appears anywhere in the teacher's go.mod).
package pipeline

import (
	"time"

	"github.com/censusql/gateway/internal/sqlguard"
	"github.com/censusql/gateway/internal/translator"
)

// SessionContext carries the prior turn's question and Analysis so a
// referential follow-up question can be resolved against it.
type SessionContext = translator.SessionContext

// QueryResult is the executor's materialized output.
type QueryResult struct {
	Columns       []string             `json:"columns"`
	Rows          []map[string]any     `json:"rows"`
	RowCount      int                  `json:"row_count"`
	ExecutionTime time.Duration        `json:"execution_time_ns"`
	SourceTables  []string             `json:"source_tables"`
	Freshness     map[string]time.Time `json:"freshness,omitempty"`
}

// Outcome classifies how a pipeline run ended, for the audit record and
// for the uniform response envelope.
type Outcome string

const (
	OutcomeSuccess       Outcome = "SUCCESS"
	OutcomeLowConfidence Outcome = "LOW_CONFIDENCE"
	OutcomeSQLRejected   Outcome = "SQL_REJECTED"
	OutcomeError         Outcome = "ERROR"
	OutcomeCancelled     Outcome = "CANCELLED"
)

// Result is the pipeline's uniform response shape, regardless of which
// stage a run stopped at.
type Result struct {
	CorrelationID string  `json:"correlation_id"`
	Outcome       Outcome `json:"outcome"`
	Success       bool    `json:"success"`

	Analysis  *translator.Analysis   `json:"analysis,omitempty"`
	Validated *sqlguard.ValidatedSQL `json:"validated,omitempty"`
	Query     *QueryResult           `json:"query,omitempty"`

	ErrorKind    string   `json:"error_kind,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Suggestions  []string `json:"suggestions,omitempty"`
}
