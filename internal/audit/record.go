// Package audit records every SQL execution attempt — its validation
// verdict and outcome — to a durable, append-only sink. The file sink is
// the primary record of truth; Postgres and Kafka sinks are best-effort
// secondary fan-out for downstream querying and streaming.
package audit

import (
	"context"
	"time"

	"github.com/censusql/gateway/internal/sqlguard"
)

// Record is one execution attempt, from the question that prompted it to
// its final outcome.
type Record struct {
	CorrelationID     string
	Timestamp         time.Time
	CallerIdentity    string
	OriginalQuestion  string
	CandidateSQL      string
	ValidationVerdict sqlguard.Verdict
	RejectionReasons  []sqlguard.Reason
	ExecutionTime     time.Duration
	RowCount          int
	ErrorClass        string
	Outcome           string
}

// Sink persists one Record. Implementations must not block the caller for
// longer than a short, bounded attempt — a sink outage must never stall
// the query path.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// Log fans a single Record out to every configured sink. The primary sink
// (typically the file sink) is written synchronously and its error is
// returned; secondary sinks are best-effort — failures are logged, not
// propagated, so an unavailable Postgres or Kafka sink never blocks the
// query path.
type Log struct {
	primary    Sink
	secondary  []Sink
	onSinkFail func(sinkName string, err error)
}

// New constructs a Log. primary's errors propagate to the caller;
// secondary sinks are fire-and-forget, reported through onSinkFail (which
// may be nil).
func New(primary Sink, onSinkFail func(string, error), secondary ...Sink) *Log {
	return &Log{primary: primary, secondary: secondary, onSinkFail: onSinkFail}
}

// Write persists rec to the primary sink and fans it out to every
// secondary sink without waiting for them to complete.
func (l *Log) Write(ctx context.Context, rec Record) error {
	if err := l.primary.Write(ctx, rec); err != nil {
		return err
	}

	for _, sink := range l.secondary {
		go func(s Sink) {
			writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := s.Write(writeCtx, rec); err != nil && l.onSinkFail != nil {
				l.onSinkFail("secondary", err)
			}
		}(sink)
	}

	return nil
}
