package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileSink appends one JSON object per line to a file opened with
// O_APPEND|O_SYNC, so a crash mid-write loses at most the in-flight record
// rather than corrupting or losing prior entries.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
}

// OpenFileSink opens (creating if necessary) the audit log file at path.
func OpenFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY|os.O_SYNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open file sink: %w", err)
	}

	return &FileSink{file: f}, nil
}

type fileRecord struct {
	CorrelationID     string  `json:"correlation_id"`
	Timestamp         string  `json:"timestamp"`
	CallerIdentity    string  `json:"caller_identity"`
	OriginalQuestion  string  `json:"original_question"`
	CandidateSQL      string  `json:"candidate_sql"`
	ValidationVerdict string  `json:"validation_verdict"`
	RejectionReasons  []string `json:"rejection_reasons,omitempty"`
	ExecutionTimeMs   int64   `json:"execution_time_ms"`
	RowCount          int     `json:"row_count"`
	ErrorClass        string  `json:"error_class,omitempty"`
	Outcome           string  `json:"outcome"`
}

// Write appends rec as a single JSON line. It ignores ctx cancellation: a
// local append is fast enough that honoring cancellation would only risk
// a torn write, and the durability guarantee matters more here than
// respecting a caller's timeout.
func (s *FileSink) Write(_ context.Context, rec Record) error {
	reasons := make([]string, 0, len(rec.RejectionReasons))
	for _, r := range rec.RejectionReasons {
		reasons = append(reasons, string(r.Tag)+": "+r.Phrase)
	}

	line := fileRecord{
		CorrelationID:     rec.CorrelationID,
		Timestamp:         rec.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		CallerIdentity:    rec.CallerIdentity,
		OriginalQuestion:  rec.OriginalQuestion,
		CandidateSQL:      rec.CandidateSQL,
		ValidationVerdict: string(rec.ValidationVerdict),
		RejectionReasons:  reasons,
		ExecutionTimeMs:   rec.ExecutionTime.Milliseconds(),
		RowCount:          rec.RowCount,
		ErrorClass:        rec.ErrorClass,
		Outcome:           rec.Outcome,
	}

	encoded, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("audit: marshal record: %w", err)
	}
	encoded = append(encoded, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Write(encoded); err != nil {
		return fmt.Errorf("audit: write record: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.file.Close()
}
