package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaSink publishes audit records to a topic for downstream streaming
// consumers (anomaly detection, compliance export). Tertiary by design —
// never the only durable copy of an audit trail.
type KafkaSink struct {
	writer *kafka.Writer
}

// OpenKafkaSink constructs a sink writing to topic across brokers, using
// the least-bytes balancer so a burst of audit writes spreads across
// partitions rather than hammering one.
func OpenKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
	}
}

func (s *KafkaSink) Write(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(kafkaRecord{
		CorrelationID:     rec.CorrelationID,
		CallerIdentity:    rec.CallerIdentity,
		ValidationVerdict: string(rec.ValidationVerdict),
		RowCount:          rec.RowCount,
		ExecutionTimeMs:   rec.ExecutionTime.Milliseconds(),
		ErrorClass:        rec.ErrorClass,
		Outcome:           rec.Outcome,
	})
	if err != nil {
		return fmt.Errorf("audit: marshal kafka record: %w", err)
	}

	if err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.CorrelationID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("audit: publish kafka record: %w", err)
	}

	return nil
}

type kafkaRecord struct {
	CorrelationID     string `json:"correlation_id"`
	CallerIdentity    string `json:"caller_identity"`
	ValidationVerdict string `json:"validation_verdict"`
	RowCount          int    `json:"row_count"`
	ExecutionTimeMs   int64  `json:"execution_time_ms"`
	ErrorClass        string `json:"error_class,omitempty"`
	Outcome           string `json:"outcome"`
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
