package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/censusql/gateway/internal/audit"
	"github.com/censusql/gateway/internal/sqlguard"
)

type fakeSink struct {
	mu      sync.Mutex
	records []audit.Record
	err     error
}

func (s *fakeSink) Write(_ context.Context, rec audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	s.records = append(s.records, rec)

	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

func TestLog_WritesToPrimarySynchronously(t *testing.T) {
	primary := &fakeSink{}
	log := audit.New(primary, nil)

	rec := audit.Record{CorrelationID: "abc", ValidationVerdict: sqlguard.Accept}
	require.NoError(t, log.Write(context.Background(), rec))
	assert.Equal(t, 1, primary.count())
}

func TestLog_PrimaryErrorPropagates(t *testing.T) {
	primary := &fakeSink{err: errors.New("disk full")}
	log := audit.New(primary, nil)

	err := log.Write(context.Background(), audit.Record{})
	assert.Error(t, err)
}

func TestLog_SecondaryFailureDoesNotPropagate(t *testing.T) {
	primary := &fakeSink{}
	secondary := &fakeSink{err: errors.New("kafka unreachable")}

	var failed []string

	var mu sync.Mutex

	log := audit.New(primary, func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, name)
	}, secondary)

	err := log.Write(context.Background(), audit.Record{CorrelationID: "xyz"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(failed) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestLog_FanOutReachesAllSecondarySinks(t *testing.T) {
	primary := &fakeSink{}
	secondA := &fakeSink{}
	secondB := &fakeSink{}

	log := audit.New(primary, nil, secondA, secondB)

	require.NoError(t, log.Write(context.Background(), audit.Record{CorrelationID: "fan-out"}))

	require.Eventually(t, func() bool {
		return secondA.count() == 1 && secondB.count() == 1
	}, time.Second, 10*time.Millisecond)
}
