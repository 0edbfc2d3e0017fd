package breaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/censusql/gateway/internal/breaker"
)

func TestBreaker_TripsAfterThreshold(t *testing.T) {
	b := breaker.New[int](breaker.Config{
		Name:             "test",
		FailureThreshold: 3,
		CooldownPeriod:   50 * time.Millisecond,
	})

	failing := func(context.Context) (int, error) { return 0, errors.New("boom") }

	for i := 0; i < 3; i++ {
		_, err := b.Do(context.Background(), failing)
		require.Error(t, err)
	}

	assert.Equal(t, breaker.Open, b.State())

	_, err := b.Do(context.Background(), failing)
	assert.ErrorIs(t, err, breaker.ErrOpen)
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	b := breaker.New[int](breaker.Config{
		Name:              "test",
		FailureThreshold:  1,
		CooldownPeriod:    10 * time.Millisecond,
		HalfOpenSuccesses: 2,
	})

	_, err := b.Do(context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	require.Error(t, err)
	require.Equal(t, breaker.Open, b.State())

	time.Sleep(15 * time.Millisecond)
	require.Equal(t, breaker.HalfOpen, b.State())

	ok := func(context.Context) (int, error) { return 1, nil }

	_, err = b.Do(context.Background(), ok)
	require.NoError(t, err)
	assert.Equal(t, breaker.HalfOpen, b.State())

	_, err = b.Do(context.Background(), ok)
	require.NoError(t, err)
	assert.Equal(t, breaker.Closed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := breaker.New[int](breaker.Config{
		Name:             "test",
		FailureThreshold: 1,
		CooldownPeriod:   10 * time.Millisecond,
	})

	_, _ = b.Do(context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	time.Sleep(15 * time.Millisecond)
	require.Equal(t, breaker.HalfOpen, b.State())

	_, err := b.Do(context.Background(), func(context.Context) (int, error) {
		return 0, errors.New("still broken")
	})
	require.Error(t, err)
	assert.Equal(t, breaker.Open, b.State())
}

func TestBreaker_ForceOpenAndClear(t *testing.T) {
	b := breaker.New[int](breaker.Config{Name: "test", FailureThreshold: 100})

	b.ForceOpen()
	assert.Equal(t, breaker.Open, b.State())

	_, err := b.Do(context.Background(), func(context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, err, breaker.ErrOpen)

	b.ForceClear()
	assert.Equal(t, breaker.Closed, b.State())

	v, err := b.Do(context.Background(), func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
