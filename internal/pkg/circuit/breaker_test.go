package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("venue", 2, 30*time.Second)
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	assert.ErrorIs(t, cb.Execute(func() error { return boom }, nil), boom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return boom }, nil), boom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil }, nil)
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	now = now.Add(31 * time.Second)
	assert.NoError(t, cb.Execute(func() error { return nil }, nil))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("venue", 1, time.Second)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	now = now.Add(2 * time.Second)
	assert.True(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())
	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestBreaker_NonTrippingErrors(t *testing.T) {
	cb := NewCircuitBreaker("venue", 1, time.Minute)
	rejected := errors.New("rejected")
	trips := func(err error) bool { return !errors.Is(err, rejected) }

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return rejected }, trips), rejected)
	}
	assert.Equal(t, StateClosed, cb.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF-OPEN", StateHalfOpen.String())
	assert.Equal(t, "UNKNOWN", State(9).String())
}
