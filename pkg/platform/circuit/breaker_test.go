package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker_StartsClosed(t *testing.T) {
	b := New("fx-rates")
	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "fx-rates", b.Name())
}

func TestBreaker_OpensOnConsecutiveFailures(t *testing.T) {
	b := New("token-price", WithFailureThreshold(3))

	for i := 0; i < 2; i++ {
		useFallback, change := b.RecordFailure()
		assert.False(t, useFallback)
		assert.False(t, change.Opened)
	}

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	// already open: no new transition
	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New("token-price", WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen())

	b.RecordFailure()
	assert.True(t, b.IsOpen())
}

func TestBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	b := New("fx-rates", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	usePrimary, change := b.RecordSuccess()
	assert.False(t, usePrimary)
	assert.False(t, change.Closed)

	// a failure in between restarts the success streak
	b.RecordFailure()
	b.RecordSuccess()
	assert.True(t, b.IsOpen())

	usePrimary, change = b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.False(t, b.IsOpen())
}

func TestBreaker_AllowsProbeAfterCooldown(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	b := New("fx-rates",
		WithFailureThreshold(1),
		WithCooldown(10*time.Second),
		WithClock(func() time.Time { return now }),
	)

	b.RecordFailure()
	assert.False(t, b.Allow(), "open breaker rejects calls during cooldown")

	now = now.Add(9 * time.Second)
	assert.False(t, b.Allow())

	now = now.Add(time.Second)
	assert.True(t, b.Allow(), "probe allowed once cooldown elapsed")
	assert.True(t, b.IsOpen(), "probe does not close the breaker by itself")
}

func TestBreaker_Reset(t *testing.T) {
	b := New("fx-rates", WithFailureThreshold(1))
	b.RecordFailure()
	assert.True(t, b.IsOpen())

	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
}
