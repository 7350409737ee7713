package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker("test", 3, time.Minute)

	assert.True(t, b.Allow())
	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow(), "still closed below threshold")

	b.RecordFailure()
	assert.False(t, b.Allow())
	assert.Equal(t, 3, b.Failures())
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker("test", 3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker("test", 1, 10*time.Millisecond)

	b.RecordFailure()
	assert.False(t, b.Allow())

	time.Sleep(15 * time.Millisecond)

	t.Run("probe allowed after timeout", func(t *testing.T) {
		assert.True(t, b.Allow())
	})

	t.Run("probe failure reopens", func(t *testing.T) {
		b.RecordFailure()
		assert.False(t, b.Allow())
	})
}

func TestBreakerRecoversOnProbeSuccess(t *testing.T) {
	b := NewBreaker("test", 1, 10*time.Millisecond)

	b.RecordFailure()
	time.Sleep(15 * time.Millisecond)
	assert.True(t, b.Allow())

	b.RecordSuccess()
	assert.True(t, b.Allow())
	assert.Zero(t, b.Failures())
}

func TestBreakerStateChangeHandler(t *testing.T) {
	b := NewBreaker("test", 1, time.Minute)

	changes := make(chan State, 4)
	b.SetStateChangeHandler(func(name string, from, to State) {
		changes <- to
	})

	b.RecordFailure()
	select {
	case to := <-changes:
		assert.Equal(t, StateOpen, to)
	case <-time.After(time.Second):
		t.Fatal("no state change observed")
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF-OPEN", StateHalfOpen.String())
}
