package audit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPollSucceedsEventually(t *testing.T) {
	var calls atomic.Int32
	ok := Poll(context.Background(), time.Second, time.Millisecond, func(context.Context) bool {
		return calls.Add(1) >= 3
	})
	assert.True(t, ok)
	assert.EqualValues(t, 3, calls.Load())
}

func TestPollTimesOut(t *testing.T) {
	start := time.Now()
	ok := Poll(context.Background(), 30*time.Millisecond, 5*time.Millisecond, func(context.Context) bool {
		return false
	})
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPollChecksOnceWithZeroTimeout(t *testing.T) {
	var calls int
	ok := Poll(context.Background(), 0, time.Millisecond, func(context.Context) bool {
		calls++
		return true
	})
	assert.True(t, ok)
	assert.Equal(t, 1, calls)
}

func TestPollStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := Poll(ctx, time.Hour, time.Millisecond, func(context.Context) bool { return false })
	assert.False(t, ok)
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleep(context.Background(), time.Millisecond))
}
