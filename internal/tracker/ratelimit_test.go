package tracker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Acquire_BlocksAtCapacity(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(3, 0)
	require.Equal(t, 3, rl.MaxConcurrent())

	var releases []func()
	for i := 0; i < 3; i++ {
		release, err := rl.Acquire(context.Background(), fmt.Sprintf("site%d.example.com", i))
		require.NoError(t, err)
		releases = append(releases, release)
	}
	require.Equal(t, 3, rl.InFlight())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := rl.Acquire(ctx, "other.example.com")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	releases[0]()
	require.Equal(t, 2, rl.InFlight())

	release, err := rl.Acquire(context.Background(), "other.example.com")
	require.NoError(t, err)
	release()
	for _, r := range releases[1:] {
		r()
	}
	assert.Equal(t, 0, rl.InFlight())
}

func TestRateLimiter_Release_Idempotent(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(2, 0)
	release, err := rl.Acquire(context.Background(), "shop.example.com")
	require.NoError(t, err)
	require.Equal(t, 1, rl.InFlight())

	release()
	release()
	assert.Equal(t, 0, rl.InFlight())
}

func TestRateLimiter_Acquire_PacesPerSite(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(5, 100*time.Millisecond)

	release, err := rl.Acquire(context.Background(), "amazon.in")
	require.NoError(t, err)
	release()

	start := time.Now()
	release, err = rl.Acquire(context.Background(), "amazon.in")
	require.NoError(t, err)
	release()
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond,
		"a second request against the same site should wait out the delay")

	// A different site has its own pacing and is not held up.
	release, err = rl.Acquire(context.Background(), "flipkart.com")
	require.NoError(t, err)
	release()
	assert.Equal(t, 0, rl.InFlight())
}

func TestRateLimiter_Acquire_CanceledWhilePacing(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, time.Hour)
	release, err := rl.Acquire(context.Background(), "amazon.in")
	require.NoError(t, err)
	release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = rl.Acquire(ctx, "amazon.in")
	require.Error(t, err)
	assert.Equal(t, 0, rl.InFlight(), "an aborted acquire must not leak its slot")
}

func TestRateLimiter_Acquire_CanceledContext(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(1, 0)
	release, err := rl.Acquire(context.Background(), "shop.example.com")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rl.Acquire(ctx, "shop.example.com")
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewRateLimiter_MinimumOneSlot(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, NewRateLimiter(0, 0).MaxConcurrent())
	assert.Equal(t, 1, NewRateLimiter(-3, 0).MaxConcurrent())
}
