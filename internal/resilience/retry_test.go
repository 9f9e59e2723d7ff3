package resilience

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		Attempts:       attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return MarkTransient(eris.New("backend hiccup"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := eris.New("row violates constraint")
	err := Do(context.Background(), fastConfig(5), func(context.Context) error {
		calls++
		return permanent
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "permanent errors are not retried")
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		calls++
		return MarkTransient(eris.New("still down"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastConfig(10), func(context.Context) error {
		calls++
		cancel()
		return MarkTransient(eris.New("interrupted"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoReportsRetries(t *testing.T) {
	var attempts []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, _ error) {
		attempts = append(attempts, attempt)
	}
	_ = Do(context.Background(), cfg, func(context.Context) error {
		return MarkTransient(eris.New("down"))
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("parse failure")))
	assert.True(t, IsTransient(MarkTransient(eris.New("anything"))))
	assert.True(t, IsTransient(eris.Wrap(syscall.ECONNREFUSED, "dial backend")))
}

func TestRetryableStatus(t *testing.T) {
	assert.True(t, RetryableStatus(503))
	assert.True(t, RetryableStatus(429))
	assert.False(t, RetryableStatus(404))
	assert.False(t, RetryableStatus(400))
	assert.False(t, RetryableStatus(200))
}

func TestBackoffDelayCapsAndGrows(t *testing.T) {
	cfg := Config{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
	}
	assert.Equal(t, 100*time.Millisecond, backoffDelay(0, cfg))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(2, cfg))
	assert.Equal(t, time.Second, backoffDelay(10, cfg))
}
