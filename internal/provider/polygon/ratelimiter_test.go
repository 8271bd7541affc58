package polygon

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterSpacesRequests(t *testing.T) {
	r := newRateLimiter(30*time.Millisecond, slog.Default())
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Wait(context.Background()))
	}
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRateLimiterHonoursContext(t *testing.T) {
	r := newRateLimiter(time.Hour, slog.Default())
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestRateLimiterDisabled(t *testing.T) {
	var r *rateLimiter
	assert.NoError(t, r.Wait(context.Background()))
	assert.NoError(t, newRateLimiter(0, slog.Default()).Wait(context.Background()))
}
