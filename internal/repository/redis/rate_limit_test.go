package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitRepository_AdmitsUpToLimit(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, "dreamwise")
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	for i := 0; i < 3; i++ {
		res, err := repo.Attempt(ctx, "login:ip:10.0.0.1", 3, time.Minute, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.True(t, res.Allowed, "attempt %d", i+1)
		assert.Equal(t, i+1, res.Count)
	}

	res, err := repo.Attempt(ctx, "login:ip:10.0.0.1", 3, time.Minute, base.Add(5*time.Second))
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 3, res.Count)
	require.True(t, res.HasOldest)
	assert.Equal(t, base, res.Oldest)
}

func TestRateLimitRepository_WindowSlides(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, "dreamwise")
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	for i := 0; i < 2; i++ {
		_, err := repo.Attempt(ctx, "k", 2, time.Minute, base)
		require.NoError(t, err)
	}

	blocked, err := repo.Attempt(ctx, "k", 2, time.Minute, base.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	later, err := repo.Attempt(ctx, "k", 2, time.Minute, base.Add(61*time.Second))
	require.NoError(t, err)
	assert.True(t, later.Allowed)
	assert.Equal(t, 1, later.Count)
}

func TestRateLimitRepository_AttemptAtWindowEdgeExpires(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, "dreamwise")
	ctx := context.Background()

	base := time.UnixMilli(1_700_000_000_000)
	_, err := repo.Attempt(ctx, "edge", 1, time.Minute, base)
	require.NoError(t, err)

	blocked, err := repo.Attempt(ctx, "edge", 1, time.Minute, base.Add(time.Minute-time.Millisecond))
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	edge, err := repo.Attempt(ctx, "edge", 1, time.Minute, base.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, edge.Allowed)
	assert.Equal(t, 1, edge.Count)
}

func TestRateLimitRepository_KeysAreIsolated(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, "dreamwise")
	ctx := context.Background()
	now := time.Now()

	_, err := repo.Attempt(ctx, "a", 1, time.Minute, now)
	require.NoError(t, err)

	res, err := repo.Attempt(ctx, "b", 1, time.Minute, now)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRateLimitRepository_ConcurrentAttemptsNeverExceedLimit(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, "dreamwise")
	ctx := context.Background()
	now := time.Now()

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := repo.Attempt(ctx, "burst", 5, time.Minute, now)
			if err == nil && res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), allowed.Load())
}

func TestRateLimitRepository_InvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, "")
	ctx := context.Background()

	_, err := repo.Attempt(ctx, "k", 1, 0, time.Now())
	assert.Error(t, err)
	_, err = repo.Attempt(ctx, "k", 0, time.Minute, time.Now())
	assert.Error(t, err)
	_, err = repo.Attempt(ctx, "", 1, time.Minute, time.Now())
	assert.Error(t, err)
}
