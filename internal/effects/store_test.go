package effects

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return clock }

	processed, err := store.IsProcessed(ctx, "task")
	require.NoError(t, err)
	assert.False(t, processed)

	marked, err := store.MarkProcessed(ctx, "task", time.Minute)
	require.NoError(t, err)
	assert.True(t, marked)
	marked, err = store.MarkProcessed(ctx, "task", time.Minute)
	require.NoError(t, err)
	assert.False(t, marked)

	processed, err = store.IsProcessed(ctx, "task")
	require.NoError(t, err)
	assert.True(t, processed)

	clock = clock.Add(time.Minute)
	processed, err = store.IsProcessed(ctx, "task")
	require.NoError(t, err)
	assert.False(t, processed, "entry expired")
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	key := uuid.NewString()
	marked, err := store.MarkProcessed(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, marked)
	marked, err = store.MarkProcessed(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, marked)

	processed, err := store.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.True(t, processed)
}
