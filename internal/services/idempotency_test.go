package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIdemStore(t *testing.T) (IIdempotencyStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewIdempotencyStore(client, time.Hour), mr
}

func TestIdempotencyStore_ReserveAndComplete(t *testing.T) {
	store, _ := newTestIdemStore(t)
	ctx := context.Background()
	key := uuid.NewString()

	owned, id, err := store.Reserve(ctx, key)
	require.NoError(t, err)
	assert.True(t, owned)
	assert.Empty(t, id)

	require.NoError(t, store.Complete(ctx, key, "65f000000000000000000001"))

	owned, id, err = store.Reserve(ctx, key)
	require.NoError(t, err)
	assert.False(t, owned)
	assert.Equal(t, "65f000000000000000000001", id)
}

func TestIdempotencyStore_InFlightKeyConflicts(t *testing.T) {
	store, _ := newTestIdemStore(t)
	ctx := context.Background()
	key := uuid.NewString()

	owned, _, err := store.Reserve(ctx, key)
	require.NoError(t, err)
	require.True(t, owned)

	// Second reservation while the first request has not completed
	_, _, err = store.Reserve(ctx, key)
	require.Error(t, err)
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestIdempotencyStore_ReleaseAllowsRetry(t *testing.T) {
	store, _ := newTestIdemStore(t)
	ctx := context.Background()
	key := uuid.NewString()

	owned, _, err := store.Reserve(ctx, key)
	require.NoError(t, err)
	require.True(t, owned)

	store.Release(ctx, key)

	owned, _, err = store.Reserve(ctx, key)
	require.NoError(t, err)
	assert.True(t, owned)
}

func TestIdempotencyStore_ReservationExpires(t *testing.T) {
	store, mr := newTestIdemStore(t)
	ctx := context.Background()
	key := uuid.NewString()

	owned, _, err := store.Reserve(ctx, key)
	require.NoError(t, err)
	require.True(t, owned)

	mr.FastForward(2 * time.Hour)

	owned, _, err = store.Reserve(ctx, key)
	require.NoError(t, err)
	assert.True(t, owned)
}
