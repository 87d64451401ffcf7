package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletrouble/spyx-backend/internal"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func testRoom(version int64) *internal.Room {
	return &internal.Room{
		Version:          version,
		Code:             "ABCD",
		CreatorSessionID: "s-alice",
		Players: []internal.Player{
			{Name: "Alice", SessionID: "s-alice"},
		},
		LastUpdated: time.Now().UTC(),
	}
}

func TestRedisStore_PutGetDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "ABCD")
	assert.ErrorIs(t, err, internal.ErrNotFound)

	require.NoError(t, s.Put(ctx, testRoom(1), internal.RoomTTL))

	got, err := s.Get(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "s-alice", got.CreatorSessionID)
	require.Len(t, got.Players, 1)
	assert.Equal(t, "Alice", got.Players[0].Name)

	require.NoError(t, s.Delete(ctx, "ABCD"))
	_, err = s.Get(ctx, "ABCD")
	assert.ErrorIs(t, err, internal.ErrNotFound)

	// Deleting an absent key is not an error.
	assert.NoError(t, s.Delete(ctx, "ABCD"))
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testRoom(1), time.Minute))

	mr.FastForward(59 * time.Second)
	_, err := s.Get(ctx, "ABCD")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	_, err = s.Get(ctx, "ABCD")
	assert.ErrorIs(t, err, internal.ErrNotFound)
}

func TestRedisStore_PutResetsTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testRoom(1), time.Minute))
	mr.FastForward(45 * time.Second)

	// Refresh slides the window from the write instant.
	require.NoError(t, s.Put(ctx, testRoom(2), time.Minute))
	mr.FastForward(45 * time.Second)

	got, err := s.Get(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func TestRedisStore_CompareAndSwap(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, testRoom(1), internal.RoomTTL))

	next := testRoom(2)
	next.Players = append(next.Players, internal.Player{Name: "Bob", SessionID: "s-bob"})
	require.NoError(t, s.CompareAndSwap(ctx, next, 1, internal.RoomTTL))

	got, err := s.Get(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Len(t, got.Players, 2)

	// A writer still holding version 1 must lose.
	stale := testRoom(2)
	err = s.CompareAndSwap(ctx, stale, 1, internal.RoomTTL)
	assert.ErrorIs(t, err, ErrVersionConflict)

	// The losing write changed nothing.
	got, err = s.Get(ctx, "ABCD")
	require.NoError(t, err)
	assert.Len(t, got.Players, 2)
}

func TestRedisStore_CompareAndSwap_AbsentKey(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// Expecting a version on a vanished key reports the room gone.
	err := s.CompareAndSwap(ctx, testRoom(2), 1, internal.RoomTTL)
	assert.ErrorIs(t, err, internal.ErrNotFound)

	// Expecting zero creates the key.
	require.NoError(t, s.CompareAndSwap(ctx, testRoom(1), 0, internal.RoomTTL))
	got, err := s.Get(ctx, "ABCD")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
}
