// Package store holds the shared room-snapshot store. The snapshot is the
// single source of truth for live rooms, so it has to live outside any one
// server process; implementations wrap an external TTL-bearing key-value
// store.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tabletrouble/spyx-backend/internal"
)

// ErrVersionConflict reports a compare-and-swap that lost to a concurrent
// commit. The caller re-reads and retries at its serialization point.
var ErrVersionConflict = errors.New("room version conflict")

// RoomStore is the shared, TTL-bearing cache holding canonical room
// snapshots. Consistency is last-committed-wins at whole-snapshot
// granularity; CompareAndSwap gives read-modify-write sequences per-key
// optimistic concurrency on top of that.
type RoomStore interface {
	// Get returns the snapshot for code, or internal.ErrNotFound.
	Get(ctx context.Context, code string) (*internal.Room, error)

	// Put overwrites the snapshot unconditionally and resets the sliding
	// expiry window from the write instant. Used to seed new rooms and to
	// rehydrate evicted ones.
	Put(ctx context.Context, room *internal.Room, ttl time.Duration) error

	// CompareAndSwap commits room only if the stored version still equals
	// expected. Returns ErrVersionConflict when a concurrent commit won,
	// internal.ErrNotFound when the key vanished (expiry or deletion).
	// A successful swap resets the expiry window like Put.
	CompareAndSwap(ctx context.Context, room *internal.Room, expected int64, ttl time.Duration) error

	// Delete removes the snapshot. Deleting an absent key is not an error.
	Delete(ctx context.Context, code string) error
}
