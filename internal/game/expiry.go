package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tabletrouble/spyx-backend/internal"
	"github.com/tabletrouble/spyx-backend/internal/store"
)

// ExpiryWatcher schedules a one-shot check shortly after each snapshot
// write's TTL deadline and tells any still-bound connections when their
// room silently disappeared. The timer is advisory only: absence of the
// snapshot in the store is the authoritative expiry signal, so a room that
// was refreshed (or already deleted and notified) just makes the check a
// no-op.
type ExpiryWatcher struct {
	store       store.RoomStore
	registry    *Registry
	broadcaster *Broadcaster
	grace       time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

const defaultExpiryGrace = 2 * time.Second

func NewExpiryWatcher(s store.RoomStore, registry *Registry, broadcaster *Broadcaster) *ExpiryWatcher {
	return &ExpiryWatcher{
		store:       s,
		registry:    registry,
		broadcaster: broadcaster,
		grace:       defaultExpiryGrace,
		timers:      make(map[string]*time.Timer),
	}
}

// Schedule arms (or re-arms) the post-deadline check for a room. Called
// after every snapshot write.
func (w *ExpiryWatcher) Schedule(code string, ttl time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[code]; ok {
		t.Stop()
	}
	w.timers[code] = time.AfterFunc(ttl+w.grace, func() {
		w.check(code)
	})
}

// Cancel drops the pending check for a room that was deleted on purpose.
func (w *ExpiryWatcher) Cancel(code string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[code]; ok {
		t.Stop()
		delete(w.timers, code)
	}
}

// Stop cancels every pending check.
func (w *ExpiryWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for code, t := range w.timers {
		t.Stop()
		delete(w.timers, code)
	}
}

func (w *ExpiryWatcher) check(code string) {
	w.mu.Lock()
	delete(w.timers, code)
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := w.store.Get(ctx, code)
	switch {
	case err == nil:
		// Refreshed since this check was armed; the write that refreshed
		// it re-armed a later one.
		return
	case errors.Is(err, internal.ErrNotFound):
		w.broadcaster.Broadcast(code, internal.EventRoomExpired, internal.RoomExpiredData{GameCode: code})
		dropped := w.registry.DropRoom(code)
		log.Info().
			Str("room", code).
			Int("connections", len(dropped)).
			Msg("room expired, bindings dropped")
	default:
		log.Warn().Err(err).Str("room", code).Msg("expiry check skipped, store unreachable")
	}
}
