package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tabletrouble/spyx-backend/internal"
	"github.com/tabletrouble/spyx-backend/internal/db"
	"github.com/tabletrouble/spyx-backend/internal/store"
)

// fakeConn records every event written to it.
type fakeConn struct {
	mu     sync.Mutex
	events []internal.Message[any]
	closed bool
	fail   bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("write failed")
	}
	msg, ok := v.(internal.Message[any])
	if !ok {
		return fmt.Errorf("unexpected write type %T", v)
	}
	c.events = append(c.events, msg)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) eventsOfKind(kind internal.EventKind) []internal.Message[any] {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []internal.Message[any]
	for _, e := range c.events {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

func newTestClient() (*Client, *fakeConn) {
	conn := &fakeConn{}
	return newClient(conn), conn
}

// fakePersistence is an in-memory Persistence for engine tests.
type fakePersistence struct {
	mu        sync.Mutex
	nextID    int64
	games     map[string]*db.GameRecord // code -> record
	gameCodes map[int64]string
	creators  map[int64]int64 // game id -> creator player id
	players   map[string]fakePlayerRow
	playerIDs map[int64]string // player id -> session id
	roles     map[int64][]string
}

type fakePlayerRow struct {
	id     int64
	gameID int64
	name   string
}

func newFakePersistence() *fakePersistence {
	return &fakePersistence{
		games:     make(map[string]*db.GameRecord),
		gameCodes: make(map[int64]string),
		creators:  make(map[int64]int64),
		players:   make(map[string]fakePlayerRow),
		playerIDs: make(map[int64]string),
		roles:     make(map[int64][]string),
	}
}

func (f *fakePersistence) InsertGame(_ context.Context, code string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.games[code]; exists {
		return 0, db.ErrCodeTaken
	}
	f.nextID++
	f.games[code] = &db.GameRecord{ID: f.nextID, Code: code}
	f.gameCodes[f.nextID] = code
	return f.nextID, nil
}

func (f *fakePersistence) InsertPlayer(_ context.Context, gameID int64, name, sessionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.players[sessionID] = fakePlayerRow{id: f.nextID, gameID: gameID, name: name}
	f.playerIDs[f.nextID] = sessionID
	return f.nextID, nil
}

func (f *fakePersistence) SetCreator(_ context.Context, gameID, playerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[gameID] = playerID
	return nil
}

func (f *fakePersistence) DeletePlayer(_ context.Context, gameID int64, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.players[sessionID]; ok && row.gameID == gameID {
		delete(f.playerIDs, row.id)
		delete(f.players, sessionID)
	}
	return nil
}

func (f *fakePersistence) DeleteGame(_ context.Context, gameID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	code, ok := f.gameCodes[gameID]
	if !ok {
		return nil
	}
	delete(f.games, code)
	delete(f.gameCodes, gameID)
	delete(f.creators, gameID)
	for sid, row := range f.players {
		if row.gameID == gameID {
			delete(f.playerIDs, row.id)
			delete(f.players, sid)
		}
	}
	return nil
}

func (f *fakePersistence) creatorSession(gameID int64) string {
	if pid, ok := f.creators[gameID]; ok {
		return f.playerIDs[pid]
	}
	return ""
}

func (f *fakePersistence) LookupGameByCode(_ context.Context, code string) (*db.GameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.games[code]
	if !ok {
		return nil, internal.ErrNotFound
	}
	out := *rec
	out.CreatorSessionID = f.creatorSession(rec.ID)
	return &out, nil
}

func (f *fakePersistence) LookupBySession(_ context.Context, sessionID string) (*db.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.players[sessionID]
	if !ok {
		return nil, internal.ErrNotFound
	}
	return &db.SessionRecord{
		GameCode:         f.gameCodes[row.gameID],
		PlayerName:       row.name,
		CreatorSessionID: f.creatorSession(row.gameID),
	}, nil
}

func (f *fakePersistence) LookupRolesByLocation(_ context.Context, locationID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.roles[locationID]...), nil
}

func (f *fakePersistence) hasSession(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.players[sessionID]
	return ok
}

// testEnv wires a Rooms coordinator onto miniredis and the fake
// persistence with a fixed random seed.
type testEnv struct {
	rooms       *Rooms
	persistence *fakePersistence
	store       *store.RedisStore
	registry    *Registry
	mr          *miniredis.Miniredis
}

func newTestEnv(t *testing.T, seed int64) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	roomStore := store.NewRedisStore(client)
	persistence := newFakePersistence()
	registry := NewRegistry()
	broadcaster := NewBroadcaster(registry)
	watcher := NewExpiryWatcher(roomStore, registry, broadcaster)
	t.Cleanup(watcher.Stop)
	engine := NewRoleEngine(fixedSource(seed))

	rooms := NewRooms(roomStore, persistence, registry, broadcaster, watcher, engine, internal.RoomTTL)
	return &testEnv{
		rooms:       rooms,
		persistence: persistence,
		store:       roomStore,
		registry:    registry,
		mr:          mr,
	}
}

// bind connects a fake client for a session already in the room.
func (e *testEnv) bind(code, sessionID string) (*Client, *fakeConn) {
	c, conn := newTestClient()
	e.registry.Bind(code, sessionID, c)
	return c, conn
}
