package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tabletrouble/spyx-backend/internal"
)

// casScript commits a snapshot only when the stored version still matches
// the expected one. Runs atomically on the server, so two processes racing
// on the same room cannot both win.
//
// Returns 1 on success, 0 on version mismatch, -1 when the key is absent
// and the caller did not expect to create it.
var casScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  if tonumber(ARGV[2]) == 0 then
    redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[3])
    return 1
  end
  return -1
end
local snap = cjson.decode(cur)
if tonumber(snap['version']) == tonumber(ARGV[2]) then
  redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[3])
  return 1
end
return 0
`)

// RedisStore implements RoomStore on a Redis keyspace with keys of the
// form room:{code}.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func roomKey(code string) string {
	return "room:" + code
}

func (s *RedisStore) Get(ctx context.Context, code string) (*internal.Room, error) {
	raw, err := s.client.Get(ctx, roomKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, internal.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", internal.ErrStoreUnavailable, code, err)
	}

	var room internal.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", code, err)
	}
	return &room, nil
}

func (s *RedisStore) Put(ctx context.Context, room *internal.Room, ttl time.Duration) error {
	raw, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.Code, err)
	}
	if err := s.client.Set(ctx, roomKey(room.Code), raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: put %s: %v", internal.ErrStoreUnavailable, room.Code, err)
	}
	return nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, room *internal.Room, expected int64, ttl time.Duration) error {
	raw, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", room.Code, err)
	}

	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	res, err := casScript.Run(ctx, s.client,
		[]string{roomKey(room.Code)}, raw, expected, seconds).Int()
	if err != nil {
		return fmt.Errorf("%w: cas %s: %v", internal.ErrStoreUnavailable, room.Code, err)
	}

	switch res {
	case 1:
		return nil
	case 0:
		return ErrVersionConflict
	default:
		return internal.ErrNotFound
	}
}

func (s *RedisStore) Delete(ctx context.Context, code string) error {
	if err := s.client.Del(ctx, roomKey(code)).Err(); err != nil {
		return fmt.Errorf("%w: delete %s: %v", internal.ErrStoreUnavailable, code, err)
	}
	return nil
}
