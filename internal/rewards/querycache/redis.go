package querycache

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "rewards:cache:"
	redisGenPrefix = "rewards:gen:"
	fieldValue     = "value"
	fieldStale     = "stale"
	fieldFetchedAt = "fetched_at"
	fieldGen       = "gen"
	scanBatch      = 1000
	// a marker left for an invalidated key with no entry lives this long,
	// longer than any fetch should take
	markerTTL = 10 * time.Minute
)

var (
	generationScript = redis.NewScript(`
return {tonumber(redis.call('HGET', KEYS[1], 'gen') or '0'), tonumber(redis.call('GET', KEYS[2]) or '0')}
`)

	setIfGenerationScript = redis.NewScript(`
local gen = tonumber(redis.call('HGET', KEYS[1], 'gen') or '0')
local res = tonumber(redis.call('GET', KEYS[2]) or '0')
if gen ~= tonumber(ARGV[4]) or res ~= tonumber(ARGV[5]) then
  return 0
end
redis.call('HSET', KEYS[1], 'value', ARGV[1], 'stale', '0', 'fetched_at', ARGV[2], 'gen', gen)
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
else
  redis.call('PERSIST', KEYS[1])
end
return 1
`)

	// Entries are flagged and advanced. A key with no entry only gets a
	// generation marker that expires on its own.
	markStaleScript = redis.NewScript(`
for _, k in ipairs(KEYS) do
  if redis.call('HEXISTS', k, 'value') == 1 then
    redis.call('HSET', k, 'stale', '1')
    redis.call('HINCRBY', k, 'gen', 1)
  else
    redis.call('HINCRBY', k, 'gen', 1)
    redis.call('PEXPIRE', k, ARGV[1])
  end
end
return #KEYS
`)

	flagStaleScript = redis.NewScript(`
local n = 0
for _, k in ipairs(KEYS) do
  if redis.call('HEXISTS', k, 'value') == 1 then
    redis.call('HSET', k, 'stale', '1')
    n = n + 1
  end
end
return n
`)
)

// RedisStore keeps entries as hashes so several service instances share one
// cache and one invalidation signal. Generations live in the same hash, and
// per resource under rewards:gen:<resource>.
type RedisStore struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedisStore(rc *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rc: rc, ttl: ttl}
}

func redisKey(k Key) string {
	return redisKeyPrefix + k.String()
}

func redisGenKey(r Resource) string {
	return redisGenPrefix + string(r)
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*Entry, bool, error) {
	fields, err := s.rc.HGetAll(ctx, redisKey(key)).Result()
	if err != nil {
		return nil, false, errors.Wrap(err, "redis HGetAll failed: ")
	}
	value, ok := fields[fieldValue]
	if !ok {
		return nil, false, nil
	}
	fetchedAt, _ := strconv.ParseInt(fields[fieldFetchedAt], 10, 64)
	return &Entry{
		Value:     []byte(value),
		Stale:     fields[fieldStale] == "1",
		FetchedAt: time.UnixMilli(fetchedAt),
	}, true, nil
}

func (s *RedisStore) Generation(ctx context.Context, key Key) (Generation, error) {
	gens, err := generationScript.Run(ctx, s.rc, []string{redisKey(key), redisGenKey(key.Resource)}).Int64Slice()
	if err != nil {
		return Generation{}, errors.Wrap(err, "redis generation script failed: ")
	}
	if len(gens) != 2 {
		return Generation{}, errors.Errorf("redis generation script returned %d values", len(gens))
	}
	return Generation{Key: uint64(gens[0]), Resource: uint64(gens[1])}, nil
}

func (s *RedisStore) SetIfGeneration(ctx context.Context, key Key, value []byte, fetchedAt time.Time, gen Generation) (bool, error) {
	n, err := setIfGenerationScript.Run(ctx, s.rc,
		[]string{redisKey(key), redisGenKey(key.Resource)},
		value, fetchedAt.UnixMilli(), s.ttl.Milliseconds(), gen.Key, gen.Resource,
	).Int()
	if err != nil {
		return false, errors.Wrap(err, "redis set script failed: ")
	}
	return n == 1, nil
}

func (s *RedisStore) MarkStale(ctx context.Context, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}
	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = redisKey(k)
	}
	if err := markStaleScript.Run(ctx, s.rc, redisKeys, markerTTL.Milliseconds()).Err(); err != nil {
		return errors.Wrap(err, "redis mark stale script failed: ")
	}
	return nil
}

// MarkResourceStale advances the resource generation first, which is what
// stops running fetches. Flagging the stored entries afterwards is only for
// readers of Stale.
func (s *RedisStore) MarkResourceStale(ctx context.Context, resource Resource) error {
	if err := s.rc.Incr(ctx, redisGenKey(resource)).Err(); err != nil {
		return errors.Wrap(err, "redis Incr failed: ")
	}
	var cursor uint64
	match := redisKeyPrefix + string(resource) + ":*"
	for {
		keys, next, err := s.rc.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return errors.Wrap(err, "redis Scan failed: ")
		}
		if len(keys) > 0 {
			if err := flagStaleScript.Run(ctx, s.rc, keys).Err(); err != nil {
				return errors.Wrap(err, "redis flag stale script failed: ")
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *RedisStore) Delete(ctx context.Context, keys ...Key) error {
	if len(keys) == 0 {
		return nil
	}
	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = redisKey(k)
	}
	return s.rc.Del(ctx, redisKeys...).Err()
}

func (s *RedisStore) Close() error {
	return s.rc.Close()
}
