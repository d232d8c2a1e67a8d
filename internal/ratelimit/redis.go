package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkScript runs one check-and-consume step atomically.
// KEYS[1] = state hash
// ARGV[1] = algorithm (0 fixed, 1 sliding, 2 bucket)
// ARGV[2] = max requests / bucket capacity
// ARGV[3] = window in milliseconds
// ARGV[4] = refill tokens per second
// ARGV[5] = now in unix milliseconds
var checkScript = redis.NewScript(`
local key = KEYS[1]
local algo = tonumber(ARGV[1])
local max = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local refill = tonumber(ARGV[4])
local now = tonumber(ARGV[5])

local state = redis.call("HMGET", key, "count", "window_start", "last_request", "tokens", "last_refill")
local count = tonumber(state[1])
local window_start = tonumber(state[2]) or 0
local last_request = tonumber(state[3]) or 0
local tokens = tonumber(state[4])
local last_refill = tonumber(state[5]) or now
local exists = count ~= nil
if not exists then
    count = 0
end

local allowed = 0
local ttl = 1

if algo == 0 then
    if (not exists) or (now - window_start >= window) then
        window_start = now
        count = 0
    end
    if count < max then
        count = count + 1
        last_request = now
        allowed = 1
    end
    ttl = window_start + window - now
elseif algo == 1 then
    if (not exists) or (now - last_request >= window) then
        window_start = now
        count = 0
    end
    if count < max then
        count = count + 1
        last_request = now
        allowed = 1
    end
    ttl = last_request + window - now
else
    if (not exists) or tokens == nil then
        tokens = max
        last_refill = now
    end
    local elapsed = now - last_refill
    if elapsed > 0 then
        tokens = tokens + (elapsed / 1000) * refill
        if tokens > max then
            tokens = max
        end
        last_refill = now
    end
    if tokens >= 1 then
        tokens = tokens - 1
        count = count + 1
        last_request = now
        allowed = 1
    end
    ttl = math.ceil(((max - tokens) / refill) * 1000)
end

if ttl < 1 then
    ttl = 1
end

if tokens == nil then
    tokens = 0
end

redis.call("HSET", key,
    "count", count,
    "window_start", window_start,
    "last_request", last_request,
    "tokens", tostring(tokens),
    "last_refill", last_refill)
redis.call("PEXPIRE", key, ttl)

return {allowed, count, window_start, last_request, tostring(tokens), last_refill}
`)

// RedisStore shares rate limit state between processes. Atomicity comes
// from running every check as a single Lua script.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a RedisStore. An empty prefix defaults to "grl".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "grl"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(key string) string {
	return s.prefix + ":" + key
}

func (s *RedisStore) Apply(ctx context.Context, key string, cfg Config, now time.Time) (State, bool, error) {
	res, err := checkScript.Run(ctx, s.redis, []string{s.key(key)},
		int(cfg.Algorithm),
		cfg.MaxRequests,
		cfg.Window.Milliseconds(),
		strconv.FormatFloat(cfg.RefillPerSecond, 'f', -1, 64),
		now.UnixMilli(),
	).Result()
	if err != nil {
		return State{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 6 {
		return State{}, false, fmt.Errorf("%w: unexpected script reply %T", ErrStoreUnavailable, res)
	}

	st := State{
		RequestCount: uint64(replyInt(values[1])),
		WindowStart:  millis(replyInt(values[2])),
		LastRequest:  millis(replyInt(values[3])),
		Tokens:       replyFloat(values[4]),
		LastRefill:   millis(replyInt(values[5])),
	}
	return st, replyInt(values[0]) == 1, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (State, bool, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, false, nil
		}
		return State{}, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(fields) == 0 {
		return State{}, false, nil
	}

	count, _ := strconv.ParseUint(fields["count"], 10, 64)
	tokens, _ := strconv.ParseFloat(fields["tokens"], 64)
	return State{
		RequestCount: count,
		WindowStart:  millis(parseInt(fields["window_start"])),
		LastRequest:  millis(parseInt(fields["last_request"])),
		Tokens:       tokens,
		LastRefill:   millis(parseInt(fields["last_refill"])),
	}, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redis.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func replyInt(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		return parseInt(n)
	default:
		return 0
	}
}

func replyFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0
		}
		return int64(f)
	}
	return n
}

func millis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
