package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript performs refill and all-or-nothing consumption of both buckets
// atomically. State is kept in a hash per provider:
//
//	req  — remaining request units
//	tok  — remaining token units
//	reqr — request bucket last refill, unix milliseconds
//	tokr — token bucket last refill, unix milliseconds
//
// ARGV: now_ms,
//
//	req_capacity, req_rate, req_interval_ms,
//	tok_capacity, tok_rate, tok_interval_ms,
//	take_requests, take_tokens, ttl_ms
//
// Returns: {allowed, req_remaining, tok_remaining, req_reset_ms, tok_reset_ms}
var consumeScript = redis.NewScript(`
local now = tonumber(ARGV[1])

local function refill(units, last, cap, rate, interval)
    local intervals = math.floor((now - last) / interval)
    if intervals <= 0 then
        return units, last
    end
    local max_intervals = math.floor(cap / rate) + 1
    if intervals >= max_intervals then
        return cap, now
    end
    units = math.min(units + intervals * rate, cap)
    return units, last + intervals * interval
end

local key = KEYS[1]
local req_cap, req_rate, req_int = tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4])
local tok_cap, tok_rate, tok_int = tonumber(ARGV[5]), tonumber(ARGV[6]), tonumber(ARGV[7])
local take_req, take_tok = tonumber(ARGV[8]), tonumber(ARGV[9])
local ttl = tonumber(ARGV[10])

local state = redis.call('HMGET', key, 'req', 'tok', 'reqr', 'tokr')
local req = tonumber(state[1]) or req_cap
local tok = tonumber(state[2]) or tok_cap
local reqr = tonumber(state[3]) or now
local tokr = tonumber(state[4]) or now

req, reqr = refill(req, reqr, req_cap, req_rate, req_int)
tok, tokr = refill(tok, tokr, tok_cap, tok_rate, tok_int)

local allowed = 0
if req >= take_req and tok >= take_tok then
    allowed = 1
    req = req - take_req
    tok = tok - take_tok
end

redis.call('HSET', key, 'req', req, 'tok', tok, 'reqr', reqr, 'tokr', tokr)
redis.call('PEXPIRE', key, ttl)

return {allowed, req, tok, reqr + req_int, tokr + tok_int}
`)

// RedisStore implements Store on top of Redis, letting multiple processes
// share one quota per provider. All bucket math runs server-side in a Lua
// script so concurrent consumers never observe partial updates.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix sets the key prefix for provider state. Defaults to "ratelimit".
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(rs *RedisStore) {
		if prefix != "" {
			rs.prefix = prefix
		}
	}
}

// NewRedisStore creates a Redis-backed store using an already-connected client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, ErrStoreNil
	}

	rs := &RedisStore{
		client: client,
		prefix: "ratelimit",
	}

	for _, opt := range opts {
		opt(rs)
	}

	return rs, nil
}

// Consume implements Store.
func (rs *RedisStore) Consume(ctx context.Context, provider string, requests, tokens int, config Config) (bool, State, error) {
	// Keep state around long enough to survive both buckets filling from empty
	ttl := max(fullRefillTime(config.Requests), fullRefillTime(config.Tokens)) * 2

	res, err := consumeScript.Run(ctx, rs.client,
		[]string{rs.key(provider)},
		time.Now().UnixMilli(),
		config.Requests.Capacity, config.Requests.RefillRate, config.Requests.RefillInterval.Milliseconds(),
		config.Tokens.Capacity, config.Tokens.RefillRate, config.Tokens.RefillInterval.Milliseconds(),
		requests, tokens, ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return false, State{}, errors.Join(ErrStoreUnavailable, err)
	}
	if len(res) != 5 {
		return false, State{}, fmt.Errorf("%w: unexpected script reply length %d", ErrStoreUnavailable, len(res))
	}

	state := State{
		RemainingRequests: int(res[1]),
		RemainingTokens:   int(res[2]),
		RequestsResetAt:   time.UnixMilli(res[3]),
		TokensResetAt:     time.UnixMilli(res[4]),
	}

	return res[0] == 1, state, nil
}

// Reset implements Store.
func (rs *RedisStore) Reset(ctx context.Context, provider string) error {
	if err := rs.client.Del(ctx, rs.key(provider)).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func (rs *RedisStore) key(provider string) string {
	return rs.prefix + ":" + provider
}

// fullRefillTime returns how long an empty bucket takes to reach capacity.
func fullRefillTime(config BucketConfig) time.Duration {
	intervals := config.Capacity/config.RefillRate + 1
	return time.Duration(intervals) * config.RefillInterval
}
