package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Tokens are returned as a string; Redis truncates Lua numbers to integers.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
else
  local delta = math.max(0, now - ts)
  tokens = math.min(burst, tokens + (delta / 1000) * rate)
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens), now}
`

var (
	errEmptyKey      = errors.New("rate limiter key is empty")
	errNonPositive   = errors.New("rate limiter rate and burst must be positive")
	errUnconfigured  = errors.New("rate limiter not configured")
	errScriptReplied = errors.New("invalid rate limit script response")
)

type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Bucket takes one token from the bucket stored under key.
type Bucket interface {
	Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error)
}

type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error) {
	if t == nil || t.client == nil {
		return nil, errUnconfigured
	}
	if err := validateBucket(key, rate, burst); err != nil {
		return nil, err
	}

	ttl := bucketTTL(rate, burst)
	res, err := t.script.Run(ctx, t.client, []string{key}, rate, burst, ttl.Milliseconds()).Slice()
	if err != nil {
		return nil, err
	}
	if len(res) < 3 {
		return nil, errScriptReplied
	}

	tokensRaw, _ := res[1].(string)
	tokens, err := strconv.ParseFloat(tokensRaw, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: tokens %q", errScriptReplied, tokensRaw)
	}
	allowed, _ := res[0].(int64)
	ts, _ := res[2].(int64)

	return newResult(allowed == 1, tokens, rate, burst, time.UnixMilli(ts)), nil
}

func newResult(allowed bool, tokens, rate float64, burst int, now time.Time) *Result {
	var retryAfter time.Duration
	if !allowed {
		retryAfter = time.Duration((1 - tokens) / rate * float64(time.Second))
	}
	full := time.Duration((float64(burst) - tokens) / rate * float64(time.Second))
	return &Result{
		Allowed:    allowed,
		Limit:      burst,
		Remaining:  int(math.Floor(tokens)),
		ResetTime:  now.Add(full),
		RetryAfter: retryAfter,
	}
}

func validateBucket(key string, rate float64, burst int) error {
	if key == "" {
		return errEmptyKey
	}
	if rate <= 0 || burst <= 0 {
		return errNonPositive
	}
	return nil
}

// bucketTTL keeps an idle bucket around for twice the time it takes to refill.
func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil((float64(burst) / rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}
