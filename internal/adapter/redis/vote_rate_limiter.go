package redis

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

// tokenBucketScript refills the bucket for the elapsed time, then takes one
// token if available. Returns 1 when allowed, 0 when limited.
// ARGV: [1]=now_ms, [2]=capacity, [3]=tokens per minute
var tokenBucketScript = goredis.NewScript(`
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3]) / 60000.0
local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens')) or capacity
local last = tonumber(redis.call('HGET', KEYS[1], 'last_update')) or now
if now > last then
  tokens = math.min(capacity, tokens + (now - last) * rate)
end
local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end
redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'last_update', tostring(math.max(now, last)))
redis.call('PEXPIRE', KEYS[1], math.ceil(capacity / rate))
return allowed
`)

// VoteRateLimiter implements domain.VoteRateLimiter with a token bucket per voter.
type VoteRateLimiter struct {
	rdb      goredis.Scripter
	clock    clockwork.Clock
	capacity int
	rate     int // tokens per minute
}

// NewVoteRateLimiter creates a limiter allowing bursts of capacity votes and a
// sustained rate of ratePerMinute votes per voter.
func NewVoteRateLimiter(rdb goredis.Scripter, clock clockwork.Clock, capacity, ratePerMinute int) *VoteRateLimiter {
	return &VoteRateLimiter{
		rdb:      rdb,
		clock:    clock,
		capacity: capacity,
		rate:     ratePerMinute,
	}
}

func (v *VoteRateLimiter) AllowVote(ctx context.Context, voterID string) (bool, error) {
	allowed, err := tokenBucketScript.Run(ctx, v.rdb, []string{rateLimitKey(voterID)},
		v.clock.Now().UnixMilli(),
		v.capacity,
		v.rate,
	).Int()
	if err != nil {
		return false, fmt.Errorf("vote rate limit check failed: %w", err)
	}
	return allowed == 1, nil
}

func rateLimitKey(voterID string) string {
	return "rate_limit:votes:" + voterID
}
