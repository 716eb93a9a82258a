package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/askpulse/internal/domain"
)

// ScoreCache implements domain.ScoreCache with plain string keys and a TTL.
type ScoreCache struct {
	rdb goredis.Cmdable
	ttl time.Duration
}

func NewScoreCache(rdb goredis.Cmdable, ttl time.Duration) *ScoreCache {
	return &ScoreCache{rdb: rdb, ttl: ttl}
}

func (c *ScoreCache) GetScore(ctx context.Context, ref domain.EntityRef) (int, bool, error) {
	score, err := c.rdb.Get(ctx, scoreKey(ref)).Int()
	if errors.Is(err, goredis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("score cache get %s: %w", ref, err)
	}
	return score, true, nil
}

func (c *ScoreCache) SetScore(ctx context.Context, ref domain.EntityRef, score int) error {
	if err := c.rdb.Set(ctx, scoreKey(ref), score, c.ttl).Err(); err != nil {
		return fmt.Errorf("score cache set %s: %w", ref, err)
	}
	return nil
}

func (c *ScoreCache) Invalidate(ctx context.Context, ref domain.EntityRef) error {
	if err := c.rdb.Del(ctx, scoreKey(ref)).Err(); err != nil {
		return fmt.Errorf("score cache invalidate %s: %w", ref, err)
	}
	return nil
}

func scoreKey(ref domain.EntityRef) string {
	return "score:" + ref.String()
}
