package quizgen

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"cryptoquest-engine/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// RedisCache shares generated question sets across instances. Sets are stored
// as JSON under quizgen:{tier}:{count} with a jittered TTL, and a miss falls
// back to the wrapped provider.
type RedisCache struct {
	client   *redis.Client
	provider Provider
	ttl      time.Duration
	sf       singleflight.Group
	rnd      *rand.Rand
}

func NewRedisCache(client *redis.Client, provider Provider, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client:   client,
		provider: provider,
		ttl:      ttl,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *RedisCache) key(tier domain.Tier, count int) string {
	return "quizgen:" + setKey(tier, count)
}

func (c *RedisCache) Generate(ctx context.Context, tier domain.Tier, count int) ([]domain.Question, error) {
	key := c.key(tier, count)

	if cached, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var questions []domain.Question
		if err := json.Unmarshal(cached, &questions); err == nil && len(questions) > 0 {
			return questions, nil
		}
		// A corrupt entry falls through to regeneration.
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled it.
		if cached, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var questions []domain.Question
			if err := json.Unmarshal(cached, &questions); err == nil && len(questions) > 0 {
				return questions, nil
			}
		}

		questions, err := c.provider.Generate(ctx, tier, count)
		if err != nil {
			return nil, err
		}

		if payload, err := json.Marshal(questions); err == nil {
			// best-effort write; a cache failure never fails generation
			_ = c.client.Set(ctx, key, payload, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return copyQuestions(result.([]domain.Question)), nil
}

func (c *RedisCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
