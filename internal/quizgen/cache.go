package quizgen

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"cryptoquest-engine/internal/domain"

	"golang.org/x/sync/singleflight"
)

// Cache keeps generated question sets in memory with a TTL so a burst of
// session starts on the same tier does not hammer the generator.
type Cache struct {
	provider Provider
	ttl      time.Duration
	clock    func() time.Time
	sf       singleflight.Group
	rnd      *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewCache(provider Provider, ttl time.Duration) *Cache {
	return &Cache{
		provider: provider,
		ttl:      ttl,
		clock:    time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:    make(map[string]cachedSet),
	}
}

func setKey(tier domain.Tier, count int) string {
	return fmt.Sprintf("%s:%d", tier.Name, count)
}

func (c *Cache) Generate(ctx context.Context, tier domain.Tier, count int) ([]domain.Question, error) {
	key := setKey(tier, count)
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return copyQuestions(entry.questions), nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.questions, nil
		}
		c.mu.RUnlock()

		questions, err := c.provider.Generate(ctx, tier, count)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[key] = cachedSet{
			questions: questions,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return copyQuestions(result.([]domain.Question)), nil
}

func copyQuestions(in []domain.Question) []domain.Question {
	out := make([]domain.Question, len(in))
	copy(out, in)
	return out
}

func (c *Cache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
