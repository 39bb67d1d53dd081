package scorestore

import (
	"context"
	"strconv"

	"cryptoquest-engine/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	totalsKey   = "leaderboard:totals"
	attemptsKey = "leaderboard:attempts"
)

// CachedLeaderboard wraps a repository and keeps user totals in a redis ZSET
// so the leaderboard read path stays off the attempts table. Writes update
// the cache best-effort; a redis failure never fails settlement, and reads
// fall back to the inner repository.
type CachedLeaderboard struct {
	inner  AttemptRepository
	client *redis.Client
}

func NewCachedLeaderboard(inner AttemptRepository, client *redis.Client) *CachedLeaderboard {
	return &CachedLeaderboard{inner: inner, client: client}
}

func (c *CachedLeaderboard) Record(ctx context.Context, rec domain.AttemptRecord) (bool, error) {
	duplicate, err := c.inner.Record(ctx, rec)
	if err != nil || duplicate {
		return duplicate, err
	}
	pipe := c.client.Pipeline()
	pipe.ZIncrBy(ctx, totalsKey, float64(rec.Score), rec.UserID)
	pipe.HIncrBy(ctx, attemptsKey, rec.UserID, 1)
	_, _ = pipe.Exec(ctx)
	return false, nil
}

func (c *CachedLeaderboard) History(ctx context.Context, userID string) ([]domain.AttemptRecord, error) {
	return c.inner.History(ctx, userID)
}

func (c *CachedLeaderboard) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := c.client.ZRevRangeWithScores(ctx, totalsKey, 0, int64(limit-1)).Result()
	if err != nil || len(rows) == 0 {
		return c.inner.Top(ctx, limit)
	}
	counts, _ := c.client.HGetAll(ctx, attemptsKey).Result()

	out := make([]Entry, 0, len(rows))
	for _, row := range rows {
		userID, _ := row.Member.(string)
		attempts := 0
		if raw, ok := counts[userID]; ok {
			if n, err := strconv.Atoi(raw); err == nil {
				attempts = n
			}
		}
		out = append(out, Entry{UserID: userID, TotalScore: int(row.Score), Attempts: attempts})
	}
	return out, nil
}
