package scorestore_test

import (
	"context"
	"testing"
	"time"

	"cryptoquest-engine/internal/domain"
	"cryptoquest-engine/internal/scorestore"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func attempt(user, sessionID string, score int, at time.Time) domain.AttemptRecord {
	return domain.AttemptRecord{
		UserID:    user,
		Tier:      "beginner",
		SessionID: sessionID,
		Score:     score,
		MaxScore:  10,
		Percent:   score * 10,
		CreatedAt: at,
	}
}

func TestMemoryRecordDetectsDuplicates(t *testing.T) {
	repo := scorestore.NewMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	dup, err := repo.Record(ctx, attempt("u1", "s1", 7, now))
	if err != nil || dup {
		t.Fatalf("first record: dup=%v err=%v", dup, err)
	}

	dup, err = repo.Record(ctx, attempt("u1", "s1", 9, now))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !dup {
		t.Fatalf("replayed session id must be flagged duplicate")
	}

	history, err := repo.History(ctx, "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("exactly one attempt record must exist, got %d", len(history))
	}
	if history[0].Score != 7 {
		t.Fatalf("replay must not overwrite the original record")
	}
}

func TestMemoryHistoryNewestFirst(t *testing.T) {
	repo := scorestore.NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	repo.Record(ctx, attempt("u1", "s1", 5, base))
	repo.Record(ctx, attempt("u1", "s2", 8, base.Add(time.Hour)))

	history, _ := repo.History(ctx, "u1")
	if len(history) != 2 || history[0].SessionID != "s2" {
		t.Fatalf("expected newest first, got %+v", history)
	}
}

func TestMemoryTopAggregates(t *testing.T) {
	repo := scorestore.NewMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	repo.Record(ctx, attempt("alice", "s1", 7, now))
	repo.Record(ctx, attempt("alice", "s2", 9, now))
	repo.Record(ctx, attempt("bob", "s3", 10, now))

	top, err := repo.Top(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].UserID != "alice" || top[0].TotalScore != 16 || top[0].Attempts != 2 {
		t.Fatalf("unexpected leader %+v", top[0])
	}
}

func TestCachedLeaderboard(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := scorestore.NewCachedLeaderboard(scorestore.NewMemoryRepository(), client)
	ctx := context.Background()
	now := time.Now()

	repo.Record(ctx, attempt("alice", "s1", 7, now))
	repo.Record(ctx, attempt("bob", "s2", 3, now))
	// A duplicate must not bump the cached totals.
	repo.Record(ctx, attempt("alice", "s1", 7, now))

	top, err := repo.Top(ctx, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "alice" || top[0].TotalScore != 7 || top[0].Attempts != 1 {
		t.Fatalf("unexpected cached leaderboard %+v", top)
	}
}
