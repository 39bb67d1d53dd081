// Package scorestore is the settlement side of the engine: the append-only
// attempt log behind POST /scores. The session id is unique here, which makes
// the store the authority on duplicate submissions.
package scorestore

import (
	"context"
	"sort"
	"sync"

	"cryptoquest-engine/internal/domain"
)

// Entry is one aggregated leaderboard row.
type Entry struct {
	UserID     string `json:"userId"`
	TotalScore int    `json:"totalScore"`
	Attempts   int    `json:"attempts"`
}

// AttemptRepository persists attempt records and answers history and
// leaderboard queries. Record reports duplicate=true when the session id was
// already settled; the write is then a no-op.
type AttemptRepository interface {
	Record(ctx context.Context, rec domain.AttemptRecord) (duplicate bool, err error)
	History(ctx context.Context, userID string) ([]domain.AttemptRecord, error)
	Top(ctx context.Context, limit int) ([]Entry, error)
}

// MemoryRepository is the in-process implementation, used standalone in dev
// and as the reference behavior for the postgres implementation's tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	bySession map[string]domain.AttemptRecord
	byUser    map[string][]domain.AttemptRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		bySession: make(map[string]domain.AttemptRecord),
		byUser:    make(map[string][]domain.AttemptRecord),
	}
}

func (r *MemoryRepository) Record(_ context.Context, rec domain.AttemptRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySession[rec.SessionID]; ok {
		return true, nil
	}
	r.bySession[rec.SessionID] = rec
	r.byUser[rec.UserID] = append(r.byUser[rec.UserID], rec)
	return false, nil
}

func (r *MemoryRepository) History(_ context.Context, userID string) ([]domain.AttemptRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := r.byUser[userID]
	out := make([]domain.AttemptRecord, len(records))
	copy(out, records)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) Top(_ context.Context, limit int) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	totals := make(map[string]*Entry)
	for _, rec := range r.bySession {
		e, ok := totals[rec.UserID]
		if !ok {
			e = &Entry{UserID: rec.UserID}
			totals[rec.UserID] = e
		}
		e.TotalScore += rec.Score
		e.Attempts++
	}
	out := make([]Entry, 0, len(totals))
	for _, e := range totals {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalScore != out[j].TotalScore {
			return out[i].TotalScore > out[j].TotalScore
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
