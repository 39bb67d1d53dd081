package scorestore

import (
	"context"
	"fmt"

	"cryptoquest-engine/internal/domain"

	"github.com/jackc/pgx/v4/pgxpool"
)

// PostgresRepository stores attempts in the attempts table. The UNIQUE
// constraint on session_id is what makes settlement idempotent even if the
// in-process duplicate guard is lost.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Record(ctx context.Context, rec domain.AttemptRecord) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO attempts (user_id, difficulty, session_id, score, max_score, percentage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO NOTHING`,
		rec.UserID, rec.Tier, rec.SessionID, rec.Score, rec.MaxScore, rec.Percent, rec.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("record attempt: %w", err)
	}
	return tag.RowsAffected() == 0, nil
}

func (r *PostgresRepository) History(ctx context.Context, userID string) ([]domain.AttemptRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, difficulty, session_id, score, max_score, percentage, created_at
		FROM attempts WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var out []domain.AttemptRecord
	for rows.Next() {
		var rec domain.AttemptRecord
		if err := rows.Scan(&rec.UserID, &rec.Tier, &rec.SessionID, &rec.Score, &rec.MaxScore, &rec.Percent, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Top(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, COALESCE(SUM(score),0), COUNT(*)
		FROM attempts GROUP BY user_id
		ORDER BY SUM(score) DESC, user_id ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserID, &e.TotalScore, &e.Attempts); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
