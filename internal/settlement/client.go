// Package settlement reports finished sessions to the remote score store and
// reads back attempt history. The session id is the idempotency key: the
// store answers a replayed submission with HTTP 409, which this client turns
// into a soft "duplicate" success rather than an error, because the engine may
// retry after an ambiguous network failure.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"cryptoquest-engine/internal/domain"
)

// Result is the store's verdict on a submission.
type Result struct {
	Accepted  bool `json:"accepted"`
	Duplicate bool `json:"duplicate"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithHTTP is test-only.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, http: hc}
}

type submitRequest struct {
	UserID     string `json:"userId"`
	QuizID     string `json:"quizId"`
	Score      int    `json:"score"`
	MaxScore   int    `json:"maxScore"`
	Difficulty string `json:"difficulty"`
}

// Submit reports one completed session. Failures are non-fatal to the local
// result: a *domain.NetworkError or *domain.ServerError only means the
// leaderboard sync degraded, never that the session's score is wrong.
func (c *Client) Submit(ctx context.Context, rec domain.AttemptRecord) (Result, error) {
	body, err := json.Marshal(submitRequest{
		UserID:     rec.UserID,
		QuizID:     rec.SessionID,
		Score:      rec.Score,
		MaxScore:   rec.MaxScore,
		Difficulty: rec.Tier,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scores", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, &domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		// Already recorded under this session id. Soft success.
		return Result{Accepted: true, Duplicate: true}, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out Result
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return Result{}, fmt.Errorf("decode submission response: %w", err)
		}
		return out, nil
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Result{}, &domain.ServerError{Status: resp.StatusCode, Body: string(snippet)}
	}
}

type historyResponse struct {
	History []domain.AttemptRecord `json:"history"`
}

// History fetches the user's attempt records. A 404 means "no history yet"
// and is not an error.
func (c *Client) History(ctx context.Context, userID string) ([]domain.AttemptRecord, error) {
	endpoint := c.baseURL + "/users/" + url.PathEscape(userID) + "/history"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out historyResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode history response: %w", err)
		}
		return out.History, nil
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &domain.ServerError{Status: resp.StatusCode, Body: string(snippet)}
	}
}

// LeaderboardEntry is one aggregated row of the remote leaderboard.
type LeaderboardEntry struct {
	UserID     string `json:"userId"`
	TotalScore int    `json:"totalScore"`
	Attempts   int    `json:"attempts"`
}

// Leaderboard fetches the top aggregated scores. Display only.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	endpoint := c.baseURL + "/leaderboard"
	if limit > 0 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build leaderboard request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &domain.ServerError{Status: resp.StatusCode, Body: string(snippet)}
	}
	var out struct {
		Entries []LeaderboardEntry `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode leaderboard response: %w", err)
	}
	return out.Entries, nil
}
