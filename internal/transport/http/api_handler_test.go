package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptoquest-engine/internal/scorestore"
)

func newAPIServer(t *testing.T) (*httptest.Server, scorestore.AttemptRepository) {
	t.Helper()
	repo := scorestore.NewMemoryRepository()
	handler := NewAPIHandlerWithClock(repo, func() time.Time { return time.Unix(1700000000, 0) })
	mux := http.NewServeMux()
	handler.Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, repo
}

func postScore(t *testing.T, url string, payload map[string]any) *http.Response {
	t.Helper()
	body, _ := json.Marshal(payload)
	resp, err := http.Post(url+"/scores", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post score: %v", err)
	}
	return resp
}

func validScore() map[string]any {
	return map[string]any{
		"userId":     "user-1",
		"quizId":     "session-1",
		"score":      7,
		"maxScore":   10,
		"difficulty": "beginner",
	}
}

func TestScoreSubmissionLifecycle(t *testing.T) {
	server, _ := newAPIServer(t)

	resp := postScore(t, server.URL, validScore())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first submit status = %d", resp.StatusCode)
	}
	var first scoreResponse
	json.NewDecoder(resp.Body).Decode(&first)
	resp.Body.Close()
	if !first.Accepted || first.Duplicate {
		t.Fatalf("unexpected first response %+v", first)
	}

	// Same session id again: 409 with the duplicate marker, no new record.
	resp = postScore(t, server.URL, validScore())
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("replay status = %d, want 409", resp.StatusCode)
	}
	var second scoreResponse
	json.NewDecoder(resp.Body).Decode(&second)
	resp.Body.Close()
	if !second.Duplicate {
		t.Fatalf("replay not marked duplicate: %+v", second)
	}

	histResp, err := http.Get(server.URL + "/users/user-1/history")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	defer histResp.Body.Close()
	var hist struct {
		History []map[string]any `json:"history"`
	}
	json.NewDecoder(histResp.Body).Decode(&hist)
	if len(hist.History) != 1 {
		t.Fatalf("expected exactly one attempt record, got %d", len(hist.History))
	}
}

func TestScoreValidation(t *testing.T) {
	server, _ := newAPIServer(t)

	bad := validScore()
	bad["score"] = 11 // exceeds maxScore
	resp := postScore(t, server.URL, bad)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("inconsistent score status = %d", resp.StatusCode)
	}

	bad = validScore()
	bad["difficulty"] = "legendary"
	resp = postScore(t, server.URL, bad)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown difficulty status = %d", resp.StatusCode)
	}
}

func TestHistoryForUnknownUserIsEmpty(t *testing.T) {
	server, _ := newAPIServer(t)

	resp, err := http.Get(server.URL + "/users/ghost/history")
	if err != nil {
		t.Fatalf("get history: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out struct {
		History []map[string]any `json:"history"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if out.History == nil || len(out.History) != 0 {
		t.Fatalf("expected empty history list, got %v", out.History)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	server, _ := newAPIServer(t)

	score := validScore()
	postScore(t, server.URL, score).Body.Close()
	score["quizId"] = "session-2"
	score["userId"] = "user-2"
	score["score"] = 9
	postScore(t, server.URL, score).Body.Close()

	resp, err := http.Get(server.URL + "/leaderboard?limit=1")
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Entries []scorestore.Entry `json:"entries"`
	}
	json.NewDecoder(resp.Body).Decode(&out)
	if len(out.Entries) != 1 || out.Entries[0].UserID != "user-2" {
		t.Fatalf("unexpected leaderboard %+v", out.Entries)
	}
}
