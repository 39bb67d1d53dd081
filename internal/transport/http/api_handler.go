package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptoquest-engine/internal/domain"
	"cryptoquest-engine/internal/scorestore"
)

// APIHandler serves the settlement REST contract: score submission with
// duplicate detection, per-user history, and the aggregated leaderboard.
type APIHandler struct {
	attempts scorestore.AttemptRepository
	now      func() time.Time
}

func NewAPIHandler(attempts scorestore.AttemptRepository) *APIHandler {
	return &APIHandler{attempts: attempts, now: time.Now}
}

// NewAPIHandlerWithClock is test-only for deterministic timestamps.
func NewAPIHandlerWithClock(attempts scorestore.AttemptRepository, now func() time.Time) *APIHandler {
	return &APIHandler{attempts: attempts, now: now}
}

// Register mounts the settlement routes on a mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/scores", h.handleScores)
	mux.HandleFunc("/users/", h.handleHistory)
	mux.HandleFunc("/leaderboard", h.handleLeaderboard)
}

type scoreRequest struct {
	UserID     string `json:"userId"`
	QuizID     string `json:"quizId"`
	Score      int    `json:"score"`
	MaxScore   int    `json:"maxScore"`
	Difficulty string `json:"difficulty"`
}

type scoreResponse struct {
	Accepted  bool `json:"accepted"`
	Duplicate bool `json:"duplicate"`
}

func (h *APIHandler) handleScores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.QuizID == "" || req.MaxScore <= 0 || req.Score < 0 || req.Score > req.MaxScore {
		http.Error(w, "missing or inconsistent score fields", http.StatusBadRequest)
		return
	}
	if _, ok := domain.TierByName(req.Difficulty); !ok {
		http.Error(w, "unknown difficulty", http.StatusBadRequest)
		return
	}

	percent := int(float64(req.Score)/float64(req.MaxScore)*100 + 0.5)
	duplicate, err := h.attempts.Record(r.Context(), domain.AttemptRecord{
		UserID:    req.UserID,
		Tier:      strings.ToLower(req.Difficulty),
		SessionID: req.QuizID,
		Score:     req.Score,
		MaxScore:  req.MaxScore,
		Percent:   percent,
		CreatedAt: h.now(),
	})
	if err != nil {
		log.Printf("record attempt: %v", err)
		http.Error(w, "failed to record attempt", http.StatusInternalServerError)
		return
	}

	if duplicate {
		// The replayed submission is a no-op success, not an error.
		writeJSON(w, http.StatusConflict, scoreResponse{Accepted: true, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusCreated, scoreResponse{Accepted: true})
}

func (h *APIHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := strings.CutPrefix(r.URL.Path, "/users/")
	if ok {
		userID, ok = strings.CutSuffix(userID, "/history")
	}
	if !ok || userID == "" || strings.Contains(userID, "/") {
		http.NotFound(w, r)
		return
	}

	history, err := h.attempts.History(r.Context(), userID)
	if err != nil {
		log.Printf("load history for %s: %v", userID, err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if history == nil {
		history = []domain.AttemptRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (h *APIHandler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	entries, err := h.attempts.Top(r.Context(), limit)
	if err != nil {
		log.Printf("load leaderboard: %v", err)
		http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []scorestore.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
