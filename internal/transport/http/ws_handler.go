package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"cryptoquest-engine/internal/cooldown"
	"cryptoquest-engine/internal/domain"
	"cryptoquest-engine/internal/quizgen"
	"cryptoquest-engine/internal/reward"
	"cryptoquest-engine/internal/session"
	"cryptoquest-engine/internal/settlement"

	"github.com/gorilla/websocket"
)

// PlayHandler drives quiz sessions over a websocket. Each connection owns at
// most one live session; the single read loop serializes start/answer/advance
// so mutating operations never interleave, and an in-flight start resolves
// before the next one is accepted.
type PlayHandler struct {
	engine         *session.Engine
	settle         *settlement.Client
	claimer        *reward.Claimer
	assist         *quizgen.AssistClient
	cooldownWindow time.Duration
	now            func() time.Time
	upgrader       websocket.Upgrader
}

func NewPlayHandler(engine *session.Engine, settle *settlement.Client, claimer *reward.Claimer, assist *quizgen.AssistClient, window time.Duration) *PlayHandler {
	if window <= 0 {
		window = cooldown.Window
	}
	return &PlayHandler{
		engine:         engine,
		settle:         settle,
		claimer:        claimer,
		assist:         assist,
		cooldownWindow: window,
		now:            time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type noticePayload struct {
	Message string `json:"message"`
}

type startPayload struct {
	Difficulty string `json:"difficulty"`
	Mode       string `json:"mode"`
}

type answerPayload struct {
	Option int `json:"option"`
}

type questionPayload struct {
	Index   int      `json:"index"`
	Total   int      `json:"total"`
	Prompt  string   `json:"prompt"`
	Answers []string `json:"answers"`
	Score   int      `json:"score"`
}

type answerResultPayload struct {
	Index        int  `json:"index"`
	Correct      bool `json:"correct"`
	CorrectIndex int  `json:"correctIndex"`
	Score        int  `json:"score"`
}

type lockedPayload struct {
	Difficulty string    `json:"difficulty"`
	UnlockAt   time.Time `json:"unlockAt"`
}

type completedPayload struct {
	SessionID     string `json:"sessionId"`
	Score         int    `json:"score"`
	MaxScore      int    `json:"maxScore"`
	Percentage    int    `json:"percentage"`
	Passed        bool   `json:"passed"`
	ClaimEligible bool   `json:"claimEligible"`
	Settlement    string `json:"settlement"`
}

// ServePlay upgrades the connection and runs the play protocol.
func (h *PlayHandler) ServePlay(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	var current *session.Session

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			current = h.handleStart(r.Context(), userID, inbound.Payload, send)
		case "answer":
			h.handleAnswer(current, inbound.Payload, send)
		case "advance":
			h.handleAdvance(r.Context(), userID, current, send)
		case "hint":
			h.handleHint(r.Context(), current, send)
		case "speak":
			h.handleSpeak(r.Context(), current, send)
		case "claim":
			h.handleClaim(r.Context(), current, send)
		case "leaderboard":
			h.handleLeaderboard(r.Context(), send)
		default:
			send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(send)
	<-writerDone
}

// handleStart checks the cooldown gate, then creates a fresh session. It runs
// inside the read loop, so a second start cannot begin until this one has
// fully resolved.
func (h *PlayHandler) handleStart(ctx context.Context, userID string, raw json.RawMessage, send chan<- outboundMessage) *session.Session {
	var payload startPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid start payload"}}
		return nil
	}
	tier, ok := domain.TierByName(payload.Difficulty)
	if !ok {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid difficulty level"}}
		return nil
	}
	mode := domain.ModeFull
	if payload.Mode == string(domain.ModeQuick) {
		mode = domain.ModeQuick
	}

	// Cooldown gate: a fetch failure fails open; the settlement store's
	// duplicate detection remains the backstop.
	history, err := h.settle.History(ctx, userID)
	if err != nil {
		log.Printf("history fetch for %s failed, cooldown fails open: %v", userID, err)
	} else {
		status := cooldown.Evaluate(tier, history, h.now(), h.cooldownWindow)
		if status.Locked {
			send <- outboundMessage{Type: "locked", Payload: lockedPayload{Difficulty: tier.Name, UnlockAt: status.UnlockAt}}
			return nil
		}
	}

	sess, err := h.engine.Start(ctx, tier, mode)
	if err != nil {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: sess.ErrorMessage()}}
		return nil
	}
	h.sendQuestion(sess, send)
	return sess
}

func (h *PlayHandler) handleAnswer(sess *session.Session, raw json.RawMessage, send chan<- outboundMessage) {
	if sess == nil {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "no active session"}}
		return
	}
	var payload answerPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
		return
	}

	index, question, err := sess.Current()
	if err != nil {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	correct, err := sess.Answer(payload.Option)
	if err != nil {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	send <- outboundMessage{Type: "answerResult", Payload: answerResultPayload{
		Index:        index,
		Correct:      correct,
		CorrectIndex: question.CorrectIndex,
		Score:        sess.Score(),
	}}
}

func (h *PlayHandler) handleAdvance(ctx context.Context, userID string, sess *session.Session, send chan<- outboundMessage) {
	if sess == nil {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "no active session"}}
		return
	}
	done, err := sess.Advance()
	if err != nil {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	if !done {
		h.sendQuestion(sess, send)
		return
	}

	// Settlement runs exactly once per session regardless of how often the
	// completion path re-fires; its outcome never changes the local result.
	settlementNote := "synced"
	if sess.MarkSettled() {
		result, err := h.settle.Submit(ctx, sess.Record(userID, h.now()))
		switch {
		case err != nil:
			log.Printf("settlement for session %s failed: %v", sess.ID(), err)
			settlementNote = "failed"
		case result.Duplicate:
			settlementNote = "duplicate"
		}
	}

	send <- outboundMessage{Type: "completed", Payload: completedPayload{
		SessionID:     sess.ID(),
		Score:         sess.Score(),
		MaxScore:      sess.MaxScore(),
		Percentage:    sess.Percentage(),
		Passed:        sess.Passed(),
		ClaimEligible: sess.ClaimEligible() && h.claimer != nil,
		Settlement:    settlementNote,
	}}
}

func (h *PlayHandler) handleHint(ctx context.Context, sess *session.Session, send chan<- outboundMessage) {
	if h.assist == nil {
		send <- outboundMessage{Type: "notice", Payload: noticePayload{Message: "hints are not available"}}
		return
	}
	if sess == nil {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "no active session"}}
		return
	}
	_, question, err := sess.Current()
	if err != nil {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	explanation, err := h.assist.Explain(ctx, question.Prompt, question.Answers)
	if err != nil {
		// Hints never block progression.
		send <- outboundMessage{Type: "notice", Payload: noticePayload{Message: "hint unavailable right now"}}
		return
	}
	send <- outboundMessage{Type: "hint", Payload: map[string]string{"explanation": explanation}}
}

func (h *PlayHandler) handleSpeak(ctx context.Context, sess *session.Session, send chan<- outboundMessage) {
	if h.assist == nil {
		send <- outboundMessage{Type: "notice", Payload: noticePayload{Message: "speech is not available"}}
		return
	}
	if sess == nil {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "no active session"}}
		return
	}
	_, question, err := sess.Current()
	if err != nil {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	media, err := h.assist.Speak(ctx, question.Prompt)
	if err != nil {
		send <- outboundMessage{Type: "notice", Payload: noticePayload{Message: "speech unavailable right now"}}
		return
	}
	send <- outboundMessage{Type: "audio", Payload: map[string]string{"media": media}}
}

func (h *PlayHandler) handleClaim(ctx context.Context, sess *session.Session, send chan<- outboundMessage) {
	if h.claimer == nil {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "reward claims are not configured"}}
		return
	}
	if sess == nil {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "no completed session to claim for"}}
		return
	}

	receipt, err := h.claimer.Claim(ctx, sess)
	switch {
	case err == nil:
		send <- outboundMessage{Type: "claimResult", Payload: receipt}
	case errors.Is(err, domain.ErrNotEligible):
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: "this session is not eligible for rewards"}}
	case errors.Is(err, domain.ErrAlreadyClaimed), errors.Is(err, domain.ErrClaimInFlight):
		send <- outboundMessage{Type: "claimResult", Payload: receipt}
	default:
		// Failed claims are retryable; the receipt carries the clipped message.
		send <- outboundMessage{Type: "claimResult", Payload: receipt}
	}
}

func (h *PlayHandler) handleLeaderboard(ctx context.Context, send chan<- outboundMessage) {
	entries, err := h.settle.Leaderboard(ctx, 10)
	if err != nil {
		send <- outboundMessage{Type: "notice", Payload: noticePayload{Message: "leaderboard unavailable right now"}}
		return
	}
	send <- outboundMessage{Type: "leaderboard", Payload: map[string]any{"entries": entries}}
}

func (h *PlayHandler) sendQuestion(sess *session.Session, send chan<- outboundMessage) {
	index, question, err := sess.Current()
	if err != nil {
		send <- outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	// CorrectIndex stays server-side until the question is answered.
	send <- outboundMessage{Type: "question", Payload: questionPayload{
		Index:   index,
		Total:   sess.MaxScore(),
		Prompt:  question.Prompt,
		Answers: question.Answers,
		Score:   sess.Score(),
	}}
}
