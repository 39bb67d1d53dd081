package domain

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var (
	// ErrGeneration is returned when the question provider fails or returns
	// an empty or unusable set. Fatal to session start; retryable by restarting.
	ErrGeneration = errors.New("question generation failed")
	// ErrSessionNotFound is returned when a session id has no live session.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionState is returned when an operation is invalid in the session's current state.
	ErrSessionState = errors.New("operation not valid in current session state")
	// ErrAlreadyAnswered rejects a repeated answer on the same question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrNotAnswered rejects advancing past an unanswered question.
	ErrNotAnswered = errors.New("current question not answered yet")
	// ErrInvalidOption is returned when the chosen option index is out of range.
	ErrInvalidOption = errors.New("answer option out of range")
	// ErrTierLocked is returned when the cooldown gate blocks a tier.
	ErrTierLocked = errors.New("difficulty tier is cooling down")
	// ErrNotEligible is returned when a claim is requested for a session that did not qualify.
	ErrNotEligible = errors.New("session not eligible for rewards")
	// ErrClaimInFlight rejects a second claim while one is pending wallet approval.
	ErrClaimInFlight = errors.New("a claim is already in flight")
	// ErrAlreadyClaimed is returned once a session's reward has been claimed.
	ErrAlreadyClaimed = errors.New("reward already claimed for this session")
)

// NetworkError wraps a transport-level settlement failure. Non-fatal: the
// local result stands, only the leaderboard sync degraded.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("settlement network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError wraps a non-2xx settlement response other than the duplicate signal.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("settlement server error: status %d: %s", e.Status, e.Body)
}

// ClaimTxError carries a wallet or chain failure with a bounded message so
// long provider error strings cannot blow up the UI.
type ClaimTxError struct {
	Message string
}

const claimErrorLimit = 100

// NewClaimTxError clips the message to the display limit, backing off to a
// rune boundary so the clipped message stays valid UTF-8.
func NewClaimTxError(err error) *ClaimTxError {
	msg := err.Error()
	if len(msg) > claimErrorLimit {
		cut := claimErrorLimit
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut] + "..."
	}
	return &ClaimTxError{Message: msg}
}

func (e *ClaimTxError) Error() string { return e.Message }
