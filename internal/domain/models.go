package domain

import (
	"strings"
	"time"
)

// Tier is a difficulty level with immutable contract and scoring configuration.
type Tier struct {
	Name       string `json:"name"`
	ContractID uint64 `json:"contractId"`
	// QuestionCount is the canonical count for a full-mode session.
	QuestionCount int `json:"questionCount"`
	// PassPercent is the minimum rounded percentage required to pass.
	PassPercent int    `json:"passPercent"`
	Topic       string `json:"topic"`
}

var tiers = []Tier{
	{Name: "beginner", ContractID: 0, QuestionCount: 20, PassPercent: 70, Topic: "Blockchain Fundamentals & Basic Trading"},
	{Name: "intermediate", ContractID: 1, QuestionCount: 25, PassPercent: 75, Topic: "Smart Contracts, DeFi Protocols & NFTs"},
	{Name: "advanced", ContractID: 2, QuestionCount: 30, PassPercent: 80, Topic: "Solidity, Cross-chain concepts, MEV, and Protocol Governance"},
	{Name: "expert", ContractID: 3, QuestionCount: 25, PassPercent: 85, Topic: "Advanced Smart Contract Security, Yield Farming, and Flash Loans"},
	{Name: "master", ContractID: 4, QuestionCount: 20, PassPercent: 90, Topic: "Advanced Cryptography, Protocol Research, and Layer 2 Scaling"},
}

// Tiers returns all difficulty tiers in ascending order.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// TierByName resolves a tier by its case-insensitive name.
func TierByName(name string) (Tier, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range tiers {
		if t.Name == name {
			return t, true
		}
	}
	return Tier{}, false
}

// Mode selects how many questions a session plays.
type Mode string

const (
	// ModeFull plays the tier's canonical question count.
	ModeFull Mode = "full"
	// ModeQuick plays half the canonical count (minimum 5). Quick sessions
	// settle to the leaderboard but are not reward-eligible.
	ModeQuick Mode = "quick"
)

// Questions returns the question count the mode requests for a tier.
func (m Mode) Questions(t Tier) int {
	if m == ModeQuick {
		n := t.QuestionCount / 2
		if n < 5 {
			n = 5
		}
		return n
	}
	return t.QuestionCount
}

// Question is a single MCQ with one correct answer. Immutable once fetched.
type Question struct {
	Prompt       string   `json:"question"`
	Answers      []string `json:"answers"`
	CorrectIndex int      `json:"correctAnswerIndex"`
}

// Valid reports whether the question is structurally usable.
func (q Question) Valid() bool {
	return q.Prompt != "" && len(q.Answers) >= 2 && q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Answers)
}

// AttemptRecord is the append-only fact a completed session settles into.
type AttemptRecord struct {
	UserID    string    `json:"userId"`
	Tier      string    `json:"difficulty"`
	SessionID string    `json:"quizId"`
	Score     int       `json:"score"`
	MaxScore  int       `json:"maxScore"`
	Percent   int       `json:"percentage"`
	CreatedAt time.Time `json:"createdAt"`
}

// ClaimState tracks the on-chain reward claim lifecycle for one session.
type ClaimState string

const (
	ClaimIdle     ClaimState = "idle"
	ClaimInFlight ClaimState = "claiming"
	ClaimDone     ClaimState = "claimed"
	ClaimFailed   ClaimState = "failed"
)
