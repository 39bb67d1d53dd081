// Package cooldown decides whether a difficulty tier is currently playable.
// It is a pure function of attempt history plus the caller's clock: the gate
// keeps no state of its own and must be re-evaluated whenever history is
// fetched. A visible countdown reaching zero is re-evaluated client-side, not
// re-polled from the server every tick.
package cooldown

import (
	"time"

	"cryptoquest-engine/internal/domain"
)

// Window is the default per-tier lockout after a user's most recent attempt.
const Window = 24 * time.Hour

// Status is the gate's verdict for one tier.
type Status struct {
	Tier     domain.Tier `json:"tier"`
	Locked   bool        `json:"locked"`
	UnlockAt time.Time   `json:"unlockAt,omitempty"`
}

// Evaluate computes the lockout for a single tier. A tier with no attempts is
// unlocked; otherwise it is locked while now < lastAttempt + window, and
// unlocked exactly at the boundary.
func Evaluate(tier domain.Tier, history []domain.AttemptRecord, now time.Time, window time.Duration) Status {
	var last time.Time
	for _, rec := range history {
		if rec.Tier != tier.Name {
			continue
		}
		if rec.CreatedAt.After(last) {
			last = rec.CreatedAt
		}
	}
	if last.IsZero() {
		return Status{Tier: tier}
	}
	unlock := last.Add(window)
	if now.Before(unlock) {
		return Status{Tier: tier, Locked: true, UnlockAt: unlock}
	}
	return Status{Tier: tier}
}

// EvaluateAll computes the lockout for every tier in order.
func EvaluateAll(history []domain.AttemptRecord, now time.Time, window time.Duration) []Status {
	tiers := domain.Tiers()
	out := make([]Status, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, Evaluate(t, history, now, window))
	}
	return out
}

// FailOpen is the verdict when history could not be fetched: every tier is
// treated as unlocked. A missing-data blockage is a worse outcome than an
// occasional double play; the settlement store's duplicate detection remains
// the backstop.
func FailOpen() []Status {
	tiers := domain.Tiers()
	out := make([]Status, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, Status{Tier: t})
	}
	return out
}
