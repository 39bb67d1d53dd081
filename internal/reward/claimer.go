package reward

import (
	"context"
	"sync"

	"cryptoquest-engine/internal/domain"
)

// Wallet is the transaction-signing capability of the user's wallet. The call
// may suspend indefinitely awaiting approval; it either resolves with a tx
// hash or fails (rejection, gas, revert, network).
type Wallet interface {
	SendTransaction(ctx context.Context, to string, calldata []byte) (txHash string, err error)
}

// ClaimableSession is the slice of a quiz session the claimer needs.
type ClaimableSession interface {
	ID() string
	Tier() domain.Tier
	Percentage() int
	ClaimEligible() bool
}

// Receipt is the observable outcome of a claim attempt.
type Receipt struct {
	State       domain.ClaimState `json:"state"`
	TxHash      string            `json:"txHash,omitempty"`
	ExplorerURL string            `json:"explorerUrl,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Claimer converts passed sessions into exactly one accepted on-chain claim
// each, or a clearly failed attempt that can be retried. The Claiming state
// is itself the single-flight guard on the wallet: only one transaction per
// session is ever in flight, and Claimed is terminal.
type Claimer struct {
	wallet       Wallet
	contract     string
	explorerBase string

	mu     sync.Mutex
	states map[string]*Receipt
}

func NewClaimer(wallet Wallet, contract, explorerBase string) *Claimer {
	return &Claimer{
		wallet:       wallet,
		contract:     contract,
		explorerBase: explorerBase,
		states:       make(map[string]*Receipt),
	}
}

// StateFor reports the claim lifecycle of a session.
func (c *Claimer) StateFor(sessionID string) Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.states[sessionID]; ok {
		return *r
	}
	return Receipt{State: domain.ClaimIdle}
}

// Claim submits the reward transaction for a passed session. Claims are never
// retried automatically; after a failure the user re-triggers explicitly and
// the retry is independent of the first attempt.
func (c *Claimer) Claim(ctx context.Context, sess ClaimableSession) (Receipt, error) {
	if c.wallet == nil || sess == nil || !sess.ClaimEligible() {
		return Receipt{State: domain.ClaimIdle}, domain.ErrNotEligible
	}

	c.mu.Lock()
	current, ok := c.states[sess.ID()]
	if ok {
		switch current.State {
		case domain.ClaimDone:
			c.mu.Unlock()
			return *current, domain.ErrAlreadyClaimed
		case domain.ClaimInFlight:
			c.mu.Unlock()
			return *current, domain.ErrClaimInFlight
		}
	}
	rec := &Receipt{State: domain.ClaimInFlight}
	c.states[sess.ID()] = rec
	c.mu.Unlock()

	calldata := ClaimCalldata(ClaimID(sess.ID()), sess.Tier().ContractID, uint64(sess.Percentage()))

	hash, err := c.wallet.SendTransaction(ctx, c.contract, calldata)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		txErr := domain.NewClaimTxError(err)
		*rec = Receipt{State: domain.ClaimFailed, Error: txErr.Message}
		return *rec, txErr
	}
	*rec = Receipt{State: domain.ClaimDone, TxHash: hash, ExplorerURL: c.explorerURL(hash)}
	return *rec, nil
}

func (c *Claimer) explorerURL(hash string) string {
	if c.explorerBase == "" || hash == "" {
		return ""
	}
	return c.explorerBase + "/tx/" + hash
}
