package reward

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// ClaimID derives the on-chain claim identifier for a session: the keccak256
// hash of the raw session-id bytes. Deterministic and reproducible from
// client-held data, so a reload can rebuild the same id and let the contract
// itself reject a replay. Hashing keeps the identifier fixed-size and opaque
// without the chain knowing about sessions.
func ClaimID(sessionID string) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(sessionID))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ClaimIDHex renders the claim id as 0x-prefixed hex for logs and explorers.
func ClaimIDHex(sessionID string) string {
	id := ClaimID(sessionID)
	return "0x" + hex.EncodeToString(id[:])
}
