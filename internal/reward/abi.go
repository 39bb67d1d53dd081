package reward

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Minimal ABI helpers for the handful of fixed-width calls this engine makes.
// The reward contract surface is claimReward(bytes32,uint256,uint256,uint256)
// plus a few read-only views, so hand-packed 32-byte words cover it without a
// chain SDK.

// selector is the first four bytes of keccak256 of the canonical signature.
func selector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}

func wordFromUint(v uint64) [32]byte {
	var w [32]byte
	binary.BigEndian.PutUint64(w[24:], v)
	return w
}

func wordFromAddress(addr string) ([32]byte, error) {
	var w [32]byte
	raw, err := decodeHex(addr)
	if err != nil || len(raw) != 20 {
		return w, fmt.Errorf("invalid address %q", addr)
	}
	copy(w[12:], raw)
	return w, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex %q", s)
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, ok1 := hexNibble(s[2*i])
		lo, ok2 := hexNibble(s[2*i+1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("bad hex %q", s)
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// ClaimCalldata builds the claimReward call: the hashed claim id, the tier's
// numeric contract id, the achieved percentage (0-100) and the fixed
// denominator 100 (1x multiplier).
func ClaimCalldata(claimID [32]byte, tierID uint64, percent uint64) []byte {
	data := make([]byte, 0, 4+4*32)
	data = append(data, selector("claimReward(bytes32,uint256,uint256,uint256)")...)
	data = append(data, claimID[:]...)
	for _, v := range []uint64{tierID, percent, 100} {
		w := wordFromUint(v)
		data = append(data, w[:]...)
	}
	return data
}

// decodeUint interprets a single-word eth_call result.
func decodeUint(result []byte) (*big.Int, error) {
	if len(result) < 32 {
		return nil, fmt.Errorf("short result: %d bytes", len(result))
	}
	return new(big.Int).SetBytes(result[:32]), nil
}

// decodeString interprets an ABI-encoded dynamic string (offset, length, data).
func decodeString(result []byte) (string, error) {
	if len(result) < 64 {
		return "", fmt.Errorf("short string result: %d bytes", len(result))
	}
	total := uint64(len(result))
	offset := new(big.Int).SetBytes(result[:32]).Uint64()
	if offset > total-32 {
		return "", fmt.Errorf("string offset out of range")
	}
	length := new(big.Int).SetBytes(result[offset : offset+32]).Uint64()
	if length > total-offset-32 {
		return "", fmt.Errorf("string length out of range")
	}
	return string(result[offset+32 : offset+32+length]), nil
}

// decodeAddress interprets a single-word address result.
func decodeAddress(result []byte) (string, error) {
	if len(result) < 32 {
		return "", fmt.Errorf("short address result: %d bytes", len(result))
	}
	return "0x" + fmt.Sprintf("%x", result[12:32]), nil
}

// decodeBool interprets a single-word bool result.
func decodeBool(result []byte) (bool, error) {
	v, err := decodeUint(result)
	if err != nil {
		return false, err
	}
	return v.Sign() != 0, nil
}
