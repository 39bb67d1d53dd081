package domain

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClaimTxErrorClipsLongMessages(t *testing.T) {
	long := strings.Repeat("x", 300)
	e := NewClaimTxError(errors.New(long))
	if len(e.Message) != claimErrorLimit+3 {
		t.Fatalf("clipped length = %d, want %d", len(e.Message), claimErrorLimit+3)
	}
	if !strings.HasSuffix(e.Message, "...") {
		t.Fatalf("clipped message missing ellipsis: %q", e.Message)
	}

	short := NewClaimTxError(errors.New("user rejected"))
	if short.Message != "user rejected" {
		t.Fatalf("short message altered: %q", short.Message)
	}
}

func TestClaimTxErrorClipsOnRuneBoundary(t *testing.T) {
	// 98 ASCII bytes followed by 3-byte runes puts the byte limit in the
	// middle of a rune; the clip must back off, not emit invalid UTF-8.
	msg := strings.Repeat("x", 98) + strings.Repeat("レ", 10)
	e := NewClaimTxError(errors.New(msg))
	if !utf8.ValidString(e.Message) {
		t.Fatalf("clipped message is not valid UTF-8: %q", e.Message)
	}
	if len(e.Message) > claimErrorLimit+3 {
		t.Fatalf("clipped message too long: %d bytes", len(e.Message))
	}
	if !strings.HasSuffix(e.Message, "...") {
		t.Fatalf("clipped message missing ellipsis: %q", e.Message)
	}
}
