package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ID is a 32-byte SHA-256 digest.
type ID [32]byte

// HexLen is the length of an ID rendered as lowercase hex.
const HexLen = 2 * len(ID{})

// Empty is the zero-value ID (all zeros)
var Empty ID

// ZeroHex is Empty rendered as hex; used as the genesis previous hash.
var ZeroHex = strings.Repeat("0", HexLen)

// NewID generates a new ID by hashing input bytes
func NewID(data []byte) ID {
	return ID(sha256.Sum256(data))
}

// FromString parses a 64-char hex string into an ID
func FromString(s string) (ID, error) {
	var id ID
	if len(s) != HexLen {
		return id, fmt.Errorf("id must be %d hex characters, got %d", HexLen, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	copy(id[:], raw)
	return id, nil
}

// String converts an ID to a lowercase hex string
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsHex reports whether s looks like a rendered ID.
func IsHex(s string) bool {
	_, err := FromString(s)
	return err == nil
}
