package block

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMiningExhausted is returned when the nonce search hits its iteration cap.
var ErrMiningExhausted = errors.New("mining exhausted")

// ProofOfWork searches for the smallest nonce whose block hash starts with
// difficulty '0' hex characters.
type ProofOfWork struct {
	block      *Block
	difficulty int
	// maxNonce caps the number of attempts; 0 means no cap.
	maxNonce uint64
}

func NewProofOfWork(b *Block, difficulty int, maxNonce uint64) *ProofOfWork {
	return &ProofOfWork{
		block:      b,
		difficulty: difficulty,
		maxNonce:   maxNonce,
	}
}

// Run performs the linear search starting at nonce 0. It does not mutate the
// block; the caller seals it with the returned nonce and hash.
func (p *ProofOfWork) Run() (uint64, string, error) {
	if p.difficulty <= 0 {
		return 0, hashWithNonce(p.block, 0), nil
	}
	for nonce := uint64(0); ; nonce++ {
		if p.maxNonce > 0 && nonce >= p.maxNonce {
			return 0, "", fmt.Errorf("block %d at difficulty %d after %d attempts: %w",
				p.block.index, p.difficulty, p.maxNonce, ErrMiningExhausted)
		}
		hash := hashWithNonce(p.block, nonce)
		if MeetsDifficulty(hash, p.difficulty) {
			return nonce, hash, nil
		}
	}
}

// Validate checks the block's stored hash against its contents and the target.
func (p *ProofOfWork) Validate() bool {
	if p.block.hash != p.block.ContentHash() {
		return false
	}
	return MeetsDifficulty(p.block.hash, p.difficulty)
}

// MeetsDifficulty reports whether hash has at least difficulty leading '0's.
func MeetsDifficulty(hash string, difficulty int) bool {
	if difficulty <= 0 {
		return true
	}
	if difficulty > len(hash) {
		return false
	}
	return strings.HasPrefix(hash, strings.Repeat("0", difficulty))
}
