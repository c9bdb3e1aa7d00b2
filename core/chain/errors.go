package chain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when a block is appended before genesis.
	ErrInvalidState = errors.New("chain has no genesis block")
	// ErrInvalidPayload is returned for payloads without a filename or that
	// fail the payload schema.
	ErrInvalidPayload = errors.New("invalid block payload")
	// ErrGenesisExists is returned by a second CreateGenesis.
	ErrGenesisExists = errors.New("genesis block already exists")
	// ErrValidationFailed is matched by every *ValidationError.
	ErrValidationFailed = errors.New("chain validation failed")
)

// Reason names the check a block failed.
type Reason string

const (
	ReasonHashCorrupted   Reason = "hash_corrupted"
	ReasonLinkBroken      Reason = "link_broken"
	ReasonDifficultyUnmet Reason = "difficulty_unmet"
)

// ValidationError identifies the first block that failed validation.
type ValidationError struct {
	Index  uint64
	Reason Reason
	// Expected and Actual hold the digests compared by the failing check.
	Expected string
	Actual   string
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonHashCorrupted:
		return fmt.Sprintf("block %d hash is corrupted", e.Index)
	case ReasonLinkBroken:
		return fmt.Sprintf("block %d lost link to block %d", e.Index, e.Index-1)
	case ReasonDifficultyUnmet:
		return fmt.Sprintf("block %d doesn't meet difficulty requirement", e.Index)
	default:
		return fmt.Sprintf("block %d: %s", e.Index, e.Reason)
	}
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }
