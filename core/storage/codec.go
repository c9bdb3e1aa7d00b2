package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"fileledger/core/block"
	"fileledger/core/validation"
)

var (
	// ErrNotFound means the store holds no chain yet.
	ErrNotFound = errors.New("chain store not found")
	// ErrLoad marks a store that exists but cannot be decoded.
	ErrLoad = errors.New("chain store load failed")
)

// LoadError reports a malformed or corrupt store.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrLoad, e.Err} }

// Snapshot is the persisted state of a chain.
type Snapshot struct {
	Difficulty int
	Blocks     []*block.Block
}

// Store persists chain snapshots.
type Store interface {
	Save(snap Snapshot) error
	// Load returns ErrNotFound when nothing was saved yet and a *LoadError
	// when the stored data is malformed.
	Load() (Snapshot, error)
	Close() error
}

type document struct {
	Difficulty int            `json:"difficulty"`
	Blocks     []block.Record `json:"blocks"`
}

// Encode renders a snapshot as the indented JSON document
// {"difficulty": n, "blocks": [...]}. Nonce and hash are written verbatim.
func Encode(snap Snapshot) ([]byte, error) {
	doc := document{
		Difficulty: snap.Difficulty,
		Blocks:     make([]block.Record, 0, len(snap.Blocks)),
	}
	for _, b := range snap.Blocks {
		doc.Blocks = append(doc.Blocks, b.Record())
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Decode parses a stored document. The document is checked against the store
// schema first; blocks are rebuilt with block.Restore and are not re-mined.
func Decode(source string, raw []byte) (Snapshot, error) {
	if err := validation.ValidateStore(raw); err != nil {
		return Snapshot{}, &LoadError{Source: source, Err: err}
	}
	var doc document
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Snapshot{}, &LoadError{Source: source, Err: err}
	}
	snap := Snapshot{
		Difficulty: doc.Difficulty,
		Blocks:     make([]*block.Block, 0, len(doc.Blocks)),
	}
	for _, rec := range doc.Blocks {
		snap.Blocks = append(snap.Blocks, block.Restore(rec))
	}
	return snap, nil
}
