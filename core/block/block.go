package block

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"fileledger/types/ids"
)

// Record is the stored shape of a Block. Field names match the on-disk format.
type Record struct {
	Index        uint64  `json:"index"`
	Timestamp    float64 `json:"timestamp"`
	Data         Payload `json:"data"`
	PreviousHash string  `json:"previous_hash"`
	Nonce        uint64  `json:"nonce"`
	Difficulty   int     `json:"difficulty"`
	Hash         string  `json:"hash"`
}

// Block is one ledger entry. Fields are set once by New or Restore and are
// read-only afterwards.
type Block struct {
	index        uint64
	timestamp    float64 // unix seconds, fractional
	data         Payload
	previousHash string
	nonce        uint64
	difficulty   int
	hash         string
}

// New builds a block and seals it. With difficulty > 0 the nonce is mined
// (see ProofOfWork); maxNonce bounds the search, 0 means unbounded.
func New(index uint64, previousHash string, timestamp float64, data Payload, difficulty int, maxNonce uint64) (*Block, error) {
	if difficulty < 0 {
		return nil, fmt.Errorf("difficulty must be >= 0, got %d", difficulty)
	}
	data, err := Normalize(data)
	if err != nil {
		return nil, err
	}
	b := &Block{
		index:        index,
		timestamp:    timestamp,
		data:         data,
		previousHash: previousHash,
		difficulty:   difficulty,
	}
	if difficulty == 0 {
		b.hash = b.ContentHash()
		return b, nil
	}
	pow := NewProofOfWork(b, difficulty, maxNonce)
	nonce, hash, err := pow.Run()
	if err != nil {
		return nil, err
	}
	b.nonce = nonce
	b.hash = hash
	return b, nil
}

// Restore rebuilds a block from stored fields. Nonce and hash are trusted
// verbatim; chain validation is what checks them.
func Restore(rec Record) *Block {
	return &Block{
		index:        rec.Index,
		timestamp:    rec.Timestamp,
		data:         rec.Data.Clone(),
		previousHash: rec.PreviousHash,
		nonce:        rec.Nonce,
		difficulty:   rec.Difficulty,
		hash:         rec.Hash,
	}
}

// ContentHash recomputes the SHA-256 over index, timestamp, data,
// previous_hash and nonce. Difficulty and the hash itself are excluded.
func (b *Block) ContentHash() string {
	return hashWithNonce(b, b.nonce)
}

func hashWithNonce(b *Block, nonce uint64) string {
	return ids.NewID(canonicalHeader(b, nonce)).String()
}

// canonicalHeader encodes the hashed fields as JSON with keys sorted at every
// depth. encoding/json sorts map keys, so a map gives the canonical order.
func canonicalHeader(b *Block, nonce uint64) []byte {
	header := map[string]interface{}{
		"index":         b.index,
		"timestamp":     b.timestamp,
		"data":          b.data,
		"previous_hash": b.previousHash,
		"nonce":         nonce,
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(header); err != nil {
		// Payload values come from JSON or from FileEvent, both encodable.
		panic(fmt.Sprintf("block %d: encode header: %v", b.index, err))
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}

func (b *Block) Index() uint64        { return b.index }
func (b *Block) Timestamp() float64   { return b.timestamp }
func (b *Block) PreviousHash() string { return b.previousHash }
func (b *Block) Nonce() uint64        { return b.nonce }
func (b *Block) Difficulty() int      { return b.difficulty }
func (b *Block) Hash() string         { return b.hash }

// Data returns a copy of the payload.
func (b *Block) Data() Payload { return b.data.Clone() }

// Filename is the payload's filename, or "" when absent.
func (b *Block) Filename() string { return b.data.String(KeyFilename) }

// Time converts the block timestamp to a time.Time.
func (b *Block) Time() time.Time {
	sec := int64(b.timestamp)
	nsec := int64((b.timestamp - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// Record returns the stored shape of the block.
func (b *Block) Record() Record {
	return Record{
		Index:        b.index,
		Timestamp:    b.timestamp,
		Data:         b.data.Clone(),
		PreviousHash: b.previousHash,
		Nonce:        b.nonce,
		Difficulty:   b.difficulty,
		Hash:         b.hash,
	}
}

// Serialize encodes Block into JSON
func (b *Block) Serialize() ([]byte, error) {
	return json.Marshal(b.Record())
}

// MarshalJSON renders the block in its stored shape.
func (b *Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Record())
}

// Deserialize decodes JSON into a Block through Restore. Numbers inside the
// payload stay json.Number so the content hash is reproduced exactly.
func Deserialize(data []byte) (*Block, error) {
	var rec Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, err
	}
	return Restore(rec), nil
}

// UnixSeconds converts t to the fractional unix seconds stored in a block.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
