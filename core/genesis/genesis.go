package genesis

import (
	"time"

	"fileledger/core/block"
	"fileledger/types/ids"
)

// Note is recorded in every genesis payload.
const Note = "Genesis Block - Blockchain Initialized"

// SystemUploader is the uploader id of the genesis block.
const SystemUploader = "system"

// Payload builds the system payload of the genesis block.
func Payload(now time.Time) block.Payload {
	return block.Payload{
		block.KeyNote:       Note,
		block.KeyAction:     block.ActionGenesis,
		block.KeyTimestamp:  now.Format(time.RFC3339Nano),
		block.KeyUploaderID: SystemUploader,
	}
}

// NewBlock creates the unmined index-0 block linked to the all-zero hash.
func NewBlock(now time.Time) (*block.Block, error) {
	return block.New(0, ids.ZeroHex, block.UnixSeconds(now), Payload(now), 0, 0)
}

// IsGenesis reports whether b has the shape of a genesis block.
func IsGenesis(b *block.Block) bool {
	return b.Index() == 0 &&
		b.PreviousHash() == ids.ZeroHex &&
		b.Difficulty() == 0 &&
		b.Nonce() == 0
}
