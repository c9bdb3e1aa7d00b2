package scan

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileledger/core/block"
	"fileledger/core/genesis"
)

func sampleBlocks(t *testing.T) []*block.Block {
	t.Helper()
	now := time.Unix(1700000000, 0)
	g, err := genesis.NewBlock(now)
	require.NoError(t, err)
	ev := block.FileEvent{
		Filename:   "a.txt",
		FileHash:   strings.Repeat("ab", 32),
		FileSize:   42,
		UploaderID: "alice",
		Action:     block.ActionFileCreated,
		Timestamp:  now,
	}
	b, err := block.New(1, g.Hash(), block.UnixSeconds(now)+1, ev.Payload(), 1, 0)
	require.NoError(t, err)
	return []*block.Block{g, b}
}

func TestWriteChain(t *testing.T) {
	blocks := sampleBlocks(t)
	var buf bytes.Buffer
	WriteChain(&buf, blocks)
	out := buf.String()

	assert.Contains(t, out, "Total Blocks: 2")
	assert.Contains(t, out, blocks[1].Hash())
	assert.Contains(t, out, genesis.Note)
	assert.Contains(t, out, "file_size:   42")
	// Payload keys are listed in sorted order.
	assert.Less(t, strings.Index(out, "action:"), strings.Index(out, "filename:"))
}

func TestWriteHistory(t *testing.T) {
	blocks := sampleBlocks(t)
	var buf bytes.Buffer
	WriteHistory(&buf, "a.txt", blocks[1:])
	assert.Contains(t, buf.String(), "History of 'a.txt' (1 entries)")
	assert.Contains(t, buf.String(), "FILE_CREATED")
	assert.Contains(t, buf.String(), "abababababababab...")

	buf.Reset()
	WriteHistory(&buf, "none.txt", nil)
	assert.Contains(t, buf.String(), "No history found for 'none.txt'")
}
