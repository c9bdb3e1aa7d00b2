// Package scan renders a chain for people: the block explorer view and
// per-file history listings used by the CLI.
package scan

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"fileledger/core/block"
)

const rule = "------------------------------------------------------------"

// WriteBlock prints one block with its payload fields in key order.
func WriteBlock(w io.Writer, b *block.Block) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "  ▸ Block Index: %d\n", b.Index())
	fmt.Fprintf(w, "  ▸ Timestamp:   %s\n", b.Time().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  ▸ PrevHash:    %s\n", b.PreviousHash())
	fmt.Fprintf(w, "  ▸ Hash:        %s\n", b.Hash())
	fmt.Fprintf(w, "  ▸ Nonce:       %d (difficulty %d)\n", b.Nonce(), b.Difficulty())

	data := b.Data()
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintln(w, "  ▸ Data:")
	for _, k := range keys {
		fmt.Fprintf(w, "      %-12s %s\n", k+":", formatValue(data[k]))
	}
}

// WriteChain prints the explorer view of blocks, oldest first.
func WriteChain(w io.Writer, blocks []*block.Block) {
	banner := strings.Repeat("#", len(rule))
	fmt.Fprintln(w, banner)
	fmt.Fprintf(w, "BLOCKCHAIN EXPLORER - Total Blocks: %d\n", len(blocks))
	fmt.Fprintln(w, banner)
	for _, b := range blocks {
		WriteBlock(w, b)
	}
	fmt.Fprintln(w, rule)
}

// WriteHistory prints a compact one-line-per-block history of a file.
func WriteHistory(w io.Writer, filename string, blocks []*block.Block) {
	if len(blocks) == 0 {
		fmt.Fprintf(w, "[⚠️] No history found for '%s'\n", filename)
		return
	}
	fmt.Fprintf(w, "History of '%s' (%d entries)\n", filename, len(blocks))
	for _, b := range blocks {
		ev := block.FileEventFromPayload(b.Data())
		hash := ev.FileHash
		if len(hash) > 16 {
			hash = hash[:16] + "..."
		}
		fmt.Fprintf(w, "  #%-4d %s  %-16s %-12s %s (%d bytes)\n",
			b.Index(), b.Time().Format("2006-01-02 15:04:05"), ev.Action, ev.UploaderID, hash, ev.FileSize)
	}
}

func formatValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
