package scan

import (
	"fmt"
	"io"
	"sort"

	"fileledger/core/chain"
	"fileledger/core/integrity"
)

func abbrev(hash string, n int) string {
	if len(hash) <= n {
		return hash
	}
	return hash[:n] + "..."
}

// WriteReport prints a verification report followed by its verdict line.
func WriteReport(w io.Writer, r *integrity.Report) {
	fmt.Fprintln(w, "📊 Verification Report:")
	fmt.Fprintf(w, "   Uploader ID:    %s\n", r.UploaderID)
	fmt.Fprintf(w, "   Recorded Hash:  %s\n", abbrev(r.RecordedHash, 30))
	fmt.Fprintf(w, "   Current Hash:   %s\n", abbrev(r.CurrentHash, 30))
	fmt.Fprintf(w, "   Recorded Size:  %d bytes\n", r.RecordedSize)
	fmt.Fprintf(w, "   Current Size:   %d bytes\n", r.CurrentSize)
	fmt.Fprintf(w, "   Block Index:    %d\n", r.BlockIndex)
	fmt.Fprintf(w, "   Block Time:     %s\n", r.BlockTime.Format("2006-01-02 15:04:05"))
	if r.Verified() {
		fmt.Fprintln(w, "✅ [SUCCESS] File integrity verified - No tampering detected")
		return
	}
	fmt.Fprintln(w, "❌ [FAILURE] File integrity compromised - File has been modified!")
}

// WriteStats prints chain statistics with actions in name order.
func WriteStats(w io.Writer, st chain.Stats) {
	fmt.Fprintln(w, "📊 Blockchain Statistics:")
	fmt.Fprintf(w, "   Total Blocks:      %d\n", st.TotalBlocks)
	fmt.Fprintf(w, "   Files Tracked:     %d\n", st.FilesTracked)
	fmt.Fprintf(w, "   Unique Uploaders:  %d\n", st.UniqueUploaders)
	fmt.Fprintf(w, "   Difficulty:        %d\n", st.Difficulty)
	names := make([]string, 0, len(st.Actions))
	for a := range st.Actions {
		names = append(names, a)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "   Actions:")
	for _, a := range names {
		fmt.Fprintf(w, "      %-16s %d\n", a, st.Actions[a])
	}
}
