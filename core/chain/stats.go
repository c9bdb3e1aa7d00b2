package chain

import "fileledger/core/block"

// Stats summarizes the non-genesis blocks of a chain.
type Stats struct {
	TotalBlocks     int            `json:"total_blocks"`
	FilesTracked    int            `json:"files_tracked"`
	UniqueUploaders int            `json:"unique_uploaders"`
	Actions         map[string]int `json:"actions"`
	Difficulty      int            `json:"difficulty"`
}

// ActionUnknown counts blocks whose payload has no action.
const ActionUnknown = "UNKNOWN"

// Statistics aggregates files, uploaders and action counts. TotalBlocks
// includes genesis.
func (c *Chain) Statistics() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := Stats{
		TotalBlocks: len(c.blocks),
		Actions:     map[string]int{},
		Difficulty:  c.difficulty,
	}
	if len(c.blocks) < 2 {
		return st
	}
	files := map[string]struct{}{}
	uploaders := map[string]struct{}{}
	for _, b := range c.blocks[1:] {
		data := b.Data()
		if name := data.String(block.KeyFilename); name != "" {
			files[name] = struct{}{}
		}
		if id := data.String(block.KeyUploaderID); id != "" {
			uploaders[id] = struct{}{}
		}
		action, ok := data[block.KeyAction].(string)
		if !ok {
			action = ActionUnknown
		}
		st.Actions[action]++
	}
	st.FilesTracked = len(files)
	st.UniqueUploaders = len(uploaders)
	return st
}
