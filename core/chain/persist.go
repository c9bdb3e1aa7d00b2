package chain

import (
	"errors"
	"fmt"
	"log/slog"

	"fileledger/core/block"
	"fileledger/core/storage"
)

// Save writes the chain to store. It holds the read lock for the whole write,
// so appends wait and the snapshot never contains a half-applied append.
// Concurrent saves are serialized.
func (c *Chain) Save(store storage.Store) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	c.mu.RLock()
	snap := storage.Snapshot{Difficulty: c.difficulty, Blocks: append([]*block.Block(nil), c.blocks...)}
	err := store.Save(snap)
	c.mu.RUnlock()

	c.metrics.Persisted("save", err)
	if err != nil {
		c.log.Error("save chain", slog.String("error", err.Error()))
		return fmt.Errorf("save chain: %w", err)
	}
	c.log.Info("chain saved", slog.Int("blocks", len(snap.Blocks)))
	return nil
}

// Load builds a chain from store. Blocks are restored verbatim; difficulty
// comes from the stored document, not from opts. Call Validate to check them.
func Load(store storage.Store, opts Options) (*Chain, error) {
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	if err := c.replace(store); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload replaces the chain's blocks and difficulty with the stored ones.
func (c *Chain) Reload(store storage.Store) error {
	return c.replace(store)
}

func (c *Chain) replace(store storage.Store) error {
	snap, err := store.Load()
	c.metrics.Persisted("load", err)
	if err != nil {
		return err
	}
	if snap.Difficulty < 0 {
		return &storage.LoadError{Source: "snapshot", Err: fmt.Errorf("negative difficulty %d", snap.Difficulty)}
	}

	c.mu.Lock()
	c.blocks = snap.Blocks
	c.revision++
	c.difficulty = snap.Difficulty
	n := len(c.blocks)
	c.mu.Unlock()

	c.metrics.Height(n)
	c.log.Info("chain loaded", slog.Int("blocks", n), slog.Int("difficulty", snap.Difficulty))
	return nil
}

// LoadOrCreate loads the chain from store, or starts a fresh chain with a
// genesis block when the store is empty or unreadable. The second return
// value reports whether an existing chain was loaded.
func LoadOrCreate(store storage.Store, opts Options) (*Chain, bool, error) {
	c, err := Load(store, opts)
	if err == nil {
		if c.Len() > 0 {
			return c, true, nil
		}
		// An empty block list is treated like a missing store.
		err = storage.ErrNotFound
	}
	if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrLoad) {
		return nil, false, err
	}
	if opts.Logger != nil && !errors.Is(err, storage.ErrNotFound) {
		opts.Logger.Warn("stored chain unreadable, starting a new one", slog.String("error", err.Error()))
	}

	c, err = New(opts)
	if err != nil {
		return nil, false, err
	}
	if _, err := c.CreateGenesis(); err != nil {
		return nil, false, err
	}
	return c, false, nil
}
