// Package chain holds the append-only ledger: genesis creation, mined appends,
// lookups and whole-chain validation. A Chain is safe for concurrent use;
// mutations are serialized and reads see a consistent snapshot.
package chain

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"fileledger/core/audit"
	"fileledger/core/block"
	"fileledger/core/genesis"
	"fileledger/core/metrics"
	"fileledger/core/validation"
)

// DefaultDifficulty is the proof-of-work target for new chains.
const DefaultDifficulty = 2

// Options configures a Chain. The zero value is usable: difficulty 0, no
// mining cap, discarded logs and audit events.
type Options struct {
	Difficulty int
	// MaxNonce caps the nonce search per append; 0 means unbounded.
	MaxNonce uint64
	Logger   *slog.Logger
	Metrics  *metrics.Ledger
	Audit    audit.AuditLogger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

type Chain struct {
	mu         sync.RWMutex
	saveMu     sync.Mutex
	blocks     []*block.Block
	difficulty int
	maxNonce   uint64
	revision   uint64 // bumped whenever blocks change

	now     func() time.Time
	log     *slog.Logger
	metrics *metrics.Ledger
	audit   audit.AuditLogger
}

// New returns an empty chain. Call CreateGenesis (or Load) before Append.
func New(opts Options) (*Chain, error) {
	if opts.Difficulty < 0 {
		return nil, fmt.Errorf("difficulty must be >= 0, got %d", opts.Difficulty)
	}
	c := &Chain{
		difficulty: opts.Difficulty,
		maxNonce:   opts.MaxNonce,
		now:        opts.Now,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		audit:      opts.Audit,
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c.log = c.log.With(slog.String("component", "chain"))
	if c.audit == nil {
		c.audit = audit.Nop()
	}
	return c, nil
}

// CreateGenesis appends the unmined index-0 block. It fails with
// ErrGenesisExists if the chain already has blocks.
func (c *Chain) CreateGenesis() (*block.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.blocks) > 0 {
		return nil, ErrGenesisExists
	}
	g, err := genesis.NewBlock(c.now())
	if err != nil {
		return nil, fmt.Errorf("create genesis: %w", err)
	}
	c.blocks = append(c.blocks, g)
	c.revision++
	c.metrics.Height(len(c.blocks))
	c.log.Info("genesis block created", slog.String("hash", g.Hash()))
	return g, nil
}

// Append mines a block carrying payload onto the tip and returns it. Mining
// runs under the write lock, so appends are strictly ordered.
func (c *Chain) Append(payload block.Payload) (*block.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.blocks) == 0 {
		c.metrics.AppendFailed("no_genesis")
		return nil, ErrInvalidState
	}
	if payload.String(block.KeyFilename) == "" {
		c.metrics.AppendFailed("invalid_payload")
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidPayload)
	}
	if err := validation.ValidatePayload(payload); err != nil {
		c.metrics.AppendFailed("invalid_payload")
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	tip := c.blocks[len(c.blocks)-1]
	ts := block.UnixSeconds(c.now())
	if ts < tip.Timestamp() {
		ts = tip.Timestamp()
	}

	start := time.Now()
	b, err := block.New(tip.Index()+1, tip.Hash(), ts, payload, c.difficulty, c.maxNonce)
	if err != nil {
		reason := "mining_failed"
		if errors.Is(err, block.ErrMiningExhausted) {
			reason = "mining_exhausted"
		}
		c.metrics.AppendFailed(reason)
		return nil, fmt.Errorf("append block %d: %w", tip.Index()+1, err)
	}
	took := time.Since(start)

	c.blocks = append(c.blocks, b)
	c.revision++
	action := payload.String(block.KeyAction)
	c.metrics.BlockAppended(action, b.Nonce(), took, len(c.blocks))
	c.log.Info("block appended",
		slog.Uint64("index", b.Index()),
		slog.String("action", action),
		slog.String("filename", b.Filename()),
		slog.Uint64("nonce", b.Nonce()),
		slog.Duration("took", took),
	)
	return b, nil
}

// Revision identifies the current block list. It changes on every append,
// genesis creation and reload, so cached results keyed on it stay exact.
func (c *Chain) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}

// Len returns the number of blocks, genesis included.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

func (c *Chain) Difficulty() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.difficulty
}

// Latest returns the tip, or false for an empty chain.
func (c *Chain) Latest() (*block.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.blocks) == 0 {
		return nil, false
	}
	return c.blocks[len(c.blocks)-1], true
}

// Blocks returns a copy of the block list. Blocks themselves are immutable.
func (c *Chain) Blocks() []*block.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*block.Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Block returns the block at index.
func (c *Chain) Block(index uint64) (*block.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if index >= uint64(len(c.blocks)) {
		return nil, false
	}
	return c.blocks[index], true
}

// FindLatestForFile returns the newest block whose payload names filename.
func (c *Chain) FindLatestForFile(filename string) (*block.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.blocks) - 1; i >= 0; i-- {
		if c.blocks[i].Filename() == filename {
			return c.blocks[i], true
		}
	}
	return nil, false
}

// HistoryForFile returns every block naming filename, oldest first.
func (c *Chain) HistoryForFile(filename string) []*block.Block {
	return c.filter(func(b *block.Block) bool { return b.Filename() == filename })
}

// HistoryForUploader returns every block recorded by uploaderID, oldest first.
func (c *Chain) HistoryForUploader(uploaderID string) []*block.Block {
	return c.filter(func(b *block.Block) bool {
		return b.Index() > 0 && b.Data().String(block.KeyUploaderID) == uploaderID
	})
}

func (c *Chain) filter(keep func(*block.Block) bool) []*block.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := []*block.Block{}
	for _, b := range c.blocks {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

// Validate walks blocks 1..N-1 checking, in order, the stored hash against
// the recomputed one, the link to the previous block, and the difficulty
// target. It returns the first failure as a *ValidationError, or nil.
func (c *Chain) Validate() error {
	c.mu.RLock()
	err := validateBlocks(c.blocks)
	n := len(c.blocks)
	c.mu.RUnlock()

	if err != nil {
		c.metrics.Validated("invalid")
		ev := audit.NewEvent(audit.EventChainInvalid, "chain", "failure")
		ev.Reason = string(err.Reason)
		ev.Metadata["index"] = strconv.FormatUint(err.Index, 10)
		c.audit.LogEvent(ev)
		c.log.Warn("chain validation failed",
			slog.Uint64("index", err.Index),
			slog.String("reason", string(err.Reason)),
		)
		return err
	}
	c.metrics.Validated("valid")
	ev := audit.NewEvent(audit.EventChainValidated, "chain", "success")
	ev.Metadata["blocks"] = strconv.Itoa(n)
	c.audit.LogEvent(ev)
	c.log.Debug("chain validated", slog.Int("blocks", n))
	return nil
}

// Check runs the same checks as Validate without recording metrics, audit
// events or logs. Health probes use it.
func (c *Chain) Check() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := validateBlocks(c.blocks); err != nil {
		return err
	}
	return nil
}

func validateBlocks(blocks []*block.Block) *ValidationError {
	for i := 1; i < len(blocks); i++ {
		cur, prev := blocks[i], blocks[i-1]
		if sum := cur.ContentHash(); cur.Hash() != sum {
			return &ValidationError{Index: uint64(i), Reason: ReasonHashCorrupted, Expected: sum, Actual: cur.Hash()}
		}
		if cur.PreviousHash() != prev.Hash() {
			return &ValidationError{Index: uint64(i), Reason: ReasonLinkBroken, Expected: prev.Hash(), Actual: cur.PreviousHash()}
		}
		if !block.MeetsDifficulty(cur.Hash(), cur.Difficulty()) {
			return &ValidationError{Index: uint64(i), Reason: ReasonDifficultyUnmet, Actual: cur.Hash()}
		}
	}
	return nil
}
