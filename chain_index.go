package chainview

// chain_index.go implements the copy-on-write chain index.
//
// The index is a (base, tail) pair of immutable segments. An append copies
// only the tail; once the tail reaches maxTailSize it is folded into a new
// base. Append cost is therefore bounded by maxTailSize except for one full
// copy every maxTailSize appends.
//
// The pair is published as one *Snapshot through an atomic pointer, so a
// reader can never pair a pre-merge base with a post-merge tail. Readers take
// no lock; the mutex only orders writers.

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aalhour/chainview/internal/logging"
)

// DefaultMaxTailSize is the tail length at which appends merge into the base.
const DefaultMaxTailSize = 1024

// ChainIndex is an append-only chain supporting lock-free snapshots.
// It is safe for concurrent use; appends are serialized.
type ChainIndex struct {
	mu          sync.Mutex
	state       atomic.Pointer[Snapshot]
	maxTailSize int

	logger logging.Logger
	stats  Statistics
}

// NewChainIndex returns an empty index. A maxTailSize <= 0 selects
// DefaultMaxTailSize.
func NewChainIndex(maxTailSize int) *ChainIndex {
	return newChainIndex(maxTailSize, logging.Discard, nil)
}

func newChainIndex(maxTailSize int, logger logging.Logger, stats Statistics) *ChainIndex {
	if maxTailSize <= 0 {
		maxTailSize = DefaultMaxTailSize
	}
	c := &ChainIndex{
		maxTailSize: maxTailSize,
		logger:      logging.OrDefault(logger),
		stats:       stats,
	}
	c.state.Store(emptySnapshot)
	return c
}

// MaxTailSize returns the merge threshold.
func (c *ChainIndex) MaxTailSize() int {
	return c.maxTailSize
}

// Tip returns the last entry, or nil when the index is empty.
func (c *ChainIndex) Tip() *Entry {
	return c.state.Load().Tip()
}

// Height returns the number of entries in the index.
func (c *ChainIndex) Height() int {
	return c.state.Load().Height()
}

// GetSnapshot returns the current view. The returned Snapshot is immutable.
func (c *ChainIndex) GetSnapshot() *Snapshot {
	recordTick(c.stats, TickerSnapshots, 1)
	return c.state.Load()
}

// Append adds e as the new tip.
//
// e must extend the current tip: e.Height must equal Height() and, unless the
// index is empty, e.PrevHash must equal the tip's hash. Otherwise Append
// returns an error wrapping ErrSequenceViolation and the index is unchanged.
// e must not be modified after it is appended.
func (c *ChainIndex) Append(e *Entry) error {
	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.state.Load()
	if err := checkSuccessor(cur, e); err != nil {
		recordTick(c.stats, TickerSequenceViolations, 1)
		return err
	}

	tail := cur.tail.appendCopy(e)
	next := &Snapshot{base: cur.base, tail: tail}
	if len(tail) >= c.maxTailSize {
		next = &Snapshot{base: concat(cur.base, tail)}
		recordTick(c.stats, TickerMerges, 1)
		measure(c.stats, HistogramMergeEntries, uint64(next.Height()))
		c.logger.Debugf("%smerged tail into base at height %d", logging.NSChain, next.Height())
	}
	c.state.Store(next)

	recordTick(c.stats, TickerAppends, 1)
	measureSince(c.stats, HistogramAppendMicros, start)
	return nil
}

// CheckNext reports whether e could be appended to the current tip, without
// appending it.
func (c *ChainIndex) CheckNext(e *Entry) error {
	return checkSuccessor(c.state.Load(), e)
}

// reset replaces the whole chain with the entries of s, which must already be
// a consistent chain. Used when a writer rebuilds its index from storage.
func (c *ChainIndex) reset(s *Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Store(&Snapshot{base: concat(s.base, s.tail)})
}

func checkSuccessor(cur *Snapshot, e *Entry) error {
	if e == nil {
		return fmt.Errorf("%w: nil entry", ErrSequenceViolation)
	}
	height := cur.Height()
	if int(e.Height) != height {
		return fmt.Errorf("%w: entry %s has height %d, want %d", ErrSequenceViolation, e.Hash, e.Height, height)
	}
	if tip := cur.Tip(); tip != nil && e.PrevHash != tip.Hash {
		return fmt.Errorf("%w: entry %s has parent %s, tip is %s", ErrSequenceViolation, e.Hash, e.PrevHash, tip.Hash)
	}
	return nil
}
