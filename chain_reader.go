package chainview

// chain_reader.go implements ChainReader, which rebuilds the best validated
// chain from persisted entries and serves it through counted handles.
//
// Each load filters entries to those at FullyValidated, picks the one with
// the most cumulative work as the tip, links it back to height 0 through
// PrevHash, and publishes the result as a new view with a single atomic swap.
// Handles acquired before a publish keep the old view alive until released.

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aalhour/chainview/internal/blockstore"
	"github.com/aalhour/chainview/internal/logging"
)

// ChainReader serves validated chain views loaded from an index directory
// or an IndexSource. It is safe for concurrent use.
type ChainReader struct {
	path   string
	opts   *Options
	logger logging.Logger
	stats  Statistics

	source IndexSource
	store  blockstore.Store // owned; nil when opts.Source is set
	lock   *LockCoordinator

	current atomic.Pointer[chainView]
	nextID  atomic.Uint64

	// Serializes loads. GetValidatedChain never takes it.
	refreshMu sync.Mutex

	closed      atomic.Bool
	outstanding atomic.Int64
}

// storeSource adapts a blockstore.Store to IndexSource.
type storeSource struct {
	store blockstore.Store
}

func (s storeSource) LoadBlockIndex() ([]*Entry, error) {
	return s.store.Load()
}

// OpenReader opens a reader on the index directory at path and loads the
// initial view. If loading fails, OpenReader returns an error wrapping
// ErrIndexLoad and no reader.
//
// When opts.Source is set it is used instead of the directory's store;
// path is then only used for the advisory lock probe.
func OpenReader(path string, opts *Options) (*ChainReader, error) {
	if opts != nil {
		if err := opts.Validate(); err != nil {
			return nil, err
		}
	}
	opts = opts.sanitized()

	r := &ChainReader{
		path:   path,
		opts:   opts,
		logger: opts.Logger,
		stats:  opts.Statistics,
		lock:   NewLockCoordinator(opts.FS, path).withLogger(opts.Logger),
	}

	if opts.Source != nil {
		r.source = opts.Source
	} else {
		backend, err := resolveBackend(opts.FS, path, opts.Backend, r.logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIndexLoad, err)
		}
		store, err := blockstore.Open(path, opts.storeOptions(backend, true))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIndexLoad, err)
		}
		r.store = store
		r.source = storeSource{store: store}
	}

	if active := r.WriterActive(); active {
		r.logger.Infof("%swriter active on %s", logging.NSReader, path)
	}

	if err := r.UpdateValidatedChain(); err != nil {
		if r.store != nil {
			_ = r.store.Close()
		}
		return nil, err
	}
	return r, nil
}

// UpdateValidatedChain reloads every entry, selects the validated entry
// with the most work and publishes the chain ending at it.
//
// Ties on work go to the entry loaded first. If no entry is fully validated
// the published view is empty. On failure the current view is unchanged and
// the error wraps ErrIndexLoad.
func (r *ChainReader) UpdateValidatedChain() error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	if r.closed.Load() {
		return ErrReaderClosed
	}

	start := time.Now()
	entries, err := r.source.LoadBlockIndex()
	if err != nil {
		recordTick(r.stats, TickerRefreshFailures, 1)
		r.logger.Warnf("%sload failed, keeping view %d: %v", logging.NSReader, r.currentID(), err)
		return fmt.Errorf("%w: %w", ErrIndexLoad, err)
	}
	recordTick(r.stats, TickerEntriesLoaded, uint64(len(entries)))

	snap, filtered, err := buildValidatedView(entries)
	if err != nil {
		recordTick(r.stats, TickerRefreshFailures, 1)
		r.logger.Warnf("%sinconsistent index, keeping view %d: %v", logging.NSReader, r.currentID(), err)
		return fmt.Errorf("%w: %w", ErrIndexLoad, err)
	}
	recordTick(r.stats, TickerEntriesFiltered, uint64(filtered))

	v := newChainView(r, r.nextID.Add(1), snap)
	if old := r.current.Swap(v); old != nil {
		old.unref()
	}

	recordTick(r.stats, TickerViewsPublished, 1)
	measure(r.stats, HistogramViewHeight, uint64(snap.Height()))
	measureSince(r.stats, HistogramRefreshMicros, start)
	r.logger.Infof("%spublished view %d height=%d loaded=%d filtered=%d",
		logging.NSReader, v.id, snap.Height(), len(entries), filtered)
	return nil
}

// Refresh reloads and republishes the chain. Handles acquired before Refresh
// keep observing their view; handles acquired after it returns observe the
// new one. On failure nothing changes.
func (r *ChainReader) Refresh() error {
	if err := r.UpdateValidatedChain(); err != nil {
		return err
	}
	recordTick(r.stats, TickerRefreshes, 1)
	return nil
}

// GetValidatedChain returns a handle on the current view. The caller must
// release it exactly once.
func (r *ChainReader) GetValidatedChain() (*ChainHandle, error) {
	for {
		if r.closed.Load() {
			return nil, ErrReaderClosed
		}
		v := r.current.Load()
		if v == nil {
			return nil, ErrReaderClosed
		}
		// The view may be retired between Load and acquire; the next Load
		// then sees its replacement.
		if v.tryAcquire() {
			r.outstanding.Add(1)
			recordTick(r.stats, TickerHandlesAcquired, 1)
			return &ChainHandle{view: v}, nil
		}
	}
}

// Release releases h, which must have been acquired from r.
func (r *ChainReader) Release(h *ChainHandle) {
	if h == nil {
		r.misuse("release of nil handle")
	}
	if h.view == nil || h.view.reader != r {
		r.misuse("release of a handle not issued by this reader")
	}
	h.Release()
}

// WriterActive reports whether a writer holds the index directory's lock.
// The answer is advisory; probe errors report false.
func (r *ChainReader) WriterActive() bool {
	recordTick(r.stats, TickerWriterProbes, 1)
	held, err := r.lock.Probe()
	if err != nil {
		r.logger.Debugf("%s%v", logging.NSLock, err)
		return false
	}
	return held
}

// OutstandingHandles returns the number of handles not yet released.
func (r *ChainReader) OutstandingHandles() int64 {
	return r.outstanding.Load()
}

// ViewID returns the id of the current view, or 0 once closed.
func (r *ChainReader) ViewID() uint64 {
	return r.currentID()
}

// Path returns the index directory.
func (r *ChainReader) Path() string {
	return r.path
}

// Close drops the reader's reference on the current view and closes the
// store. Outstanding handles stay readable and must still be released.
func (r *ChainReader) Close() error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if old := r.current.Swap(nil); old != nil {
		old.unref()
	}
	if n := r.outstanding.Load(); n > 0 {
		r.logger.Warnf("%sclosed with %d outstanding handles", logging.NSReader, n)
	}
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

func (r *ChainReader) currentID() uint64 {
	if v := r.current.Load(); v != nil {
		return v.id
	}
	return 0
}

// misuse reports a handle lifetime violation. It does not return.
func (r *ChainReader) misuse(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Fatalf("%s%s", logging.NSReader, msg)
	panic(fmt.Errorf("%w: %s", ErrHandleMisuse, msg))
}

// buildValidatedView selects the best fully validated entry and returns the
// chain from genesis to it, plus the number of entries filtered out.
func buildValidatedView(entries []*Entry) (*Snapshot, int, error) {
	byHash := make(map[Hash]*Entry, len(entries))
	var best *Entry
	filtered := 0
	for _, e := range entries {
		if e == nil {
			continue
		}
		byHash[e.Hash] = e
		if !e.Status.IsValid(FullyValidated) {
			filtered++
			continue
		}
		// Strictly greater: on equal work the first loaded stays.
		if best == nil || e.Work().Cmp(best.Work()) > 0 {
			best = e
		}
	}
	if best == nil {
		return emptySnapshot, filtered, nil
	}

	if best.Height < 0 || int(best.Height) >= len(entries) {
		return nil, filtered, fmt.Errorf("tip %s at height %d cannot be linked to genesis from %d entries",
			best.Hash, best.Height, len(entries))
	}
	chain := make(segment, int(best.Height)+1)
	cur := best
	for h := int(best.Height); ; h-- {
		if int(cur.Height) != h {
			return nil, filtered, fmt.Errorf("entry %s has height %d, expected %d below tip %s",
				cur.Hash, cur.Height, h, best.Hash)
		}
		chain[h] = cur
		if h == 0 {
			break
		}
		parent, ok := byHash[cur.PrevHash]
		if !ok {
			return nil, filtered, fmt.Errorf("missing ancestor %s of %s at height %d",
				cur.PrevHash, cur.Hash, h-1)
		}
		cur = parent
	}
	return &Snapshot{base: chain}, filtered, nil
}
