package chainview

// writer.go implements Writer, the single owner of an index directory.
//
// A Writer holds the directory's LOCK, persists entries to the configured
// store and maintains the ChainIndex of its active chain. On open the index
// is rebuilt from the best fully validated chain found in storage.

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aalhour/chainview/internal/blockstore"
	"github.com/aalhour/chainview/internal/logging"
)

// Writer appends entries to an index directory. Its methods are safe for
// concurrent use, but only one Writer may hold a directory at a time.
type Writer struct {
	path   string
	opts   *Options
	logger logging.Logger
	stats  Statistics

	lock  io.Closer
	store blockstore.Store
	index *ChainIndex

	mu     sync.Mutex
	closed bool
}

// OpenWriter opens the index directory at path for writing.
//
// It returns an error wrapping ErrWriterLocked if another writer holds the
// directory. opts.Source is ignored.
func OpenWriter(path string, opts *Options) (*Writer, error) {
	if opts != nil {
		if err := opts.Validate(); err != nil {
			return nil, err
		}
	}
	opts = opts.sanitized()
	logger := opts.Logger

	if opts.CreateIfMissing {
		if err := opts.FS.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("chainview: create %s: %w", path, err)
		}
	} else if !opts.FS.Exists(path) {
		return nil, fmt.Errorf("chainview: %s does not exist (CreateIfMissing is false)", path)
	}

	lock, err := NewLockCoordinator(opts.FS, path).withLogger(logger).Claim()
	if err != nil {
		return nil, err
	}

	w := &Writer{
		path:   path,
		opts:   opts,
		logger: logger,
		stats:  opts.Statistics,
		lock:   lock,
		index:  newChainIndex(opts.MaxTailSize, logger, opts.Statistics),
	}
	if err := w.open(); err != nil {
		_ = lock.Close()
		return nil, err
	}
	return w, nil
}

func (w *Writer) open() error {
	backend, err := resolveBackend(w.opts.FS, w.path, w.opts.Backend, w.logger)
	if err != nil {
		return err
	}
	if backend != w.opts.Backend {
		w.logger.Infof("%susing recorded backend %s instead of %s", logging.NSWriter, backend, w.opts.Backend)
		w.opts.Backend = backend
	}
	if err := WriteOptionsFile(w.opts.FS, w.path, w.opts); err != nil {
		return fmt.Errorf("chainview: write OPTIONS: %w", err)
	}

	store, err := blockstore.Open(w.path, w.opts.storeOptions(backend, false))
	if err != nil {
		return err
	}

	entries, err := store.Load()
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("%w: %w", ErrIndexLoad, err)
	}
	snap, _, err := buildValidatedView(entries)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("%w: %w", ErrIndexLoad, err)
	}
	w.index.reset(snap)
	w.store = store

	w.logger.Infof("%sopened %s backend=%s entries=%d height=%d",
		logging.NSWriter, w.path, backend, len(entries), snap.Height())
	return nil
}

// WriteEntries persists entries without touching the ChainIndex. Use it for
// header-only entries, status updates and side branches.
func (w *Writer) WriteEntries(entries ...*Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	return w.persist(entries...)
}

// Append persists e and then appends it to the ChainIndex. e must extend the
// current tip; otherwise Append returns an error wrapping
// ErrSequenceViolation and nothing is persisted.
func (w *Writer) Append(e *Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if err := w.index.CheckNext(e); err != nil {
		recordTick(w.stats, TickerSequenceViolations, 1)
		return err
	}
	if err := w.persist(e); err != nil {
		return err
	}
	return w.index.Append(e)
}

func (w *Writer) persist(entries ...*Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := w.store.Append(entries...); err != nil {
		w.logger.Errorf("%sappend of %d entries failed: %v", logging.NSWriter, len(entries), err)
		return err
	}
	if w.opts.SyncWrites {
		if err := w.store.Sync(); err != nil {
			return err
		}
	}
	recordTick(w.stats, TickerEntriesPersisted, uint64(len(entries)))
	return nil
}

// Snapshot returns the current view of the writer's chain.
func (w *Writer) Snapshot() *Snapshot {
	return w.index.GetSnapshot()
}

// Index returns the writer's ChainIndex. Appending to it directly bypasses
// persistence.
func (w *Writer) Index() *ChainIndex {
	return w.index
}

// Path returns the index directory.
func (w *Writer) Path() string {
	return w.path
}

// Backend returns the storage backend in use.
func (w *Writer) Backend() Backend {
	return w.opts.Backend
}

// Sync makes all persisted entries durable.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	return w.store.Sync()
}

// Close syncs and closes the store, then releases the directory lock.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	start := time.Now()
	var firstErr error
	if err := w.store.Sync(); err != nil {
		firstErr = err
	}
	if err := w.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.lock.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	w.logger.Infof("%sclosed %s at height %d in %s", logging.NSWriter, w.path, w.index.Height(), time.Since(start))
	return firstErr
}
