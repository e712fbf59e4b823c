// Package blockstore persists block-index entries.
//
// Two backends implement Store:
//   - "log": an append-only record log (BLOCKINDEX) framed by internal/indexlog,
//     with compressed batches and a per-batch digest.
//   - "bolt": a bbolt database (blockindex.db) keyed by hash with a load-order
//     bucket.
//
// Each backend can be opened read-only. A read-only store re-reads the
// persisted data on every Load, so a long-lived reader observes entries that
// a writer in another process appended after the store was opened.
package blockstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/aalhour/chainview/internal/blockindex"
	"github.com/aalhour/chainview/internal/checksum"
	"github.com/aalhour/chainview/internal/compression"
	"github.com/aalhour/chainview/internal/logging"
	"github.com/aalhour/chainview/internal/vfs"
)

var (
	// ErrCorrupted is returned when persisted data cannot be decoded.
	ErrCorrupted = errors.New("blockstore: corrupted index")

	// ErrReadOnly is returned by Append on a read-only store.
	ErrReadOnly = errors.New("blockstore: store is read-only")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("blockstore: store is closed")

	// ErrNotFound is returned when a read-only store finds no data at dir.
	ErrNotFound = errors.New("blockstore: index not found")
)

// Store persists entries and loads them back in first-seen order.
//
// Appending an entry whose hash is already stored replaces its content (a
// status upgrade, say) without changing its position in the load order.
type Store interface {
	// Append persists entries. It is a no-op for zero entries.
	Append(entries ...*blockindex.Entry) error

	// Load returns every persisted entry.
	Load() ([]*blockindex.Entry, error)

	// Sync makes appended entries durable.
	Sync() error

	// Close releases the store's resources.
	Close() error

	// Backend returns the backend kind.
	Backend() Backend

	// Path returns the file backing the store.
	Path() string
}

// Backend names a Store implementation.
type Backend string

const (
	BackendLog  Backend = "log"
	BackendBolt Backend = "bolt"
)

// ParseBackend parses a backend name.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendLog, BackendBolt:
		return Backend(s), nil
	default:
		return "", fmt.Errorf("blockstore: unknown backend %q", s)
	}
}

// DefaultBoltTimeout bounds how long a read-only bolt open waits for the writer.
const DefaultBoltTimeout = 100 * time.Millisecond

// Options configures a Store.
type Options struct {
	// Backend selects the implementation. Default: BackendLog.
	Backend Backend

	// FS is used by the log backend. Default: vfs.Default().
	// The bolt backend always uses the OS filesystem.
	FS vfs.FS

	// Compression applied to new log batches.
	Compression compression.Type

	// Checksum appended to new log batches. Only used when creating a log;
	// an existing log keeps the type recorded in its header.
	Checksum checksum.Type

	// VerifyChecksums enables record framing checksum verification on load.
	VerifyChecksums bool

	// ReadOnly opens the store for loading only.
	ReadOnly bool

	// BoltTimeout is the bbolt file-lock timeout. Default: DefaultBoltTimeout.
	BoltTimeout time.Duration

	Logger logging.Logger
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		Backend:         BackendLog,
		Compression:     compression.SnappyCompression,
		Checksum:        checksum.TypeXXH3,
		VerifyChecksums: true,
		BoltTimeout:     DefaultBoltTimeout,
	}
}

func (o *Options) sanitize() {
	if o.Backend == "" {
		o.Backend = BackendLog
	}
	if o.FS == nil {
		o.FS = vfs.Default()
	}
	if o.BoltTimeout <= 0 {
		o.BoltTimeout = DefaultBoltTimeout
	}
	o.Logger = logging.OrDefault(o.Logger)
}

// Open opens the store selected by opts.Backend in dir.
func Open(dir string, opts Options) (Store, error) {
	opts.sanitize()
	switch opts.Backend {
	case BackendLog:
		return OpenLogStore(dir, opts)
	case BackendBolt:
		return OpenBoltStore(dir, opts)
	default:
		return nil, fmt.Errorf("blockstore: unknown backend %q", opts.Backend)
	}
}
