package chainview

// options.go defines the configuration of writers and readers.

import (
	"fmt"
	"time"

	"github.com/aalhour/chainview/internal/blockstore"
	"github.com/aalhour/chainview/internal/checksum"
	"github.com/aalhour/chainview/internal/compression"
	"github.com/aalhour/chainview/internal/logging"
	"github.com/aalhour/chainview/internal/vfs"
)

// FS is the filesystem interface used by chainview.
type FS = vfs.FS

// Logger is the logging interface used by chainview.
type Logger = logging.Logger

// CompressionType selects the compression of log-backend batches.
type CompressionType = compression.Type

// Compression types.
const (
	NoCompression     = compression.NoCompression
	SnappyCompression = compression.SnappyCompression
	LZ4Compression    = compression.LZ4Compression
	LZ4HCCompression  = compression.LZ4HCCompression
	ZstdCompression   = compression.ZstdCompression
)

// ChecksumType selects the digest appended to log-backend batches.
type ChecksumType = checksum.Type

// Checksum types.
const (
	ChecksumNone   = checksum.TypeNoChecksum
	ChecksumCRC32C = checksum.TypeCRC32C
	ChecksumXXH3   = checksum.TypeXXH3
)

// Backend selects the persistence backend.
type Backend = blockstore.Backend

// Storage backends.
const (
	BackendLog  = blockstore.BackendLog
	BackendBolt = blockstore.BackendBolt
)

// IndexSource supplies every persisted entry to a ChainReader.
type IndexSource interface {
	// LoadBlockIndex returns all persisted entries, each with its status and
	// cumulative work, or an error.
	LoadBlockIndex() ([]*Entry, error)
}

// Options configures a Writer or a ChainReader.
type Options struct {
	// CreateIfMissing creates the index directory on OpenWriter.
	// Default: true
	CreateIfMissing bool

	// MaxTailSize is the tail length at which ChainIndex merges into the base.
	// Default: DefaultMaxTailSize
	MaxTailSize int

	// Backend is the storage backend used by a new index. Readers and
	// reopened writers follow the backend recorded in the OPTIONS file.
	// Default: BackendLog
	Backend Backend

	// Compression for log-backend batches.
	// Default: SnappyCompression
	Compression CompressionType

	// Checksum appended to log-backend batches.
	// Default: ChecksumXXH3
	Checksum ChecksumType

	// VerifyChecksums verifies record checksums whenever the log is read.
	// Default: true
	VerifyChecksums bool

	// SyncWrites syncs the store after every Writer append.
	// Default: false
	SyncWrites bool

	// BoltTimeout bounds how long the bolt backend waits for its file lock.
	// Default: 100ms
	BoltTimeout time.Duration

	// Source replaces the on-disk store as the ChainReader's entry source.
	// Ignored by OpenWriter.
	Source IndexSource

	// FS is the filesystem. Default: the OS filesystem.
	FS FS

	// Logger receives diagnostic messages. Default: WARN-level stderr logger.
	Logger Logger

	// Statistics collects metrics if non-nil.
	Statistics Statistics
}

// DefaultOptions returns the default options.
func DefaultOptions() *Options {
	return &Options{
		CreateIfMissing: true,
		MaxTailSize:     DefaultMaxTailSize,
		Backend:         BackendLog,
		Compression:     SnappyCompression,
		Checksum:        ChecksumXXH3,
		VerifyChecksums: true,
		BoltTimeout:     blockstore.DefaultBoltTimeout,
	}
}

// Validate reports whether the options are usable.
func (o *Options) Validate() error {
	if o.MaxTailSize < 0 {
		return fmt.Errorf("%w: max_tail_size %d is negative", ErrInvalidOptions, o.MaxTailSize)
	}
	if o.Backend != "" {
		if _, err := blockstore.ParseBackend(string(o.Backend)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
	}
	if !o.Compression.IsSupported() {
		return fmt.Errorf("%w: unsupported compression %s", ErrInvalidOptions, o.Compression)
	}
	if o.Checksum.Size() < 0 {
		return fmt.Errorf("%w: unsupported checksum %s", ErrInvalidOptions, o.Checksum)
	}
	if o.BoltTimeout < 0 {
		return fmt.Errorf("%w: bolt_timeout %s is negative", ErrInvalidOptions, o.BoltTimeout)
	}
	return nil
}

// sanitized returns a copy of o with defaults filled in. A nil o yields
// DefaultOptions().
func (o *Options) sanitized() *Options {
	if o == nil {
		o = DefaultOptions()
	}
	out := *o
	if out.MaxTailSize <= 0 {
		out.MaxTailSize = DefaultMaxTailSize
	}
	if out.Backend == "" {
		out.Backend = BackendLog
	}
	if out.BoltTimeout <= 0 {
		out.BoltTimeout = blockstore.DefaultBoltTimeout
	}
	if out.FS == nil {
		out.FS = vfs.Default()
	}
	out.Logger = logging.OrDefault(out.Logger)
	return &out
}

// storeOptions derives the blockstore options for backend.
func (o *Options) storeOptions(backend Backend, readOnly bool) blockstore.Options {
	return blockstore.Options{
		Backend:         backend,
		FS:              o.FS,
		Compression:     o.Compression,
		Checksum:        o.Checksum,
		VerifyChecksums: o.VerifyChecksums,
		ReadOnly:        readOnly,
		BoltTimeout:     o.BoltTimeout,
		Logger:          o.Logger,
	}
}
