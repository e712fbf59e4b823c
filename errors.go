package chainview

// errors.go defines the sentinel errors returned by chainview.

import (
	"errors"
	"fmt"

	"github.com/aalhour/chainview/internal/logging"
)

var (
	// ErrIndexLoad is returned when the persisted index cannot be loaded or
	// does not form a consistent chain. A ChainReader that fails to refresh
	// keeps its previously published view.
	ErrIndexLoad = errors.New("chainview: failed to load block index")

	// ErrSequenceViolation is returned by Append when the entry is not the
	// successor of the current tip.
	ErrSequenceViolation = errors.New("chainview: entry does not extend the tip")

	// ErrHandleMisuse is the panic value for a double release, a release of a
	// foreign handle, or use of a handle after its release. It wraps
	// logging.ErrFatal.
	ErrHandleMisuse = fmt.Errorf("chainview: chain handle misuse: %w", logging.ErrFatal)

	// ErrReaderClosed is returned by a closed ChainReader.
	ErrReaderClosed = errors.New("chainview: reader is closed")

	// ErrWriterClosed is returned by a closed Writer.
	ErrWriterClosed = errors.New("chainview: writer is closed")

	// ErrWriterLocked is returned by OpenWriter when another writer holds the
	// index directory's lock.
	ErrWriterLocked = errors.New("chainview: index is locked by another writer")

	// ErrInvalidOptions is returned for options that fail validation.
	ErrInvalidOptions = errors.New("chainview: invalid options")
)
