package chainview

// lock.go implements the advisory writer lock of an index directory.
//
// The writer holds an exclusive lock on dir/LOCK for its lifetime. Readers
// only probe it to report whether a writer is active; nothing in a reader's
// correctness depends on the answer.

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/aalhour/chainview/internal/logging"
	"github.com/aalhour/chainview/internal/vfs"
)

// LockFileName is the name of the advisory lock file in an index directory.
const LockFileName = "LOCK"

// LockCoordinator claims or probes the writer lock of one index directory.
type LockCoordinator struct {
	fs     FS
	path   string
	logger logging.Logger
}

// NewLockCoordinator returns the coordinator for dir. A nil fs selects the OS filesystem.
func NewLockCoordinator(fs FS, dir string) *LockCoordinator {
	if fs == nil {
		fs = vfs.Default()
	}
	return &LockCoordinator{
		fs:     fs,
		path:   filepath.Join(dir, LockFileName),
		logger: logging.Discard,
	}
}

func (l *LockCoordinator) withLogger(logger logging.Logger) *LockCoordinator {
	l.logger = logging.OrDefault(logger)
	return l
}

// Path returns the lock file path.
func (l *LockCoordinator) Path() string {
	return l.path
}

// Claim takes the exclusive writer lock without blocking. Close the returned
// Closer to release it. If another writer holds the lock, Claim returns an
// error wrapping ErrWriterLocked.
func (l *LockCoordinator) Claim() (io.Closer, error) {
	c, err := l.fs.Lock(l.path)
	if err != nil {
		if errors.Is(err, vfs.ErrLockHeld) {
			return nil, fmt.Errorf("%w: %s", ErrWriterLocked, l.path)
		}
		return nil, fmt.Errorf("chainview: lock %s: %w", l.path, err)
	}
	l.logger.Debugf("%sclaimed %s", logging.NSLock, l.path)
	return c, nil
}

// Probe reports whether a writer currently holds the lock. It never blocks
// and never takes the lock exclusively. A missing lock file reports false.
func (l *LockCoordinator) Probe() (bool, error) {
	held, err := l.fs.ProbeLock(l.path)
	if err != nil {
		return false, fmt.Errorf("chainview: probe %s: %w", l.path, err)
	}
	return held, nil
}
