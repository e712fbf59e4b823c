// fault_injection.go implements FaultInjectionFS, an FS wrapper that injects
// read, write and sync errors and can simulate a crashed filesystem.
//
// The index store and chain reader tests use it to prove that a failed load
// leaves the published view untouched and that torn log tails are recovered.
package vfs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrInjectedReadError is returned when a read error is injected.
	ErrInjectedReadError = errors.New("vfs: injected read error")

	// ErrInjectedWriteError is returned when a write error is injected.
	ErrInjectedWriteError = errors.New("vfs: injected write error")

	// ErrInjectedSyncError is returned when a sync error is injected.
	ErrInjectedSyncError = errors.New("vfs: injected sync error")
)

// FaultInjectionFS wraps an FS and allows injecting errors.
//
// An empty error path matches every file.
type FaultInjectionFS struct {
	base FS

	mu sync.RWMutex

	injectReadError  bool
	injectWriteError bool
	injectSyncError  bool
	readErrorPath    string
	writeErrorPath   string

	// When false, every mutating call fails. Used to simulate a crash.
	filesystemActive bool

	// Bytes written through the wrapper, per absolute path.
	written map[string]int64
}

// NewFaultInjectionFS creates a new fault-injecting filesystem wrapper.
func NewFaultInjectionFS(base FS) *FaultInjectionFS {
	return &FaultInjectionFS{
		base:             base,
		filesystemActive: true,
		written:          make(map[string]int64),
	}
}

// SetFilesystemActive enables or disables the filesystem.
func (fs *FaultInjectionFS) SetFilesystemActive(active bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.filesystemActive = active
}

// InjectReadError makes Open and Read fail for path.
func (fs *FaultInjectionFS) InjectReadError(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.injectReadError = true
	fs.readErrorPath = absPath(path)
}

// InjectWriteError makes Create, OpenAppend and Write fail for path.
func (fs *FaultInjectionFS) InjectWriteError(path string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.injectWriteError = true
	fs.writeErrorPath = absPath(path)
}

// InjectSyncError makes every Sync and SyncDir fail.
func (fs *FaultInjectionFS) InjectSyncError() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.injectSyncError = true
}

// ClearErrors removes every injected error.
func (fs *FaultInjectionFS) ClearErrors() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.injectReadError = false
	fs.injectWriteError = false
	fs.injectSyncError = false
	fs.readErrorPath = ""
	fs.writeErrorPath = ""
}

// BytesWritten returns the number of bytes written to path through fs.
func (fs *FaultInjectionFS) BytesWritten(path string) int64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.written[absPath(path)]
}

func absPath(path string) string {
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func (fs *FaultInjectionFS) readFails(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.injectReadError && (fs.readErrorPath == "" || fs.readErrorPath == path)
}

func (fs *FaultInjectionFS) writeFails(path string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	if !fs.filesystemActive {
		return true
	}
	return fs.injectWriteError && (fs.writeErrorPath == "" || fs.writeErrorPath == path)
}

func (fs *FaultInjectionFS) syncFails() bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.injectSyncError || !fs.filesystemActive
}

func (fs *FaultInjectionFS) active() bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.filesystemActive
}

// Create creates a file, subject to write error injection.
func (fs *FaultInjectionFS) Create(name string) (WritableFile, error) {
	path := absPath(name)
	if fs.writeFails(path) {
		return nil, ErrInjectedWriteError
	}
	f, err := fs.base.Create(name)
	if err != nil {
		return nil, err
	}
	return &faultWritableFile{fs: fs, f: f, path: path}, nil
}

// OpenAppend opens a file for appending, subject to write error injection.
func (fs *FaultInjectionFS) OpenAppend(name string) (WritableFile, error) {
	path := absPath(name)
	if fs.writeFails(path) {
		return nil, ErrInjectedWriteError
	}
	f, err := fs.base.OpenAppend(name)
	if err != nil {
		return nil, err
	}
	return &faultWritableFile{fs: fs, f: f, path: path}, nil
}

// Open opens a file for reading, subject to read error injection.
func (fs *FaultInjectionFS) Open(name string) (SequentialFile, error) {
	path := absPath(name)
	if fs.readFails(path) {
		return nil, ErrInjectedReadError
	}
	f, err := fs.base.Open(name)
	if err != nil {
		return nil, err
	}
	return &faultSequentialFile{fs: fs, f: f, path: path}, nil
}

// Rename renames a file. It fails while the filesystem is inactive.
func (fs *FaultInjectionFS) Rename(oldname, newname string) error {
	if !fs.active() {
		return ErrInjectedWriteError
	}
	return fs.base.Rename(oldname, newname)
}

// Remove removes a file. It fails while the filesystem is inactive.
func (fs *FaultInjectionFS) Remove(name string) error {
	if !fs.active() {
		return ErrInjectedWriteError
	}
	return fs.base.Remove(name)
}

// MkdirAll creates a directory. It fails while the filesystem is inactive.
func (fs *FaultInjectionFS) MkdirAll(path string, perm os.FileMode) error {
	if !fs.active() {
		return ErrInjectedWriteError
	}
	return fs.base.MkdirAll(path, perm)
}

func (fs *FaultInjectionFS) Stat(name string) (os.FileInfo, error) {
	return fs.base.Stat(name)
}

func (fs *FaultInjectionFS) Exists(name string) bool {
	return fs.base.Exists(name)
}

func (fs *FaultInjectionFS) ListDir(path string) ([]string, error) {
	return fs.base.ListDir(path)
}

func (fs *FaultInjectionFS) Lock(name string) (io.Closer, error) {
	return fs.base.Lock(name)
}

func (fs *FaultInjectionFS) ProbeLock(name string) (bool, error) {
	return fs.base.ProbeLock(name)
}

// SyncDir syncs a directory, subject to sync error injection.
func (fs *FaultInjectionFS) SyncDir(path string) error {
	if fs.syncFails() {
		return ErrInjectedSyncError
	}
	return fs.base.SyncDir(path)
}

// faultWritableFile wraps a WritableFile with error injection.
type faultWritableFile struct {
	fs   *FaultInjectionFS
	f    WritableFile
	path string
}

func (f *faultWritableFile) Write(p []byte) (int, error) {
	if f.fs.writeFails(f.path) {
		return 0, ErrInjectedWriteError
	}
	n, err := f.f.Write(p)
	f.fs.mu.Lock()
	f.fs.written[f.path] += int64(n)
	f.fs.mu.Unlock()
	return n, err
}

func (f *faultWritableFile) Close() error {
	return f.f.Close()
}

func (f *faultWritableFile) Sync() error {
	if f.fs.syncFails() {
		return ErrInjectedSyncError
	}
	return f.f.Sync()
}

func (f *faultWritableFile) Truncate(size int64) error {
	if f.fs.writeFails(f.path) {
		return ErrInjectedWriteError
	}
	return f.f.Truncate(size)
}

func (f *faultWritableFile) Size() (int64, error) {
	return f.f.Size()
}

// faultSequentialFile wraps a SequentialFile with read error injection.
type faultSequentialFile struct {
	fs   *FaultInjectionFS
	f    SequentialFile
	path string
}

func (f *faultSequentialFile) Read(p []byte) (int, error) {
	if f.fs.readFails(f.path) {
		return 0, ErrInjectedReadError
	}
	return f.f.Read(p)
}

func (f *faultSequentialFile) Close() error {
	return f.f.Close()
}

func (f *faultSequentialFile) Skip(n int64) error {
	if f.fs.readFails(f.path) {
		return ErrInjectedReadError
	}
	return f.f.Skip(n)
}
