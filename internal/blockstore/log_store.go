// log_store.go implements the append-only log backend.
//
// Logical records (each framed by indexlog):
//
//	header: tag=1 | "CHAINIDX" | format_version(1) | checksum_type(1)
//	batch:  tag=2 | compression_type(1) | compressed body | digest trailer
//
// A batch body is uvarint(count) followed by count encoded entries. The
// digest trailer covers the uncompressed body; its size follows from the
// checksum type in the header.
package blockstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/aalhour/chainview/internal/blockindex"
	"github.com/aalhour/chainview/internal/checksum"
	"github.com/aalhour/chainview/internal/compression"
	"github.com/aalhour/chainview/internal/indexlog"
	"github.com/aalhour/chainview/internal/logging"
	"github.com/aalhour/chainview/internal/vfs"
)

// LogFileName is the name of the log backend's file inside the store directory.
const LogFileName = "BLOCKINDEX"

// LogFormatVersion is the log format version written in the header record.
const LogFormatVersion = 1

const (
	tagHeader byte = 1
	tagBatch  byte = 2
)

var logMagic = []byte("CHAINIDX")

// LogStore is the log backend.
type LogStore struct {
	fs     vfs.FS
	path   string
	opts   Options
	logger logging.Logger

	mu       sync.Mutex
	file     vfs.WritableFile // nil when read-only
	w        *indexlog.Writer
	checksum checksum.Type // digest type of the open log
	closed   bool
}

// OpenLogStore opens the log backend in dir.
//
// A writable open creates the log if missing and truncates a torn tail left
// by an interrupted append. A read-only open fails with ErrNotFound when the
// log does not exist.
func OpenLogStore(dir string, opts Options) (*LogStore, error) {
	opts.sanitize()
	s := &LogStore{
		fs:       opts.FS,
		path:     filepath.Join(dir, LogFileName),
		opts:     opts,
		logger:   opts.Logger,
		checksum: opts.Checksum,
	}
	if s.checksum.Size() < 0 {
		return nil, fmt.Errorf("blockstore: unsupported checksum type %s", s.checksum)
	}
	if !opts.Compression.IsSupported() {
		return nil, fmt.Errorf("blockstore: unsupported compression type %s", opts.Compression)
	}

	exists := s.fs.Exists(s.path)
	if opts.ReadOnly {
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return s, nil
	}

	if !exists {
		if err := s.create(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err := s.reopen(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LogStore) create() error {
	f, err := s.fs.Create(s.path)
	if err != nil {
		return fmt.Errorf("blockstore: create %s: %w", s.path, err)
	}
	s.file = f
	s.w = indexlog.NewWriter(f, 0)
	if _, err := s.w.AddRecord(encodeHeader(s.checksum)); err != nil {
		_ = f.Close()
		return fmt.Errorf("blockstore: write header: %w", err)
	}
	if err := s.w.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("blockstore: sync header: %w", err)
	}
	s.logger.Infof("%screated log %s checksum=%s compression=%s",
		logging.NSStore, s.path, s.checksum, s.opts.Compression)
	return nil
}

// reopen scans the existing log, drops any torn tail and positions the writer.
func (s *LogStore) reopen() error {
	scan, err := s.scan()
	if err != nil {
		return err
	}
	if !scan.haveHeader {
		// Crashed before the header made it to disk.
		s.logger.Warnf("%slog %s has no header, recreating", logging.NSStore, s.path)
		return s.create()
	}
	if scan.checksum != s.checksum {
		s.logger.Infof("%slog %s keeps checksum type %s (requested %s)",
			logging.NSStore, s.path, scan.checksum, s.checksum)
		s.checksum = scan.checksum
	}

	f, err := s.fs.OpenAppend(s.path)
	if err != nil {
		return fmt.Errorf("blockstore: open %s: %w", s.path, err)
	}
	size, err := f.Size()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("blockstore: stat %s: %w", s.path, err)
	}
	if size > scan.end {
		s.logger.Warnf("%struncating torn tail of %s: %d -> %d bytes",
			logging.NSStore, s.path, size, scan.end)
		if err := f.Truncate(scan.end); err != nil {
			_ = f.Close()
			return fmt.Errorf("blockstore: truncate %s: %w", s.path, err)
		}
	}
	s.file = f
	s.w = indexlog.NewWriter(f, scan.end)
	s.logger.Debugf("%sreopened log %s: %d entries, %d bytes",
		logging.NSStore, s.path, len(scan.entries), scan.end)
	return nil
}

// Append writes entries as one batch record.
func (s *LogStore) Append(entries ...*blockindex.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.file == nil {
		return ErrReadOnly
	}

	rec, err := encodeBatch(entries, s.opts.Compression, s.checksum)
	if err != nil {
		return err
	}
	if _, err := s.w.AddRecord(rec); err != nil {
		return fmt.Errorf("blockstore: append %d entries: %w", len(entries), err)
	}
	return nil
}

// Load reads the whole log.
func (s *LogStore) Load() ([]*blockindex.Entry, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	scan, err := s.scan()
	if err != nil {
		return nil, err
	}
	return scan.entries, nil
}

// Sync flushes the log file to stable storage.
func (s *LogStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.w == nil {
		return nil
	}
	return s.w.Sync()
}

// Close syncs and closes the log.
func (s *LogStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.file == nil {
		return nil
	}
	syncErr := s.w.Sync()
	closeErr := s.file.Close()
	if syncErr != nil {
		return syncErr
	}
	return closeErr
}

func (s *LogStore) Backend() Backend { return BackendLog }

func (s *LogStore) Path() string { return s.path }

// Size returns the number of bytes of complete records, or 0 when read-only.
func (s *LogStore) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return 0
	}
	return s.w.Offset()
}

type scanResult struct {
	entries    []*blockindex.Entry
	haveHeader bool
	checksum   checksum.Type
	end        int64 // offset after the last complete record
}

// scan reads every complete record. A torn final record is ignored; any
// other damage fails the scan with ErrCorrupted.
func (s *LogStore) scan() (*scanResult, error) {
	f, err := s.fs.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("blockstore: open %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	res := &scanResult{}
	index := make(map[blockindex.Hash]int)
	r := indexlog.NewReader(f, s.opts.VerifyChecksums)
	for {
		rec, err := r.ReadRecord()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, indexlog.ErrCorruptedRecord) || errors.Is(err, indexlog.ErrInvalidRecordType) {
				return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, s.path, err)
			}
			return nil, fmt.Errorf("blockstore: read %s: %w", s.path, err)
		}

		if !res.haveHeader {
			ck, err := decodeHeader(rec)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, s.path, err)
			}
			res.haveHeader = true
			res.checksum = ck
			continue
		}

		batch, err := decodeBatch(rec, res.checksum)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, s.path, err)
		}
		for _, e := range batch {
			if i, ok := index[e.Hash]; ok {
				res.entries[i] = e
				continue
			}
			index[e.Hash] = len(res.entries)
			res.entries = append(res.entries, e)
		}
	}
	res.end = r.LastRecordEnd()
	return res, nil
}

func encodeHeader(ck checksum.Type) []byte {
	rec := make([]byte, 0, 1+len(logMagic)+2)
	rec = append(rec, tagHeader)
	rec = append(rec, logMagic...)
	return append(rec, LogFormatVersion, byte(ck))
}

func decodeHeader(rec []byte) (checksum.Type, error) {
	if len(rec) != 1+len(logMagic)+2 || rec[0] != tagHeader {
		return 0, errors.New("missing header record")
	}
	if string(rec[1:1+len(logMagic)]) != string(logMagic) {
		return 0, errors.New("bad magic")
	}
	if v := rec[1+len(logMagic)]; v != LogFormatVersion {
		return 0, fmt.Errorf("unsupported format version %d", v)
	}
	ck := checksum.Type(rec[len(rec)-1])
	if ck.Size() < 0 {
		return 0, fmt.Errorf("unsupported checksum type %d", uint8(ck))
	}
	return ck, nil
}

func encodeBatch(entries []*blockindex.Entry, comp compression.Type, ck checksum.Type) ([]byte, error) {
	body := binary.AppendUvarint(make([]byte, 0, 16+96*len(entries)), uint64(len(entries)))
	for _, e := range entries {
		if e == nil {
			return nil, errors.New("blockstore: nil entry")
		}
		body = blockindex.AppendEntry(body, e)
	}

	compressed, err := compression.Compress(comp, body)
	if err != nil {
		return nil, fmt.Errorf("blockstore: compress batch: %w", err)
	}
	rec := make([]byte, 0, 2+len(compressed)+ck.Size())
	rec = append(rec, tagBatch, byte(comp))
	rec = append(rec, compressed...)
	return ck.Append(rec, body), nil
}

func decodeBatch(rec []byte, ck checksum.Type) ([]*blockindex.Entry, error) {
	trailer := ck.Size()
	if len(rec) < 2+trailer || rec[0] != tagBatch {
		return nil, errors.New("malformed batch record")
	}
	comp := compression.Type(rec[1])
	payload := rec[2 : len(rec)-trailer]

	body, err := compression.Decompress(comp, payload)
	if err != nil {
		return nil, fmt.Errorf("decompress batch: %w", err)
	}
	if trailer > 0 && !ck.Verify(body, rec[len(rec)-trailer:]) {
		return nil, fmt.Errorf("batch %s digest mismatch", ck)
	}

	count, n := binary.Uvarint(body)
	if n <= 0 {
		return nil, errors.New("bad batch count")
	}
	body = body[n:]
	entries := make([]*blockindex.Entry, 0, min(count, uint64(len(body))))
	for i := uint64(0); i < count; i++ {
		e, used, err := blockindex.DecodeEntry(body)
		if err != nil {
			return nil, fmt.Errorf("entry %d of %d: %w", i, count, err)
		}
		entries = append(entries, e)
		body = body[used:]
	}
	if len(body) != 0 {
		return nil, fmt.Errorf("%d trailing bytes after batch", len(body))
	}
	return entries, nil
}
