// bolt_store.go implements the bbolt backend.
//
// Bucket "entries" maps hash -> encoded entry. Bucket "order" maps a
// big-endian sequence number -> hash and is written only the first time a
// hash is seen, so Load returns entries in first-seen order.
package blockstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/aalhour/chainview/internal/blockindex"
	"github.com/aalhour/chainview/internal/logging"
)

// BoltFileName is the name of the bolt backend's file inside the store directory.
const BoltFileName = "blockindex.db"

var (
	bucketEntries = []byte("entries")
	bucketOrder   = []byte("order")
)

// BoltStore is the bbolt backend.
//
// A writable store keeps the database open, which holds bbolt's exclusive
// file lock. A read-only store opens the database for the duration of each
// Load, so it fails with a timeout while a writer has it open.
type BoltStore struct {
	path   string
	opts   Options
	logger logging.Logger

	mu     sync.Mutex
	db     *bbolt.DB // nil when read-only
	closed bool
}

// OpenBoltStore opens the bolt backend in dir.
func OpenBoltStore(dir string, opts Options) (*BoltStore, error) {
	opts.sanitize()
	s := &BoltStore{
		path:   filepath.Join(dir, BoltFileName),
		opts:   opts,
		logger: opts.Logger,
	}

	if opts.ReadOnly {
		if _, err := os.Stat(s.path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
			}
			return nil, fmt.Errorf("blockstore: stat %s: %w", s.path, err)
		}
		return s, nil
	}

	db, err := bbolt.Open(s.path, 0644, &bbolt.Options{Timeout: opts.BoltTimeout})
	if err != nil {
		return nil, fmt.Errorf("blockstore: open %s: %w", s.path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketEntries); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketOrder)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blockstore: init buckets: %w", err)
	}
	s.db = db
	s.logger.Infof("%sopened bolt store %s", logging.NSStore, s.path)
	return s, nil
}

// Append writes entries in one transaction.
func (s *BoltStore) Append(entries ...*blockindex.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.db == nil {
		return ErrReadOnly
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		eb := tx.Bucket(bucketEntries)
		ob := tx.Bucket(bucketOrder)
		for _, e := range entries {
			if e == nil {
				return errors.New("blockstore: nil entry")
			}
			key := e.Hash[:]
			if eb.Get(key) == nil {
				seq, err := ob.NextSequence()
				if err != nil {
					return err
				}
				if err := ob.Put(binary.BigEndian.AppendUint64(nil, seq), key); err != nil {
					return err
				}
			}
			if err := eb.Put(key, blockindex.EncodeEntry(e)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("blockstore: append %d entries: %w", len(entries), err)
	}
	return nil
}

// Load reads every entry in first-seen order.
func (s *BoltStore) Load() ([]*blockindex.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	db := s.db
	if db == nil {
		var err error
		db, err = bbolt.Open(s.path, 0644, &bbolt.Options{Timeout: s.opts.BoltTimeout, ReadOnly: true})
		if err != nil {
			return nil, fmt.Errorf("blockstore: open %s read-only: %w", s.path, err)
		}
		defer func() { _ = db.Close() }()
	}

	var entries []*blockindex.Entry
	err := db.View(func(tx *bbolt.Tx) error {
		eb := tx.Bucket(bucketEntries)
		ob := tx.Bucket(bucketOrder)
		if eb == nil || ob == nil {
			return fmt.Errorf("%w: %s: missing buckets", ErrCorrupted, s.path)
		}
		return ob.ForEach(func(seq, hash []byte) error {
			data := eb.Get(hash)
			if data == nil {
				return fmt.Errorf("%w: %s: order entry %x has no entry", ErrCorrupted, s.path, seq)
			}
			e, _, err := blockindex.DecodeEntry(data)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrCorrupted, s.path, err)
			}
			entries = append(entries, e)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Sync forces an fsync of the database file.
func (s *BoltStore) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.db == nil {
		return nil
	}
	return s.db.Sync()
}

// Close closes the database.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) Backend() Backend { return BackendBolt }

func (s *BoltStore) Path() string { return s.path }
