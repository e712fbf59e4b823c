// reader.go implements block-index log reading.
//
// Reader reads records from a log, reassembling records that span block
// boundaries. A record cut off by the end of the file, including a partially
// written multi-fragment record, ends the log with io.EOF. LastRecordEnd then
// reports where the valid prefix ends so a writer can truncate the torn tail.
package indexlog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/aalhour/chainview/internal/checksum"
)

var (
	// ErrCorruptedRecord indicates a record with an invalid checksum or framing.
	ErrCorruptedRecord = errors.New("indexlog: corrupted record")

	// ErrInvalidRecordType indicates an unrecognized record type.
	ErrInvalidRecordType = errors.New("indexlog: invalid record type")
)

// Reader reads records from a block-index log.
type Reader struct {
	src          io.Reader
	checksum     bool   // Whether to verify checksums
	backingStore []byte // Buffer for reading blocks
	buffer       []byte // Current unconsumed data in backingStore
	eof          bool   // Whether we've hit EOF

	blockStart    int64 // Absolute offset of backingStore[0]
	blockLen      int   // Bytes of backingStore filled by the last read
	lastRecordEnd int64 // Absolute offset after the last complete record

	fragments          []byte
	inFragmentedRecord bool
}

// NewReader creates a new log reader.
func NewReader(src io.Reader, verifyChecksum bool) *Reader {
	return &Reader{
		src:          src,
		checksum:     verifyChecksum,
		backingStore: make([]byte, BlockSize),
	}
}

// ReadRecord reads the next logical record from the log.
// Returns nil and io.EOF when no more complete records are available.
//
// The returned slice is owned by the caller.
func (r *Reader) ReadRecord() ([]byte, error) {
	r.fragments = r.fragments[:0]
	r.inFragmentedRecord = false

	for {
		recordType, fragment, err := r.readPhysicalRecord()
		if err != nil {
			return nil, err
		}

		switch recordType {
		case FullType:
			if r.inFragmentedRecord {
				return nil, r.corruption("full record inside fragmented record")
			}
			r.lastRecordEnd = r.pos()
			return append([]byte(nil), fragment...), nil

		case FirstType:
			if r.inFragmentedRecord {
				return nil, r.corruption("first record inside fragmented record")
			}
			r.fragments = append(r.fragments[:0], fragment...)
			r.inFragmentedRecord = true

		case MiddleType:
			if !r.inFragmentedRecord {
				return nil, r.corruption("middle record without first record")
			}
			r.fragments = append(r.fragments, fragment...)

		case LastType:
			if !r.inFragmentedRecord {
				return nil, r.corruption("last record without first record")
			}
			r.fragments = append(r.fragments, fragment...)
			r.inFragmentedRecord = false
			r.lastRecordEnd = r.pos()
			return append([]byte(nil), r.fragments...), nil

		default:
			return nil, fmt.Errorf("%w: %d at offset %d", ErrInvalidRecordType, recordType, r.pos())
		}
	}
}

// readPhysicalRecord reads a single physical record from the log.
// The returned payload aliases the block buffer.
func (r *Reader) readPhysicalRecord() (RecordType, []byte, error) {
	for {
		if len(r.buffer) < HeaderSize {
			// Fewer than HeaderSize bytes left in a block are padding.
			if r.eof {
				return 0, nil, io.EOF
			}

			r.blockStart += int64(r.blockLen)
			n, err := io.ReadFull(r.src, r.backingStore)
			if err != nil {
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					return 0, nil, err
				}
				r.eof = true
			}
			r.blockLen = n
			r.buffer = r.backingStore[:n]
			if n == 0 {
				return 0, nil, io.EOF
			}
			continue
		}

		header := r.buffer[:HeaderSize]
		crcStored := binary.LittleEndian.Uint32(header[0:4])
		length := int(binary.LittleEndian.Uint16(header[4:6]))
		recordType := RecordType(header[6])

		if len(r.buffer) < HeaderSize+length {
			if r.eof {
				// Torn tail: the writer has not finished this record.
				return 0, nil, io.EOF
			}
			return 0, nil, r.corruption(fmt.Sprintf("record length %d overruns block", length))
		}

		// Preallocated zero region.
		if recordType == ZeroType && length == 0 {
			r.buffer = r.buffer[HeaderSize:]
			continue
		}

		payload := r.buffer[HeaderSize : HeaderSize+length]

		if r.checksum {
			crc := checksum.Value([]byte{byte(recordType)})
			crc = checksum.Mask(checksum.Extend(crc, payload))
			if crc != crcStored {
				return 0, nil, r.corruption("checksum mismatch")
			}
		}

		r.buffer = r.buffer[HeaderSize+length:]
		return recordType, payload, nil
	}
}

// pos returns the absolute offset of the next unread byte.
func (r *Reader) pos() int64 {
	return r.blockStart + int64(r.blockLen-len(r.buffer))
}

func (r *Reader) corruption(reason string) error {
	return fmt.Errorf("%w: %s at offset %d", ErrCorruptedRecord, reason, r.pos())
}

// IsEOF returns true if the reader has reached end of file.
func (r *Reader) IsEOF() bool {
	return r.eof
}

// LastRecordEnd returns the absolute offset after the last complete record.
func (r *Reader) LastRecordEnd() int64 {
	return r.lastRecordEnd
}
