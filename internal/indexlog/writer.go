// writer.go implements block-index log writing.
//
// Writer provides an append-only abstraction for writing records,
// fragmenting them across block boundaries.
package indexlog

import (
	"encoding/binary"
	"io"

	"github.com/aalhour/chainview/internal/checksum"
)

// Writer writes records to a block-index log.
type Writer struct {
	dest        io.Writer
	blockOffset int   // Current offset within the current block
	offset      int64 // Absolute file offset after the last write

	// Pre-computed CRC32C values for each record type
	typeCRC [maxRecordType + 1]uint32

	// Reusable buffer holding one header plus payload
	buf []byte
}

// NewWriter creates a writer appending to dest, which already holds size
// bytes of complete records. Pass 0 for a new log.
func NewWriter(dest io.Writer, size int64) *Writer {
	w := &Writer{
		dest:        dest,
		blockOffset: int(size % BlockSize),
		offset:      size,
	}
	for i := 0; i <= int(maxRecordType); i++ {
		w.typeCRC[i] = checksum.Value([]byte{byte(i)})
	}
	return w
}

// AddRecord writes a complete logical record to the log.
// The record may be split into multiple physical records if it doesn't fit
// in the current block.
//
// Returns the number of bytes written (including headers and padding).
func (w *Writer) AddRecord(data []byte) (int, error) {
	ptr := data
	left := len(data)
	totalWritten := 0
	begin := true

	// Even an empty record emits a single zero-length fragment.
	for {
		leftover := BlockSize - w.blockOffset

		// If there's not enough space for a header, pad and move to next block
		if leftover < HeaderSize {
			if leftover > 0 {
				var padding [HeaderSize]byte
				n, err := w.dest.Write(padding[:leftover])
				totalWritten += n
				w.offset += int64(n)
				if err != nil {
					return totalWritten, err
				}
			}
			w.blockOffset = 0
		}

		avail := BlockSize - w.blockOffset - HeaderSize
		fragmentLength := min(left, avail)

		end := left == fragmentLength
		var recordType RecordType
		switch {
		case begin && end:
			recordType = FullType
		case begin:
			recordType = FirstType
		case end:
			recordType = LastType
		default:
			recordType = MiddleType
		}

		n, err := w.emitPhysicalRecord(recordType, ptr[:fragmentLength])
		totalWritten += n
		if err != nil {
			return totalWritten, err
		}

		ptr = ptr[fragmentLength:]
		left -= fragmentLength
		begin = false

		if left == 0 {
			break
		}
	}

	return totalWritten, nil
}

// emitPhysicalRecord writes one header and payload with a single Write call.
func (w *Writer) emitPhysicalRecord(t RecordType, payload []byte) (int, error) {
	n := len(payload)
	if n > MaxRecordPayload {
		panic("indexlog: record payload too large") //nolint:forbidigo // precondition violation
	}

	w.buf = append(w.buf[:0], 0, 0, 0, 0, byte(n), byte(n>>8), byte(t))
	w.buf = append(w.buf, payload...)

	crc := checksum.Extend(w.typeCRC[t], payload)
	binary.LittleEndian.PutUint32(w.buf[0:4], checksum.Mask(crc))

	written, err := w.dest.Write(w.buf)
	w.offset += int64(written)
	if err != nil {
		return written, err
	}
	w.blockOffset += HeaderSize + n
	return written, nil
}

// BlockOffset returns the current offset within the current block.
func (w *Writer) BlockOffset() int {
	return w.blockOffset
}

// Offset returns the absolute file offset after the last write.
func (w *Writer) Offset() int64 {
	return w.offset
}

// Sync flushes the underlying writer if it supports it.
func (w *Writer) Sync() error {
	if syncer, ok := w.dest.(interface{ Sync() error }); ok {
		return syncer.Sync()
	}
	return nil
}
