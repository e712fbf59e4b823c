// Package indexlog implements the physical framing of the block-index log.
//
// File Format:
// A log file is divided into fixed-size blocks (32KB). Records are written
// sequentially and may span multiple blocks. Each physical record has a
// header containing a checksum, length, and type.
//
//	+----------+---------+------+---------+
//	| CRC (4B) | Len(2B) | Type | Payload |
//	+----------+---------+------+---------+
//
// CRC is crc32c over Type + Payload, masked with checksum.Mask.
//
// The log is append-only and read while it is being written, so a record cut
// off at the end of the file is reported as end of log rather than corruption.
package indexlog

// BlockSize is the size of each block in the log file.
const BlockSize = 32768

// HeaderSize is the size of a physical record header.
// Header: checksum (4) + length (2) + type (1) = 7 bytes
const HeaderSize = 7

// MaxRecordPayload is the maximum payload size of a single physical record.
const MaxRecordPayload = BlockSize - HeaderSize

// RecordType represents the type of a physical record.
// These values are embedded in the on-disk format and MUST NOT change.
type RecordType uint8

const (
	// ZeroType is reserved for zero padding.
	ZeroType RecordType = 0

	// FullType indicates a complete record that fits within a single fragment.
	FullType RecordType = 1

	// FirstType indicates the first fragment of a record that spans blocks.
	FirstType RecordType = 2

	// MiddleType indicates a middle fragment of a record.
	MiddleType RecordType = 3

	// LastType indicates the final fragment of a record.
	LastType RecordType = 4

	maxRecordType = LastType
)

// String returns the string representation of a RecordType.
func (t RecordType) String() string {
	switch t {
	case ZeroType:
		return "ZeroType"
	case FullType:
		return "FullType"
	case FirstType:
		return "FirstType"
	case MiddleType:
		return "MiddleType"
	case LastType:
		return "LastType"
	default:
		return "UnknownType"
	}
}
