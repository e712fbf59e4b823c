// types.go defines the checksum types recorded in the index log header.
package checksum

import (
	"bytes"
	"fmt"
)

// Type represents the type of checksum algorithm applied to decoded batch bodies.
// Record framing always uses masked CRC32C regardless of Type.
// These values are embedded in the on-disk format and MUST NOT change.
type Type uint8

const (
	// TypeNoChecksum means batch bodies carry no digest trailer.
	TypeNoChecksum Type = 0
	// TypeCRC32C appends a masked CRC32C (4 bytes) to each batch body.
	TypeCRC32C Type = 1
	// TypeXXH3 appends an XXH3-64 digest (8 bytes) to each batch body.
	TypeXXH3 Type = 4
)

// String returns a human-readable name for the checksum type.
func (t Type) String() string {
	switch t {
	case TypeNoChecksum:
		return "NoChecksum"
	case TypeCRC32C:
		return "CRC32C"
	case TypeXXH3:
		return "XXH3"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// OptionName returns the spelling used in OPTIONS files.
func (t Type) OptionName() string {
	switch t {
	case TypeNoChecksum:
		return "none"
	case TypeCRC32C:
		return "crc32c"
	case TypeXXH3:
		return "xxh3"
	default:
		return t.String()
	}
}

// ParseType parses the option-file spelling of a checksum type.
func ParseType(s string) (Type, error) {
	switch s {
	case "none", "NoChecksum":
		return TypeNoChecksum, nil
	case "crc32c", "CRC32C":
		return TypeCRC32C, nil
	case "xxh3", "XXH3":
		return TypeXXH3, nil
	default:
		return TypeNoChecksum, fmt.Errorf("checksum: unknown type %q", s)
	}
}

// Size returns the trailer size in bytes for t, or -1 for unknown types.
func (t Type) Size() int {
	switch t {
	case TypeNoChecksum:
		return 0
	case TypeCRC32C:
		return 4
	case TypeXXH3:
		return 8
	default:
		return -1
	}
}

// Append appends the digest of data for type t to dst.
func (t Type) Append(dst, data []byte) []byte {
	switch t {
	case TypeCRC32C:
		c := MaskedValue(data)
		return append(dst, byte(c), byte(c>>8), byte(c>>16), byte(c>>24))
	case TypeXXH3:
		h := XXH3(data)
		return append(dst,
			byte(h), byte(h>>8), byte(h>>16), byte(h>>24),
			byte(h>>32), byte(h>>40), byte(h>>48), byte(h>>56))
	default:
		return dst
	}
}

// Verify reports whether trailer is the digest of data for type t.
func (t Type) Verify(data, trailer []byte) bool {
	if len(trailer) != t.Size() {
		return false
	}
	return bytes.Equal(t.Append(nil, data), trailer)
}
