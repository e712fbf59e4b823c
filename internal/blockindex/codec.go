// codec.go implements the binary encoding of an Entry.
//
// Layout (format version 1):
//
//	version(1) hash(32) prev_hash(32) height(varint)
//	header_version(varint) time(fixed32) bits(fixed32) nonce(fixed32)
//	tx_count(uvarint) status(uvarint)
//	chain_work_len(1) chain_work(big-endian, chain_work_len bytes)
//	file_num(varint) data_pos(uvarint)
//
// Fixed-width integers are little-endian.
package blockindex

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// EncodingVersion is the leading byte of every encoded entry.
const EncodingVersion = 1

var (
	// ErrTruncated is returned when an encoded entry ends early.
	ErrTruncated = errors.New("blockindex: truncated entry")

	// ErrUnknownVersion is returned for an unsupported encoding version.
	ErrUnknownVersion = errors.New("blockindex: unknown entry encoding version")
)

// AppendEntry appends the encoding of e to dst.
func AppendEntry(dst []byte, e *Entry) []byte {
	dst = append(dst, EncodingVersion)
	dst = append(dst, e.Hash[:]...)
	dst = append(dst, e.PrevHash[:]...)
	dst = binary.AppendVarint(dst, int64(e.Height))
	dst = binary.AppendVarint(dst, int64(e.Version))
	dst = binary.LittleEndian.AppendUint32(dst, e.Time)
	dst = binary.LittleEndian.AppendUint32(dst, e.Bits)
	dst = binary.LittleEndian.AppendUint32(dst, e.Nonce)
	dst = binary.AppendUvarint(dst, uint64(e.TxCount))
	dst = binary.AppendUvarint(dst, uint64(e.Status))

	var work []byte
	if e.ChainWork != nil && !e.ChainWork.IsZero() {
		work = e.ChainWork.Bytes()
	}
	dst = append(dst, byte(len(work)))
	dst = append(dst, work...)

	dst = binary.AppendVarint(dst, int64(e.FileNum))
	dst = binary.AppendUvarint(dst, uint64(e.DataPos))
	return dst
}

// EncodeEntry returns the encoding of e.
func EncodeEntry(e *Entry) []byte {
	return AppendEntry(make([]byte, 0, 96), e)
}

// DecodeEntry decodes one entry from the front of src and returns the number
// of bytes consumed.
func DecodeEntry(src []byte) (*Entry, int, error) {
	d := decoder{buf: src}

	version, ok := d.readByte()
	if !ok {
		return nil, 0, ErrTruncated
	}
	if version != EncodingVersion {
		return nil, 0, fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}

	e := &Entry{}
	ok = d.hash(&e.Hash) && d.hash(&e.PrevHash)
	var height, hdrVersion, fileNum int64
	var txCount, status, dataPos uint64
	ok = ok && d.varint(&height) && d.varint(&hdrVersion)
	ok = ok && d.fixed32(&e.Time) && d.fixed32(&e.Bits) && d.fixed32(&e.Nonce)
	ok = ok && d.uvarint(&txCount) && d.uvarint(&status)
	if !ok {
		return nil, 0, ErrTruncated
	}

	workLen, ok := d.readByte()
	if !ok {
		return nil, 0, ErrTruncated
	}
	if workLen > 32 {
		return nil, 0, fmt.Errorf("blockindex: chain work length %d exceeds 32 bytes", workLen)
	}
	work, ok := d.readBytes(int(workLen))
	if !ok {
		return nil, 0, ErrTruncated
	}
	e.ChainWork = new(uint256.Int).SetBytes(work)

	if !d.varint(&fileNum) || !d.uvarint(&dataPos) {
		return nil, 0, ErrTruncated
	}

	e.Height = int32(height)
	e.Version = int32(hdrVersion)
	e.TxCount = uint32(txCount)
	e.Status = Status(status)
	e.FileNum = int32(fileNum)
	e.DataPos = uint32(dataPos)
	return e, d.pos, nil
}

// decoder walks a byte slice, reporting false once input runs out.
type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) readByte() (byte, bool) {
	if d.pos >= len(d.buf) {
		return 0, false
	}
	b := d.buf[d.pos]
	d.pos++
	return b, true
}

func (d *decoder) readBytes(n int) ([]byte, bool) {
	if len(d.buf)-d.pos < n {
		return nil, false
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, true
}

func (d *decoder) hash(h *Hash) bool {
	b, ok := d.readBytes(HashSize)
	if ok {
		copy(h[:], b)
	}
	return ok
}

func (d *decoder) fixed32(v *uint32) bool {
	b, ok := d.readBytes(4)
	if ok {
		*v = binary.LittleEndian.Uint32(b)
	}
	return ok
}

func (d *decoder) varint(v *int64) bool {
	x, n := binary.Varint(d.buf[d.pos:])
	if n <= 0 {
		return false
	}
	*v = x
	d.pos += n
	return true
}

func (d *decoder) uvarint(v *uint64) bool {
	x, n := binary.Uvarint(d.buf[d.pos:])
	if n <= 0 {
		return false
	}
	*v = x
	d.pos += n
	return true
}
