// Package blockindex defines the block-index entry shared by the chain
// structures, the persistent stores and the command-line tools.
//
// An Entry is owned by whoever loaded or produced it. The chain structures
// only hold *Entry references and never mutate them after publication.
package blockindex

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// HashSize is the size of a block hash in bytes.
const HashSize = 32

// Hash is a block hash in internal (little-endian) byte order.
type Hash [HashSize]byte

// ZeroHash is the hash carried as PrevHash by a genesis entry.
var ZeroHash Hash

// ErrInvalidHash is returned by ParseHash for malformed input.
var ErrInvalidHash = errors.New("blockindex: invalid hash")

// String renders the hash in display order: reversed hex, as block explorers show it.
func (h Hash) String() string {
	var rev Hash
	for i := range HashSize {
		rev[i] = h[HashSize-1-i]
	}
	return hex.EncodeToString(rev[:])
}

// IsZero reports whether h is all zero bytes.
func (h Hash) IsZero() bool {
	return h == ZeroHash
}

// ParseHash parses a display-order hex hash as produced by Hash.String.
func ParseHash(s string) (Hash, error) {
	var h Hash
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != 2*HashSize {
		return h, fmt.Errorf("%w: want %d hex characters, got %d", ErrInvalidHash, 2*HashSize, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	for i := range HashSize {
		h[i] = raw[HashSize-1-i]
	}
	return h, nil
}

// Status records how far an entry has been validated plus data availability flags.
type Status uint32

const (
	// ValidUnknown means nothing has been checked.
	ValidUnknown Status = 0
	// ValidReserved means the header parsed and the version is acceptable.
	ValidReserved Status = 1
	// ValidTree means the parent is known and the header is contextually valid.
	ValidTree Status = 2
	// ValidTransactions means the block body has been checked in isolation.
	ValidTransactions Status = 3
	// ValidChain means outputs are spendable and ancestors are ValidChain.
	ValidChain Status = 4
	// ValidScripts means scripts and signatures have been fully verified.
	ValidScripts Status = 5

	// ValidMask selects the validity level bits.
	ValidMask Status = ValidReserved | ValidTree | ValidTransactions | ValidChain | ValidScripts

	HaveData Status = 8
	HaveUndo Status = 16
	HaveMask Status = HaveData | HaveUndo

	// FailedValid marks an entry that failed validation.
	FailedValid Status = 32
	// FailedChild marks an entry descending from a failed entry.
	FailedChild Status = 64
	FailedMask  Status = FailedValid | FailedChild
)

// FullyValidated is the level an entry must reach to be eligible as a chain tip.
const FullyValidated = ValidScripts

// Level returns the validity level bits of s.
func (s Status) Level() Status {
	return s & ValidMask
}

// IsValid reports whether s has reached at least level and is not marked failed.
func (s Status) IsValid(level Status) bool {
	if s&FailedMask != 0 {
		return false
	}
	return s.Level() >= level
}

// RaiseValidity returns s with its level raised to level. Failed entries and
// entries already at or above level are returned unchanged.
func (s Status) RaiseValidity(level Status) Status {
	if s&FailedMask != 0 || s.Level() >= level {
		return s
	}
	return (s &^ ValidMask) | level
}

func (s Status) String() string {
	var level string
	switch s.Level() {
	case ValidUnknown:
		level = "unknown"
	case ValidReserved:
		level = "reserved"
	case ValidTree:
		level = "tree"
	case ValidTransactions:
		level = "transactions"
	case ValidChain:
		level = "chain"
	case ValidScripts:
		level = "scripts"
	default:
		level = fmt.Sprintf("level(%d)", uint32(s.Level()))
	}
	parts := []string{level}
	if s&HaveData != 0 {
		parts = append(parts, "data")
	}
	if s&HaveUndo != 0 {
		parts = append(parts, "undo")
	}
	if s&FailedValid != 0 {
		parts = append(parts, "failed")
	}
	if s&FailedChild != 0 {
		parts = append(parts, "failed-child")
	}
	return strings.Join(parts, "|")
}

// Entry is the persisted metadata of one block.
type Entry struct {
	Hash     Hash
	PrevHash Hash
	Height   int32

	// Header fields.
	Version int32
	Time    uint32
	Bits    uint32
	Nonce   uint32

	TxCount uint32
	Status  Status

	// ChainWork is the total work of the chain up to and including this entry.
	ChainWork *uint256.Int

	// Location of the block data in the block files.
	FileNum int32
	DataPos uint32
}

// IsGenesis reports whether e has no parent.
func (e *Entry) IsGenesis() bool {
	return e.Height == 0 && e.PrevHash.IsZero()
}

// Work returns e.ChainWork, or zero when it is unset.
func (e *Entry) Work() *uint256.Int {
	if e.ChainWork == nil {
		return new(uint256.Int)
	}
	return e.ChainWork
}

func (e *Entry) String() string {
	return fmt.Sprintf("Entry{height=%d hash=%s status=%s work=%s}", e.Height, e.Hash, e.Status, e.Work().Hex())
}

// WorkFromBits returns the expected work of a block with compact target bits:
// 2^256 / (target+1). Negative, overflowing and zero targets carry no work.
func WorkFromBits(bits uint32) *uint256.Int {
	size := bits >> 24
	word := bits & 0x007fffff

	if word != 0 && bits&0x00800000 != 0 {
		return new(uint256.Int)
	}
	if word != 0 && (size > 34 || (word > 0xff && size > 33) || (word > 0xffff && size > 32)) {
		return new(uint256.Int)
	}

	target := uint256.NewInt(uint64(word))
	if size <= 3 {
		target.Rsh(target, uint(8*(3-size)))
	} else {
		target.Lsh(target, uint(8*(size-3)))
	}
	if target.IsZero() {
		return new(uint256.Int)
	}

	// 2^256 does not fit, so compute ~target / (target+1) + 1 instead.
	denom := new(uint256.Int).AddUint64(target, 1)
	work := new(uint256.Int).Not(target)
	work.Div(work, denom)
	return work.AddUint64(work, 1)
}
