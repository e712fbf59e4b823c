package chainview

// entry.go re-exports the block-index entry types.

import (
	"github.com/aalhour/chainview/internal/blockindex"
)

// Entry is the metadata of one block. Entries are owned by their producer:
// chainview stores references and never modifies an entry once appended.
type Entry = blockindex.Entry

// Hash is a block hash.
type Hash = blockindex.Hash

// Status is an entry's validity level and flags.
type Status = blockindex.Status

// Status values.
const (
	ValidUnknown      = blockindex.ValidUnknown
	ValidReserved     = blockindex.ValidReserved
	ValidTree         = blockindex.ValidTree
	ValidTransactions = blockindex.ValidTransactions
	ValidChain        = blockindex.ValidChain
	ValidScripts      = blockindex.ValidScripts
	HaveData          = blockindex.HaveData
	HaveUndo          = blockindex.HaveUndo
	FailedValid       = blockindex.FailedValid
	FailedChild       = blockindex.FailedChild

	// FullyValidated is the level an entry must reach to become a reader's tip.
	FullyValidated = blockindex.FullyValidated
)

// ParseHash parses a display-order hex hash.
func ParseHash(s string) (Hash, error) {
	return blockindex.ParseHash(s)
}
