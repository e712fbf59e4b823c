package chainview

// snapshot.go implements immutable, height-indexed chain views.
//
// A Snapshot is the (base, tail) pair published by a ChainIndex. Both
// segments are immutable, so a Snapshot can be read from any number of
// goroutines without synchronization and always returns the same entry for
// a given height.

// Snapshot is an immutable view of a chain. The zero value and a nil
// *Snapshot are valid empty chains.
type Snapshot struct {
	base segment
	tail segment
}

var emptySnapshot = &Snapshot{}

// At returns the entry at height, or nil if height is out of range.
func (s *Snapshot) At(height int) *Entry {
	if s == nil || height < 0 {
		return nil
	}
	if height < len(s.base) {
		return s.base[height]
	}
	t := height - len(s.base)
	if t < len(s.tail) {
		return s.tail[t]
	}
	return nil
}

// Height returns the number of entries in the view. The tip, if any, is at
// Height()-1.
func (s *Snapshot) Height() int {
	if s == nil {
		return 0
	}
	return len(s.base) + len(s.tail)
}

// Tip returns the last entry, or nil for an empty view.
func (s *Snapshot) Tip() *Entry {
	return s.At(s.Height() - 1)
}

// Genesis returns the entry at height 0, or nil for an empty view.
func (s *Snapshot) Genesis() *Entry {
	return s.At(0)
}

// Contains reports whether e is the entry at e.Height in this view.
func (s *Snapshot) Contains(e *Entry) bool {
	if e == nil {
		return false
	}
	at := s.At(int(e.Height))
	return at != nil && at.Hash == e.Hash
}

// Next returns the successor of e in this view, or nil if e is the tip or
// is not part of the view.
func (s *Snapshot) Next(e *Entry) *Entry {
	if !s.Contains(e) {
		return nil
	}
	return s.At(int(e.Height) + 1)
}

// ForEach calls fn for each entry from height from up to the tip, stopping
// early when fn returns false.
func (s *Snapshot) ForEach(from int, fn func(*Entry) bool) {
	for h := max(from, 0); h < s.Height(); h++ {
		if !fn(s.At(h)) {
			return
		}
	}
}

// FindFork returns the highest entry present in both s and other, or nil if
// they share no genesis.
func (s *Snapshot) FindFork(other *Snapshot) *Entry {
	h := min(s.Height(), other.Height()) - 1
	if h < 0 {
		return nil
	}
	// Views are linked by hash, so once two entries match every ancestor does.
	lo, hi := 0, h
	if s.At(0).Hash != other.At(0).Hash {
		return nil
	}
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if s.At(mid).Hash == other.At(mid).Hash {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return s.At(lo)
}
