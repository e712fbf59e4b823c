package chainview

// chain_handle.go implements reference-counted reader views.
//
// Each published reader view carries a reference count. The reader holds one
// reference while the view is current; every ChainHandle holds another. The
// view's Snapshot is dropped when the count reaches zero, after which the view
// can never be acquired again.

import (
	"fmt"
	"sync/atomic"

	"github.com/aalhour/chainview/internal/logging"
)

// chainView is one published reader view.
type chainView struct {
	id     uint64
	snap   atomic.Pointer[Snapshot] // nil once refs reaches zero
	refs   atomic.Int32
	reader *ChainReader
}

func newChainView(r *ChainReader, id uint64, snap *Snapshot) *chainView {
	v := &chainView{id: id, reader: r}
	v.snap.Store(snap)
	v.refs.Store(1)
	return v
}

// tryAcquire adds a reference unless the view has already been freed.
func (v *chainView) tryAcquire() bool {
	for {
		n := v.refs.Load()
		if n <= 0 {
			return false
		}
		if v.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// unref drops a reference and frees the view on the last one.
func (v *chainView) unref() {
	n := v.refs.Add(-1)
	switch {
	case n == 0:
		v.snap.Store(nil)
		recordTick(v.reader.stats, TickerViewsFreed, 1)
		v.reader.logger.Debugf("%sfreed view %d", logging.NSReader, v.id)
	case n < 0:
		v.reader.misuse("view %d released more times than acquired", v.id)
	}
}

// ChainHandle is a counted reference to a ChainReader view.
//
// A handle observes the view that was current when it was acquired, even
// after later refreshes. Every handle must be released exactly once; using
// or releasing it afterwards is fatal misuse.
type ChainHandle struct {
	view     *chainView
	released atomic.Bool
}

// Release drops the handle's reference.
func (h *ChainHandle) Release() {
	if h == nil {
		panic(fmt.Errorf("%w: release of nil handle", ErrHandleMisuse))
	}
	if !h.released.CompareAndSwap(false, true) {
		h.view.reader.misuse("double release of handle on view %d", h.view.id)
	}
	h.view.reader.outstanding.Add(-1)
	recordTick(h.view.reader.stats, TickerHandlesReleased, 1)
	h.view.unref()
}

// Snapshot returns the handle's view.
func (h *ChainHandle) Snapshot() *Snapshot {
	if h.released.Load() {
		h.view.reader.misuse("use of released handle on view %d", h.view.id)
	}
	return h.view.snap.Load()
}

// At returns the entry at height in the handle's view, or nil.
func (h *ChainHandle) At(height int) *Entry {
	return h.Snapshot().At(height)
}

// Height returns the number of entries in the handle's view.
func (h *ChainHandle) Height() int {
	return h.Snapshot().Height()
}

// Tip returns the tip of the handle's view, or nil for an empty view.
func (h *ChainHandle) Tip() *Entry {
	return h.Snapshot().Tip()
}

// ViewID identifies the view the handle was acquired from. IDs increase with
// every publish of the owning reader.
func (h *ChainHandle) ViewID() uint64 {
	return h.view.id
}
