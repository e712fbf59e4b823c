/*
Package chainview provides a concurrent block-chain index with lock-free,
point-in-time views.

A single writer appends block-index entries to a ChainIndex. Any number of
goroutines capture Snapshots of it and read entries by height without
synchronization. A Snapshot never reflects appends made after it was taken.

From another goroutine or another process, a ChainReader rebuilds the best
fully validated chain from persisted storage and hands out reference-counted
ChainHandles. Refresh republishes a new view without disturbing handles
obtained earlier. Those handles keep observing the view they were issued
from until they are released.

# Usage

	w, err := chainview.OpenWriter("/var/lib/node/chainindex", chainview.DefaultOptions())
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Append(genesis); err != nil {
		return err
	}

	r, err := chainview.OpenReader("/var/lib/node/chainindex", nil)
	if err != nil {
		return err
	}
	defer r.Close()

	h, err := r.GetValidatedChain()
	if err != nil {
		return err
	}
	defer h.Release()
	tip := h.Tip()

# Concurrency

ChainIndex.Append is serialized by an internal mutex held only by writers.
GetSnapshot, Snapshot reads, GetValidatedChain and handle reads never block.
Refresh is serialized against other refreshes only.

# Storage

The writer persists entries to either an append-only log ("log" backend) or
a bbolt database ("bolt" backend), chosen by Options.Backend and recorded in
the OPTIONS file of the index directory. The writer holds an advisory lock on
the LOCK file; readers only probe it.
*/
package chainview
