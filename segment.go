package chainview

// segment is an ordered run of entries. A segment is never modified once it
// is reachable from a Snapshot, so snapshots share segments freely.
type segment []*Entry

// appendCopy returns a new segment holding s followed by e.
func (s segment) appendCopy(e *Entry) segment {
	out := make(segment, len(s)+1)
	copy(out, s)
	out[len(s)] = e
	return out
}

// concat returns a new segment holding a followed by b.
func concat(a, b segment) segment {
	out := make(segment, len(a)+len(b))
	copy(out, a)
	copy(out[len(a):], b)
	return out
}
