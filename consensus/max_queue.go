package consensus

import "github.com/autonity/tendermint/types"

// MaxQueue buffers Inputs for heights greater than the one currently being
// processed, retaining only the entries at the maximum height observed so
// far — spec.md §4.6/§9's "inserting an entry with a strictly greater
// height clears older entries", grounded on Malachite's
// core-consensus/src/util/max_queue.rs. This bounds memory to the size of
// the largest single burst rather than the whole stream (spec.md §7's
// BufferOverflow error kind is deliberately not an error: silent
// replacement is the documented policy).
type MaxQueue struct {
	height    types.Height
	hasHeight bool
	items     []Input
}

// NewMaxQueue returns an empty queue.
func NewMaxQueue() *MaxQueue {
	return &MaxQueue{}
}

// Push inserts in for height h. If h exceeds every height seen so far,
// every previously buffered entry is discarded first. Entries for a height
// below the current maximum are dropped outright.
func (q *MaxQueue) Push(h types.Height, in Input) {
	if !q.hasHeight || h > q.height {
		q.height = h
		q.hasHeight = true
		q.items = []Input{in}
		return
	}
	if h == q.height {
		q.items = append(q.items, in)
	}
}

// Drain returns and clears every entry buffered at height h, or nil if h
// does not match the queue's current maximum height.
func (q *MaxQueue) Drain(h types.Height) []Input {
	if !q.hasHeight || q.height != h {
		return nil
	}
	items := q.items
	q.items = nil
	q.hasHeight = false
	return items
}

// Peek reports the queue's current maximum height, if any.
func (q *MaxQueue) Peek() (types.Height, bool) {
	return q.height, q.hasHeight
}

// Len returns the number of entries currently buffered.
func (q *MaxQueue) Len() int { return len(q.items) }
