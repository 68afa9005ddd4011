package types

import "fmt"

// Height identifies a consensus instance. It is totally ordered and has a
// zero value and a +1 successor, per spec.md §3.
type Height uint64

// HeightZero is the height of the first consensus instance a node runs.
const HeightZero Height = 0

// Increment returns h+1.
func (h Height) Increment() Height { return h + 1 }

// Less reports whether h sorts before other.
func (h Height) Less(other Height) bool { return h < other }

func (h Height) String() string { return fmt.Sprintf("%d", uint64(h)) }
