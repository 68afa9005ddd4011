// Package votekeeper implements the per-round, per-vote-type weighted
// tally spec.md §4.2 describes: it accumulates weight by value, tracks
// which addresses have voted (for skip-round detection), and emits
// threshold-crossing events exactly once per (round, type, kind).
package votekeeper

import (
	"github.com/autonity/tendermint/types"
)

// valueKey is the comparable map key for a NilOrVal[ValueID] — generic
// NilOrVal isn't itself comparable for map-key purposes in Go unless T is,
// so the keeper collapses it to this tiny struct, mirroring Malachite's
// ValuesWeights<Value> where Value is bounded by Ord.
type valueKey struct {
	isVal bool
	id    types.ValueID
}

func keyOf(v types.NilOrVal[types.ValueID]) valueKey {
	if v.IsNil() {
		return valueKey{}
	}
	id, _ := v.Value()
	return valueKey{isVal: true, id: id}
}

// valuesWeights accumulates weight by value, generalized over
// NilOrVal[ValueID] exactly as Malachite's core-votekeeper/src/value_weights.rs
// ValuesWeights<Value> is generalized over Option<ValueId>.
type valuesWeights struct {
	byValue map[valueKey]uint64
}

func newValuesWeights() *valuesWeights {
	return &valuesWeights{byValue: make(map[valueKey]uint64)}
}

// add adds weight to value's tally and returns the new total. Panics on
// overflow, matching Malachite's checked_add.
func (vw *valuesWeights) add(value types.NilOrVal[types.ValueID], weight uint64) uint64 {
	k := keyOf(value)
	next := vw.byValue[k] + weight
	if next < vw.byValue[k] {
		panic("votekeeper: weight overflow")
	}
	vw.byValue[k] = next
	return next
}

func (vw *valuesWeights) get(value types.NilOrVal[types.ValueID]) uint64 {
	return vw.byValue[keyOf(value)]
}

// sum returns the total weight across every distinct value seen.
func (vw *valuesWeights) sum() uint64 {
	var total uint64
	for _, w := range vw.byValue {
		total += w
	}
	return total
}
