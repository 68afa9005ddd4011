package types

import "github.com/ethereum/go-ethereum/common"

// Address is the opaque, totally ordered validator identifier. We reuse
// go-ethereum's 20-byte Address exactly as the teacher does throughout
// consensus/tendermint/{core,messages}.
type Address = common.Address

// ValueID is the compact, hashable, totally-ordered fingerprint a Value
// carries. Votes and proposals reference values by id, never by full body;
// the host is responsible for producing and verifying the full Value.
type ValueID = common.Hash

// NilValueID is the zero ValueID, used as the "no value" placeholder in
// contexts where a NilOrVal wrapper would be redundant (e.g. map keys).
var NilValueID = ValueID{}

// Value is an opaque application-level payload (a block, in blockchain
// terms). The core never inspects a Value's contents; it only ever compares
// and transmits its Id().
type Value interface {
	// ID returns the value's fingerprint.
	ID() ValueID
}

// NilOrVal represents either the Nil vote value or a concrete T. Prevotes
// and precommits carry NilOrVal[ValueID].
type NilOrVal[T any] struct {
	isVal bool
	val   T
}

// Nil constructs the Nil variant of NilOrVal[T].
func Nil[T any]() NilOrVal[T] {
	return NilOrVal[T]{}
}

// Val constructs the Val(v) variant of NilOrVal[T].
func Val[T any](v T) NilOrVal[T] {
	return NilOrVal[T]{isVal: true, val: v}
}

// IsNil reports whether the value is the Nil variant.
func (n NilOrVal[T]) IsNil() bool { return !n.isVal }

// IsVal reports whether the value is the Val variant.
func (n NilOrVal[T]) IsVal() bool { return n.isVal }

// Value returns the wrapped value and whether it was present. Calling
// Value() on a Nil instance returns the zero value of T and false.
func (n NilOrVal[T]) Value() (T, bool) { return n.val, n.isVal }

// ValueOrZero returns the wrapped value, or the zero value of T if Nil.
func (n NilOrVal[T]) ValueOrZero() T { return n.val }
