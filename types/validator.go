package types

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// ErrEmptyValidatorSet is returned by NewValidatorSet when given no
// validators; spec.md §3 lists "count > 0" as an invariant of ValidatorSet.
var ErrEmptyValidatorSet = errors.New("tendermint: validator set must not be empty")

// PublicKey, PrivateKey and Signature are opaque to the core; the host's
// SigningScheme is the only thing that produces or consumes them.
type PublicKey interface{}
type PrivateKey interface{}
type Signature interface{}

// SigningScheme is a host-supplied capability: it knows how to encode and
// decode its own signature type. The core never picks a concrete scheme.
type SigningScheme interface {
	EncodeSignature(Signature) ([]byte, error)
	DecodeSignature([]byte) (Signature, error)
}

// Validator is one member of a ValidatorSet: an address, a public key, and
// a weight. Equality is structural, matching spec.md §3.
type Validator struct {
	Address     Address
	PublicKey   PublicKey
	VotingPower uint64
}

// Equal reports structural equality with other.
func (v Validator) Equal(other Validator) bool {
	return v.Address == other.Address && v.VotingPower == other.VotingPower &&
		reflect.DeepEqual(v.PublicKey, other.PublicKey)
}

// ValidatorSet is an ordered, distinct collection of Validators for one
// height, exposing exactly the accessors spec.md §3 names. It is built once
// by the host and never mutated by the core (spec.md §5: "read-only once
// supplied by the host for a height").
type ValidatorSet struct {
	byIndex   []Validator
	byAddress map[Address]int
	total     uint64
}

// NewValidatorSet builds a ValidatorSet from validators, sorted by address
// for a deterministic iteration order across all honest nodes (the teacher's
// validator.Set does the analogous sort in consensus/tendermint/validator).
func NewValidatorSet(validators []Validator) (*ValidatorSet, error) {
	if len(validators) == 0 {
		return nil, ErrEmptyValidatorSet
	}

	sorted := make([]Validator, len(validators))
	copy(sorted, validators)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Address.Hex() < sorted[j].Address.Hex()
	})

	vs := &ValidatorSet{
		byIndex:   sorted,
		byAddress: make(map[Address]int, len(sorted)),
	}
	for i, v := range sorted {
		if _, dup := vs.byAddress[v.Address]; dup {
			return nil, fmt.Errorf("tendermint: duplicate validator address %s", v.Address)
		}
		vs.byAddress[v.Address] = i
		vs.total += v.VotingPower
	}
	return vs, nil
}

// Count returns the number of validators.
func (vs *ValidatorSet) Count() int { return len(vs.byIndex) }

// TotalVotingPower returns the sum of every validator's voting power.
func (vs *ValidatorSet) TotalVotingPower() uint64 { return vs.total }

// GetByIndex returns the i-th validator in address order, or false if i is
// out of range.
func (vs *ValidatorSet) GetByIndex(i int) (Validator, bool) {
	if i < 0 || i >= len(vs.byIndex) {
		return Validator{}, false
	}
	return vs.byIndex[i], true
}

// GetByAddress looks up a validator by address.
func (vs *ValidatorSet) GetByAddress(addr Address) (Validator, bool) {
	i, ok := vs.byAddress[addr]
	if !ok {
		return Validator{}, false
	}
	return vs.byIndex[i], true
}

// Validators returns the validators in address order. Callers must not
// mutate the returned slice.
func (vs *ValidatorSet) Validators() []Validator { return vs.byIndex }
