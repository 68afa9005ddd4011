// Package proposalkeeper stores at most one distinct proposed value per
// (round, proposer), the way spec.md §4.3 describes and the teacher's
// msg_store.go does for the LightProposal message type specifically.
package proposalkeeper

import "github.com/autonity/tendermint/types"

// Equivocation records a proposer signing two distinct-value proposals for
// the same round.
type Equivocation struct {
	Round  types.Round
	Proposer types.Address
	First  types.SignedProposal
	Second types.SignedProposal
}

type entry struct {
	proposal types.SignedProposal
	validity types.Validity
}

type roundKey struct {
	round    types.Round
	proposer types.Address
}

// Keeper is the per-height proposal store. One Keeper is created per height
// by the driver, mirroring the height-scoped lifetime spec.md §4.3
// describes ("for each round, stores at most one...").
type Keeper struct {
	byRoundProposer map[roundKey]entry
	evidence        []Equivocation
}

// NewKeeper returns an empty Keeper.
func NewKeeper() *Keeper {
	return &Keeper{byRoundProposer: make(map[roundKey]entry)}
}

// AddProposal records sp with the given validity. If a different-value
// proposal was already stored for the same (round, proposer), the new one
// is rejected and both are retained as evidence; the originally stored
// entry is left untouched. Returns whether sp was the first for its
// (round, proposer) key (false on both plain duplicates and equivocation).
func (k *Keeper) AddProposal(sp types.SignedProposal, validity types.Validity) (stored bool, eq *Equivocation) {
	key := roundKey{round: sp.Message.Round, proposer: sp.Message.Proposer}
	existing, ok := k.byRoundProposer[key]
	if !ok {
		k.byRoundProposer[key] = entry{proposal: sp, validity: validity}
		return true, nil
	}
	if sameValue(existing.proposal.Message.Value, sp.Message.Value) {
		return false, nil
	}
	e := Equivocation{Round: sp.Message.Round, Proposer: sp.Message.Proposer, First: existing.proposal, Second: sp}
	k.evidence = append(k.evidence, e)
	return false, &e
}

// GetProposalAndValidityForRound returns the first proposal stored for
// exactly (round, proposer), and whether one exists. Proposals from other
// proposers at the same round are not consulted, and a later equivocating
// proposal from proposer does not change what this accessor returns.
func (k *Keeper) GetProposalAndValidityForRound(round types.Round, proposer types.Address) (types.SignedProposal, types.Validity, bool) {
	e, ok := k.byRoundProposer[roundKey{round: round, proposer: proposer}]
	if !ok {
		return types.SignedProposal{}, types.ValidityUnknown, false
	}
	return e.proposal, e.validity, true
}

// SetValidity updates the stored validity for (round, proposer), used when
// a value initially stored as Invalid (because its body had not yet been
// validated) is later confirmed Valid — spec.md §4.5's "inherits its
// validity... to allow stored-Invalid to be overridden to Valid".
func (k *Keeper) SetValidity(round types.Round, proposer types.Address, validity types.Validity) {
	key := roundKey{round: round, proposer: proposer}
	e, ok := k.byRoundProposer[key]
	if !ok {
		return
	}
	e.validity = validity
	k.byRoundProposer[key] = e
}

// Evidence returns every proposal equivocation observed so far. Callers
// must not mutate the returned slice.
func (k *Keeper) Evidence() []Equivocation {
	return k.evidence
}

func sameValue(a, b types.Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID() == b.ID()
}
