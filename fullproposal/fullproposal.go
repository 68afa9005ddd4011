// Package fullproposal joins proposal messages with application-provided
// value bodies, per spec.md §4.5. Depending on ValuePayload mode a proposal
// arrives whole (ProposalOnly), as a value-id reference paired later with a
// separately-streamed value (PartsOnly), or both (ProposalAndParts); this
// keeper only feeds the driver once both halves are present and agree.
// Grounded on the teacher's consensus/tendermint/core proposal-buffering
// logic in handler.go's handleCurrentHeightMessage (which holds messages
// that arrive "too early" relative to what the core has on hand), adapted
// from a generic message-ordering concern to this specific value/proposal
// pairing concern.
package fullproposal

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/autonity/tendermint/types"
)

// ValuePayload controls which of the proposal message and the streamed
// value parts carry the actual payload.
type ValuePayload uint8

const (
	ProposalOnly ValuePayload = iota
	PartsOnly
	ProposalAndParts
)

// idOnlyValue is the placeholder a PartsOnly-mode proposal's Value field
// holds until the matching value arrives: it knows only its own id.
type idOnlyValue struct {
	id types.ValueID
}

func (v idOnlyValue) ID() types.ValueID { return v.id }

// StubValue wraps a bare id as a types.Value, for constructing a proposal
// reference before the value body itself is available (PartsOnly mode).
func StubValue(id types.ValueID) types.Value { return idOnlyValue{id: id} }

type roundProposerKey struct {
	round    types.Round
	proposer types.Address
}

type roundValueKey struct {
	round types.Round
	id    types.ValueID
}

// Keeper pairs proposals and value bodies for one height.
type Keeper struct {
	mode ValuePayload

	heldProposals map[roundProposerKey]heldProposal
	heldValues    map[roundValueKey]types.ProposedValue

	// validityCache lets a later-confirmed-valid value retroactively
	// upgrade an earlier stored-Invalid entry for the same id, per
	// spec.md §4.5's "inherits its validity... to allow stored-Invalid to
	// be overridden to Valid".
	validityCache *lru.Cache[types.ValueID, types.Validity]
}

type heldProposal struct {
	proposal types.SignedProposal
	validity types.Validity
}

// NewKeeper returns an empty Keeper operating in mode, with a bounded
// validity cache of the given size.
func NewKeeper(mode ValuePayload, validityCacheSize int) *Keeper {
	cache, _ := lru.New[types.ValueID, types.Validity](validityCacheSize)
	return &Keeper{
		mode:          mode,
		heldProposals: make(map[roundProposerKey]heldProposal),
		heldValues:    make(map[roundValueKey]types.ProposedValue),
		validityCache: cache,
	}
}

// ReceiveProposal records sp (with its id already known or, in PartsOnly
// mode, its Value field a StubValue placeholder). If the full value is
// already available, it returns the complete, paired proposal
// immediately; otherwise it holds sp until ReceiveValue supplies the body.
func (k *Keeper) ReceiveProposal(sp types.SignedProposal, validity types.Validity) (types.SignedProposal, types.Validity, bool) {
	validity = k.inheritValidity(sp.Message.Value.ID(), validity)

	if k.mode != PartsOnly {
		return sp, validity, true
	}

	key := roundValueKey{round: sp.Message.Round, id: sp.Message.Value.ID()}
	if pv, ok := k.heldValues[key]; ok {
		delete(k.heldValues, key)
		complete := sp
		complete.Message.Value = pv.Value
		validity = k.inheritValidity(pv.Value.ID(), validity)
		return complete, validity, true
	}

	k.heldProposals[roundProposerKey{round: sp.Message.Round, proposer: sp.Message.Proposer}] = heldProposal{proposal: sp, validity: validity}
	return types.SignedProposal{}, types.ValidityUnknown, false
}

// ReceiveValue records a value body produced by streamed parts. If a
// proposal referencing this (round, id) is already held, it returns the
// completed, paired proposal; otherwise it holds the value until
// ReceiveProposal supplies the reference.
func (k *Keeper) ReceiveValue(pv types.ProposedValue) (types.SignedProposal, types.Validity, bool) {
	k.validityCache.Add(pv.Value.ID(), pv.Validity)

	for key, held := range k.heldProposals {
		if key.round != pv.Round || held.proposal.Message.Value.ID() != pv.Value.ID() {
			continue
		}
		delete(k.heldProposals, key)
		complete := held.proposal
		complete.Message.Value = pv.Value
		validity := k.inheritValidity(pv.Value.ID(), held.validity)
		return complete, validity, true
	}

	k.heldValues[roundValueKey{round: pv.Round, id: pv.Value.ID()}] = pv
	return types.SignedProposal{}, types.ValidityUnknown, false
}

// inheritValidity upgrades validity to Valid if id was previously
// confirmed valid by an independent path, regardless of what this
// particular arrival claims.
func (k *Keeper) inheritValidity(id types.ValueID, validity types.Validity) types.Validity {
	if cached, ok := k.validityCache.Get(id); ok && cached == types.ValidityValid {
		return types.ValidityValid
	}
	if validity != types.ValidityUnknown {
		k.validityCache.Add(id, validity)
	}
	return validity
}
