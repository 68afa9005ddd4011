// Package driver implements the per-height orchestrator spec.md §4.4
// describes: it owns the validator set, vote keeper, proposal keeper, and
// one round.State per round encountered, routes inputs into them, and lifts
// round.Output values into driver.Output values addressed to concrete
// validators. Grounded on the teacher's consensus/tendermint/core.Core,
// whose startRound/setCore/setStep/acceptVote methods play the analogous
// orchestration role (though over a goroutine-driven event loop rather than
// a pure per-input call).
package driver

import (
	"fmt"

	"github.com/autonity/tendermint/proposalkeeper"
	"github.com/autonity/tendermint/round"
	"github.com/autonity/tendermint/threshold"
	"github.com/autonity/tendermint/types"
	"github.com/autonity/tendermint/votekeeper"
)

// SelectProposer picks the proposer for (h, r) out of validators. The
// driver delegates entirely to this context-supplied function, matching
// spec.md §4.4's "ctx.select_proposer(validator_set, h, r)".
type SelectProposer func(validators *types.ValidatorSet, h types.Height, r types.Round) types.Address

// pendingPolka remembers a threshold event that arrived before its
// matching proposal, so that when the proposal later arrives the two can
// be folded together — spec.md §4.4: "if a polka event is already pending
// for (r, id(value)), fold it together and feed the combined input".
type pendingPolkaKind uint8

const (
	pendingPolkaCurrent pendingPolkaKind = iota
	pendingPolkaPrevious
)

type pendingPolka struct {
	kind  pendingPolkaKind
	value types.ValueID
}

// Driver is the per-height orchestrator. A fresh Driver is created by the
// consensus handler for every height via NewDriver.
type Driver struct {
	height     types.Height
	validators *types.ValidatorSet
	params     threshold.Params
	selectProposer SelectProposer
	self           types.Address

	votes     *votekeeper.Keeper
	proposals *proposalkeeper.Keeper

	rounds       map[types.Round]round.State
	currentRound types.Round

	// pendingPolka[round] records a PolkaValue threshold already observed for `round` whose value has no matching proposal yet.
	pendingPolka map[types.Round]pendingPolka
	// pendingPrecommitValue[round] is the symmetric table for commit
	// quorums awaiting their proposal.
	pendingPrecommitValue map[types.Round]types.ValueID

	// locked and valid carry a round's Locked/Valid forward into every
	// later round's freshly created State: spec.md invariant 2 requires
	// both to persist once set until a later round's proposal+polka
	// updates them, but round.State is keyed per round, so the driver must
	// seed each new round from whatever was last observed.
	locked *types.RoundAndValue
	valid  *types.RoundAndValue

	decided bool
}

// NewDriver constructs a Driver for height h over validators, using
// selectProposer to pick each round's proposer and self to identify which
// validator this Driver instance is acting on behalf of (so the round
// machine's IsProposer checks resolve correctly).
func NewDriver(h types.Height, validators *types.ValidatorSet, params threshold.Params, selectProposer SelectProposer, self types.Address) *Driver {
	return &Driver{
		height:                h,
		validators:            validators,
		params:                params,
		selectProposer:        selectProposer,
		self:                  self,
		votes:                 votekeeper.NewKeeper(params, validators.TotalVotingPower()),
		proposals:             proposalkeeper.NewKeeper(),
		rounds:                make(map[types.Round]round.State),
		currentRound:          types.NilRound,
		pendingPolka:          make(map[types.Round]pendingPolka),
		pendingPrecommitValue: make(map[types.Round]types.ValueID),
	}
}

// Output is one action the driver asks its caller (the consensus handler)
// to perform, carried up unchanged from the round machine; re-entering a
// NewRound output and cancelling timeouts before a Decide are left to the
// handler.
type Output = round.Output

// Apply feeds one Input for round r (or, for RoundSkip/TimeoutElapsed
// inputs that name their own round, the round they name) and returns every
// Output produced, in order. A Driver processes one Input per call; inputs
// that would affect an already-finished height (decided == true) are
// ignored, since spec.md's Decide happens exactly once per height.
func (d *Driver) Apply(input Input) []Output {
	if d.decided {
		return nil
	}
	switch input.Kind {
	case InputKindNewRound:
		return d.applyNewRound(input.Round)
	case InputKindProposeValue:
		return d.applyProposeValue(input.Value)
	case InputKindProposal:
		return d.applyProposal(input.Proposal, input.Validity)
	case InputKindVote:
		return d.applyVote(input.Vote)
	case InputKindPolkaCertificate:
		return d.applyPolkaCertificate(input.Certificate)
	case InputKindCommitCertificate:
		return d.applyCommitCertificate(input.CommitCertificate)
	case InputKindTimeoutElapsed:
		return d.applyTimeout(input.Timeout)
	default:
		return nil
	}
}

func (d *Driver) roundState(r types.Round) round.State {
	st, ok := d.rounds[r]
	if !ok {
		st = round.NewState(d.height, r)
		st.Locked = d.locked
		st.Valid = d.valid
		d.rounds[r] = st
	}
	return st
}

// remember records next's Locked/Valid (if set) as the height-wide carry
// forward for every round created after this one.
func (d *Driver) remember(next round.State) {
	if next.Locked != nil {
		d.locked = next.Locked
	}
	if next.Valid != nil {
		d.valid = next.Valid
	}
}

func (d *Driver) info(r types.Round) round.Info {
	return round.Info{
		Height:           d.height,
		Round:            r,
		Address:          d.self,
		ProposerForRound: d.proposerFor(r),
	}
}

func (d *Driver) proposerFor(r types.Round) types.Address {
	return d.selectProposer(d.validators, d.height, r)
}

// applyNewRound enters round r: the driver re-enters itself with a fresh
// round.State and feeds round.NewRoundInput, lifting whatever output
// results (GetValue, ScheduleTimeout, or a re-proposal).
func (d *Driver) applyNewRound(r types.Round) []Output {
	if r.Compare(d.currentRound) <= 0 && d.currentRound.IsDefined() {
		return nil
	}
	d.currentRound = r
	d.votes.SetCurrentRound(r)

	proposer := d.proposerFor(r)
	st := d.roundState(r)
	next, out := round.Apply(st, d.info(r), round.NewRoundInput(proposer))
	d.rounds[r] = next
	d.remember(next)
	return liftedOutputs(out)
}

// applyProposeValue delivers a host-constructed value to the current round
// in answer to a pending GetValue output.
func (d *Driver) applyProposeValue(v types.Value) []Output {
	r := d.currentRound
	st := d.roundState(r)
	next, out := round.Apply(st, d.info(r), round.ProposeValueInput(v))
	d.rounds[r] = next
	d.remember(next)
	return liftedOutputs(out)
}

// applyProposal stores sp in the proposal keeper; if a polka or commit
// quorum was already pending for this round's value, the combined input is
// fed immediately, otherwise a plain Proposal input is fed.
func (d *Driver) applyProposal(sp types.SignedProposal, validity types.Validity) []Output {
	stored, _ := d.proposals.AddProposal(sp, validity)
	if !stored {
		return nil
	}
	r := sp.Message.Round
	st := d.roundState(r)
	info := d.info(r)

	if pv, ok := d.pendingPrecommitValue[r]; ok && pv == sp.Message.Value.ID() {
		delete(d.pendingPrecommitValue, r)
		next, out := round.Apply(st, info, round.ProposalAndPrecommitValueInput(sp.Message))
		d.rounds[r] = next
		d.remember(next)
		outs := liftedOutputs(out)
		if out != nil && out.Kind == round.OutputDecide {
			d.decided = true
		}
		return outs
	}

	if pp, ok := d.pendingPolka[r]; ok && pp.value == sp.Message.Value.ID() {
		delete(d.pendingPolka, r)
		var in round.Input
		if pp.kind == pendingPolkaCurrent {
			in = round.ProposalAndPolkaCurrentInput(sp.Message)
		} else {
			in = round.ProposalAndPolkaPreviousInput(sp.Message, validity)
		}
		next, out := round.Apply(st, info, in)
		d.rounds[r] = next
		d.remember(next)
		return liftedOutputs(out)
	}

	if sp.Message.PolRound.IsDefined() {
		// A polka-previous proposal arriving before its polka is stored and
		// waits; the matching PolkaValue event (once it arrives) will find
		// this proposal via GetProposalAndValidityForRound.
		return nil
	}
	next, out := round.Apply(st, info, round.ProposalInput(sp.Message, validity))
	d.rounds[r] = next
	d.remember(next)
	return liftedOutputs(out)
}

// applyVote feeds sv to the vote keeper and translates every threshold
// event it emits per spec.md §4.4's table.
func (d *Driver) applyVote(sv types.SignedVote) []Output {
	validator, ok := d.validators.GetByAddress(sv.Message.Voter)
	if !ok {
		return nil
	}
	_, events, _ := d.votes.AddVote(sv, validator.VotingPower)

	var outputs []Output
	for _, ev := range events {
		outputs = append(outputs, d.translateVoteEvent(ev)...)
	}
	return outputs
}

func (d *Driver) translateVoteEvent(ev votekeeper.Event) []Output {
	r := ev.Round
	info := d.info(r)
	st := d.roundState(r)

	switch ev.Kind {
	case votekeeper.PolkaValueEvent:
		value, _ := ev.Value.Value()
		return d.withMatchingProposal(r, value, func(sp types.SignedProposal, validity types.Validity) []Output {
			var in round.Input
			if r.Equal(d.currentRound) {
				in = round.ProposalAndPolkaCurrentInput(sp.Message)
			} else {
				in = round.ProposalAndPolkaPreviousInput(sp.Message, validity)
			}
			next, out := round.Apply(st, info, in)
			d.rounds[r] = next
			d.remember(next)
			return liftedOutputs(out)
		}, func() {
			kind := pendingPolkaPrevious
			if r.Equal(d.currentRound) {
				kind = pendingPolkaCurrent
			}
			d.pendingPolka[r] = pendingPolka{kind: kind, value: value}
		})
	case votekeeper.PolkaNilEvent:
		next, out := round.Apply(st, info, round.PolkaNilInput())
		d.rounds[r] = next
		d.remember(next)
		return liftedOutputs(out)
	case votekeeper.PolkaAnyEvent:
		next, out := round.Apply(st, info, round.PolkaAnyInput())
		d.rounds[r] = next
		d.remember(next)
		return liftedOutputs(out)
	case votekeeper.PrecommitValueEvent:
		value, _ := ev.Value.Value()
		return d.withMatchingProposal(r, value, func(sp types.SignedProposal, _ types.Validity) []Output {
			next, out := round.Apply(st, info, round.ProposalAndPrecommitValueInput(sp.Message))
			d.rounds[r] = next
			d.remember(next)
			if out != nil && out.Kind == round.OutputDecide {
				d.decided = true
			}
			return liftedOutputs(out)
		}, func() {
			d.pendingPrecommitValue[r] = value
		})
	case votekeeper.PrecommitAnyEvent:
		next, out := round.Apply(st, info, round.PrecommitAnyInput())
		d.rounds[r] = next
		d.remember(next)
		return liftedOutputs(out)
	case votekeeper.SkipRoundEvent:
		next, out := round.Apply(st, info, round.RoundSkipInput(r))
		d.rounds[r] = next
		d.remember(next)
		return liftedOutputs(out)
	default:
		return nil
	}
}

// withMatchingProposal looks up the proposal for value at round r from
// that round's selected proposer only; if found, onMatch runs, otherwise
// onMiss records the event as pending until a matching Proposal input
// arrives.
func (d *Driver) withMatchingProposal(r types.Round, value types.ValueID, onMatch func(types.SignedProposal, types.Validity) []Output, onMiss func()) []Output {
	proposer := d.proposerFor(r)
	sp, validity, ok := d.proposals.GetProposalAndValidityForRound(r, proposer)
	if ok && sp.Message.Value.ID() == value {
		return onMatch(sp, validity)
	}
	onMiss()
	return nil
}

// applyPolkaCertificate verifies (by construction — callers must verify
// signatures before calling Apply) and folds cert into a
// ProposalAndPolkaPrevious/Current input exactly once, for hidden-lock
// recovery and restart per spec.md §4.4/§4.6.
func (d *Driver) applyPolkaCertificate(cert types.PolkaCertificate) []Output {
	r := cert.Round
	proposer := d.proposerFor(r)
	sp, validity, ok := d.proposals.GetProposalAndValidityForRound(r, proposer)
	if !ok || sp.Message.Value.ID() != cert.ValueID {
		kind := pendingPolkaPrevious
		if r.Equal(d.currentRound) {
			kind = pendingPolkaCurrent
		}
		d.pendingPolka[r] = pendingPolka{kind: kind, value: cert.ValueID}
		return nil
	}
	info := d.info(r)
	st := d.roundState(r)
	var in round.Input
	if r.Equal(d.currentRound) {
		in = round.ProposalAndPolkaCurrentInput(sp.Message)
	} else {
		in = round.ProposalAndPolkaPreviousInput(sp.Message, validity)
	}
	next, out := round.Apply(st, info, in)
	d.rounds[r] = next
	d.remember(next)
	return liftedOutputs(out)
}

// applyCommitCertificate is the short-circuit decision path used by state
// sync: it decides the height directly from cert without replaying every
// individual vote.
func (d *Driver) applyCommitCertificate(cert types.CommitCertificate) []Output {
	if d.decided {
		return nil
	}
	r := cert.Round
	proposer := d.proposerFor(r)
	sp, _, ok := d.proposals.GetProposalAndValidityForRound(r, proposer)
	if !ok || sp.Message.Value.ID() != cert.ValueID {
		return nil
	}
	d.decided = true
	out := round.DecideOutput(sp.Message.Value)
	return []Output{out}
}

func (d *Driver) applyTimeout(t types.Timeout) []Output {
	r := t.Round
	st := d.roundState(r)
	info := d.info(r)

	var in round.Input
	switch t.Kind {
	case types.TimeoutPropose:
		in = round.TimeoutProposeInput()
	case types.TimeoutPrevote:
		in = round.TimeoutPrevoteInput()
	case types.TimeoutPrecommit:
		in = round.TimeoutPrecommitInput()
	default:
		return nil
	}
	next, out := round.Apply(st, info, in)
	d.rounds[r] = next
	d.remember(next)
	return liftedOutputs(out)
}

func liftedOutputs(out *round.Output) []Output {
	if out == nil {
		return nil
	}
	return []Output{*out}
}

// CurrentRound returns the round the driver currently considers active.
func (d *Driver) CurrentRound() types.Round { return d.currentRound }

// Height returns the height this Driver was constructed for.
func (d *Driver) Height() types.Height { return d.height }

// Self returns the address this Driver acts on behalf of.
func (d *Driver) Self() types.Address { return d.self }

// PrecommitsFor returns every distinct-voter precommit recorded for value at
// round, for building a CommitCertificate at decision time.
func (d *Driver) PrecommitsFor(round types.Round, value types.ValueID) []types.SignedVote {
	return d.votes.PrecommitsFor(round, value)
}

// VotesAt returns every vote recorded at round, for answering a
// VoteSetRequest.
func (d *Driver) VotesAt(round types.Round) []types.SignedVote {
	return d.votes.VotesAt(round)
}

// VoteEvidence returns every vote equivocation observed so far at this
// height.
func (d *Driver) VoteEvidence() []votekeeper.Equivocation {
	return d.votes.Evidence()
}

// ProposalEvidence returns every proposal equivocation observed so far at
// this height.
func (d *Driver) ProposalEvidence() []proposalkeeper.Equivocation {
	return d.proposals.Evidence()
}

// Locked returns the value and round this height is currently locked on, if
// any, for hidden-lock-recovery gossip decisions (spec.md §4.6).
func (d *Driver) Locked() *types.RoundAndValue { return d.locked }

func (d *Driver) String() string {
	return fmt.Sprintf("driver(height=%s, round=%s)", d.height, d.currentRound)
}
