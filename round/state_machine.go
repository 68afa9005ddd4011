package round

import "github.com/autonity/tendermint/types"

// State is a round-machine instance's full state: the public RoundState
// spec.md §3 defines, plus the bookkeeping Apply needs to keep "PolkaAny"
// and "PrecommitAny" idempotent within one round (spec.md §4.1's edge-case
// policy), which is incidental to the state machine, not part of the data
// model other packages observe.
type State struct {
	types.RoundState

	prevoteTimeoutArmed   bool
	precommitTimeoutArmed bool
}

// NewState returns the Unstarted state a round begins in.
func NewState(h types.Height, r types.Round) State {
	return State{RoundState: types.NewRoundState(h, r)}
}

// Apply is the pure transition function spec.md §4.1 names: given the
// current state, the round's context, and one input, it returns the next
// state and, at most, one output. It performs no I/O and mutates nothing
// outside its return value. Grounded one-to-one on the teacher's
// checkUponConditions in consensus/tendermint/core/handler.go, whose
// "Line NN" comments mark the same Tendermint algorithm lines as the cases
// below.
func Apply(state State, info Info, input Input) (State, *Output) {
	switch input.Kind {
	case InputNewRound:
		return applyNewRound(state, info, input)
	case InputProposeValue:
		return applyProposeValue(state, info, input)
	case InputProposal:
		return applyProposal(state, info, input)
	case InputProposalAndPolkaPrevious:
		return applyProposalAndPolkaPrevious(state, info, input)
	case InputPolkaAny:
		return applyPolkaAny(state, info)
	case InputPolkaNil:
		return applyPolkaNil(state, info)
	case InputProposalAndPolkaCurrent:
		return applyProposalAndPolkaCurrent(state, info, input)
	case InputPrecommitAny:
		return applyPrecommitAny(state, info)
	case InputProposalAndPrecommitValue:
		return applyProposalAndPrecommitValue(state, info, input)
	case InputRoundSkip:
		return applyRoundSkip(state, input)
	case InputTimeoutPropose:
		return applyTimeoutPropose(state, info)
	case InputTimeoutPrevote:
		return applyTimeoutPrevote(state, info)
	case InputTimeoutPrecommit:
		return applyTimeoutPrecommit(state, info)
	default:
		return state, nil
	}
}

// Line 11-21: new round, proposer either proposes (possibly re-proposing a
// valid value from an earlier round) or schedules the propose timeout.
func applyNewRound(state State, info Info, input Input) (State, *Output) {
	if state.Step != types.StepUnstarted {
		return state, nil
	}
	state.Step = types.StepPropose

	if !info.IsProposer() {
		out := ScheduleTimeoutOutput(types.Timeout{Round: info.Round, Kind: types.TimeoutPropose})
		return state, &out
	}
	if state.Valid != nil {
		out := ProposalOutput(state.Valid.Value, state.Valid.Round)
		return state, &out
	}
	out := GetValueOutput(types.Timeout{Round: info.Round, Kind: types.TimeoutPropose})
	return state, &out
}

// Line 14: the host answers a pending GetValue with a value to propose.
func applyProposeValue(state State, info Info, input Input) (State, *Output) {
	if state.Step != types.StepPropose || !info.IsProposer() {
		return state, nil
	}
	out := ProposalOutput(input.Value, types.NilRound)
	return state, &out
}

// Line 22: first-time proposal (pol_round = Nil).
func applyProposal(state State, info Info, input Input) (State, *Output) {
	if state.Step != types.StepPropose {
		return state, nil
	}
	valid := input.Validity == types.ValidityValid && state.Locked == nil
	state.Step = types.StepPrevote

	var value types.NilOrVal[types.ValueID]
	if valid {
		value = types.Val(input.Proposal.Value.ID())
	} else {
		value = types.Nil[types.ValueID]()
	}
	out := PrevoteOutput(value)
	return state, &out
}

// Line 28: proposal with pol_round = vr < r, matched by a polka for the
// proposal's value at vr.
func applyProposalAndPolkaPrevious(state State, info Info, input Input) (State, *Output) {
	if state.Step != types.StepPropose {
		return state, nil
	}
	vr := input.Proposal.PolRound
	justified := state.Locked == nil ||
		sameValue(state.Locked.Value, input.Proposal.Value) ||
		state.Locked.Round.Compare(vr) <= 0
	valid := input.Validity == types.ValidityValid && justified
	state.Step = types.StepPrevote

	var value types.NilOrVal[types.ValueID]
	if valid {
		value = types.Val(input.Proposal.Value.ID())
	} else {
		value = types.Nil[types.ValueID]()
	}
	out := PrevoteOutput(value)
	return state, &out
}

// Line 34: quorum of prevotes for any value while in Prevote arms the
// Prevote timeout, at most once per round.
func applyPolkaAny(state State, info Info) (State, *Output) {
	if state.Step != types.StepPrevote || state.prevoteTimeoutArmed {
		return state, nil
	}
	state.prevoteTimeoutArmed = true
	out := ScheduleTimeoutOutput(types.Timeout{Round: info.Round, Kind: types.TimeoutPrevote})
	return state, &out
}

// Line 44: quorum of prevotes for Nil while in Prevote.
func applyPolkaNil(state State, info Info) (State, *Output) {
	if state.Step != types.StepPrevote {
		return state, nil
	}
	state.Step = types.StepPrecommit
	out := PrecommitOutput(types.Nil[types.ValueID]())
	return state, &out
}

// Line 36: matching proposal and polka at the current round. Always
// updates valid; locks and precommits only the first time this fires while
// still in Prevote.
func applyProposalAndPolkaCurrent(state State, info Info, input Input) (State, *Output) {
	if state.Step != types.StepPrevote && state.Step != types.StepPrecommit {
		return state, nil
	}
	rv := types.RoundAndValue{Value: input.Proposal.Value, Round: info.Round}
	state.Valid = &rv

	if state.Step != types.StepPrevote {
		return state, nil
	}
	locked := rv
	state.Locked = &locked
	state.Step = types.StepPrecommit
	out := PrecommitOutput(types.Val(input.Proposal.Value.ID()))
	return state, &out
}

// Line 47: quorum of precommits for any value arms the Precommit timeout,
// at most once per round.
func applyPrecommitAny(state State, info Info) (State, *Output) {
	if state.Step == types.StepUnstarted || state.Step == types.StepCommit || state.precommitTimeoutArmed {
		return state, nil
	}
	state.precommitTimeoutArmed = true
	out := ScheduleTimeoutOutput(types.Timeout{Round: info.Round, Kind: types.TimeoutPrecommit})
	return state, &out
}

// Line 49: matching proposal and commit quorum decides the round.
func applyProposalAndPrecommitValue(state State, info Info, input Input) (State, *Output) {
	if state.Decision != nil {
		return state, nil
	}
	decision := types.RoundAndValue{Value: input.Proposal.Value, Round: info.Round}
	state.Decision = &decision
	state.Step = types.StepCommit
	out := DecideOutput(input.Proposal.Value)
	return state, &out
}

// Line 55: f+1 weight observed at a future round, regardless of current
// step, justifies skipping ahead — unless this round has already decided.
func applyRoundSkip(state State, input Input) (State, *Output) {
	if state.Decision != nil {
		return state, nil
	}
	out := NewRoundOutput(input.SkipTo)
	return state, &out
}

func applyTimeoutPropose(state State, info Info) (State, *Output) {
	if state.Step != types.StepPropose {
		return state, nil
	}
	state.Step = types.StepPrevote
	out := PrevoteOutput(types.Nil[types.ValueID]())
	return state, &out
}

func applyTimeoutPrevote(state State, info Info) (State, *Output) {
	if state.Step != types.StepPrevote {
		return state, nil
	}
	state.Step = types.StepPrecommit
	out := PrecommitOutput(types.Nil[types.ValueID]())
	return state, &out
}

func applyTimeoutPrecommit(state State, info Info) (State, *Output) {
	if state.Step != types.StepPrecommit {
		return state, nil
	}
	out := NewRoundOutput(info.Round.Increment())
	return state, &out
}

func sameValue(a types.Value, b types.Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID() == b.ID()
}
