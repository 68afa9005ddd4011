// Package round implements the pure per-round Tendermint state machine:
// given (state, info, input), it returns (new state, optional output), with
// no I/O and no mutation outside the returned state. Grounded on the
// teacher's consensus/tendermint/core/handler.go checkUponConditions, which
// implements the same algorithm line-by-line against its own mutable Core
// rather than as a pure function; here every "Line NN" comment from the
// teacher becomes one case of Apply.
package round

import "github.com/autonity/tendermint/types"

// InputKind tags which alternative an Input carries.
type InputKind uint8

const (
	InputNewRound InputKind = iota
	InputProposeValue
	InputProposal
	InputProposalAndPolkaPrevious
	InputPolkaAny
	InputPolkaNil
	InputProposalAndPolkaCurrent
	InputPrecommitAny
	InputProposalAndPrecommitValue
	InputRoundSkip
	InputTimeoutPropose
	InputTimeoutPrevote
	InputTimeoutPrecommit
)

func (k InputKind) String() string {
	switch k {
	case InputNewRound:
		return "new-round"
	case InputProposeValue:
		return "propose-value"
	case InputProposal:
		return "proposal"
	case InputProposalAndPolkaPrevious:
		return "proposal-and-polka-previous"
	case InputPolkaAny:
		return "polka-any"
	case InputPolkaNil:
		return "polka-nil"
	case InputProposalAndPolkaCurrent:
		return "proposal-and-polka-current"
	case InputPrecommitAny:
		return "precommit-any"
	case InputProposalAndPrecommitValue:
		return "proposal-and-precommit-value"
	case InputRoundSkip:
		return "round-skip"
	case InputTimeoutPropose:
		return "timeout-propose"
	case InputTimeoutPrevote:
		return "timeout-prevote"
	case InputTimeoutPrecommit:
		return "timeout-precommit"
	default:
		return "unknown-round-input"
	}
}

// Input is one event fed to Apply. Only the fields relevant to Kind are
// meaningful; the zero value of the rest is ignored.
type Input struct {
	Kind InputKind

	// NewRound, RoundSkip
	Proposer types.Address
	SkipTo   types.Round

	// ProposeValue
	Value types.Value

	// Proposal, ProposalAndPolkaPrevious, ProposalAndPolkaCurrent,
	// ProposalAndPrecommitValue
	Proposal types.Proposal
	Validity types.Validity
}

// NewRoundInput begins a round, naming who proposes it.
func NewRoundInput(proposer types.Address) Input {
	return Input{Kind: InputNewRound, Proposer: proposer}
}

// ProposeValueInput delivers a host-constructed value in answer to a
// GetValue output.
func ProposeValueInput(v types.Value) Input {
	return Input{Kind: InputProposeValue, Value: v}
}

// ProposalInput is a first-time proposal whose PolRound is Nil.
func ProposalInput(p types.Proposal, validity types.Validity) Input {
	return Input{Kind: InputProposal, Proposal: p, Validity: validity}
}

// ProposalAndPolkaPreviousInput is a proposal with PolRound < current round,
// already matched by a polka for the proposal's value at that round.
func ProposalAndPolkaPreviousInput(p types.Proposal, validity types.Validity) Input {
	return Input{Kind: InputProposalAndPolkaPrevious, Proposal: p, Validity: validity}
}

// PolkaAnyInput is a quorum of prevotes for any value (including Nil) at the
// current round.
func PolkaAnyInput() Input { return Input{Kind: InputPolkaAny} }

// PolkaNilInput is a quorum of prevotes for Nil at the current round.
func PolkaNilInput() Input { return Input{Kind: InputPolkaNil} }

// ProposalAndPolkaCurrentInput is a proposal matched by a polka for its
// value at the current round.
func ProposalAndPolkaCurrentInput(p types.Proposal) Input {
	return Input{Kind: InputProposalAndPolkaCurrent, Proposal: p}
}

// PrecommitAnyInput is a quorum of precommits for any value at the current
// round.
func PrecommitAnyInput() Input { return Input{Kind: InputPrecommitAny} }

// ProposalAndPrecommitValueInput is a proposal matched by a commit quorum
// for its value.
func ProposalAndPrecommitValueInput(p types.Proposal) Input {
	return Input{Kind: InputProposalAndPrecommitValue, Proposal: p}
}

// RoundSkipInput is f+1 weight of messages observed at a future round.
func RoundSkipInput(to types.Round) Input {
	return Input{Kind: InputRoundSkip, SkipTo: to}
}

// TimeoutProposeInput is the elapsed Propose timeout.
func TimeoutProposeInput() Input { return Input{Kind: InputTimeoutPropose} }

// TimeoutPrevoteInput is the elapsed Prevote timeout.
func TimeoutPrevoteInput() Input { return Input{Kind: InputTimeoutPrevote} }

// TimeoutPrecommitInput is the elapsed Precommit timeout.
func TimeoutPrecommitInput() Input { return Input{Kind: InputTimeoutPrecommit} }

// Info carries the context Apply needs beyond the state itself: which
// height/round this call concerns, this node's own address, and who
// proposes the current round.
type Info struct {
	Height           types.Height
	Round            types.Round
	Address          types.Address
	ProposerForRound types.Address
}

// IsProposer reports whether this node proposes the current round.
func (i Info) IsProposer() bool { return i.Address == i.ProposerForRound }
