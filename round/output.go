package round

import "github.com/autonity/tendermint/types"

// OutputKind tags which alternative an Output carries.
type OutputKind uint8

const (
	OutputNewRound OutputKind = iota
	OutputGetValue
	OutputScheduleTimeout
	OutputProposal
	OutputPrevote
	OutputPrecommit
	OutputDecide
)

func (k OutputKind) String() string {
	switch k {
	case OutputNewRound:
		return "new-round"
	case OutputGetValue:
		return "get-value"
	case OutputScheduleTimeout:
		return "schedule-timeout"
	case OutputProposal:
		return "proposal"
	case OutputPrevote:
		return "prevote"
	case OutputPrecommit:
		return "precommit"
	case OutputDecide:
		return "decide"
	default:
		return "unknown-round-output"
	}
}

// Output is the (at most one) side effect Apply asks the driver to perform.
// Only the fields relevant to Kind are meaningful.
type Output struct {
	Kind OutputKind

	Round    types.Round // NewRound
	Proposer types.Address

	Timeout types.Timeout // GetValue, ScheduleTimeout

	ProposalValue types.Value // Proposal
	PolRound      types.Round // Proposal

	VoteValue types.NilOrVal[types.ValueID] // Prevote, Precommit

	DecisionValue types.Value // Decide
}

// NewRoundOutput asks the driver to enter round r.
func NewRoundOutput(r types.Round) Output {
	return Output{Kind: OutputNewRound, Round: r}
}

// GetValueOutput asks the host to produce a value to propose, to be
// delivered back via ProposeValueInput once it is ready; timeout is the
// propose timeout armed alongside the request.
func GetValueOutput(timeout types.Timeout) Output {
	return Output{Kind: OutputGetValue, Timeout: timeout}
}

// ScheduleTimeoutOutput asks the driver to arm timeout.
func ScheduleTimeoutOutput(timeout types.Timeout) Output {
	return Output{Kind: OutputScheduleTimeout, Timeout: timeout}
}

// ProposalOutput asks the driver to sign and broadcast a proposal for value
// with the given justifying PolRound (Nil for a freshly proposed value).
func ProposalOutput(value types.Value, polRound types.Round) Output {
	return Output{Kind: OutputProposal, ProposalValue: value, PolRound: polRound}
}

// PrevoteOutput asks the driver to sign and broadcast a prevote for value.
func PrevoteOutput(value types.NilOrVal[types.ValueID]) Output {
	return Output{Kind: OutputPrevote, VoteValue: value}
}

// PrecommitOutput asks the driver to sign and broadcast a precommit for
// value.
func PrecommitOutput(value types.NilOrVal[types.ValueID]) Output {
	return Output{Kind: OutputPrecommit, VoteValue: value}
}

// DecideOutput announces that value has been decided this round.
func DecideOutput(value types.Value) Output {
	return Output{Kind: OutputDecide, DecisionValue: value}
}
