package driver

import "github.com/autonity/tendermint/types"

// InputKind tags which alternative a driver Input carries, matching the
// bullet list in spec.md §4.4.
type InputKind uint8

const (
	InputKindNewRound InputKind = iota
	InputKindProposeValue
	InputKindProposal
	InputKindVote
	InputKindPolkaCertificate
	InputKindCommitCertificate
	InputKindTimeoutElapsed
)

// Input is one event fed to Driver.Apply.
type Input struct {
	Kind InputKind

	Round types.Round // NewRound

	Value types.Value // ProposeValue

	Proposal types.SignedProposal // Proposal
	Validity types.Validity

	Vote types.SignedVote // Vote

	Certificate       types.PolkaCertificate  // PolkaCertificate
	CommitCertificate types.CommitCertificate // CommitCertificate

	Timeout types.Timeout // TimeoutElapsed
}

// NewRoundInput enters round r.
func NewRoundInput(r types.Round) Input { return Input{Kind: InputKindNewRound, Round: r} }

// ProposeValueInput delivers a host-constructed value in answer to a
// GetValue output.
func ProposeValueInput(v types.Value) Input { return Input{Kind: InputKindProposeValue, Value: v} }

// ProposalInput stores and routes a signed proposal of the given validity.
func ProposalInput(sp types.SignedProposal, validity types.Validity) Input {
	return Input{Kind: InputKindProposal, Proposal: sp, Validity: validity}
}

// VoteInput routes a signed vote through the vote keeper.
func VoteInput(sv types.SignedVote) Input { return Input{Kind: InputKindVote, Vote: sv} }

// PolkaCertificateInput folds a verified polka certificate into the round
// it attests.
func PolkaCertificateInput(cert types.PolkaCertificate) Input {
	return Input{Kind: InputKindPolkaCertificate, Certificate: cert}
}

// CommitCertificateInput decides the height directly from cert.
func CommitCertificateInput(cert types.CommitCertificate) Input {
	return Input{Kind: InputKindCommitCertificate, CommitCertificate: cert}
}

// TimeoutElapsedInput feeds an elapsed timeout to the round it names.
func TimeoutElapsedInput(t types.Timeout) Input {
	return Input{Kind: InputKindTimeoutElapsed, Timeout: t}
}
