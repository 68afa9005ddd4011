package consensus

import "github.com/autonity/tendermint/types"

// InputKind tags which alternative an Input carries, matching spec.md
// §4.6's "Input kinds" bullet list.
type InputKind uint8

const (
	InputStartHeight InputKind = iota
	InputVote
	InputProposal
	InputProposedValue
	InputTimeoutElapsed
	InputVoteSetRequest
	InputVoteSetResponse
	InputPolkaCertificate
	InputCommitCertificate
	InputRebroadcastTimeout
)

func (k InputKind) String() string {
	switch k {
	case InputStartHeight:
		return "start-height"
	case InputVote:
		return "vote"
	case InputProposal:
		return "proposal"
	case InputProposedValue:
		return "proposed-value"
	case InputTimeoutElapsed:
		return "timeout-elapsed"
	case InputVoteSetRequest:
		return "vote-set-request"
	case InputVoteSetResponse:
		return "vote-set-response"
	case InputPolkaCertificate:
		return "polka-certificate"
	case InputCommitCertificate:
		return "commit-certificate"
	case InputRebroadcastTimeout:
		return "rebroadcast-timeout"
	default:
		return "unknown-input"
	}
}

// Input is one event fed to Handler.Handle.
type Input struct {
	Kind InputKind

	Height     types.Height       // StartHeight, VoteSetRequest
	Validators *types.ValidatorSet // StartHeight

	Vote     types.SignedVote     // Vote
	Proposal types.SignedProposal // Proposal

	ProposedValue types.ProposedValue // ProposedValue
	Origin        types.ValueOrigin

	Timeout types.Timeout // TimeoutElapsed

	RequestID uint64         // VoteSetRequest, VoteSetResponse
	Round     types.Round    // VoteSetRequest
	Requester types.Address  // VoteSetRequest: who to reply to

	Votes        []types.SignedVote      // VoteSetResponse
	Certificates []types.RoundCertificate // VoteSetResponse

	PolkaCertificate  types.PolkaCertificate  // PolkaCertificate
	CommitCertificate types.CommitCertificate // CommitCertificate
}

// StartHeightInput begins height h with the given validator set.
func StartHeightInput(h types.Height, validators *types.ValidatorSet) Input {
	return Input{Kind: InputStartHeight, Height: h, Validators: validators}
}

// VoteInput carries a received or replayed signed vote.
func VoteInput(sv types.SignedVote) Input {
	return Input{Kind: InputVote, Height: sv.Message.Height, Vote: sv}
}

// ProposalInput carries a received or replayed signed proposal.
func ProposalInput(sp types.SignedProposal) Input {
	return Input{Kind: InputProposal, Height: sp.Message.Height, Proposal: sp}
}

// ProposedValueInput carries a value the host produced (origin Consensus)
// or that arrived via sync (origin Sync).
func ProposedValueInput(pv types.ProposedValue, origin types.ValueOrigin) Input {
	return Input{Kind: InputProposedValue, Height: pv.Height, ProposedValue: pv, Origin: origin}
}

// TimeoutElapsedInput carries a fired timeout for the given height.
func TimeoutElapsedInput(h types.Height, t types.Timeout) Input {
	return Input{Kind: InputTimeoutElapsed, Height: h, Timeout: t}
}

// VoteSetRequestInput asks for the votes held at (h, r); requester names who
// issued the request, for routing SendVoteSetResponse back to them.
func VoteSetRequestInput(reqID uint64, h types.Height, r types.Round, requester types.Address) Input {
	return Input{Kind: InputVoteSetRequest, RequestID: reqID, Height: h, Round: r, Requester: requester}
}

// VoteSetResponseInput delivers the votes/certificates a peer held in
// answer to a VoteSetRequest.
func VoteSetResponseInput(h types.Height, votes []types.SignedVote, certs []types.RoundCertificate) Input {
	return Input{Kind: InputVoteSetResponse, Height: h, Votes: votes, Certificates: certs}
}

// PolkaCertificateInput delivers a gossiped hidden-lock-recovery certificate.
func PolkaCertificateInput(cert types.PolkaCertificate) Input {
	return Input{Kind: InputPolkaCertificate, Height: cert.Height, PolkaCertificate: cert}
}

// CommitCertificateInput delivers a sync fast-path decision certificate.
func CommitCertificateInput(cert types.CommitCertificate) Input {
	return Input{Kind: InputCommitCertificate, Height: cert.Height, CommitCertificate: cert}
}

// RebroadcastTimeoutInput fires periodically to re-send the last vote this
// node broadcast at h, so peers that missed it can still see it.
func RebroadcastTimeoutInput(h types.Height) Input {
	return Input{Kind: InputRebroadcastTimeout, Height: h}
}
