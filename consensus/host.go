package consensus

import (
	"context"

	"github.com/autonity/tendermint/types"
)

// Host is the set of capabilities spec.md §6 lists as host-supplied: the
// embedding application answers proposer selection, signing, verification,
// value production, and decision delivery. The core never picks a concrete
// signing scheme or value type; Handler only ever calls through this
// interface. Grounded on the teacher's Backend interface
// (consensus/tendermint/core/backend_mock.go enumerates the analogous
// surface: VerifyProposal, Sign, CheckSignature, LastCommittedProposal,
// Commit), generalized off blockchain specifics.
type Host interface {
	// SelectProposer deterministically picks (h, r)'s proposer; every
	// honest node must compute the same answer.
	SelectProposer(validators *types.ValidatorSet, h types.Height, r types.Round) types.Address

	// SignVote and SignProposal produce this node's own signed messages.
	SignVote(v types.Vote) (types.SignedVote, error)
	SignProposal(p types.Proposal) (types.SignedProposal, error)

	// VerifySignedVote and VerifySignedProposal check a message's signature
	// against the signer's public key as recorded in validator.
	VerifySignedVote(sv types.SignedVote, validator types.Validator) (bool, error)
	VerifySignedProposal(sp types.SignedProposal, validator types.Validator) (bool, error)

	// VerifyProposedValue runs the host's business-logic validity check on
	// a value carried directly by a proposal (teacher: backend.VerifyProposal).
	VerifyProposedValue(ctx context.Context, value types.Value) (types.Validity, error)

	// VerifyVoteExtension checks a precommit's opaque extension bytes
	// against validator's key/role; the core never interprets ext itself.
	VerifyVoteExtension(ctx context.Context, ext types.Extension, validator types.Validator) (bool, error)

	// GetValue asks the host to produce a value this node should propose.
	// ctx's deadline bounds how long the handler will wait before falling
	// back to the Propose timeout expiring on its own.
	GetValue(ctx context.Context, h types.Height, r types.Round) (types.Value, error)

	// GetValidatorSet returns the validator set for height h.
	GetValidatorSet(ctx context.Context, h types.Height) (*types.ValidatorSet, error)

	// Decide delivers the final commit certificate and any vote extensions
	// collected from the precommits that produced it, exactly once per
	// height.
	Decide(certificate types.CommitCertificate, extensions map[types.Address]types.Extension)
}
