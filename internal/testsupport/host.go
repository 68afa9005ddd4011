package testsupport

import (
	"context"
	"errors"
	"sync"

	"github.com/autonity/tendermint/consensus"
	"github.com/autonity/tendermint/types"
)

// Decision is one call FakeHost.Decide recorded.
type Decision struct {
	Certificate types.CommitCertificate
	Extensions  map[types.Address]types.Extension
}

// FakeHost is an in-memory consensus.Host standing in for one validator
// identity in a test network. Grounded on the teacher's backend_mock.go,
// which plays the same double role against core.Backend; this is a
// hand-written stand-in rather than a generated mock, since nothing in this
// module wires up a mock-generation step for consensus.Host.
type FakeHost struct {
	mu sync.Mutex

	self Ed25519Identity

	nextValue func(h types.Height, r types.Round) types.Value

	decisions []Decision
}

// NewFakeHost constructs a FakeHost acting on self's behalf. nextValue
// supplies the value GetValue returns; it may be called concurrently with
// itself across different heights/rounds.
func NewFakeHost(self Ed25519Identity, nextValue func(types.Height, types.Round) types.Value) *FakeHost {
	return &FakeHost{self: self, nextValue: nextValue}
}

var _ consensus.Host = (*FakeHost)(nil)

// SelectProposer round-robins over validators by (height+round) mod count,
// mirroring the teacher's weighted-round-robin proposer selection without
// the staking-weight bookkeeping a real implementation would need.
func (h *FakeHost) SelectProposer(validators *types.ValidatorSet, height types.Height, r types.Round) types.Address {
	n := validators.Count()
	idx := (int(height) + int(r.AsI64())) % n
	v, _ := validators.GetByIndex(idx)
	return v.Address
}

func (h *FakeHost) SignVote(v types.Vote) (types.SignedVote, error) {
	v.Voter = h.self.Address
	return SignVote(h.self, v)
}

func (h *FakeHost) SignProposal(p types.Proposal) (types.SignedProposal, error) {
	p.Proposer = h.self.Address
	return SignProposal(h.self, p)
}

func (h *FakeHost) VerifySignedVote(sv types.SignedVote, validator types.Validator) (bool, error) {
	return VerifySignedVote(sv, validator)
}

func (h *FakeHost) VerifySignedProposal(sp types.SignedProposal, validator types.Validator) (bool, error) {
	return VerifySignedProposal(sp, validator)
}

// VerifyProposedValue always accepts; per-test fixtures that need an
// invalid value construct their own Host or wrap FakeHost.
func (h *FakeHost) VerifyProposedValue(ctx context.Context, value types.Value) (types.Validity, error) {
	return types.ValidityValid, nil
}

// VerifyVoteExtension always accepts; the core never interprets extension
// bytes itself, so a fixture that needs rejection should wrap FakeHost.
func (h *FakeHost) VerifyVoteExtension(ctx context.Context, ext types.Extension, validator types.Validator) (bool, error) {
	return true, nil
}

func (h *FakeHost) GetValue(ctx context.Context, height types.Height, r types.Round) (types.Value, error) {
	return h.nextValue(height, r), nil
}

// GetValidatorSet is not wired for any fixture yet: every test constructs
// its validator set up front and drives InputStartHeight with it directly.
func (h *FakeHost) GetValidatorSet(ctx context.Context, height types.Height) (*types.ValidatorSet, error) {
	return nil, errors.New("testsupport: GetValidatorSet not wired for this fixture")
}

func (h *FakeHost) Decide(cert types.CommitCertificate, extensions map[types.Address]types.Extension) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.decisions = append(h.decisions, Decision{Certificate: cert, Extensions: extensions})
}

// Decisions returns a copy of every Decide call recorded so far.
func (h *FakeHost) Decisions() []Decision {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Decision, len(h.decisions))
	copy(out, h.decisions)
	return out
}
