package consensus_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonity/tendermint/consensus"
	"github.com/autonity/tendermint/internal/testsupport"
	"github.com/autonity/tendermint/types"
	"github.com/autonity/tendermint/wal"
)

// network bundles a validator set with the identity of each member, and
// picks out the proposer for a given round the same way FakeHost.
// SelectProposer does, so tests can construct messages from "the other
// three validators" without guessing indices.
type network struct {
	vs  *types.ValidatorSet
	ids []testsupport.Ed25519Identity
}

func newNetwork(t *testing.T, n int) network {
	t.Helper()
	vs, ids := testsupport.NewValidatorSet(n, 1)
	return network{vs: vs, ids: ids}
}

func (nw network) proposer(height types.Height, r types.Round) testsupport.Ed25519Identity {
	idx := (int(height) + int(r.AsI64())) % nw.vs.Count()
	v, _ := nw.vs.GetByIndex(idx)
	for _, id := range nw.ids {
		if id.Address == v.Address {
			return id
		}
	}
	panic("consensus_test: proposer address not found among identities")
}

func (nw network) others(except types.Address) []testsupport.Ed25519Identity {
	var out []testsupport.Ed25519Identity
	for _, id := range nw.ids {
		if id.Address != except {
			out = append(out, id)
		}
	}
	return out
}

func newHandler(t *testing.T, self testsupport.Ed25519Identity, value types.Value) (*consensus.Handler, *testsupport.FakeHost) {
	t.Helper()
	host := testsupport.NewFakeHost(self, func(types.Height, types.Round) types.Value { return value })
	log, err := wal.Open(filepath.Join(t.TempDir(), "wal"), 0, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	h := consensus.NewHandler(consensus.DefaultConfig(), host, testsupport.Ed25519Scheme{}, testsupport.HashValueCodec{}, self.Address, log)
	return h, host
}

func findEffect(effects []consensus.Effect, kind consensus.EffectKind) *consensus.Effect {
	for i := range effects {
		if effects[i].Kind == kind {
			return &effects[i]
		}
	}
	return nil
}

func countEffects(effects []consensus.Effect, kind consensus.EffectKind) int {
	n := 0
	for _, e := range effects {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func testValue(b byte) types.Value {
	var h common.Hash
	h[0] = b
	return testsupport.HashValue(h)
}

func signPrevote(t *testing.T, id testsupport.Ed25519Identity, r types.Round, value types.ValueID) types.SignedVote {
	t.Helper()
	sv, err := testsupport.SignVote(id, types.Vote{Type: types.PrevoteType, Height: types.HeightZero, Round: r, Value: types.Val(value), Voter: id.Address})
	require.NoError(t, err)
	return sv
}

func signPrecommit(t *testing.T, id testsupport.Ed25519Identity, r types.Round, value types.ValueID) types.SignedVote {
	t.Helper()
	sv, err := testsupport.SignVote(id, types.Vote{Type: types.PrecommitType, Height: types.HeightZero, Round: r, Value: types.Val(value), Voter: id.Address})
	require.NoError(t, err)
	return sv
}

// TestHandlerProposerHappyPathDecides drives the Handler acting as this
// round's proposer: starting the height should yield its own signed
// proposal and (once fed back through the driver) its own prevote;
// supplying two more validators' prevotes should trigger its own
// precommit, and two more precommits should decide the height.
func TestHandlerProposerHappyPathDecides(t *testing.T) {
	nw := newNetwork(t, 4)
	self := nw.proposer(types.HeightZero, types.RoundZero)
	value := testValue(0xAA)

	h, host := newHandler(t, self, value)
	ctx := context.Background()

	effects, err := h.Handle(ctx, consensus.StartHeightInput(types.HeightZero, nw.vs))
	require.NoError(t, err)

	proposalBroadcast := findEffect(effects, consensus.EffectBroadcast)
	require.NotNil(t, proposalBroadcast)
	require.Equal(t, types.ConsensusMsgProposal, proposalBroadcast.Message.Kind)
	assert.Equal(t, value.ID(), proposalBroadcast.Message.Proposal.Message.Value.ID())

	require.Equal(t, 2, countEffects(effects, consensus.EffectBroadcast), "proposer must also broadcast its own prevote once its proposal is fed back")

	others := nw.others(self.Address)
	require.Len(t, others, 3)

	effects, err = h.Handle(ctx, consensus.VoteInput(signPrevote(t, others[0], types.RoundZero, value.ID())))
	require.NoError(t, err)
	assert.Nil(t, findEffect(effects, consensus.EffectBroadcast), "one more prevote (2 total) is not yet quorum over 4 validators")

	effects, err = h.Handle(ctx, consensus.VoteInput(signPrevote(t, others[1], types.RoundZero, value.ID())))
	require.NoError(t, err)
	precommitBroadcast := findEffect(effects, consensus.EffectBroadcast)
	require.NotNil(t, precommitBroadcast, "self prevote + 2 external prevotes reach 2f+1 and must trigger a precommit")
	assert.Equal(t, types.ConsensusMsgVote, precommitBroadcast.Message.Kind)
	assert.Equal(t, types.PrecommitType, precommitBroadcast.Message.Vote.Message.Type)

	effects, err = h.Handle(ctx, consensus.VoteInput(signPrecommit(t, others[0], types.RoundZero, value.ID())))
	require.NoError(t, err)
	assert.Nil(t, findEffect(effects, consensus.EffectDecide))

	effects, err = h.Handle(ctx, consensus.VoteInput(signPrecommit(t, others[1], types.RoundZero, value.ID())))
	require.NoError(t, err)
	decide := findEffect(effects, consensus.EffectDecide)
	require.NotNil(t, decide, "self precommit + 2 external precommits reach 2f+1 and must decide")
	assert.Equal(t, value.ID(), decide.Certificate.ValueID)

	decisions := host.Decisions()
	require.Len(t, decisions, 1)
	assert.Equal(t, value.ID(), decisions[0].Certificate.ValueID)
	assert.Len(t, decisions[0].Certificate.Commits, 3)
}

// TestHandlerNonProposerFollowsQuorum drives the Handler for a validator
// that is NOT this round's proposer: it must verify and accept the
// proposer's signed proposal and prevote for it, precommit once a matching
// polka forms, and eventually decide, all without ever calling GetValue
// itself.
func TestHandlerNonProposerFollowsQuorum(t *testing.T) {
	nw := newNetwork(t, 4)
	proposer := nw.proposer(types.HeightZero, types.RoundZero)
	value := testValue(0xBB)

	var self testsupport.Ed25519Identity
	for _, id := range nw.ids {
		if id.Address != proposer.Address {
			self = id
			break
		}
	}

	h, host := newHandler(t, self, value)
	ctx := context.Background()

	effects, err := h.Handle(ctx, consensus.StartHeightInput(types.HeightZero, nw.vs))
	require.NoError(t, err)
	require.NotNil(t, findEffect(effects, consensus.EffectScheduleTimeout), "a non-proposer must arm the propose timeout while waiting")
	assert.Nil(t, findEffect(effects, consensus.EffectGetValue))

	sp, err := testsupport.SignProposal(proposer, types.Proposal{
		Height: types.HeightZero, Round: types.RoundZero, Value: value, PolRound: types.NilRound, Proposer: proposer.Address,
	})
	require.NoError(t, err)

	effects, err = h.Handle(ctx, consensus.ProposalInput(sp))
	require.NoError(t, err)
	prevoteBroadcast := findEffect(effects, consensus.EffectBroadcast)
	require.NotNil(t, prevoteBroadcast, "a valid first-time proposal must produce this node's own prevote")
	assert.Equal(t, types.PrevoteType, prevoteBroadcast.Message.Vote.Message.Type)

	others := nw.others(self.Address)
	require.Len(t, others, 3, "the remaining three validators, including the proposer, who also votes")

	_, err = h.Handle(ctx, consensus.VoteInput(signPrevote(t, others[0], types.RoundZero, value.ID())))
	require.NoError(t, err)
	effects, err = h.Handle(ctx, consensus.VoteInput(signPrevote(t, others[1], types.RoundZero, value.ID())))
	require.NoError(t, err)
	precommitBroadcast := findEffect(effects, consensus.EffectBroadcast)
	require.NotNil(t, precommitBroadcast)
	assert.Equal(t, types.PrecommitType, precommitBroadcast.Message.Vote.Message.Type)

	_, err = h.Handle(ctx, consensus.VoteInput(signPrecommit(t, others[0], types.RoundZero, value.ID())))
	require.NoError(t, err)
	effects, err = h.Handle(ctx, consensus.VoteInput(signPrecommit(t, others[1], types.RoundZero, value.ID())))
	require.NoError(t, err)
	require.NotNil(t, findEffect(effects, consensus.EffectDecide))
	assert.Len(t, host.Decisions(), 1)
}

// TestHandlerDedupDropsRepeatedVote confirms a vote already processed once
// produces no further effects the second time it arrives, per the
// Keccak256-keyed dedup cache handleVote/handleProposal share.
func TestHandlerDedupDropsRepeatedVote(t *testing.T) {
	nw := newNetwork(t, 4)
	self := nw.proposer(types.HeightZero, types.RoundZero)
	value := testValue(0xCC)
	h, _ := newHandler(t, self, value)
	ctx := context.Background()

	_, err := h.Handle(ctx, consensus.StartHeightInput(types.HeightZero, nw.vs))
	require.NoError(t, err)

	other := nw.others(self.Address)[0]
	sv := signPrevote(t, other, types.RoundZero, value.ID())

	effects, err := h.Handle(ctx, consensus.VoteInput(sv))
	require.NoError(t, err)
	require.NotNil(t, findEffect(effects, consensus.EffectVerifySignature))

	effects, err = h.Handle(ctx, consensus.VoteInput(sv))
	require.NoError(t, err)
	assert.Empty(t, effects, "a byte-identical repeated vote must be dropped before any verification effect")
}

// TestHandlerBuffersFutureHeight confirms an input for a height beyond the
// one in progress is buffered rather than applied, and is replayed once
// StartHeight advances to that height.
func TestHandlerBuffersFutureHeight(t *testing.T) {
	nw := newNetwork(t, 4)
	self := nw.proposer(types.HeightZero, types.RoundZero)
	value := testValue(0xDD)
	h, _ := newHandler(t, self, value)
	ctx := context.Background()

	_, err := h.Handle(ctx, consensus.StartHeightInput(types.HeightZero, nw.vs))
	require.NoError(t, err)

	other := nw.others(self.Address)[0]
	futureVote := signPrevote(t, other, types.RoundZero, value.ID())
	futureInput := consensus.VoteInput(futureVote)
	futureInput.Height = types.Height(1)

	effects, err := h.Handle(ctx, futureInput)
	require.NoError(t, err)
	assert.Nil(t, effects, "an input for a future height must be buffered, not applied immediately")

	effects, err = h.Handle(ctx, consensus.StartHeightInput(types.Height(1), nw.vs))
	require.NoError(t, err)
	require.NotNil(t, findEffect(effects, consensus.EffectVerifySignature), "starting the buffered height must replay what was held for it")
}
