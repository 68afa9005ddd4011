package votekeeper

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonity/tendermint/threshold"
	"github.com/autonity/tendermint/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func valueID(b byte) types.ValueID {
	var h common.Hash
	h[0] = b
	return h
}

func signedVote(vtype types.VoteType, round types.Round, voter types.Address, value types.NilOrVal[types.ValueID]) types.SignedVote {
	return types.SignedVote{Message: types.Vote{Type: vtype, Round: round, Voter: voter, Value: value}}
}

func TestAddVoteEmitsPolkaValueOnceQuorumReached(t *testing.T) {
	k := NewKeeper(threshold.DefaultParams, 10)
	k.SetCurrentRound(types.RoundZero)
	val := types.Val(valueID(1))

	_, events, eq := k.AddVote(signedVote(types.PrevoteType, types.RoundZero, addr(1), val), 4)
	assert.Nil(t, eq)
	assert.Empty(t, events)

	_, events, eq = k.AddVote(signedVote(types.PrevoteType, types.RoundZero, addr(2), val), 2)
	assert.Nil(t, eq)
	assert.Empty(t, events, "6/10 does not yet exceed 2/3")

	weight, events, eq := k.AddVote(signedVote(types.PrevoteType, types.RoundZero, addr(3), val), 2)
	require.Nil(t, eq)
	require.Equal(t, threshold.VotingPower(8), weight)
	// Every prevote is for the same value, so the prevote sum crosses 2/3
	// together with the value's weight.
	require.Len(t, events, 2)
	assert.Equal(t, PolkaValueEvent, events[0].Kind)
	assert.Equal(t, PolkaAnyEvent, events[1].Kind)

	// A further vote for the same value must not re-emit the event.
	_, events, eq = k.AddVote(signedVote(types.PrevoteType, types.RoundZero, addr(4), val), 1)
	assert.Nil(t, eq)
	assert.Empty(t, events)
}

func TestAddVotePolkaNilAndPolkaAny(t *testing.T) {
	k := NewKeeper(threshold.DefaultParams, 9)
	k.SetCurrentRound(types.RoundZero)
	nilVal := types.Nil[types.ValueID]()

	_, _, _ = k.AddVote(signedVote(types.PrevoteType, types.RoundZero, addr(1), nilVal), 3)
	_, events, _ := k.AddVote(signedVote(types.PrevoteType, types.RoundZero, addr(2), nilVal), 4)
	require.Len(t, events, 2)
	kinds := []EventKind{events[0].Kind, events[1].Kind}
	assert.Contains(t, kinds, PolkaNilEvent)
	assert.Contains(t, kinds, PolkaAnyEvent)
}

func TestAddVoteDetectsEquivocation(t *testing.T) {
	k := NewKeeper(threshold.DefaultParams, 10)
	v1 := signedVote(types.PrecommitType, types.RoundZero, addr(1), types.Val(valueID(1)))
	v2 := signedVote(types.PrecommitType, types.RoundZero, addr(1), types.Val(valueID(2)))

	_, _, eq := k.AddVote(v1, 4)
	assert.Nil(t, eq)

	weight, events, eq := k.AddVote(v2, 4)
	require.NotNil(t, eq)
	assert.Equal(t, addr(1), eq.Voter)
	assert.Empty(t, events)
	assert.Equal(t, threshold.VotingPower(4), weight, "the conflicting vote must not add weight")
	assert.Len(t, k.Evidence(), 1)
}

func TestSkipRoundEmittedForFutureRound(t *testing.T) {
	k := NewKeeper(threshold.DefaultParams, 10)
	k.SetCurrentRound(types.RoundZero)

	futureRound := types.NewRound(3)
	_, events, eq := k.AddVote(signedVote(types.PrevoteType, futureRound, addr(1), types.Val(valueID(1))), 4)
	assert.Nil(t, eq)
	require.Len(t, events, 1)
	assert.Equal(t, SkipRoundEvent, events[0].Kind)
	assert.Equal(t, futureRound, events[0].Round)

	_, events, _ = k.AddVote(signedVote(types.PrevoteType, futureRound, addr(2), types.Val(valueID(1))), 1)
	assert.Empty(t, events, "skip-round fires at most once per round")
}
