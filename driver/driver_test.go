package driver

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonity/tendermint/round"
	"github.com/autonity/tendermint/threshold"
	"github.com/autonity/tendermint/types"
)

type testValue common.Hash

func (v testValue) ID() types.ValueID { return common.Hash(v) }

func addr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func fixedProposer(a types.Address) SelectProposer {
	return func(*types.ValidatorSet, types.Height, types.Round) types.Address { return a }
}

func fourValidators(t *testing.T) *types.ValidatorSet {
	t.Helper()
	vs, err := types.NewValidatorSet([]types.Validator{
		{Address: addr(1), VotingPower: 1},
		{Address: addr(2), VotingPower: 1},
		{Address: addr(3), VotingPower: 1},
		{Address: addr(4), VotingPower: 1},
	})
	require.NoError(t, err)
	return vs
}

func vote(vtype types.VoteType, r types.Round, voter types.Address, value types.NilOrVal[types.ValueID]) types.SignedVote {
	return types.SignedVote{Message: types.Vote{Type: vtype, Round: r, Voter: voter, Value: value}}
}

func findOutput(outs []Output, kind round.OutputKind) *Output {
	for i := range outs {
		if outs[i].Kind == kind {
			return &outs[i]
		}
	}
	return nil
}

func TestDriverFullHappyPathDecides(t *testing.T) {
	vs := fourValidators(t)
	proposer := addr(1)
	d := NewDriver(types.HeightZero, vs, threshold.DefaultParams, fixedProposer(proposer), proposer)

	outs := d.Apply(NewRoundInput(types.RoundZero))
	require.NotNil(t, findOutput(outs, round.OutputGetValue))

	val := testValue{9}
	sp := types.SignedProposal{Message: types.Proposal{
		Height: types.HeightZero, Round: types.RoundZero, Value: val,
		PolRound: types.NilRound, Proposer: proposer,
	}}
	outs = d.Apply(ProposalInput(sp, types.ValidityValid))
	prevote := findOutput(outs, round.OutputPrevote)
	require.NotNil(t, prevote)
	require.True(t, prevote.VoteValue.IsVal())

	valID := val.ID()
	for _, voter := range []types.Address{addr(1), addr(2), addr(3)} {
		outs = d.Apply(VoteInput(vote(types.PrevoteType, types.RoundZero, voter, types.Val(valID))))
	}
	precommit := findOutput(outs, round.OutputPrecommit)
	require.NotNil(t, precommit, "2f+1 prevotes for the proposed value must trigger a precommit")
	require.True(t, precommit.VoteValue.IsVal())

	for _, voter := range []types.Address{addr(1), addr(2), addr(3)} {
		outs = d.Apply(VoteInput(vote(types.PrecommitType, types.RoundZero, voter, types.Val(valID))))
	}
	decide := findOutput(outs, round.OutputDecide)
	require.NotNil(t, decide, "2f+1 precommits for the proposed value must decide")
	assert.Equal(t, val, decide.DecisionValue)
	assert.True(t, d.decided)
}

func TestDriverSkipRoundOnFuturePolkaWeight(t *testing.T) {
	vs := fourValidators(t)
	proposer := addr(1)
	d := NewDriver(types.HeightZero, vs, threshold.DefaultParams, fixedProposer(proposer), addr(4))
	d.Apply(NewRoundInput(types.RoundZero))

	future := types.NewRound(5)
	outs := d.Apply(VoteInput(vote(types.PrevoteType, future, addr(2), types.Val(types.ValueID{1}))))
	outs = append(outs, d.Apply(VoteInput(vote(types.PrevoteType, future, addr(3), types.Val(types.ValueID{1}))))...)

	newRound := findOutput(outs, round.OutputNewRound)
	require.NotNil(t, newRound, "f+1 weight at a future round must trigger a skip")
	assert.Equal(t, future, newRound.Round)
}
