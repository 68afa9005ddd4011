package round

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonity/tendermint/types"
)

type testValue common.Hash

func (v testValue) ID() types.ValueID { return common.Hash(v) }

func valueWithID(b byte) testValue {
	var v testValue
	v[0] = b
	return v
}

func testAddr(b byte) types.Address {
	var a types.Address
	a[0] = b
	return a
}

func TestNewRoundAsProposerWithNoValidValueRequestsValue(t *testing.T) {
	self := testAddr(1)
	info := Info{Height: types.HeightZero, Round: types.RoundZero, Address: self, ProposerForRound: self}
	state := NewState(types.HeightZero, types.RoundZero)

	next, out := Apply(state, info, NewRoundInput(self))

	require.NotNil(t, out)
	assert.Equal(t, OutputGetValue, out.Kind)
	assert.Equal(t, types.StepPropose, next.Step)
}

func TestNewRoundAsNonProposerSchedulesTimeout(t *testing.T) {
	self, other := testAddr(1), testAddr(2)
	info := Info{Height: types.HeightZero, Round: types.RoundZero, Address: self, ProposerForRound: other}
	state := NewState(types.HeightZero, types.RoundZero)

	next, out := Apply(state, info, NewRoundInput(other))

	require.NotNil(t, out)
	assert.Equal(t, OutputScheduleTimeout, out.Kind)
	assert.Equal(t, types.TimeoutPropose, out.Timeout.Kind)
	assert.Equal(t, types.StepPropose, next.Step)
}

func TestNewRoundAsProposerWithValidValueReProposes(t *testing.T) {
	self := testAddr(1)
	info := Info{Height: types.HeightZero, Round: types.NewRound(2), Address: self, ProposerForRound: self}
	state := NewState(types.HeightZero, types.NewRound(2))
	v := valueWithID(9)
	state.Valid = &types.RoundAndValue{Value: v, Round: types.RoundZero}

	_, out := Apply(state, info, NewRoundInput(self))

	require.NotNil(t, out)
	assert.Equal(t, OutputProposal, out.Kind)
	assert.Equal(t, v, out.ProposalValue)
	assert.Equal(t, types.RoundZero, out.PolRound)
}

func TestProposalWhenNotLockedPrevotesValue(t *testing.T) {
	self := testAddr(1)
	info := Info{Height: types.HeightZero, Round: types.RoundZero, Address: self}
	state := NewState(types.HeightZero, types.RoundZero)
	state.Step = types.StepPropose
	v := valueWithID(1)

	next, out := Apply(state, info, ProposalInput(types.Proposal{Value: v, PolRound: types.NilRound}, types.ValidityValid))

	require.NotNil(t, out)
	assert.Equal(t, OutputPrevote, out.Kind)
	require.True(t, out.VoteValue.IsVal())
	id, _ := out.VoteValue.Value()
	assert.Equal(t, v.ID(), id)
	assert.Equal(t, types.StepPrevote, next.Step)
}

func TestProposalWhenLockedOnDifferentValuePrevotesNil(t *testing.T) {
	self := testAddr(1)
	info := Info{Height: types.HeightZero, Round: types.RoundZero, Address: self}
	state := NewState(types.HeightZero, types.RoundZero)
	state.Step = types.StepPropose
	state.Locked = &types.RoundAndValue{Value: valueWithID(7), Round: types.RoundZero}

	_, out := Apply(state, info, ProposalInput(types.Proposal{Value: valueWithID(1), PolRound: types.NilRound}, types.ValidityValid))

	require.NotNil(t, out)
	assert.True(t, out.VoteValue.IsNil())
}

func TestProposalInvalidPrevotesNil(t *testing.T) {
	info := Info{Height: types.HeightZero, Round: types.RoundZero}
	state := NewState(types.HeightZero, types.RoundZero)
	state.Step = types.StepPropose

	_, out := Apply(state, info, ProposalInput(types.Proposal{Value: valueWithID(1)}, types.ValidityInvalid))

	require.NotNil(t, out)
	assert.True(t, out.VoteValue.IsNil())
}

func TestPolkaAnyArmsTimeoutOnceOnly(t *testing.T) {
	info := Info{Height: types.HeightZero, Round: types.RoundZero}
	state := NewState(types.HeightZero, types.RoundZero)
	state.Step = types.StepPrevote

	next, out := Apply(state, info, PolkaAnyInput())
	require.NotNil(t, out)
	assert.Equal(t, OutputScheduleTimeout, out.Kind)

	_, out2 := Apply(next, info, PolkaAnyInput())
	assert.Nil(t, out2, "a second PolkaAny in the same round must be idempotent")
}

func TestPolkaNilMovesToPrecommit(t *testing.T) {
	info := Info{Height: types.HeightZero, Round: types.RoundZero}
	state := NewState(types.HeightZero, types.RoundZero)
	state.Step = types.StepPrevote

	next, out := Apply(state, info, PolkaNilInput())

	require.NotNil(t, out)
	assert.Equal(t, OutputPrecommit, out.Kind)
	assert.True(t, out.VoteValue.IsNil())
	assert.Equal(t, types.StepPrecommit, next.Step)
}

func TestProposalAndPolkaCurrentLocksAndPrecommitsFromPrevote(t *testing.T) {
	info := Info{Height: types.HeightZero, Round: types.RoundZero}
	state := NewState(types.HeightZero, types.RoundZero)
	state.Step = types.StepPrevote
	v := valueWithID(3)

	next, out := Apply(state, info, ProposalAndPolkaCurrentInput(types.Proposal{Value: v}))

	require.NotNil(t, out)
	assert.Equal(t, OutputPrecommit, out.Kind)
	require.NotNil(t, next.Locked)
	assert.Equal(t, v, next.Locked.Value)
	require.NotNil(t, next.Valid)
	assert.Equal(t, types.StepPrecommit, next.Step)
}

func TestProposalAndPolkaCurrentPastPrevoteOnlyUpdatesValid(t *testing.T) {
	info := Info{Height: types.HeightZero, Round: types.RoundZero}
	state := NewState(types.HeightZero, types.RoundZero)
	state.Step = types.StepPrecommit
	v := valueWithID(3)

	next, out := Apply(state, info, ProposalAndPolkaCurrentInput(types.Proposal{Value: v}))

	assert.Nil(t, out)
	require.NotNil(t, next.Valid)
	assert.Equal(t, v, next.Valid.Value)
	assert.Nil(t, next.Locked)
	assert.Equal(t, types.StepPrecommit, next.Step)
}

func TestProposalAndPrecommitValueDecides(t *testing.T) {
	info := Info{Height: types.HeightZero, Round: types.RoundZero}
	state := NewState(types.HeightZero, types.RoundZero)
	state.Step = types.StepPrecommit
	v := valueWithID(5)

	next, out := Apply(state, info, ProposalAndPrecommitValueInput(types.Proposal{Value: v}))

	require.NotNil(t, out)
	assert.Equal(t, OutputDecide, out.Kind)
	assert.Equal(t, v, out.DecisionValue)
	assert.Equal(t, types.StepCommit, next.Step)
	require.NotNil(t, next.Decision)
}

func TestRoundSkipEmitsNewRound(t *testing.T) {
	state := NewState(types.HeightZero, types.RoundZero)
	state.Step = types.StepPrevote

	_, out := Apply(state, Info{}, RoundSkipInput(types.NewRound(4)))

	require.NotNil(t, out)
	assert.Equal(t, OutputNewRound, out.Kind)
	assert.Equal(t, types.NewRound(4), out.Round)
}

func TestTimeoutPrecommitMovesToNextRound(t *testing.T) {
	info := Info{Height: types.HeightZero, Round: types.NewRound(2)}
	state := NewState(types.HeightZero, types.NewRound(2))
	state.Step = types.StepPrecommit

	_, out := Apply(state, info, TimeoutPrecommitInput())

	require.NotNil(t, out)
	assert.Equal(t, OutputNewRound, out.Kind)
	assert.Equal(t, types.NewRound(3), out.Round)
}

func TestMismatchedStepIsIgnored(t *testing.T) {
	state := NewState(types.HeightZero, types.RoundZero)
	state.Step = types.StepPropose

	next, out := Apply(state, Info{}, TimeoutPrecommitInput())

	assert.Nil(t, out)
	assert.Equal(t, types.StepPropose, next.Step)
}
