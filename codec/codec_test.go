package codec

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autonity/tendermint/internal/testsupport"
	"github.com/autonity/tendermint/types"
)

func rlpStream(b []byte) *rlp.Stream {
	return rlp.NewStream(bytes.NewReader(b), 0)
}

func TestEncodeDecodeSignedVoteRoundTrips(t *testing.T) {
	scheme := testsupport.Ed25519Scheme{}
	_, ids := testsupport.NewValidatorSet(1, 1)

	sv, err := testsupport.SignVote(ids[0], types.Vote{
		Type: types.PrecommitType, Height: 7, Round: types.NewRound(2),
		Value: types.Val(types.ValueID{9}), Voter: ids[0].Address,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeSignedVote(&buf, sv, scheme))

	decoded, err := DecodeSignedVote(rlpStream(buf.Bytes()), scheme)
	require.NoError(t, err)
	assert.Equal(t, sv.Message.Type, decoded.Message.Type)
	assert.Equal(t, sv.Message.Height, decoded.Message.Height)
	assert.Equal(t, sv.Message.Round, decoded.Message.Round)
	assert.Equal(t, sv.Message.Value, decoded.Message.Value)
	assert.Equal(t, sv.Message.Voter, decoded.Message.Voter)
	assert.Equal(t, sv.Signature, decoded.Signature)
}

func TestEncodeDecodeVoteWithNilValueRoundTrips(t *testing.T) {
	v := types.Vote{Type: types.PrevoteType, Height: 1, Round: types.NilRound, Value: types.Nil[types.ValueID]()}

	var buf bytes.Buffer
	require.NoError(t, EncodeVote(&buf, v))

	decoded, err := DecodeVote(rlpStream(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, v.Type, decoded.Type)
	assert.Equal(t, v.Height, decoded.Height)
	assert.True(t, decoded.Round.IsNil())
	assert.True(t, decoded.Value.IsNil())
}

func TestEncodeDecodeSignedProposalRoundTrips(t *testing.T) {
	scheme := testsupport.Ed25519Scheme{}
	vc := testsupport.HashValueCodec{}
	_, ids := testsupport.NewValidatorSet(1, 1)

	p := types.Proposal{
		Height: 3, Round: types.NewRound(1), PolRound: types.NilRound,
		Proposer: ids[0].Address, Value: testsupport.HashValue{1, 2, 3},
	}
	sp, err := testsupport.SignProposal(ids[0], p)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeSignedProposal(&buf, sp, scheme, vc))

	decoded, err := DecodeSignedProposal(rlpStream(buf.Bytes()), scheme, vc)
	require.NoError(t, err)
	assert.Equal(t, p, decoded.Message)
}

func TestEncodeDecodeSignedConsensusMsgDispatchesOnKind(t *testing.T) {
	scheme := testsupport.Ed25519Scheme{}
	vc := testsupport.HashValueCodec{}
	_, ids := testsupport.NewValidatorSet(1, 1)

	sv, err := testsupport.SignVote(ids[0], types.Vote{Type: types.PrevoteType, Height: 1, Round: types.RoundZero, Voter: ids[0].Address, Value: types.Nil[types.ValueID]()})
	require.NoError(t, err)
	msg := types.VoteMsg(sv)

	var buf bytes.Buffer
	require.NoError(t, EncodeSignedConsensusMsg(&buf, msg, scheme, vc))

	decoded, err := DecodeSignedConsensusMsg(rlpStream(buf.Bytes()), scheme, vc)
	require.NoError(t, err)
	assert.Equal(t, types.ConsensusMsgVote, decoded.Kind)
	assert.Equal(t, sv.Message.Voter, decoded.Vote.Message.Voter)
	assert.Equal(t, sv.Message.Round, decoded.Vote.Message.Round)
}
