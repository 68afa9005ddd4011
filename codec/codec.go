// Package codec implements the RLP wire encoding spec.md §6 names for
// signed consensus messages and WAL entries. It adapts the teacher's
// messages.go EncodeRLP/DecodeRLP pattern — most notably the
// isValidRoundNil boolean-flag trick for representing Round.Nil as -1,
// since RLP has no native negative-integer encoding — to the new types
// package's Round/Proposal/Vote shapes, and the teacher's accountability
// typedMessage tag-byte dispatch for encoding the Proposal/Vote union.
package codec

import (
	"bytes"
	"errors"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/autonity/tendermint/types"
)

// ErrUnknownCode is returned when a tag byte does not match any known
// message or WAL-entry kind.
var ErrUnknownCode = errors.New("codec: unknown message code")

// ValueCodec is the host-supplied capability to encode and decode its own
// opaque Value type; the core never interprets a Value's bytes itself; it
// only ever asks the host to (de)serialize one. Mirrors SigningScheme's
// role for signatures.
type ValueCodec interface {
	EncodeValue(w io.Writer, v types.Value) error
	DecodeValue(s *rlp.Stream) (types.Value, error)
}

// roundWire is the isValidRoundNil trick from the teacher's
// messages.Proposal.EncodeRLP, generalized to any Round field.
type roundWire struct {
	Value uint64
	IsNil bool
}

func encodeRound(r types.Round) roundWire {
	if r.IsNil() {
		return roundWire{IsNil: true}
	}
	return roundWire{Value: uint64(r.AsI64())}
}

func decodeRound(w roundWire) types.Round {
	if w.IsNil {
		return types.NilRound
	}
	return types.NewRound(int64(w.Value))
}

type valueIDWire struct {
	Value common.Hash
	IsNil bool
}

func encodeNilOrValueID(v types.NilOrVal[types.ValueID]) valueIDWire {
	if v.IsNil() {
		return valueIDWire{IsNil: true}
	}
	id, _ := v.Value()
	return valueIDWire{Value: id}
}

func decodeNilOrValueID(w valueIDWire) types.NilOrVal[types.ValueID] {
	if w.IsNil {
		return types.Nil[types.ValueID]()
	}
	return types.Val(w.Value)
}

// voteWire is the on-the-wire shape of a types.Vote.
type voteWire struct {
	Type      uint8
	Height    uint64
	Round     roundWire
	Value     valueIDWire
	Voter     common.Address
	Extension []byte
}

// EncodeVote writes v to w.
func EncodeVote(w io.Writer, v types.Vote) error {
	return rlp.Encode(w, voteWire{
		Type:      uint8(v.Type),
		Height:    uint64(v.Height),
		Round:     encodeRound(v.Round),
		Value:     encodeNilOrValueID(v.Value),
		Voter:     v.Voter,
		Extension: v.Extension,
	})
}

// DecodeVote reads a Vote from s.
func DecodeVote(s *rlp.Stream) (types.Vote, error) {
	var w voteWire
	if err := s.Decode(&w); err != nil {
		return types.Vote{}, err
	}
	return types.Vote{
		Type:      types.VoteType(w.Type),
		Height:    types.Height(w.Height),
		Round:     decodeRound(w.Round),
		Value:     decodeNilOrValueID(w.Value),
		Voter:     w.Voter,
		Extension: types.Extension(w.Extension),
	}, nil
}

type signedVoteWire struct {
	Vote      voteWire
	Signature []byte
}

// EncodeSignedVote writes sv to w, encoding its signature via scheme.
func EncodeSignedVote(w io.Writer, sv types.SignedVote, scheme types.SigningScheme) error {
	sigBytes, err := scheme.EncodeSignature(sv.Signature)
	if err != nil {
		return err
	}
	return rlp.Encode(w, signedVoteWire{
		Vote: voteWire{
			Type:      uint8(sv.Message.Type),
			Height:    uint64(sv.Message.Height),
			Round:     encodeRound(sv.Message.Round),
			Value:     encodeNilOrValueID(sv.Message.Value),
			Voter:     sv.Message.Voter,
			Extension: sv.Message.Extension,
		},
		Signature: sigBytes,
	})
}

// DecodeSignedVote reads a SignedVote from s, decoding its signature via
// scheme.
func DecodeSignedVote(s *rlp.Stream, scheme types.SigningScheme) (types.SignedVote, error) {
	var w signedVoteWire
	if err := s.Decode(&w); err != nil {
		return types.SignedVote{}, err
	}
	sig, err := scheme.DecodeSignature(w.Signature)
	if err != nil {
		return types.SignedVote{}, err
	}
	return types.SignedVote{
		Message: types.Vote{
			Type:      types.VoteType(w.Vote.Type),
			Height:    types.Height(w.Vote.Height),
			Round:     decodeRound(w.Vote.Round),
			Value:     decodeNilOrValueID(w.Vote.Value),
			Voter:     w.Vote.Voter,
			Extension: types.Extension(w.Vote.Extension),
		},
		Signature: sig,
	}, nil
}

// EncodeProposal writes p to w, delegating the Value body to vc.
func EncodeProposal(w io.Writer, p types.Proposal, vc ValueCodec) error {
	var valueBuf []byte
	if p.Value != nil {
		var buf bytes.Buffer
		if err := vc.EncodeValue(&buf, p.Value); err != nil {
			return err
		}
		valueBuf = buf.Bytes()
	}
	return rlp.Encode(w, []interface{}{
		uint64(p.Height),
		encodeRound(p.Round),
		encodeRound(p.PolRound),
		p.Proposer,
		valueBuf,
	})
}

// DecodeProposal reads a Proposal from s, delegating the Value body to vc.
func DecodeProposal(s *rlp.Stream, vc ValueCodec) (types.Proposal, error) {
	if _, err := s.List(); err != nil {
		return types.Proposal{}, err
	}
	var height uint64
	if err := s.Decode(&height); err != nil {
		return types.Proposal{}, err
	}
	var round, polRound roundWire
	if err := s.Decode(&round); err != nil {
		return types.Proposal{}, err
	}
	if err := s.Decode(&polRound); err != nil {
		return types.Proposal{}, err
	}
	var proposer common.Address
	if err := s.Decode(&proposer); err != nil {
		return types.Proposal{}, err
	}
	var valueBuf []byte
	if err := s.Decode(&valueBuf); err != nil {
		return types.Proposal{}, err
	}
	if err := s.ListEnd(); err != nil {
		return types.Proposal{}, err
	}

	var value types.Value
	if len(valueBuf) > 0 {
		vs := rlp.NewStream(bytes.NewReader(valueBuf), 0)
		v, err := vc.DecodeValue(vs)
		if err != nil {
			return types.Proposal{}, err
		}
		value = v
	}

	return types.Proposal{
		Height:   types.Height(height),
		Round:    decodeRound(round),
		PolRound: decodeRound(polRound),
		Proposer: proposer,
		Value:    value,
	}, nil
}

// EncodeSignedProposal writes sp to w.
func EncodeSignedProposal(w io.Writer, sp types.SignedProposal, scheme types.SigningScheme, vc ValueCodec) error {
	var proposalBuf bytes.Buffer
	if err := EncodeProposal(&proposalBuf, sp.Message, vc); err != nil {
		return err
	}
	sigBytes, err := scheme.EncodeSignature(sp.Signature)
	if err != nil {
		return err
	}
	return rlp.Encode(w, []interface{}{proposalBuf.Bytes(), sigBytes})
}

// DecodeSignedProposal reads a SignedProposal from s.
func DecodeSignedProposal(s *rlp.Stream, scheme types.SigningScheme, vc ValueCodec) (types.SignedProposal, error) {
	if _, err := s.List(); err != nil {
		return types.SignedProposal{}, err
	}
	var proposalBuf []byte
	if err := s.Decode(&proposalBuf); err != nil {
		return types.SignedProposal{}, err
	}
	var sigBytes []byte
	if err := s.Decode(&sigBytes); err != nil {
		return types.SignedProposal{}, err
	}
	if err := s.ListEnd(); err != nil {
		return types.SignedProposal{}, err
	}

	proposal, err := DecodeProposal(rlp.NewStream(bytes.NewReader(proposalBuf), 0), vc)
	if err != nil {
		return types.SignedProposal{}, err
	}
	sig, err := scheme.DecodeSignature(sigBytes)
	if err != nil {
		return types.SignedProposal{}, err
	}
	return types.SignedProposal{Message: proposal, Signature: sig}, nil
}

// consensusMsgCode is the tag byte distinguishing a SignedConsensusMsg's
// two alternatives on the wire, mirroring the teacher's
// accountability.typedMessage dispatch over PrevoteCode/PrecommitCode/
// LightProposalCode.
type consensusMsgCode uint8

const (
	proposalMsgCode consensusMsgCode = iota
	voteMsgCode
)

// EncodeSignedConsensusMsg writes m to w.
func EncodeSignedConsensusMsg(w io.Writer, m types.SignedConsensusMsg, scheme types.SigningScheme, vc ValueCodec) error {
	var payload bytes.Buffer
	var code consensusMsgCode
	switch m.Kind {
	case types.ConsensusMsgProposal:
		code = proposalMsgCode
		if err := EncodeSignedProposal(&payload, m.Proposal, scheme, vc); err != nil {
			return err
		}
	case types.ConsensusMsgVote:
		code = voteMsgCode
		if err := EncodeSignedVote(&payload, m.Vote, scheme); err != nil {
			return err
		}
	default:
		return ErrUnknownCode
	}
	return rlp.Encode(w, []interface{}{uint8(code), payload.Bytes()})
}

// DecodeSignedConsensusMsg reads a SignedConsensusMsg from s.
func DecodeSignedConsensusMsg(s *rlp.Stream, scheme types.SigningScheme, vc ValueCodec) (types.SignedConsensusMsg, error) {
	if _, err := s.List(); err != nil {
		return types.SignedConsensusMsg{}, err
	}
	var code uint8
	if err := s.Decode(&code); err != nil {
		return types.SignedConsensusMsg{}, err
	}
	var payload []byte
	if err := s.Decode(&payload); err != nil {
		return types.SignedConsensusMsg{}, err
	}
	if err := s.ListEnd(); err != nil {
		return types.SignedConsensusMsg{}, err
	}

	switch consensusMsgCode(code) {
	case proposalMsgCode:
		sp, err := DecodeSignedProposal(rlp.NewStream(bytes.NewReader(payload), 0), scheme, vc)
		if err != nil {
			return types.SignedConsensusMsg{}, err
		}
		return types.ProposalMsg(sp), nil
	case voteMsgCode:
		sv, err := DecodeSignedVote(rlp.NewStream(bytes.NewReader(payload), 0), scheme)
		if err != nil {
			return types.SignedConsensusMsg{}, err
		}
		return types.VoteMsg(sv), nil
	default:
		return types.SignedConsensusMsg{}, ErrUnknownCode
	}
}
