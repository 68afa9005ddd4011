package codec

import (
	"bytes"
	"io"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/autonity/tendermint/types"
)

// timeoutWire is the wire shape of a types.Timeout.
type timeoutWire struct {
	Round roundWire
	Kind  uint8
}

// proposedValueWire is the wire shape of a types.ProposedValue, with its
// Value body delegated to a ValueCodec exactly as EncodeProposal does.
type proposedValueWire struct {
	Height   uint64
	Round    roundWire
	Value    []byte
	Validity uint8
	Origin   uint8
}

// EncodeWalEntry writes entry to w, tagging it with its WalEntryKind so
// DecodeWalEntry can dispatch on read — mirroring the teacher's
// accountability.typedMessage tag-byte pattern, generalized to three
// alternatives instead of two.
func EncodeWalEntry(w io.Writer, entry types.WalEntry, scheme types.SigningScheme, vc ValueCodec) error {
	var payload bytes.Buffer
	switch entry.Kind {
	case types.WalEntryConsensusMsg:
		if err := EncodeSignedConsensusMsg(&payload, entry.ConsensusMsg, scheme, vc); err != nil {
			return err
		}
	case types.WalEntryTimeout:
		if err := rlp.Encode(&payload, timeoutWire{Round: encodeRound(entry.Timeout.Round), Kind: uint8(entry.Timeout.Kind)}); err != nil {
			return err
		}
	case types.WalEntryProposedValue:
		var valueBuf bytes.Buffer
		if entry.ProposedValue.Value != nil {
			if err := vc.EncodeValue(&valueBuf, entry.ProposedValue.Value); err != nil {
				return err
			}
		}
		if err := rlp.Encode(&payload, proposedValueWire{
			Height:   uint64(entry.ProposedValue.Height),
			Round:    encodeRound(entry.ProposedValue.Round),
			Value:    valueBuf.Bytes(),
			Validity: uint8(entry.ProposedValue.Validity),
			Origin:   uint8(entry.ProposedValue.Origin),
		}); err != nil {
			return err
		}
	default:
		return ErrUnknownCode
	}
	return rlp.Encode(w, []interface{}{uint8(entry.Kind), payload.Bytes()})
}

// DecodeWalEntry reads a WalEntry from s.
func DecodeWalEntry(s *rlp.Stream, scheme types.SigningScheme, vc ValueCodec) (types.WalEntry, error) {
	if _, err := s.List(); err != nil {
		return types.WalEntry{}, err
	}
	var kind uint8
	if err := s.Decode(&kind); err != nil {
		return types.WalEntry{}, err
	}
	var payload []byte
	if err := s.Decode(&payload); err != nil {
		return types.WalEntry{}, err
	}
	if err := s.ListEnd(); err != nil {
		return types.WalEntry{}, err
	}

	switch types.WalEntryKind(kind) {
	case types.WalEntryConsensusMsg:
		msg, err := DecodeSignedConsensusMsg(rlp.NewStream(bytes.NewReader(payload), 0), scheme, vc)
		if err != nil {
			return types.WalEntry{}, err
		}
		return types.WalEntry{Kind: types.WalEntryConsensusMsg, ConsensusMsg: msg}, nil
	case types.WalEntryTimeout:
		var w timeoutWire
		if err := rlp.DecodeBytes(payload, &w); err != nil {
			return types.WalEntry{}, err
		}
		return types.WalEntry{Kind: types.WalEntryTimeout, Timeout: types.Timeout{Round: decodeRound(w.Round), Kind: types.TimeoutKind(w.Kind)}}, nil
	case types.WalEntryProposedValue:
		var w proposedValueWire
		if err := rlp.DecodeBytes(payload, &w); err != nil {
			return types.WalEntry{}, err
		}
		var value types.Value
		if len(w.Value) > 0 {
			v, err := vc.DecodeValue(rlp.NewStream(bytes.NewReader(w.Value), 0))
			if err != nil {
				return types.WalEntry{}, err
			}
			value = v
		}
		return types.WalEntry{Kind: types.WalEntryProposedValue, ProposedValue: types.ProposedValue{
			Height:   types.Height(w.Height),
			Round:    decodeRound(w.Round),
			Value:    value,
			Validity: types.Validity(w.Validity),
			Origin:   types.ValueOrigin(w.Origin),
		}}, nil
	default:
		return types.WalEntry{}, ErrUnknownCode
	}
}
