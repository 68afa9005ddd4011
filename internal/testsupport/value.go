package testsupport

import (
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/autonity/tendermint/types"
)

// HashValue is the simplest possible types.Value: its id is its entire
// body. Real hosts carry a full block; tests only need something with a
// stable id.
type HashValue common.Hash

// ID returns v itself reinterpreted as a ValueID.
func (v HashValue) ID() types.ValueID { return common.Hash(v) }

// HashValueCodec is a codec.ValueCodec for HashValue.
type HashValueCodec struct{}

// EncodeValue writes v's 32 bytes to w.
func (HashValueCodec) EncodeValue(w io.Writer, v types.Value) error {
	hv, ok := v.(HashValue)
	if !ok {
		return rlp.ErrExpectedString
	}
	return rlp.Encode(w, common.Hash(hv))
}

// DecodeValue reads 32 bytes from s as a HashValue.
func (HashValueCodec) DecodeValue(s *rlp.Stream) (types.Value, error) {
	var h common.Hash
	if err := s.Decode(&h); err != nil {
		return nil, err
	}
	return HashValue(h), nil
}
