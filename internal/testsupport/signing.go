// Package testsupport provides fixtures shared across this module's tests:
// a concrete Ed25519 SigningScheme, a simple hash-identified test Value and
// its ValueCodec, and validator-set builders. None of it is part of the
// public API; it exists so every package's tests can exercise real
// signing/encoding round-trips instead of stubbing them out individually.
package testsupport

import (
	"crypto/ed25519"
	"errors"

	"github.com/autonity/tendermint/types"
)

// ErrBadSignatureLength is returned when decoding a signature of the wrong
// byte length for Ed25519.
var ErrBadSignatureLength = errors.New("testsupport: bad ed25519 signature length")

// Signature is the concrete types.Signature Ed25519Scheme produces and
// consumes: the raw 64-byte Ed25519 signature.
type Signature []byte

// Ed25519Scheme is a types.SigningScheme backed by stdlib crypto/ed25519,
// standing in for whatever concrete scheme a real host would wire up
// (spec.md §1 lists "concrete signing schemes" as out of scope for the
// core itself).
type Ed25519Scheme struct{}

// EncodeSignature returns sig's raw bytes.
func (Ed25519Scheme) EncodeSignature(sig types.Signature) ([]byte, error) {
	b, ok := sig.(Signature)
	if !ok {
		return nil, errors.New("testsupport: not an ed25519 signature")
	}
	return b, nil
}

// DecodeSignature parses raw bytes into a Signature.
func (Ed25519Scheme) DecodeSignature(b []byte) (types.Signature, error) {
	if len(b) != ed25519.SignatureSize {
		return nil, ErrBadSignatureLength
	}
	sig := make(Signature, ed25519.SignatureSize)
	copy(sig, b)
	return sig, nil
}

// Ed25519Identity is a test validator's key material.
type Ed25519Identity struct {
	Address types.Address
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// NewEd25519Identity derives a deterministic identity from seed, so test
// fixtures are reproducible across runs.
func NewEd25519Identity(seed [32]byte) Ed25519Identity {
	priv := ed25519.NewKeyFromSeed(seed[:])
	pub := priv.Public().(ed25519.PublicKey)
	var addr types.Address
	copy(addr[:], pub[:len(addr)])
	return Ed25519Identity{Address: addr, Public: pub, Private: priv}
}

// SignVote signs a byte concatenation of v's type, height, round, value id
// and voter with id's private key.
func SignVote(id Ed25519Identity, v types.Vote) (types.SignedVote, error) {
	// The signed bytes are not the codec package's wire encoding; for
	// signing fixtures the raw fields that matter for equivocation are
	// enough.
	msg := voteSigningBytes(v)
	sig := ed25519.Sign(id.Private, msg)
	return types.SignedVote{Message: v, Signature: Signature(sig)}, nil
}

func voteSigningBytes(v types.Vote) []byte {
	var buf []byte
	buf = append(buf, byte(v.Type))
	buf = append(buf, uint64ToBytes(uint64(v.Height))...)
	buf = append(buf, uint64ToBytes(uint64(v.Round.AsI64()))...)
	if id, ok := v.Value.Value(); ok {
		buf = append(buf, id[:]...)
	}
	buf = append(buf, v.Voter[:]...)
	return buf
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * (7 - i)))
	}
	return b
}

// SignProposal signs p's signing bytes with id's private key.
func SignProposal(id Ed25519Identity, p types.Proposal) (types.SignedProposal, error) {
	sig := ed25519.Sign(id.Private, proposalSigningBytes(p))
	return types.SignedProposal{Message: p, Signature: Signature(sig)}, nil
}

func proposalSigningBytes(p types.Proposal) []byte {
	var buf []byte
	buf = append(buf, uint64ToBytes(uint64(p.Height))...)
	buf = append(buf, uint64ToBytes(uint64(p.Round.AsI64()))...)
	buf = append(buf, uint64ToBytes(uint64(p.PolRound.AsI64()))...)
	id := p.Value.ID()
	buf = append(buf, id[:]...)
	buf = append(buf, p.Proposer[:]...)
	return buf
}

// VerifySignedVote checks sv's signature against validator's Ed25519 public
// key, as a host's VerifySignedVote would.
func VerifySignedVote(sv types.SignedVote, validator types.Validator) (bool, error) {
	pub, ok := validator.PublicKey.(ed25519.PublicKey)
	if !ok {
		return false, errors.New("testsupport: not an ed25519 public key")
	}
	sig, ok := sv.Signature.(Signature)
	if !ok {
		return false, errors.New("testsupport: not an ed25519 signature")
	}
	return ed25519.Verify(pub, voteSigningBytes(sv.Message), sig), nil
}

// VerifySignedProposal checks sp's signature against validator's Ed25519
// public key.
func VerifySignedProposal(sp types.SignedProposal, validator types.Validator) (bool, error) {
	pub, ok := validator.PublicKey.(ed25519.PublicKey)
	if !ok {
		return false, errors.New("testsupport: not an ed25519 public key")
	}
	sig, ok := sp.Signature.(Signature)
	if !ok {
		return false, errors.New("testsupport: not an ed25519 signature")
	}
	return ed25519.Verify(pub, proposalSigningBytes(sp.Message), sig), nil
}
