package testsupport

import "github.com/autonity/tendermint/types"

// NewValidatorSet builds a *types.ValidatorSet of n validators, each with
// votingPower and a deterministic Ed25519 identity, for use as a test
// fixture. Returns the set and the identities in the same order supplied
// (NewValidatorSet itself re-sorts internally by address).
func NewValidatorSet(n int, votingPower uint64) (*types.ValidatorSet, []Ed25519Identity) {
	identities := make([]Ed25519Identity, n)
	validators := make([]types.Validator, n)
	for i := 0; i < n; i++ {
		var seed [32]byte
		seed[0] = byte(i + 1)
		id := NewEd25519Identity(seed)
		identities[i] = id
		validators[i] = types.Validator{Address: id.Address, PublicKey: id.Public, VotingPower: votingPower}
	}
	vs, err := types.NewValidatorSet(validators)
	if err != nil {
		panic(err) // fixture construction only; a bad fixture is a test bug
	}
	return vs, identities
}
