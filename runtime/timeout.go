package runtime

import (
	"time"

	"github.com/autonity/tendermint/consensus"
	"github.com/autonity/tendermint/types"
)

// DefaultTimeoutFor reproduces consensus.Config's base+delta*round timeout
// arithmetic as the exported function(types.Timeout) time.Duration NewNode
// wants, since Config.timeoutFor is unexported. TimeoutCommit and the two
// time-limit kinds have no configured base/delta of their own; they reuse
// the precommit schedule, which is the closest analog the configuration
// exposes.
func DefaultTimeoutFor(cfg consensus.Config) func(types.Timeout) time.Duration {
	return func(t types.Timeout) time.Duration {
		round := t.Round.AsI64()
		if round < 0 {
			round = 0
		}
		switch t.Kind {
		case types.TimeoutPropose:
			return cfg.TimeoutPropose + time.Duration(round)*cfg.TimeoutProposeDelta
		case types.TimeoutPrevote:
			return cfg.TimeoutPrevote + time.Duration(round)*cfg.TimeoutPrevoteDelta
		default:
			return cfg.TimeoutPrecommit + time.Duration(round)*cfg.TimeoutPrecommitDelta
		}
	}
}
