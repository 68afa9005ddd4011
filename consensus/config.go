package consensus

import (
	"time"

	"github.com/autonity/tendermint/fullproposal"
	"github.com/autonity/tendermint/threshold"
)

// VoteSyncMode selects the liveness strategy spec.md §4.6 describes.
type VoteSyncMode uint8

const (
	// VoteSyncRequestResponse selects the request/response strategy. Handler
	// answers a peer's VoteSetRequest input in every mode; it never issues
	// a VoteSetRequest itself.
	VoteSyncRequestResponse VoteSyncMode = iota
	// VoteSyncRebroadcast periodically re-sends this node's own last vote.
	VoteSyncRebroadcast
)

// Config bundles the recognized configuration options spec.md §6 lists.
// MaxRetainBlocks is carried but not read by Handler.
type Config struct {
	ValuePayload fullproposal.ValuePayload
	VoteSyncMode VoteSyncMode

	TimeoutPropose        time.Duration
	TimeoutProposeDelta   time.Duration
	TimeoutPrevote        time.Duration
	TimeoutPrevoteDelta   time.Duration
	TimeoutPrecommit      time.Duration
	TimeoutPrecommitDelta time.Duration

	TimeoutRebroadcast time.Duration

	MaxRetainBlocks uint64

	ThresholdParams threshold.Params

	ValidityCacheSize int
}

// DefaultConfig returns reasonable defaults: request/response liveness,
// ProposalOnly payload mode, and the standard 2f+1/f+1 thresholds.
func DefaultConfig() Config {
	return Config{
		ValuePayload:          fullproposal.ProposalOnly,
		VoteSyncMode:          VoteSyncRequestResponse,
		TimeoutPropose:        3 * time.Second,
		TimeoutProposeDelta:   500 * time.Millisecond,
		TimeoutPrevote:        1 * time.Second,
		TimeoutPrevoteDelta:   500 * time.Millisecond,
		TimeoutPrecommit:      1 * time.Second,
		TimeoutPrecommitDelta: 500 * time.Millisecond,
		TimeoutRebroadcast:    10 * time.Second,
		MaxRetainBlocks:       256,
		ThresholdParams:       threshold.DefaultParams,
		ValidityCacheSize:     256,
	}
}

// timeoutFor returns the base+delta*round duration for the named step, per
// spec.md §6's timeout_{propose,prevote,precommit}[_delta] options.
func (c Config) timeoutFor(kind timeoutStepKind, round int64) time.Duration {
	switch kind {
	case timeoutStepPropose:
		return c.TimeoutPropose + time.Duration(round)*c.TimeoutProposeDelta
	case timeoutStepPrevote:
		return c.TimeoutPrevote + time.Duration(round)*c.TimeoutPrevoteDelta
	case timeoutStepPrecommit:
		return c.TimeoutPrecommit + time.Duration(round)*c.TimeoutPrecommitDelta
	default:
		return 0
	}
}

type timeoutStepKind uint8

const (
	timeoutStepPropose timeoutStepKind = iota
	timeoutStepPrevote
	timeoutStepPrecommit
)
