package votekeeper

import "github.com/autonity/tendermint/types"

// EventKind names a threshold crossing the keeper can report, mirroring
// spec.md §4.2's emission table.
type EventKind uint8

const (
	PolkaValueEvent EventKind = iota
	PolkaNilEvent
	PolkaAnyEvent
	PrecommitValueEvent
	PrecommitAnyEvent
	SkipRoundEvent
)

func (k EventKind) String() string {
	switch k {
	case PolkaValueEvent:
		return "polka-value"
	case PolkaNilEvent:
		return "polka-nil"
	case PolkaAnyEvent:
		return "polka-any"
	case PrecommitValueEvent:
		return "precommit-value"
	case PrecommitAnyEvent:
		return "precommit-any"
	case SkipRoundEvent:
		return "skip-round"
	default:
		return "unknown-vote-event"
	}
}

// Event is one threshold crossing emitted by AddVote. Round is the round
// the event concerns: for every kind but SkipRound this is the round the
// vote was cast in; for SkipRound it is the later round' whose weight
// crossed the honest threshold.
type Event struct {
	Kind  EventKind
	Round types.Round
	Value types.NilOrVal[types.ValueID]
}
