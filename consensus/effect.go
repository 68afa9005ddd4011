package consensus

import "github.com/autonity/tendermint/types"

// EffectKind tags the closed list of suspension points spec.md §5 names for
// the handler coroutine. This package realizes them as a Host interface
// Handle calls synchronously (see the package doc for why), but every call
// is still recorded as one Effect in Handle's return value so callers and
// tests can observe the exact sequence spec.md §4.6/§5 prescribes: a
// WalAppend before the Broadcast it guards, GetValue before the Proposal it
// produces, and so on.
type EffectKind uint8

const (
	EffectBroadcast EffectKind = iota
	EffectWalAppend
	EffectWalStartedHeight
	EffectScheduleTimeout
	EffectCancelTimeout
	EffectCancelAllTimeouts
	EffectGetValue
	EffectGetValidatorSet
	EffectVerifySignature
	EffectVerifyCertificate
	EffectVerifyVoteExtension
	EffectPublishLivenessMsg
	EffectSendVoteSetResponse
	EffectDecide
	EffectRebroadcast
	EffectWalReplayComplete
)

func (k EffectKind) String() string {
	switch k {
	case EffectBroadcast:
		return "broadcast"
	case EffectWalAppend:
		return "wal-append"
	case EffectWalStartedHeight:
		return "wal-started-height"
	case EffectScheduleTimeout:
		return "schedule-timeout"
	case EffectCancelTimeout:
		return "cancel-timeout"
	case EffectCancelAllTimeouts:
		return "cancel-all-timeouts"
	case EffectGetValue:
		return "get-value"
	case EffectGetValidatorSet:
		return "get-validator-set"
	case EffectVerifySignature:
		return "verify-signature"
	case EffectVerifyCertificate:
		return "verify-certificate"
	case EffectVerifyVoteExtension:
		return "verify-vote-extension"
	case EffectPublishLivenessMsg:
		return "publish-liveness-msg"
	case EffectSendVoteSetResponse:
		return "send-vote-set-response"
	case EffectDecide:
		return "decide"
	case EffectRebroadcast:
		return "rebroadcast"
	case EffectWalReplayComplete:
		return "wal-replay-complete"
	default:
		return "unknown-effect"
	}
}

// LivenessMsgKind tags the union spec.md §6 calls LivenessMsg.
type LivenessMsgKind uint8

const (
	LivenessVote LivenessMsgKind = iota
	LivenessPolkaCertificate
	LivenessSkipRoundCertificate
)

// LivenessMsg is one message exchanged outside the main broadcast path to
// recover from a stuck or hidden-lock situation.
type LivenessMsg struct {
	Kind                 LivenessMsgKind
	Vote                 types.SignedVote
	PolkaCertificate     types.PolkaCertificate
	SkipRoundCertificate types.RoundCertificate
}

// Effect is one action Handle performed (or asked to be performed) while
// processing an Input, in the order it occurred.
type Effect struct {
	Kind EffectKind

	Height types.Height
	Round  types.Round

	Message types.SignedConsensusMsg // Broadcast, Rebroadcast

	WalEntry types.WalEntry // WalAppend

	Timeout types.Timeout // ScheduleTimeout, CancelTimeout

	LivenessMessage LivenessMsg // PublishLivenessMsg

	RequestID    uint64                   // SendVoteSetResponse
	Requester    types.Address            // SendVoteSetResponse
	Votes        []types.SignedVote       // SendVoteSetResponse
	Certificates []types.RoundCertificate // SendVoteSetResponse

	Certificate types.CommitCertificate          // Decide
	Extensions  map[types.Address]types.Extension // Decide
}
