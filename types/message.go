package types

// VoteType distinguishes prevotes from precommits.
type VoteType uint8

const (
	PrevoteType VoteType = iota
	PrecommitType
)

func (t VoteType) String() string {
	switch t {
	case PrevoteType:
		return "prevote"
	case PrecommitType:
		return "precommit"
	default:
		return "unknown-vote-type"
	}
}

// Proposal is a proposer's claim that Value should be decided at
// (Height, Round). PolRound is the round whose polka justifies re-proposing
// Value; it is Nil for a newly proposed value. Mirrors the teacher's
// messages.Proposal (Round/Height/ValidRound/ProposalBlock) with ValidRound
// renamed PolRound to match spec.md's vocabulary.
type Proposal struct {
	Height   Height
	Round    Round
	Value    Value
	PolRound Round
	Proposer Address
}

// Extension is opaque bytes a validator may attach to a precommit; only
// verified and carried by the host, never interpreted by the core.
type Extension []byte

// Vote is a signed intent to prevote or precommit a value (or Nil) at a
// given height and round.
type Vote struct {
	Type      VoteType
	Height    Height
	Round     Round
	Value     NilOrVal[ValueID]
	Voter     Address
	Extension Extension // precommits only
}

// SignedMessage pairs a message with its signature. Verification is always
// performed by the host's SigningScheme against the sender's public key;
// the core only ever stores and forwards the pair.
type SignedMessage[T any] struct {
	Message   T
	Signature Signature
}

// SignedProposal and SignedVote are the two concrete signed message kinds
// this protocol exchanges.
type SignedProposal = SignedMessage[Proposal]
type SignedVote = SignedMessage[Vote]

// ConsensusMsgKind tags which alternative a SignedConsensusMsg holds.
type ConsensusMsgKind uint8

const (
	ConsensusMsgProposal ConsensusMsgKind = iota
	ConsensusMsgVote
)

// SignedConsensusMsg is the tagged union of SignedProposal and SignedVote
// that flows over the wire, per spec.md §6.
type SignedConsensusMsg struct {
	Kind     ConsensusMsgKind
	Proposal SignedProposal
	Vote     SignedVote
}

// ProposalMsg wraps a SignedProposal as a SignedConsensusMsg.
func ProposalMsg(sp SignedProposal) SignedConsensusMsg {
	return SignedConsensusMsg{Kind: ConsensusMsgProposal, Proposal: sp}
}

// VoteMsg wraps a SignedVote as a SignedConsensusMsg.
func VoteMsg(sv SignedVote) SignedConsensusMsg {
	return SignedConsensusMsg{Kind: ConsensusMsgVote, Vote: sv}
}

// HeightOf returns the height the wrapped message belongs to.
func (m SignedConsensusMsg) HeightOf() Height {
	if m.Kind == ConsensusMsgProposal {
		return m.Proposal.Message.Height
	}
	return m.Vote.Message.Height
}

// RoundOf returns the round the wrapped message belongs to.
func (m SignedConsensusMsg) RoundOf() Round {
	if m.Kind == ConsensusMsgProposal {
		return m.Proposal.Message.Round
	}
	return m.Vote.Message.Round
}

// TimeoutKind enumerates the timeouts the driver/handler can arm.
type TimeoutKind uint8

const (
	TimeoutPropose TimeoutKind = iota
	TimeoutPrevote
	TimeoutPrecommit
	TimeoutCommit
	TimeoutPrevoteTimeLimit
	TimeoutPrecommitTimeLimit
)

func (k TimeoutKind) String() string {
	switch k {
	case TimeoutPropose:
		return "propose"
	case TimeoutPrevote:
		return "prevote"
	case TimeoutPrecommit:
		return "precommit"
	case TimeoutCommit:
		return "commit"
	case TimeoutPrevoteTimeLimit:
		return "prevote-time-limit"
	case TimeoutPrecommitTimeLimit:
		return "precommit-time-limit"
	default:
		return "unknown-timeout"
	}
}

// Timeout names one armed or elapsed timer.
type Timeout struct {
	Round Round
	Kind  TimeoutKind
}

// Step is the round-local phase a RoundState is in. Step is monotone within
// a round per spec.md invariant 3: Unstarted -> Propose -> Prevote ->
// Precommit -> Commit, and Commit -> * is forbidden for the same round.
type Step uint8

const (
	StepUnstarted Step = iota
	StepPropose
	StepPrevote
	StepPrecommit
	StepCommit
)

func (s Step) String() string {
	switch s {
	case StepUnstarted:
		return "unstarted"
	case StepPropose:
		return "propose"
	case StepPrevote:
		return "prevote"
	case StepPrecommit:
		return "precommit"
	case StepCommit:
		return "commit"
	default:
		return "unknown-step"
	}
}

// RoundAndValue pairs a value with the round at which it was locked/valid/
// decided, per spec.md's RoundState fields.
type RoundAndValue struct {
	Value Value
	Round Round
}

// RoundState is one round's view of a height: its step, and the locked/
// valid/decision triples spec.md §3 requires.
type RoundState struct {
	Height   Height
	Round    Round
	Step     Step
	Locked   *RoundAndValue
	Valid    *RoundAndValue
	Decision *RoundAndValue
}

// NewRoundState returns the Unstarted state for (h, r) with no lock, valid
// value, or decision — the state a round begins in before any input.
func NewRoundState(h Height, r Round) RoundState {
	return RoundState{Height: h, Round: r, Step: StepUnstarted}
}

// PolkaCertificate is a set of prevotes for Val(ValueID) whose total weight
// meets quorum, gossiped so lagging/hidden-lock nodes can justify entering
// a later round (spec.md §4.6, GLOSSARY "Hidden lock").
type PolkaCertificate struct {
	Height  Height
	Round   Round
	ValueID ValueID
	Votes   []SignedVote
}

// CommitCertificate is the set of precommits that caused a decision, used
// both to build the Decide effect's certificate and for state-sync fast
// paths (spec.md §4.4 CommitCertificate input).
type CommitCertificate struct {
	Height  Height
	Round   Round
	ValueID ValueID
	Commits []SignedVote
}

// RoundCertificateKind distinguishes the two kinds of evidence that justify
// skipping directly to a later round.
type RoundCertificateKind uint8

const (
	RoundCertificatePolka RoundCertificateKind = iota
	RoundCertificateSkip
)

// RoundCertificate is either a polka at a later round, or f+1 weight of
// messages from a later round — the "EnterRoundCertificate" of spec.md §3.
type RoundCertificate struct {
	Kind      RoundCertificateKind
	Round     Round
	Votes     []SignedVote
	Proposals []SignedProposal
}

// WalEntryKind tags the three things the WAL can record, per spec.md §6's
// on-disk format ("Tag byte inside payload distinguishes ConsensusMsg from
// Timeout from ProposedValue").
type WalEntryKind uint8

const (
	WalEntryConsensusMsg WalEntryKind = iota
	WalEntryTimeout
	WalEntryProposedValue
)

// ProposedValue is a value the host handed to the core in response to a
// GetValue output, or received via sync.
type ProposedValue struct {
	Height   Height
	Round    Round
	Value    Value
	Validity Validity
	Origin   ValueOrigin
}

// Validity records whether a value passed the host's validity check.
type Validity uint8

const (
	ValidityUnknown Validity = iota
	ValidityValid
	ValidityInvalid
)

// ValueOrigin distinguishes where a ProposedValue came from.
type ValueOrigin uint8

const (
	OriginConsensus ValueOrigin = iota
	OriginSync
)

// WalEntry is one durable record: either an outbound signed message, an
// armed timeout, or a value the host produced, all written before they can
// affect the node's published behavior (spec.md §4.7, §5).
type WalEntry struct {
	Kind          WalEntryKind
	ConsensusMsg  SignedConsensusMsg
	Timeout       Timeout
	ProposedValue ProposedValue
}
