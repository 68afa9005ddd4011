package votekeeper

import (
	mapset "github.com/deckarep/golang-set"

	"github.com/autonity/tendermint/threshold"
	"github.com/autonity/tendermint/types"
)

// Equivocation records a voter submitting two distinct-value votes of the
// same type in the same round — spec.md §4.2's "second is not added; both
// are retained as (SignedVote, SignedVote)".
type Equivocation struct {
	Voter  types.Address
	Round  types.Round
	Type   types.VoteType
	First  types.SignedVote
	Second types.SignedVote
}

type voteKey struct {
	round types.Round
	vtype types.VoteType
	voter types.Address
}

// roundTally is one round's prevote/precommit weight accumulation, grounded
// on the teacher's msg_store.go nested-map shape collapsed to per-round
// granularity (the votekeeper only needs one round's worth live at a time
// per value/type, not the full message bodies msg_store.go retains).
type roundTally struct {
	prevotes   *valuesWeights
	precommits *valuesWeights
	voters     mapset.Set // of types.Address, any vote type
	// votersWeight sums each distinct voter's weight once, whatever vote
	// types it sent in this round.
	votersWeight threshold.VotingPower

	emitted map[EventKind]bool
}

func newRoundTally() *roundTally {
	return &roundTally{
		prevotes:   newValuesWeights(),
		precommits: newValuesWeights(),
		voters:     mapset.NewSet(),
		emitted:    make(map[EventKind]bool),
	}
}

func (rt *roundTally) weightsFor(vtype types.VoteType) *valuesWeights {
	if vtype == types.PrevoteType {
		return rt.prevotes
	}
	return rt.precommits
}

// Keeper tallies weighted votes per round, grounded on spec.md §4.2 and the
// teacher's msg_store.go (which serves the analogous per-height/round/type
// lookup role, though over full message bodies rather than weights).
type Keeper struct {
	params threshold.Params
	total  threshold.VotingPower

	rounds map[types.Round]*roundTally
	seen   map[voteKey]types.SignedVote

	evidence     []Equivocation
	currentRound types.Round
	skipEmitted  map[types.Round]bool
}

// NewKeeper constructs an empty Keeper judging weight against total using
// params.
func NewKeeper(params threshold.Params, total threshold.VotingPower) *Keeper {
	return &Keeper{
		params:      params,
		total:       total,
		rounds:      make(map[types.Round]*roundTally),
		seen:        make(map[voteKey]types.SignedVote),
		skipEmitted: make(map[types.Round]bool),
	}
}

// SetCurrentRound informs the keeper which round the driver now considers
// current, so SkipRound(round') can be judged against round' > current.
func (k *Keeper) SetCurrentRound(r types.Round) {
	k.currentRound = r
}

func (k *Keeper) roundTallyFor(r types.Round) *roundTally {
	rt, ok := k.rounds[r]
	if !ok {
		rt = newRoundTally()
		k.rounds[r] = rt
	}
	return rt
}

// AddVote records vote with the given weight and returns the new tally for
// its (round, type, value), any threshold events newly crossed, and a
// non-nil Equivocation if vote conflicts with a vote already seen from the
// same voter for the same (round, type).
func (k *Keeper) AddVote(vote types.SignedVote, weight threshold.VotingPower) (threshold.VotingPower, []Event, *Equivocation) {
	v := vote.Message
	key := voteKey{round: v.Round, vtype: v.Type, voter: v.Voter}

	if prior, ok := k.seen[key]; ok {
		if !sameValue(prior.Message.Value, v.Value) {
			eq := &Equivocation{Voter: v.Voter, Round: v.Round, Type: v.Type, First: prior, Second: vote}
			k.evidence = append(k.evidence, *eq)
			rt := k.roundTallyFor(v.Round)
			return rt.weightsFor(v.Type).get(v.Value), nil, eq
		}
		// Duplicate of the same value: idempotent, no new weight or events.
		rt := k.roundTallyFor(v.Round)
		return rt.weightsFor(v.Type).get(v.Value), nil, nil
	}
	k.seen[key] = vote

	rt := k.roundTallyFor(v.Round)
	if !rt.voters.Contains(v.Voter) {
		rt.votersWeight += weight
	}
	rt.voters.Add(v.Voter)
	newWeight := rt.weightsFor(v.Type).add(v.Value, weight)

	events := k.checkThresholds(v.Round, rt, v.Type)
	events = append(events, k.checkSkipRound(v.Round, rt)...)
	return newWeight, events, nil
}

// checkThresholds evaluates the first five rows of spec.md §4.2's table for
// round/vtype, in table order, skipping anything already emitted for this
// (round, type, kind).
func (k *Keeper) checkThresholds(round types.Round, rt *roundTally, vtype types.VoteType) []Event {
	var events []Event
	weights := rt.weightsFor(vtype)

	emit := func(kind EventKind, value types.NilOrVal[types.ValueID]) {
		if rt.emitted[kind] {
			return
		}
		rt.emitted[kind] = true
		events = append(events, Event{Kind: kind, Round: round, Value: value})
	}

	if vtype == types.PrevoteType {
		for value, w := range weights.byValue {
			if value.isVal && k.params.Quorum.IsMet(w, k.total) {
				emit(PolkaValueEvent, types.Val(value.id))
			}
		}
		if k.params.Quorum.IsMet(weights.get(types.Nil[types.ValueID]()), k.total) {
			emit(PolkaNilEvent, types.Nil[types.ValueID]())
		}
		if k.params.Quorum.IsMet(weights.sum(), k.total) {
			emit(PolkaAnyEvent, types.Nil[types.ValueID]())
		}
		return events
	}

	for value, w := range weights.byValue {
		if value.isVal && k.params.Quorum.IsMet(w, k.total) {
			emit(PrecommitValueEvent, types.Val(value.id))
		}
	}
	if k.params.Quorum.IsMet(weights.sum(), k.total) {
		emit(PrecommitAnyEvent, types.Nil[types.ValueID]())
	}
	return events
}

// checkSkipRound evaluates the table's last row: sum_any(round') > total/3
// for round' (the round just voted in) greater than the current round.
// sum_any counts each distinct voter at round' once, so a voter that sent
// both a prevote and a precommit there adds its weight only once.
func (k *Keeper) checkSkipRound(round types.Round, rt *roundTally) []Event {
	if round.Compare(k.currentRound) <= 0 {
		return nil
	}
	if k.skipEmitted[round] {
		return nil
	}
	sumAny := rt.votersWeight
	if !k.params.Honest.IsMet(sumAny, k.total) {
		return nil
	}
	k.skipEmitted[round] = true
	return []Event{{Kind: SkipRoundEvent, Round: round}}
}

// SumPrevotes returns the total prevote weight across every value at round.
func (k *Keeper) SumPrevotes(round types.Round) threshold.VotingPower {
	rt, ok := k.rounds[round]
	if !ok {
		return 0
	}
	return rt.prevotes.sum()
}

// SumPrecommits returns the total precommit weight across every value at
// round.
func (k *Keeper) SumPrecommits(round types.Round) threshold.VotingPower {
	rt, ok := k.rounds[round]
	if !ok {
		return 0
	}
	return rt.precommits.sum()
}

// PrecommitsFor returns every distinct-voter precommit recorded for value at
// round, in no particular order — used by the consensus handler to build a
// CommitCertificate at decide time (spec.md §4.6: "Builds a
// CommitCertificate from the precommits held by the vote keeper").
func (k *Keeper) PrecommitsFor(round types.Round, value types.ValueID) []types.SignedVote {
	var votes []types.SignedVote
	for key, sv := range k.seen {
		if key.round != round || key.vtype != types.PrecommitType {
			continue
		}
		id, ok := sv.Message.Value.Value()
		if !ok || id != value {
			continue
		}
		votes = append(votes, sv)
	}
	return votes
}

// VotesAt returns every vote (prevote and precommit alike) recorded for
// round, for answering a VoteSetRequest liveness query (spec.md §4.6).
func (k *Keeper) VotesAt(round types.Round) []types.SignedVote {
	var votes []types.SignedVote
	for key, sv := range k.seen {
		if key.round != round {
			continue
		}
		votes = append(votes, sv)
	}
	return votes
}

// VotersSeen returns how many distinct voters have had a vote (of either
// type) recorded at round.
func (k *Keeper) VotersSeen(round types.Round) int {
	rt, ok := k.rounds[round]
	if !ok {
		return 0
	}
	return rt.voters.Cardinality()
}

// Evidence returns every equivocation observed so far. Callers must not
// mutate the returned slice.
func (k *Keeper) Evidence() []Equivocation {
	return k.evidence
}

func sameValue(a, b types.NilOrVal[types.ValueID]) bool {
	if a.IsNil() != b.IsNil() {
		return false
	}
	if a.IsNil() {
		return true
	}
	av, _ := a.Value()
	bv, _ := b.Value()
	return av == bv
}
