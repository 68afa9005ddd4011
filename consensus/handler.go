// Package consensus implements the effect-yielding orchestrator spec.md
// §4.6/§9 describes as sitting above the driver: it verifies signatures,
// enforces the WAL-before-broadcast ordering, buffers inputs for heights
// ahead of the one in progress, and turns driver outputs into the concrete
// actions (sign-and-broadcast, schedule/cancel timeout, decide, ask the
// host for a value) an embedding runtime must perform.
//
// spec.md §4.6/§9 frame the handler as a coroutine: given an Input it
// yields a sequence of Effects, each resumed with a typed Resume once the
// embedding actor has performed it. Go has no native generators, and the
// teacher itself (consensus/tendermint/core/handler.go's mainEventLoop)
// drives its backend through direct synchronous calls rather than
// continuations — there is no "suspend mid-Handle and come back later" in
// its model either. Handler.Handle follows the same shape: it calls Host
// directly, synchronously, in the exact order spec.md prescribes, and
// returns the ordered trace of what it did as []Effect. Callers that only
// want the trace (tests, telemetry) can read the return value; callers
// that need the side effects performed get them for free, since Handle
// performed them already. This reproduces every observable ordering
// guarantee spec.md §5 lists (WAL append strictly before the broadcast it
// guards, GetValue before the Proposal it produces, CancelAllTimeouts
// before Decide) without literal suspend/resume machinery.
package consensus

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/autonity/tendermint/codec"
	"github.com/autonity/tendermint/driver"
	"github.com/autonity/tendermint/fullproposal"
	"github.com/autonity/tendermint/round"
	"github.com/autonity/tendermint/types"
)

// WAL is the durability capability Handle writes through before any input
// that could change this node's published behavior is fed to the driver.
// *wal.Log satisfies this directly. Flush must return before an Append is
// considered durable (spec.md §4.7); appendWal calls it before letting any
// subsequent effect — in particular a Broadcast — proceed.
type WAL interface {
	Append(payload []byte) (int, error)
	Flush() error
}

// Handler is the per-node consensus orchestrator. One Handler runs one
// height at a time; NewHandler constructs it empty, and InputStartHeight
// arms it for a height.
type Handler struct {
	cfg    Config
	host   Host
	scheme types.SigningScheme
	vc     codec.ValueCodec
	self   types.Address
	wal    WAL

	replaying bool

	height     types.Height
	validators *types.ValidatorSet
	drv        *driver.Driver
	full       *fullproposal.Keeper
	buffer     *MaxQueue

	decided bool

	lastVote       *types.SignedVote
	rebroadcastLim *rate.Limiter

	seen *lru.Cache[common.Hash, struct{}]
}

// NewHandler constructs an idle Handler. Call Handle with InputStartHeight
// before feeding any other input.
func NewHandler(cfg Config, host Host, scheme types.SigningScheme, vc codec.ValueCodec, self types.Address, w WAL) *Handler {
	seen, _ := lru.New[common.Hash, struct{}](4096)
	return &Handler{
		cfg:            cfg,
		host:           host,
		scheme:         scheme,
		vc:             vc,
		self:           self,
		wal:            w,
		buffer:         NewMaxQueue(),
		rebroadcastLim: rate.NewLimiter(rate.Every(cfg.TimeoutRebroadcast), 1),
		seen:           seen,
	}
}

// BeginReplay suppresses WalAppend effects so replaying previously-durable
// WAL entries does not re-append them; Broadcast/Decide/etc still fire so a
// crashed node re-derives and re-sends its own prior messages (spec.md §8
// scenario 6).
func (h *Handler) BeginReplay() { h.replaying = true }

// EndReplay ends replay mode and reports WalReplayComplete, the signal
// spec.md §4.6 says the runtime waits for before feeding live input.
func (h *Handler) EndReplay() Effect {
	h.replaying = false
	return Effect{Kind: EffectWalReplayComplete, Height: h.height}
}

// Handle processes one Input and returns the ordered trace of effects it
// performed.
func (h *Handler) Handle(ctx context.Context, in Input) ([]Effect, error) {
	switch in.Kind {
	case InputStartHeight:
		return h.startHeight(ctx, in.Height, in.Validators)
	case InputRebroadcastTimeout:
		return h.rebroadcast(in.Height)
	}

	if h.drv == nil || in.Height < h.height {
		return nil, nil
	}
	if in.Height > h.height {
		h.buffer.Push(in.Height, in)
		return nil, nil
	}
	return h.process(ctx, in)
}

func (h *Handler) process(ctx context.Context, in Input) ([]Effect, error) {
	switch in.Kind {
	case InputVote:
		return h.handleVote(ctx, in.Vote)
	case InputProposal:
		return h.handleProposal(ctx, in.Proposal)
	case InputProposedValue:
		return h.handleProposedValue(ctx, in.ProposedValue, in.Origin)
	case InputTimeoutElapsed:
		return h.handleTimeout(ctx, in.Timeout)
	case InputVoteSetRequest:
		return h.handleVoteSetRequest(in.RequestID, in.Round, in.Requester)
	case InputVoteSetResponse:
		return h.handleVoteSetResponse(ctx, in.Votes, in.Certificates)
	case InputPolkaCertificate:
		return h.handlePolkaCertificate(ctx, in.PolkaCertificate)
	case InputCommitCertificate:
		return h.handleCommitCertificate(ctx, in.CommitCertificate)
	default:
		return nil, nil
	}
}

// startHeight cancels whatever timeouts the previous height left armed,
// reports EffectWalStartedHeight, constructs a new Driver and fullproposal
// Keeper, enters round zero, then replays whatever was buffered for this
// height while the previous one was still running. It does not truncate,
// restart or check the sequence of the WAL; the WAL interface offers only
// Append and Flush.
func (h *Handler) startHeight(ctx context.Context, height types.Height, validators *types.ValidatorSet) ([]Effect, error) {
	effects := []Effect{{Kind: EffectCancelAllTimeouts, Height: h.height}}

	h.height = height
	h.validators = validators
	h.decided = false
	h.lastVote = nil
	h.drv = driver.NewDriver(height, validators, h.cfg.ThresholdParams, h.selectProposer, h.self)
	h.full = fullproposal.NewKeeper(h.cfg.ValuePayload, h.cfg.ValidityCacheSize)

	effects = append(effects, Effect{Kind: EffectWalStartedHeight, Height: height})

	outs := h.drv.Apply(driver.NewRoundInput(types.RoundZero))
	more, err := h.processOutputs(ctx, types.RoundZero, outs)
	effects = append(effects, more...)
	if err != nil {
		return effects, err
	}

	for _, buffered := range h.buffer.Drain(height) {
		more, err := h.process(ctx, buffered)
		effects = append(effects, more...)
		if err != nil {
			return effects, err
		}
	}
	return effects, nil
}

func (h *Handler) selectProposer(validators *types.ValidatorSet, height types.Height, r types.Round) types.Address {
	return h.host.SelectProposer(validators, height, r)
}

// dedup reports whether msg was already processed, recording it as seen if
// not. Grounded on the teacher's handleMsg, which keys a message cache by
// Keccak256(payload) and drops anything already present before doing any
// further decoding or routing work.
func (h *Handler) dedup(msg types.SignedConsensusMsg) (bool, error) {
	var buf bytes.Buffer
	if err := codec.EncodeSignedConsensusMsg(&buf, msg, h.scheme, h.vc); err != nil {
		return false, err
	}
	key := common.BytesToHash(crypto.Keccak256(buf.Bytes()))
	if _, ok := h.seen.Get(key); ok {
		return true, nil
	}
	h.seen.Add(key, struct{}{})
	return false, nil
}

func (h *Handler) handleVote(ctx context.Context, sv types.SignedVote) ([]Effect, error) {
	dup, err := h.dedup(types.VoteMsg(sv))
	if err != nil || dup {
		return nil, err
	}

	validator, ok := h.validators.GetByAddress(sv.Message.Voter)
	if !ok {
		return nil, nil
	}
	effects := []Effect{{Kind: EffectVerifySignature, Height: h.height, Round: sv.Message.Round}}
	valid, err := h.host.VerifySignedVote(sv, validator)
	if err != nil || !valid {
		return effects, err
	}

	if len(sv.Message.Extension) > 0 {
		effects = append(effects, Effect{Kind: EffectVerifyVoteExtension, Height: h.height, Round: sv.Message.Round})
		ok, err := h.host.VerifyVoteExtension(ctx, sv.Message.Extension, validator)
		if err != nil {
			return effects, err
		}
		if !ok {
			return effects, nil
		}
	}

	walEff, err := h.appendWal(types.WalEntry{Kind: types.WalEntryConsensusMsg, ConsensusMsg: types.VoteMsg(sv)})
	effects = append(effects, walEff...)
	if err != nil {
		return effects, err
	}

	outs := h.drv.Apply(driver.VoteInput(sv))
	more, err := h.processOutputs(ctx, sv.Message.Round, outs)
	effects = append(effects, more...)
	return effects, err
}

func (h *Handler) handleProposal(ctx context.Context, sp types.SignedProposal) ([]Effect, error) {
	dup, err := h.dedup(types.ProposalMsg(sp))
	if err != nil || dup {
		return nil, err
	}

	proposer, ok := h.validators.GetByAddress(sp.Message.Proposer)
	if !ok {
		return nil, nil
	}
	if expected := h.host.SelectProposer(h.validators, h.height, sp.Message.Round); expected != sp.Message.Proposer {
		return nil, nil
	}

	effects := []Effect{{Kind: EffectVerifySignature, Height: h.height, Round: sp.Message.Round}}
	valid, err := h.host.VerifySignedProposal(sp, proposer)
	if err != nil || !valid {
		return effects, err
	}

	walEff, err := h.appendWal(types.WalEntry{Kind: types.WalEntryConsensusMsg, ConsensusMsg: types.ProposalMsg(sp)})
	effects = append(effects, walEff...)
	if err != nil {
		return effects, err
	}

	validity := types.ValidityUnknown
	if h.cfg.ValuePayload != fullproposal.PartsOnly {
		v, err := h.host.VerifyProposedValue(ctx, sp.Message.Value)
		if err != nil {
			return effects, err
		}
		validity = v
	}

	complete, completeValidity, ready := h.full.ReceiveProposal(sp, validity)
	if !ready {
		return effects, nil
	}
	outs := h.drv.Apply(driver.ProposalInput(complete, completeValidity))
	more, err := h.processOutputs(ctx, complete.Message.Round, outs)
	effects = append(effects, more...)
	return effects, err
}

// handleProposedValue delivers a value that arrived outside the normal
// signed-proposal path: either this node's own GetValue answer (fed back
// synchronously by processOutputs in the common case, but also reachable
// here for a replayed WalEntryProposedValue), or a streamed value part in
// PartsOnly mode, or a sync-origin value for an already-decided height.
func (h *Handler) handleProposedValue(ctx context.Context, pv types.ProposedValue, origin types.ValueOrigin) ([]Effect, error) {
	effects, err := h.appendWal(types.WalEntry{Kind: types.WalEntryProposedValue, ProposedValue: pv})
	if err != nil {
		return effects, err
	}

	if pv.Round.Equal(h.drv.CurrentRound()) && h.host.SelectProposer(h.validators, h.height, pv.Round) == h.self {
		outs := h.drv.Apply(driver.ProposeValueInput(pv.Value))
		more, err := h.processOutputs(ctx, pv.Round, outs)
		effects = append(effects, more...)
		return effects, err
	}

	complete, validity, ready := h.full.ReceiveValue(pv)
	if !ready {
		return effects, nil
	}
	outs := h.drv.Apply(driver.ProposalInput(complete, validity))
	more, err := h.processOutputs(ctx, complete.Message.Round, outs)
	effects = append(effects, more...)
	return effects, err
}

func (h *Handler) handleTimeout(ctx context.Context, t types.Timeout) ([]Effect, error) {
	effects, err := h.appendWal(types.WalEntry{Kind: types.WalEntryTimeout, Timeout: t})
	if err != nil {
		return effects, err
	}
	outs := h.drv.Apply(driver.TimeoutElapsedInput(t))
	more, err := h.processOutputs(ctx, t.Round, outs)
	effects = append(effects, more...)
	return effects, err
}

// handleVoteSetRequest answers a peer's request for every vote this node
// holds at (height, round) — the RequestResponse liveness strategy spec.md
// §4.6 names as an alternative to Rebroadcast.
func (h *Handler) handleVoteSetRequest(requestID uint64, r types.Round, requester types.Address) ([]Effect, error) {
	votes := h.drv.VotesAt(r)
	return []Effect{{
		Kind:      EffectSendVoteSetResponse,
		Height:    h.height,
		Round:     r,
		RequestID: requestID,
		Requester: requester,
		Votes:     votes,
	}}, nil
}

// handleVoteSetResponse feeds back every vote/certificate a peer held that
// this node was missing, verifying each the same way a freshly-arrived
// message would be.
func (h *Handler) handleVoteSetResponse(ctx context.Context, votes []types.SignedVote, certs []types.RoundCertificate) ([]Effect, error) {
	var effects []Effect
	for _, sv := range votes {
		more, err := h.handleVote(ctx, sv)
		effects = append(effects, more...)
		if err != nil {
			return effects, err
		}
	}
	for _, cert := range certs {
		more, err := h.handleRoundCertificate(ctx, cert)
		effects = append(effects, more...)
		if err != nil {
			return effects, err
		}
	}
	return effects, nil
}

func (h *Handler) handleRoundCertificate(ctx context.Context, cert types.RoundCertificate) ([]Effect, error) {
	var effects []Effect
	for _, sv := range cert.Votes {
		more, err := h.handleVote(ctx, sv)
		effects = append(effects, more...)
		if err != nil {
			return effects, err
		}
	}
	for _, sp := range cert.Proposals {
		more, err := h.handleProposal(ctx, sp)
		effects = append(effects, more...)
		if err != nil {
			return effects, err
		}
	}
	return effects, nil
}

// handlePolkaCertificate verifies every vote in cert, then — if valid and
// already matched by a stored proposal — folds it into the driver for
// hidden-lock recovery (spec.md §4.6, GLOSSARY "Hidden lock").
func (h *Handler) handlePolkaCertificate(ctx context.Context, cert types.PolkaCertificate) ([]Effect, error) {
	effects := []Effect{{Kind: EffectVerifyCertificate, Height: h.height, Round: cert.Round}}
	ok, err := h.verifyCertificateVotes(cert.Votes, cert.Round, types.PrevoteType, cert.ValueID)
	if err != nil || !ok {
		return effects, err
	}
	outs := h.drv.Apply(driver.PolkaCertificateInput(cert))
	more, err := h.processOutputs(ctx, cert.Round, outs)
	effects = append(effects, more...)
	return effects, err
}

// handleCommitCertificate verifies every vote in cert, then decides the
// height directly — the state-sync fast path that skips replaying every
// individual vote.
func (h *Handler) handleCommitCertificate(ctx context.Context, cert types.CommitCertificate) ([]Effect, error) {
	effects := []Effect{{Kind: EffectVerifyCertificate, Height: h.height, Round: cert.Round}}
	ok, err := h.verifyCertificateVotes(cert.Commits, cert.Round, types.PrecommitType, cert.ValueID)
	if err != nil || !ok {
		return effects, err
	}
	outs := h.drv.Apply(driver.CommitCertificateInput(cert))
	more, err := h.processOutputs(ctx, cert.Round, outs)
	effects = append(effects, more...)
	return effects, err
}

func (h *Handler) verifyCertificateVotes(votes []types.SignedVote, r types.Round, vtype types.VoteType, id types.ValueID) (bool, error) {
	var weight uint64
	for _, sv := range votes {
		if sv.Message.Round != r || sv.Message.Type != vtype {
			continue
		}
		value, ok := sv.Message.Value.Value()
		if !ok || value != id {
			continue
		}
		validator, ok := h.validators.GetByAddress(sv.Message.Voter)
		if !ok {
			continue
		}
		valid, err := h.host.VerifySignedVote(sv, validator)
		if err != nil {
			return false, err
		}
		if !valid {
			continue
		}
		weight += validator.VotingPower
	}
	return h.cfg.ThresholdParams.Quorum.IsMet(weight, h.validators.TotalVotingPower()), nil
}

// rebroadcast re-sends this node's own last broadcast vote, the
// VoteSyncRebroadcast liveness strategy's periodic action.
func (h *Handler) rebroadcast(height types.Height) ([]Effect, error) {
	if h.cfg.VoteSyncMode != VoteSyncRebroadcast || h.lastVote == nil || height != h.height {
		return nil, nil
	}
	if !h.rebroadcastLim.Allow() {
		return nil, nil
	}
	return []Effect{{Kind: EffectRebroadcast, Height: h.height, Round: h.lastVote.Message.Round, Message: types.VoteMsg(*h.lastVote)}}, nil
}

func (h *Handler) appendWal(entry types.WalEntry) ([]Effect, error) {
	effect := Effect{Kind: EffectWalAppend, Height: h.height, WalEntry: entry}
	if h.replaying || h.wal == nil {
		return []Effect{effect}, nil
	}
	var buf bytes.Buffer
	if err := codec.EncodeWalEntry(&buf, entry, h.scheme, h.vc); err != nil {
		return nil, err
	}
	if _, err := h.wal.Append(buf.Bytes()); err != nil {
		return nil, err
	}
	if err := h.wal.Flush(); err != nil {
		return nil, err
	}
	return []Effect{effect}, nil
}

// processOutputs lifts driver outputs into effects, recursively entering
// any new round a NewRound output names and synchronously resolving any
// GetValue output against the host before returning.
func (h *Handler) processOutputs(ctx context.Context, r types.Round, outs []driver.Output) ([]Effect, error) {
	var effects []Effect
	for _, out := range outs {
		more, err := h.processOutput(ctx, r, out)
		effects = append(effects, more...)
		if err != nil {
			return effects, err
		}
	}
	return effects, nil
}

func (h *Handler) processOutput(ctx context.Context, r types.Round, out driver.Output) ([]Effect, error) {
	switch out.Kind {
	case round.OutputNewRound:
		next := h.drv.Apply(driver.NewRoundInput(out.Round))
		return h.processOutputs(ctx, out.Round, next)
	case round.OutputGetValue:
		return h.resolveGetValue(ctx, r, out)
	case round.OutputScheduleTimeout:
		return []Effect{{Kind: EffectScheduleTimeout, Height: h.height, Round: r, Timeout: out.Timeout}}, nil
	case round.OutputProposal:
		return h.signAndBroadcastProposal(ctx, r, out.ProposalValue, out.PolRound)
	case round.OutputPrevote:
		return h.signAndBroadcastVote(ctx, r, types.PrevoteType, out.VoteValue)
	case round.OutputPrecommit:
		return h.signAndBroadcastVote(ctx, r, types.PrecommitType, out.VoteValue)
	case round.OutputDecide:
		return h.decide(r, out.DecisionValue)
	default:
		return nil, fmt.Errorf("consensus: unhandled round output kind %v", out.Kind)
	}
}

// resolveGetValue schedules the propose timeout out carries as a fallback,
// then asks the host for a value to propose; if one arrives it is WAL
// appended and fed back to the driver as a ProposeValue input, producing
// the Proposal output in turn. The host call is bounded by the same
// propose-timeout duration just armed, so a host that never answers cannot
// block this height's task past the point the round would have moved on
// without it anyway. A host error (including the deadline expiring) leaves
// the propose timeout as the only path forward: no proposal is made, and
// the round moves on when that timeout fires.
func (h *Handler) resolveGetValue(ctx context.Context, r types.Round, out driver.Output) ([]Effect, error) {
	effects := []Effect{
		{Kind: EffectScheduleTimeout, Height: h.height, Round: r, Timeout: out.Timeout},
		{Kind: EffectGetValue, Height: h.height, Round: r},
	}
	getCtx, cancel := context.WithTimeout(ctx, h.cfg.timeoutFor(timeoutStepPropose, r.AsI64()))
	value, err := h.host.GetValue(getCtx, h.height, r)
	cancel()
	if err != nil {
		return effects, nil
	}

	walEff, err := h.appendWal(types.WalEntry{Kind: types.WalEntryProposedValue, ProposedValue: types.ProposedValue{
		Height: h.height, Round: r, Value: value, Validity: types.ValidityValid, Origin: types.OriginConsensus,
	}})
	effects = append(effects, walEff...)
	if err != nil {
		return effects, err
	}

	outs := h.drv.Apply(driver.ProposeValueInput(value))
	more, err := h.processOutputs(ctx, r, outs)
	effects = append(effects, more...)
	return effects, err
}

// signAndBroadcastProposal signs and broadcasts this node's own proposal,
// then feeds it back through the same fullproposal/driver path a received
// proposal takes (trusting it as Valid, since it is this node's own value)
// so the proposer's round state advances to Prevote exactly like every
// other validator's on receiving it — the driver's ProposeValue transition
// only ever produces the Proposal output itself (round/state_machine.go's
// applyProposeValue), it never also re-enters the round as a proposal
// recipient.
func (h *Handler) signAndBroadcastProposal(ctx context.Context, r types.Round, value types.Value, polRound types.Round) ([]Effect, error) {
	p := types.Proposal{Height: h.height, Round: r, Value: value, PolRound: polRound, Proposer: h.self}
	sp, err := h.host.SignProposal(p)
	if err != nil {
		return nil, err
	}
	effects, err := h.appendWal(types.WalEntry{Kind: types.WalEntryConsensusMsg, ConsensusMsg: types.ProposalMsg(sp)})
	if err != nil {
		return effects, err
	}
	effects = append(effects, Effect{Kind: EffectBroadcast, Height: h.height, Round: r, Message: types.ProposalMsg(sp)})

	complete, completeValidity, ready := h.full.ReceiveProposal(sp, types.ValidityValid)
	if !ready {
		return effects, nil
	}
	outs := h.drv.Apply(driver.ProposalInput(complete, completeValidity))
	more, err := h.processOutputs(ctx, complete.Message.Round, outs)
	effects = append(effects, more...)
	return effects, err
}

// signAndBroadcastVote signs and broadcasts this node's own vote, then feeds
// it back to the driver so it counts toward this node's own tallies.
func (h *Handler) signAndBroadcastVote(ctx context.Context, r types.Round, vtype types.VoteType, value types.NilOrVal[types.ValueID]) ([]Effect, error) {
	v := types.Vote{Type: vtype, Height: h.height, Round: r, Value: value, Voter: h.self}
	sv, err := h.host.SignVote(v)
	if err != nil {
		return nil, err
	}
	effects, err := h.appendWal(types.WalEntry{Kind: types.WalEntryConsensusMsg, ConsensusMsg: types.VoteMsg(sv)})
	if err != nil {
		return effects, err
	}
	effects = append(effects, Effect{Kind: EffectBroadcast, Height: h.height, Round: r, Message: types.VoteMsg(sv)})
	h.lastVote = &sv

	outs := h.drv.Apply(driver.VoteInput(sv))
	more, err := h.processOutputs(ctx, r, outs)
	effects = append(effects, more...)
	return effects, err
}

// decide finalizes the height at most once: cancels every outstanding
// timeout, builds a CommitCertificate from the precommits the vote keeper
// holds for (r, value), extracts per-voter extensions, and delivers it to
// the host.
func (h *Handler) decide(r types.Round, value types.Value) ([]Effect, error) {
	if h.decided {
		return nil, nil
	}
	h.decided = true

	id := value.ID()
	commits := h.drv.PrecommitsFor(r, id)
	cert := types.CommitCertificate{Height: h.height, Round: r, ValueID: id, Commits: commits}
	extensions := make(map[types.Address]types.Extension)
	for _, sv := range commits {
		if len(sv.Message.Extension) > 0 {
			extensions[sv.Message.Voter] = sv.Message.Extension
		}
	}

	effects := []Effect{
		{Kind: EffectCancelAllTimeouts, Height: h.height},
		{Kind: EffectDecide, Height: h.height, Round: r, Certificate: cert, Extensions: extensions},
	}
	h.host.Decide(cert, extensions)
	return effects, nil
}
