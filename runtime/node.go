// Package runtime composes a consensus.Handler with the independent tasks
// spec.md §5 says a real embedding needs: one task applying queued inputs,
// a timer task that turns a ScheduleTimeout effect into a real elapsed
// timeout fed back as input, and (via the Host/Transport the caller
// supplies) the WAL and gossip layers. It is example wiring, not a
// production node: a real embedding chooses its own transport, persistence,
// and host. Grounded on the teacher's event-loop goroutine-per-concern
// style generalized through golang.org/x/sync/errgroup the way the
// retrieval pack's hare3 package starts and stops its per-layer consensus
// goroutines (Hare.Start's h.eg.Go(...), Hare.Stop's h.cancel()+h.eg.Wait()).
package runtime

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/autonity/tendermint/consensus"
	"github.com/autonity/tendermint/telemetry"
	"github.com/autonity/tendermint/types"
)

// Transport is the minimal outbound capability a Node needs: broadcasting a
// consensus message to every peer, and answering one peer's vote-set
// request directly.
type Transport interface {
	Broadcast(msg types.SignedConsensusMsg)
	SendVoteSetResponse(to types.Address, requestID uint64, votes []types.SignedVote, certs []types.RoundCertificate)
}

type timerKey struct {
	Round types.Round
	Kind  types.TimeoutKind
}

// Node drives one Handler: a height task applying queued Inputs and turning
// the Effects Handle returns into real timers and transport calls.
type Node struct {
	handler    *consensus.Handler
	transport  Transport
	timeoutFor func(types.Timeout) time.Duration
	telemetry  *telemetry.Feed

	inputs  chan consensus.Input
	elapsed chan consensus.Input
	stopped chan struct{}

	eg     errgroup.Group
	cancel context.CancelFunc

	mu    sync.Mutex
	armed map[timerKey]*time.Timer
}

// NewNode constructs a Node around handler. timeoutFor maps a just-armed
// Timeout to how long the Node's timer task should wait before feeding back
// a TimeoutElapsed input (ordinarily consensus.Config.timeoutFor's logic,
// reproduced by the caller since that method is unexported).
func NewNode(handler *consensus.Handler, transport Transport, timeoutFor func(types.Timeout) time.Duration) *Node {
	return &Node{
		handler:    handler,
		transport:  transport,
		timeoutFor: timeoutFor,
		inputs:     make(chan consensus.Input, 256),
		elapsed:    make(chan consensus.Input, 16),
		stopped:    make(chan struct{}),
		armed:      make(map[timerKey]*time.Timer),
	}
}

// WithTelemetry attaches feed so every EffectDecide observed while applying
// inputs also publishes a DecisionEvent; nil detaches it. Returns n for
// chaining at construction time.
func (n *Node) WithTelemetry(feed *telemetry.Feed) *Node {
	n.telemetry = feed
	return n
}

// Submit enqueues in for the height task to apply. Safe to call
// concurrently; blocks if the input backlog is full.
func (n *Node) Submit(in consensus.Input) {
	select {
	case n.inputs <- in:
	case <-n.stopped:
	}
}

// Start launches the height task as one goroutine under an errgroup.Group.
// Cancel ctx or call Stop to shut it down.
func (n *Node) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case in := <-n.inputs:
				n.apply(ctx, in)
			case in := <-n.elapsed:
				n.apply(ctx, in)
			}
		}
	})
}

// Stop cancels the height task, disarms every outstanding timer, and waits
// for the task to exit.
func (n *Node) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	close(n.stopped)
	n.cancelAllTimeouts()
	_ = n.eg.Wait()
}

func (n *Node) apply(ctx context.Context, in consensus.Input) {
	effects, err := n.handler.Handle(ctx, in)
	if err != nil {
		// A production embedding logs and likely halts this height's task;
		// the demonstration wiring here just drops the faulting input and
		// keeps serving the rest of the queue.
		return
	}
	for _, eff := range effects {
		n.applyEffect(eff)
	}
}

func (n *Node) applyEffect(eff consensus.Effect) {
	switch eff.Kind {
	case consensus.EffectBroadcast, consensus.EffectRebroadcast:
		n.transport.Broadcast(eff.Message)
	case consensus.EffectScheduleTimeout:
		n.scheduleTimeout(eff.Height, eff.Timeout)
	case consensus.EffectCancelTimeout:
		n.cancelTimeout(eff.Timeout)
	case consensus.EffectCancelAllTimeouts:
		n.cancelAllTimeouts()
	case consensus.EffectSendVoteSetResponse:
		n.transport.SendVoteSetResponse(eff.Requester, eff.RequestID, eff.Votes, eff.Certificates)
	case consensus.EffectDecide:
		if n.telemetry != nil {
			n.telemetry.PublishDecision(telemetry.DecisionEvent{Certificate: eff.Certificate})
		}
	}
}

func (n *Node) scheduleTimeout(height types.Height, t types.Timeout) {
	key := timerKey{Round: t.Round, Kind: t.Kind}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, armed := n.armed[key]; armed {
		return
	}
	timer := time.AfterFunc(n.timeoutFor(t), func() {
		n.mu.Lock()
		delete(n.armed, key)
		n.mu.Unlock()
		select {
		case n.elapsed <- consensus.TimeoutElapsedInput(height, t):
		case <-n.stopped:
		}
	})
	n.armed[key] = timer
}

func (n *Node) cancelTimeout(t types.Timeout) {
	key := timerKey{Round: t.Round, Kind: t.Kind}
	n.mu.Lock()
	defer n.mu.Unlock()
	if timer, ok := n.armed[key]; ok {
		timer.Stop()
		delete(n.armed, key)
	}
}

func (n *Node) cancelAllTimeouts() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for key, timer := range n.armed {
		timer.Stop()
		delete(n.armed, key)
	}
}
