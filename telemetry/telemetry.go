// Package telemetry publishes RoundState and Decision notifications to any
// number of external observers, independent of the []Effect trace
// consensus.Handler.Handle returns. Grounded on the teacher's
// core.sendEvent/c.backend.Post pub/sub shape (consensus/tendermint/core's
// handler.go posts events onto the backend's *event.TypeMux for subscribers
// like the miner and RPC layer to observe); handler.go itself carries a
// "TODO: update all of the TypeMuxSilent to event.Feed" marking TypeMux as
// the thing its own authors meant to replace, so this package reaches
// straight for the feed API rather than reproducing the mux it was about to
// retire.
package telemetry

import (
	"github.com/ethereum/go-ethereum/event"

	"github.com/autonity/tendermint/types"
)

// RoundStateEvent reports a round.State transition: the height/round now in
// progress and its step.
type RoundStateEvent struct {
	Height types.Height
	Round  types.Round
	Step   types.Step
}

// DecisionEvent reports a height's final commit certificate.
type DecisionEvent struct {
	Certificate types.CommitCertificate
}

// Feed fans RoundState and Decision notifications out to every subscriber.
// The zero value is ready to use; a Feed not embedded in anything else need
// not be constructed via a function, matching the teacher's own bare
// event.Feed fields (e.g. eth/filters' Backend.SubscribeNewTxsEvent targets).
type Feed struct {
	roundState event.Feed
	decision   event.Feed
}

// PublishRoundState posts ev to every RoundState subscriber.
func (f *Feed) PublishRoundState(ev RoundStateEvent) {
	f.roundState.Send(ev)
}

// PublishDecision posts ev to every Decision subscriber.
func (f *Feed) PublishDecision(ev DecisionEvent) {
	f.decision.Send(ev)
}

// SubscribeRoundState registers ch to receive every future RoundStateEvent.
func (f *Feed) SubscribeRoundState(ch chan<- RoundStateEvent) event.Subscription {
	return f.roundState.Subscribe(ch)
}

// SubscribeDecision registers ch to receive every future DecisionEvent.
func (f *Feed) SubscribeDecision(ch chan<- DecisionEvent) event.Subscription {
	return f.decision.Subscribe(ch)
}
