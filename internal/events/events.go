// Package events is a synchronous publish/subscribe bus for registry and
// alert events.
package events

import (
	"context"

	"solana-meme-radar/internal/domain"
)

// Kind is the wire name of an event.
type Kind string

const (
	KindNewTokens    Kind = "new_token"
	KindTokenUpdate  Kind = "token_update"
	KindHighMomentum Kind = "high_momentum"
	KindVolumeAlert  Kind = "volume_alert"
)

// Event is one of NewTokens, TokenUpdate, HighMomentum or VolumeAlert.
type Event interface {
	Kind() Kind
	// Payload is the value sent to real-time subscribers.
	Payload() any
}

// NewTokens lists tokens seen for the first time in a discovery tick.
type NewTokens struct {
	Tokens []domain.Token
}

// TokenUpdate lists tokens whose market data changed in a refresh tick.
type TokenUpdate struct {
	Tokens []domain.Token
}

// HighMomentum is the current momentum ranking.
type HighMomentum struct {
	Tokens []domain.Token
}

// VolumeAlert is a detected volume spike.
type VolumeAlert struct {
	Alert domain.VolumeAlert
}

func (NewTokens) Kind() Kind    { return KindNewTokens }
func (TokenUpdate) Kind() Kind  { return KindTokenUpdate }
func (HighMomentum) Kind() Kind { return KindHighMomentum }
func (VolumeAlert) Kind() Kind  { return KindVolumeAlert }

func (e NewTokens) Payload() any    { return e.Tokens }
func (e TokenUpdate) Payload() any  { return e.Tokens }
func (e HighMomentum) Payload() any { return e.Tokens }
func (e VolumeAlert) Payload() any  { return e.Alert }

// Subscriber receives events.
type Subscriber interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, ev Event) error

func (f SubscriberFunc) HandleEvent(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
