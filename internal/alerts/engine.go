// Package alerts detects volume spikes on refreshed tokens and forwards them
// to subscribers and an external notifier.
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/events"
	"solana-meme-radar/internal/logging"
	"solana-meme-radar/internal/observability"
)

// Spike detection parameters.
const (
	SpikeThreshold = 2.0
	DedupWindow    = 5 * time.Minute
	DedupCap       = 1000
)

// Notifier delivers a volume alert outside the process.
type Notifier interface {
	NotifyVolumeSpike(ctx context.Context, alert domain.VolumeAlert) error
}

// Publisher receives volume alert events.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event)
}

// Options contains configuration for creating an Engine.
type Options struct {
	Enabled   bool
	Notifier  Notifier  // optional
	Publisher Publisher // optional
	Now       func() time.Time
	Logger    *logrus.Entry
}

// Engine compares each token's 24h volume with the reading from the previous
// update and raises an alert when it at least doubles.
type Engine struct {
	enabled   bool
	notifier  Notifier
	publisher Publisher
	now       func() time.Time
	logger    *logrus.Entry

	mu      sync.Mutex
	history map[string]float64 // mint -> last seen volume
	alerted map[string]struct{}
}

var _ events.Subscriber = (*Engine)(nil)

// NewEngine creates an alert engine.
func NewEngine(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.For("alerts")
	}
	return &Engine{
		enabled:   opts.Enabled,
		notifier:  opts.Notifier,
		publisher: opts.Publisher,
		now:       opts.Now,
		logger:    opts.Logger,
		history:   make(map[string]float64),
		alerted:   make(map[string]struct{}),
	}
}

// HandleEvent runs spike detection on TokenUpdate events.
func (e *Engine) HandleEvent(ctx context.Context, ev events.Event) error {
	if upd, ok := ev.(events.TokenUpdate); ok {
		e.OnTokensUpdated(ctx, upd.Tokens)
	}
	return nil
}

// OnTokensUpdated records the new volume readings and returns the alerts
// raised for them.
func (e *Engine) OnTokensUpdated(ctx context.Context, tokens []domain.Token) []domain.VolumeAlert {
	if !e.enabled {
		return nil
	}

	var raised []domain.VolumeAlert
	for _, t := range tokens {
		if alert, ok := e.check(t); ok {
			raised = append(raised, alert)
		}
	}

	for _, alert := range raised {
		e.emit(ctx, alert)
	}
	return raised
}

func (e *Engine) check(t domain.Token) (domain.VolumeAlert, bool) {
	now := e.now()

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.history[t.MintAddress]
	e.history[t.MintAddress] = t.Volume24h
	defer e.trimAlerted()

	if prev == 0 || t.Volume24h == 0 {
		return domain.VolumeAlert{}, false
	}
	spike := t.Volume24h / prev
	if spike < SpikeThreshold {
		return domain.VolumeAlert{}, false
	}

	key := dedupKey(t.MintAddress, now)
	if _, seen := e.alerted[key]; seen {
		return domain.VolumeAlert{}, false
	}
	e.alerted[key] = struct{}{}

	return domain.VolumeAlert{
		Token:          t,
		Spike:          spike,
		PreviousVolume: prev,
		CurrentVolume:  t.Volume24h,
		Timestamp:      now.UnixMilli(),
	}, true
}

// trimAlerted clears the dedup set once it grows past DedupCap.
func (e *Engine) trimAlerted() {
	if len(e.alerted) > DedupCap {
		clear(e.alerted)
	}
}

func (e *Engine) emit(ctx context.Context, alert domain.VolumeAlert) {
	observability.RecordVolumeAlert()
	e.logger.WithFields(logrus.Fields{
		"mint":  alert.Token.MintAddress,
		"name":  alert.Token.Name,
		"spike": fmt.Sprintf("%.2f", alert.Spike),
	}).Info("volume spike detected")

	if e.publisher != nil {
		e.publisher.Publish(ctx, events.VolumeAlert{Alert: alert})
	}
	if e.notifier != nil {
		if err := e.notifier.NotifyVolumeSpike(ctx, alert); err != nil {
			e.logger.WithField("mint", alert.Token.MintAddress).WithError(err).Warn("volume alert notification failed")
		}
	}
}

func dedupKey(mint string, now time.Time) string {
	return fmt.Sprintf("%s_%d", mint, now.UnixMilli()/DedupWindow.Milliseconds())
}
