package events

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"solana-meme-radar/internal/logging"
)

type registration struct {
	id   uint64
	name string
	sub  Subscriber
}

// Bus delivers each published event once to every subscriber, in
// subscription order, on the publishing goroutine. A failing or panicking
// subscriber does not affect the others.
type Bus struct {
	mu     sync.RWMutex
	subs   []registration
	nextID uint64
	logger *logrus.Entry
}

// NewBus creates a bus. A nil logger uses the component default.
func NewBus(logger *logrus.Entry) *Bus {
	if logger == nil {
		logger = logging.For("events")
	}
	return &Bus{logger: logger}
}

// Subscribe registers sub and returns a function that removes it.
func (b *Bus) Subscribe(name string, sub Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, registration{id: id, name: name, sub: sub})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, r := range b.subs {
				if r.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers ev to the subscribers registered at call time.
func (b *Bus) Publish(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := make([]registration, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, r := range subs {
		if err := b.deliver(ctx, r, ev); err != nil {
			b.logger.WithFields(logrus.Fields{
				"subscriber": r.name,
				"event":      ev.Kind(),
			}).WithError(err).Warn("subscriber failed")
		}
	}
}

func (b *Bus) deliver(ctx context.Context, r registration, ev Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Newf("panic: %v", rec)
		}
	}()
	return r.sub.HandleEvent(ctx, ev)
}
