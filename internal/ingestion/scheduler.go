// Package ingestion keeps the token registry fed from the market data
// aggregator.
package ingestion

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"solana-meme-radar/internal/events"
	"solana-meme-radar/internal/logging"
	"solana-meme-radar/internal/marketdata"
	"solana-meme-radar/internal/registry"
)

// Default configuration values.
const (
	DefaultDiscoveryInterval = 10 * time.Second
	DefaultRefreshInterval   = 30 * time.Second
	DefaultRefreshBatchSize  = 30
	DefaultFallbackLimit     = 10
	DefaultFallbackSpacing   = 200 * time.Millisecond
	DefaultProfileLimit      = 30
	DefaultBoostLimit        = 20
	DefaultLookupTimeout     = 10 * time.Second
)

// Publisher receives scheduler events.
type Publisher interface {
	Publish(ctx context.Context, ev events.Event)
}

// SchedulerOptions contains configuration for creating a Scheduler.
type SchedulerOptions struct {
	Client    marketdata.Client
	Registry  *registry.Registry
	Publisher Publisher

	DiscoveryInterval time.Duration
	RefreshInterval   time.Duration
	RefreshBatchSize  int
	FallbackLimit     int           // max serial lookups when the batch call fails
	FallbackSpacing   time.Duration // delay between serial lookups
	ProfileLimit      int
	BoostLimit        int
	LookupTimeout     time.Duration // pair lookups during discovery

	Now    func() time.Time
	Rand   func() float64 // [0,1), placeholder creation times
	Logger *logrus.Entry
}

// Scheduler runs the discovery and market refresh ticks.
type Scheduler struct {
	client    marketdata.Client
	registry  *registry.Registry
	publisher Publisher

	discoveryInterval time.Duration
	refreshInterval   time.Duration
	refreshBatchSize  int
	fallbackLimit     int
	fallbackSpacing   time.Duration
	profileLimit      int
	boostLimit        int
	lookupTimeout     time.Duration
	now               func() time.Time
	rand              func() float64
	logger            *logrus.Entry

	mu      sync.Mutex
	running bool
	stopped bool // set by Stop, cleared by Start
	stop    chan struct{}
	wg      sync.WaitGroup

	consecutiveErrors atomic.Int64
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	s := &Scheduler{
		client:            opts.Client,
		registry:          opts.Registry,
		publisher:         opts.Publisher,
		discoveryInterval: opts.DiscoveryInterval,
		refreshInterval:   opts.RefreshInterval,
		refreshBatchSize:  opts.RefreshBatchSize,
		fallbackLimit:     opts.FallbackLimit,
		fallbackSpacing:   opts.FallbackSpacing,
		profileLimit:      opts.ProfileLimit,
		boostLimit:        opts.BoostLimit,
		lookupTimeout:     opts.LookupTimeout,
		now:               opts.Now,
		rand:              opts.Rand,
		logger:            opts.Logger,
	}
	if s.discoveryInterval <= 0 {
		s.discoveryInterval = DefaultDiscoveryInterval
	}
	if s.refreshInterval <= 0 {
		s.refreshInterval = DefaultRefreshInterval
	}
	if s.refreshBatchSize <= 0 {
		s.refreshBatchSize = DefaultRefreshBatchSize
	}
	if s.fallbackLimit <= 0 {
		s.fallbackLimit = DefaultFallbackLimit
	}
	if s.fallbackSpacing == 0 {
		s.fallbackSpacing = DefaultFallbackSpacing
	} else if s.fallbackSpacing < 0 {
		s.fallbackSpacing = 0
	}
	if s.profileLimit <= 0 {
		s.profileLimit = DefaultProfileLimit
	}
	if s.boostLimit <= 0 {
		s.boostLimit = DefaultBoostLimit
	}
	if s.lookupTimeout <= 0 {
		s.lookupTimeout = DefaultLookupTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.rand == nil {
		s.rand = rand.Float64
	}
	if s.logger == nil {
		s.logger = logging.For("scheduler")
	}
	return s
}

// Start runs one discovery pass and then arms both timers. It is a no-op
// when already running. Ticks stop when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopped = false
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"discovery_interval": s.discoveryInterval,
		"refresh_interval":   s.refreshInterval,
	}).Info("scheduler starting")

	// In-flight ticks are not cancelled by Stop; each call is bounded by
	// its own timeout.
	tickCtx := context.WithoutCancel(ctx)
	s.DiscoverOnce(tickCtx)

	s.wg.Add(2)
	go s.loop(ctx, stop, s.discoveryInterval, func() { s.DiscoverOnce(tickCtx) })
	go s.loop(ctx, stop, s.refreshInterval, func() { s.RefreshOnce(tickCtx) })
}

// Stop disarms both timers. It is idempotent and does not wait for an
// in-flight tick.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.stopped = true
	close(s.stop)
	s.logger.Info("scheduler stopped")
}

// Wait blocks until both tick loops have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Running reports whether the scheduler is started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ConsecutiveErrors is the number of consecutive discovery ticks in which
// at least one strategy failed.
func (s *Scheduler) ConsecutiveErrors() int64 {
	return s.consecutiveErrors.Load()
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, interval time.Duration, tick func()) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-stop:
			return
		case <-ticker.C:
			tick()
		}
	}
}

// publish drops events once the scheduler has been stopped.
func (s *Scheduler) publish(ctx context.Context, ev events.Event) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if s.publisher == nil || stopped {
		return
	}
	s.publisher.Publish(ctx, ev)
}
