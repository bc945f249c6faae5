package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"solana-meme-radar/internal/alerts"
	"solana-meme-radar/internal/api"
	"solana-meme-radar/internal/archive"
	"solana-meme-radar/internal/auth"
	"solana-meme-radar/internal/config"
	"solana-meme-radar/internal/events"
	"solana-meme-radar/internal/ingestion"
	"solana-meme-radar/internal/logging"
	"solana-meme-radar/internal/marketdata"
	"solana-meme-radar/internal/payment"
	"solana-meme-radar/internal/realtime"
	"solana-meme-radar/internal/registry"
	"solana-meme-radar/internal/solana"
	"solana-meme-radar/internal/storage"
	chstore "solana-meme-radar/internal/storage/clickhouse"
	"solana-meme-radar/internal/storage/memory"
	pgstore "solana-meme-radar/internal/storage/postgres"
	"solana-meme-radar/internal/subscription"
)

// stores holds the persistence backends selected by configuration.
type stores struct {
	payments  storage.PaymentStore
	profiles  storage.ProfileStore
	snapshots storage.SnapshotStore // nil disables the archive
	closers   []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores uses Postgres and ClickHouse when their DSNs are set and
// in-memory stores otherwise.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	logger := logging.For("storage")
	s := &stores{}

	if cfg.Postgres.DSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		s.payments = pgstore.NewPaymentStore(pool)
		s.profiles = pgstore.NewProfileStore(pool)
	} else {
		logger.Warn("postgres.dsn not set, payments and profiles are kept in memory")
		s.payments = memory.NewPaymentStore()
		s.profiles = memory.NewProfileStore()
	}

	if cfg.ClickHouse.DSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { conn.Close() })
		s.snapshots = chstore.NewSnapshotStore(conn)
	}
	return s, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := logging.For("radar")

	st, err := openStores(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "open stores")
	}
	defer st.Close()

	bus := events.NewBus(nil)
	reg := registry.New(registry.Options{MaxTokens: cfg.Registry.MaxTrackedTokens})
	hub := realtime.NewHub(realtime.Options{})
	defer hub.Close()
	bus.Subscribe("realtime", hub)

	if st.snapshots != nil {
		bus.Subscribe("archive", archive.NewRecorder(st.snapshots, 0))
	}

	var notifier alerts.Notifier
	if cfg.Features.ProEnabled && cfg.Telegram.Enabled() {
		notifier = alerts.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	}
	bus.Subscribe("alerts", alerts.NewEngine(alerts.Options{
		Enabled:   cfg.Features.ProEnabled,
		Notifier:  notifier,
		Publisher: bus,
	}))

	scheduler := ingestion.NewScheduler(ingestion.SchedulerOptions{
		Client:            marketdata.NewHTTPClient(cfg.MarketData.BaseURL),
		Registry:          reg,
		Publisher:         bus,
		DiscoveryInterval: cfg.Ingest.TokenPollInterval(),
		RefreshInterval:   cfg.Ingest.MarketPollInterval(),
		RefreshBatchSize:  cfg.Ingest.RefreshBatchSize,
		FallbackLimit:     cfg.Ingest.FallbackLimit,
		FallbackSpacing:   cfg.Ingest.FallbackSpacing(),
	})
	broadcaster := &ingestion.MomentumBroadcaster{
		Registry:  reg,
		Publisher: bus,
		Interval:  cfg.Ingest.MomentumInterval(),
	}

	verifier := payment.NewVerifier(payment.Options{
		Ledger:        solana.NewHTTPClient(cfg.Solana.Endpoint()),
		Payments:      st.payments,
		Profiles:      st.profiles,
		Recipient:     cfg.Premium.PaymentWallet,
		MonthlyPrice:  cfg.Premium.MonthlyPrice(),
		LifetimePrice: cfg.Premium.LifetimePrice(),
	})

	var authenticator auth.Authenticator
	if cfg.Auth.ProviderURL != "" {
		authenticator = auth.NewProviderClient(cfg.Auth.ProviderURL, cfg.Auth.ServiceKey)
	} else {
		logger.Warn("auth.provider_url not set, authenticated routes will reject every request")
	}

	server := api.NewServer(api.Options{
		Tokens:       reg,
		Auth:         authenticator,
		Entitlements: subscription.NewService(st.profiles, subscription.Options{}),
		Verifier:     verifier,
		History:      st.payments,
		Live:         hub,
		WebSocket:    hub,
		Premium:      cfg.Premium,
		CORSOrigin:   cfg.Server.CORSOrigin,
	})

	logger.WithField("pro_features", cfg.Features.ProEnabled).
		WithField("premium_enabled", cfg.Premium.Enabled).
		Info("radar starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx, fmt.Sprintf(":%d", cfg.Server.Port))
	})
	g.Go(func() error {
		scheduler.Start(gctx)
		<-gctx.Done()
		scheduler.Stop()
		scheduler.Wait()
		return nil
	})
	g.Go(func() error {
		return broadcaster.Run(gctx)
	})

	start := time.Now()
	err = g.Wait()
	logger.WithField("uptime", time.Since(start).Round(time.Second)).Info("radar stopped")
	return err
}
