// Package api serves the radar HTTP surface: token lists, stats, account
// state and payment verification.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"solana-meme-radar/internal/auth"
	"solana-meme-radar/internal/config"
	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/logging"
	"solana-meme-radar/internal/observability"
	"solana-meme-radar/internal/payment"
	"solana-meme-radar/internal/registry"
)

// TokenSource is the read side of the token registry.
type TokenSource interface {
	Query(q registry.Query) registry.Page
	RankByMomentum() []domain.Token
	Get(mint string) (domain.Token, bool)
	Stats() registry.Stats
}

// Entitlements resolves tiers with lazy expiry applied.
type Entitlements interface {
	Profile(ctx context.Context, userID string) (*domain.Profile, error)
	Resolve(ctx context.Context, userID string) (domain.Entitlement, error)
}

// PaymentVerifier verifies payment submissions.
type PaymentVerifier interface {
	Verify(ctx context.Context, req payment.Request) payment.Result
}

// PaymentHistory lists a user's payment attempts.
type PaymentHistory interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.PaymentAttempt, error)
}

// ClientCounter reports live real-time subscribers.
type ClientCounter interface {
	ClientCount() int
}

// Options contains configuration for creating a Server.
type Options struct {
	Tokens       TokenSource
	Auth         auth.Authenticator
	Entitlements Entitlements
	Verifier     PaymentVerifier
	History      PaymentHistory
	Live         ClientCounter
	// WebSocket is mounted at /ws when set.
	WebSocket http.Handler

	Premium    config.PremiumConfig
	CORSOrigin string

	Now    func() time.Time
	Logger *logrus.Entry
}

// Server routes API requests.
type Server struct {
	tokens       TokenSource
	auth         auth.Authenticator
	entitlements Entitlements
	verifier     PaymentVerifier
	history      PaymentHistory
	live         ClientCounter
	premium      config.PremiumConfig
	corsOrigin   string
	now          func() time.Time
	started      time.Time
	logger       *logrus.Entry

	handler http.Handler
}

// NewServer creates the API server. A nil Auth rejects every bearer token.
func NewServer(opts Options) *Server {
	if opts.Auth == nil {
		opts.Auth = auth.Static{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.For("api")
	}
	s := &Server{
		tokens:       opts.Tokens,
		auth:         opts.Auth,
		entitlements: opts.Entitlements,
		verifier:     opts.Verifier,
		history:      opts.History,
		live:         opts.Live,
		premium:      opts.Premium,
		corsOrigin:   opts.CORSOrigin,
		now:          opts.Now,
		started:      opts.Now(),
		logger:       opts.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tokens", s.handleTokens)
	mux.HandleFunc("GET /api/tokens/high-momentum", s.handleHighMomentum)
	mux.HandleFunc("GET /api/tokens/{mintAddress}", s.handleToken)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/auth/me", s.handleMe)
	mux.HandleFunc("GET /api/auth/subscription", s.handleSubscription)
	mux.HandleFunc("POST /api/payments/verify", s.handleVerify)
	mux.HandleFunc("GET /api/payments/history", s.handleHistory)
	mux.HandleFunc("GET /api/payments/pricing", s.handlePricing)
	mux.Handle("GET /metrics", observability.Handler())
	if opts.WebSocket != nil {
		mux.Handle("GET /ws", opts.WebSocket)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusNotFound, "Not found")
	})

	s.handler = s.recoverPanics(s.instrument(s.cors(mux)))
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown http server")
	}
	s.logger.Info("http server stopped")
	return nil
}
