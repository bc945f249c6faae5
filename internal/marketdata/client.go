// Package marketdata is a thin client for the DexScreener aggregator API.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"solana-meme-radar/internal/observability"
)

// Default configuration values.
const (
	DefaultBaseURL       = "https://api.dexscreener.com"
	DefaultFeedTimeout   = 10 * time.Second
	DefaultBatchTimeout  = 15 * time.Second
	DefaultSingleTimeout = 5 * time.Second

	// MaxBatchAddresses is the most token addresses one lookup accepts.
	MaxBatchAddresses = 30
)

// Client is the aggregator surface used by ingestion.
type Client interface {
	LatestProfiles(ctx context.Context) ([]Profile, error)
	LatestBoosts(ctx context.Context) ([]Boost, error)
	TopBoosts(ctx context.Context) ([]Boost, error)
	// PairsByTokens looks up the pairs of up to MaxBatchAddresses tokens.
	PairsByTokens(ctx context.Context, addresses []string) ([]Pair, error)
	// TokenPairs looks up the pairs of a single token.
	TokenPairs(ctx context.Context, address string) ([]Pair, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Endpoint string
	Code     int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.Code)
}

// HTTPClient implements Client over HTTP. It never retries; the next
// scheduler tick is the retry.
type HTTPClient struct {
	baseURL       string
	client        *http.Client
	feedTimeout   time.Duration
	batchTimeout  time.Duration
	singleTimeout time.Duration
}

var _ Client = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithTimeouts overrides the per-request timeouts. Zero keeps the default.
func WithTimeouts(feed, batch, single time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if feed > 0 {
			c.feedTimeout = feed
		}
		if batch > 0 {
			c.batchTimeout = batch
		}
		if single > 0 {
			c.singleTimeout = single
		}
	}
}

// NewHTTPClient creates a client for baseURL, DefaultBaseURL when empty.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &HTTPClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{},
		feedTimeout:   DefaultFeedTimeout,
		batchTimeout:  DefaultBatchTimeout,
		singleTimeout: DefaultSingleTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) LatestProfiles(ctx context.Context) ([]Profile, error) {
	var out []Profile
	if err := c.get(ctx, "profiles_latest", "/token-profiles/latest/v1", c.feedTimeout, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) LatestBoosts(ctx context.Context) ([]Boost, error) {
	var out []Boost
	if err := c.get(ctx, "boosts_latest", "/token-boosts/latest/v1", c.feedTimeout, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) TopBoosts(ctx context.Context) ([]Boost, error) {
	var out []Boost
	if err := c.get(ctx, "boosts_top", "/token-boosts/top/v1", c.feedTimeout, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) PairsByTokens(ctx context.Context, addresses []string) ([]Pair, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	if len(addresses) > MaxBatchAddresses {
		return nil, errors.Newf("batch of %d addresses exceeds %d", len(addresses), MaxBatchAddresses)
	}
	escaped := make([]string, len(addresses))
	for i, a := range addresses {
		escaped[i] = url.PathEscape(a)
	}
	path := "/tokens/v1/" + ChainSolana + "/" + strings.Join(escaped, ",")

	var out []Pair
	if err := c.get(ctx, "tokens_batch", path, c.batchTimeout, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) TokenPairs(ctx context.Context, address string) ([]Pair, error) {
	var out struct {
		SchemaVersion string `json:"schemaVersion"`
		Pairs         []Pair `json:"pairs"`
	}
	if err := c.get(ctx, "tokens_single", "/latest/dex/tokens/"+url.PathEscape(address), c.singleTimeout, &out); err != nil {
		return nil, err
	}
	return out.Pairs, nil
}

func (c *HTTPClient) get(ctx context.Context, endpoint, path string, timeout time.Duration, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		observability.RecordMarketDataRequest(endpoint, result, time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s request", endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s response", endpoint)
	}
	return nil
}
