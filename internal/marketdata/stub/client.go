package stub

import (
	"context"
	"sync"

	"solana-meme-radar/internal/marketdata"
)

// Client implements marketdata.Client for testing. Pairs are served from
// PairsByMint; any Err field fails the matching call.
type Client struct {
	mu sync.Mutex

	Profiles    []marketdata.Profile
	Latest      []marketdata.Boost
	Top         []marketdata.Boost
	PairsByMint map[string][]marketdata.Pair

	ProfilesErr error
	LatestErr   error
	TopErr      error
	BatchErr    error
	SingleErr   error

	ProfileCalls int
	BatchCalls   [][]string
	SingleCalls  []string
}

var _ marketdata.Client = (*Client)(nil)

// NewClient creates an empty stub client.
func NewClient() *Client {
	return &Client{PairsByMint: make(map[string][]marketdata.Pair)}
}

// AddPair registers a pair under its base token address.
func (c *Client) AddPair(p marketdata.Pair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PairsByMint[p.BaseToken.Address] = append(c.PairsByMint[p.BaseToken.Address], p)
}

func (c *Client) LatestProfiles(ctx context.Context) ([]marketdata.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ProfileCalls++
	if c.ProfilesErr != nil {
		return nil, c.ProfilesErr
	}
	return append([]marketdata.Profile(nil), c.Profiles...), nil
}

func (c *Client) LatestBoosts(ctx context.Context) ([]marketdata.Boost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.LatestErr != nil {
		return nil, c.LatestErr
	}
	return append([]marketdata.Boost(nil), c.Latest...), nil
}

func (c *Client) TopBoosts(ctx context.Context) ([]marketdata.Boost, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.TopErr != nil {
		return nil, c.TopErr
	}
	return append([]marketdata.Boost(nil), c.Top...), nil
}

func (c *Client) PairsByTokens(ctx context.Context, addresses []string) ([]marketdata.Pair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BatchCalls = append(c.BatchCalls, append([]string(nil), addresses...))
	if c.BatchErr != nil {
		return nil, c.BatchErr
	}
	var out []marketdata.Pair
	for _, a := range addresses {
		out = append(out, c.PairsByMint[a]...)
	}
	return out, nil
}

func (c *Client) TokenPairs(ctx context.Context, address string) ([]marketdata.Pair, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SingleCalls = append(c.SingleCalls, address)
	if c.SingleErr != nil {
		return nil, c.SingleErr
	}
	return append([]marketdata.Pair(nil), c.PairsByMint[address]...), nil
}

// ProfileCallCount returns how many times the profiles feed was read.
func (c *Client) ProfileCallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ProfileCalls
}

// Calls returns copies of the recorded batch and single lookups.
func (c *Client) Calls() (batch [][]string, single []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.BatchCalls...), append([]string(nil), c.SingleCalls...)
}
