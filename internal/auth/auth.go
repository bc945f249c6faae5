// Package auth resolves bearer tokens to users through the identity
// provider.
package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-retryablehttp"
)

// ErrUnauthorized is returned when the token is missing, malformed or
// rejected by the provider.
var ErrUnauthorized = errors.New("unauthorized")

// User is an authenticated caller.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Authenticator resolves an access token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*User, error)
}

// BearerToken extracts the token from an Authorization header value.
// Returns "" when the header is not a bearer credential.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ProviderClient implements Authenticator against the provider's
// GET /auth/v1/user endpoint.
type ProviderClient struct {
	baseURL    string
	serviceKey string
	client     *retryablehttp.Client
}

var _ Authenticator = (*ProviderClient)(nil)

// ProviderOption configures ProviderClient.
type ProviderOption func(*ProviderClient)

// WithRetryClient replaces the retrying HTTP client.
func WithRetryClient(c *retryablehttp.Client) ProviderOption {
	return func(p *ProviderClient) {
		p.client = c
	}
}

// NewProviderClient creates a client for the provider at baseURL.
func NewProviderClient(baseURL, serviceKey string, opts ...ProviderOption) *ProviderClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = 5 * time.Second
	client.Logger = nil

	p := &ProviderClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		client:     client,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Authenticate returns the user owning token. A 401 or 403 from the
// provider maps to ErrUnauthorized; other failures are wrapped.
func (p *ProviderClient) Authenticate(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", p.serviceKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "query identity provider")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("identity provider status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, errors.Wrap(err, "decode user")
	}
	if user.ID == "" {
		return nil, ErrUnauthorized
	}
	return &user, nil
}

// Static is an Authenticator backed by a fixed token table.
type Static map[string]User

var _ Authenticator = Static(nil)

// Authenticate looks token up in the table.
func (s Static) Authenticate(_ context.Context, token string) (*User, error) {
	u, ok := s[token]
	if !ok || token == "" {
		return nil, ErrUnauthorized
	}
	return &u, nil
}
