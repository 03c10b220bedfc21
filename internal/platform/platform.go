// Package platform defines the capability contract every social provider
// adapter implements. Provider-specific quirks (endpoints, token formats,
// refresh mechanics) live inside the adapters; the orchestrating flows only
// ever see this interface.
package platform

import (
	"context"
	"errors"
	"time"
)

// Tokens is the normalized credential set returned by code exchange and
// refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken *string // nil when the provider issued none
	ExpiresAt    time.Time
	Scopes       []string
}

// Metrics is the normalized performance shape. Followers, Following,
// DisplayName and ProfileImageURL are required from every adapter; the rest
// is optional and the provider payload is preserved in Raw.
type Metrics struct {
	Followers       int64          `json:"followers"`
	Following       int64          `json:"following"`
	DisplayName     string         `json:"displayName"`
	ProfileImageURL string         `json:"profileImageUrl"`
	Username        string         `json:"username,omitempty"`
	Posts           int64          `json:"posts,omitempty"`
	Raw             map[string]any `json:"-"`
}

// AuthRequest is the result of preparing a login initiation: the provider
// authorization URL plus the PKCE artifacts the caller must persist via the
// session store before redirecting.
type AuthRequest struct {
	URL          string
	State        string
	CodeVerifier string
}

// Adapter is the uniform capability contract per provider.
type Adapter interface {
	// Name returns the platform identifier used in routes, cookie names and
	// storage rows ("twitter", "instagram", ...).
	Name() string

	// PrepareAuthRequest builds the authorization URL with fresh PKCE
	// artifacts embedded.
	PrepareAuthRequest() (*AuthRequest, error)

	// ExchangeCode trades an authorization code plus the verifier bound to
	// its state for tokens.
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*Tokens, error)

	// RefreshTokens rotates credentials. The returned Tokens may omit a new
	// refresh token, in which case callers retain the previous one.
	RefreshTokens(ctx context.Context, refreshToken string) (*Tokens, error)

	// FetchMetrics fetches the live normalized metrics. It does not validate
	// tokens; callers ensure validity first.
	FetchMetrics(ctx context.Context, tokens Tokens) (*Metrics, error)
}

// Sentinel errors adapters wrap so orchestrating code can classify failures
// without knowing the provider.
var (
	// ErrUnavailable marks network failures, timeouts and provider 5xx.
	// Retryable.
	ErrUnavailable = errors.New("platform: provider unavailable")

	// ErrRefreshRejected marks a provider that refused the refresh token.
	// Terminal for the stored credential; the user must reconnect.
	ErrRefreshRejected = errors.New("platform: refresh rejected")
)
