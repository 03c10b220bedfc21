// Package twitter implements the platform adapter for Twitter/X using the
// OAuth 2.0 authorization code flow with PKCE and the v2 users API.
package twitter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/oauth/pkce"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/platform"
)

const (
	defaultAuthEndpoint  = "https://twitter.com/i/oauth2/authorize"
	defaultTokenEndpoint = "https://api.twitter.com/2/oauth2/token"
	defaultMeEndpoint    = "https://api.twitter.com/2/users/me"
)

// Adapter is the Twitter/X OAuth 2.0 client.
type Adapter struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	authEndpoint  string
	tokenEndpoint string
	meEndpoint    string

	http *http.Client
}

// New creates a Twitter adapter. offline.access is required for refresh
// tokens, so it is appended when missing.
func New(clientID, clientSecret, redirectURL string, scopes []string) *Adapter {
	if len(scopes) == 0 {
		scopes = []string{"tweet.read", "users.read"}
	}
	hasOffline := false
	for _, s := range scopes {
		if s == "offline.access" {
			hasOffline = true
			break
		}
	}
	if !hasOffline {
		scopes = append(scopes, "offline.access")
	}
	return &Adapter{
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		RedirectURL:   redirectURL,
		Scopes:        scopes,
		authEndpoint:  defaultAuthEndpoint,
		tokenEndpoint: defaultTokenEndpoint,
		meEndpoint:    defaultMeEndpoint,
		http:          &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *Adapter) Name() string { return "twitter" }

// PrepareAuthRequest builds the authorization URL with a fresh verifier,
// S256 challenge and state token.
func (a *Adapter) PrepareAuthRequest() (*platform.AuthRequest, error) {
	verifier, err := pkce.GenerateVerifier()
	if err != nil {
		return nil, err
	}
	state, err := pkce.GenerateState()
	if err != nil {
		return nil, err
	}

	u, _ := url.Parse(a.authEndpoint)
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", a.ClientID)
	q.Set("redirect_uri", a.RedirectURL)
	q.Set("scope", strings.Join(a.Scopes, " "))
	q.Set("state", state)
	q.Set("code_challenge", pkce.Challenge(verifier))
	q.Set("code_challenge_method", "S256")
	u.RawQuery = q.Encode()

	return &platform.AuthRequest{URL: u.String(), State: state, CodeVerifier: verifier}, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	Error        string `json:"error,omitempty"`
	ErrorDesc    string `json:"error_description,omitempty"`
}

func (a *Adapter) ExchangeCode(ctx context.Context, code, codeVerifier string) (*platform.Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", a.RedirectURL)
	form.Set("code_verifier", codeVerifier)
	form.Set("client_id", a.ClientID)

	tr, err := a.postToken(ctx, form)
	if err != nil {
		return nil, err
	}
	return a.normalizeTokens(tr), nil
}

func (a *Adapter) RefreshTokens(ctx context.Context, refreshToken string) (*platform.Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", a.ClientID)

	tr, err := a.postToken(ctx, form)
	if err != nil {
		// invalid_grant means the refresh token itself was revoked or
		// rotated away; that is terminal, not retryable.
		if strings.Contains(err.Error(), "invalid_grant") || strings.Contains(err.Error(), "invalid_request") {
			return nil, fmt.Errorf("%w: %v", platform.ErrRefreshRejected, err)
		}
		return nil, err
	}
	return a.normalizeTokens(tr), nil
}

func (a *Adapter) postToken(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", a.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// Twitter confidential clients authenticate the token endpoint with
	// basic auth on top of PKCE.
	if a.ClientSecret != "" {
		basic := base64.StdEncoding.EncodeToString([]byte(a.ClientID + ":" + a.ClientSecret))
		req.Header.Set("Authorization", "Basic "+basic)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: twitter token endpoint status %d", platform.ErrUnavailable, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("twitter: decode token response: %w", err)
	}
	if tr.Error != "" {
		return nil, fmt.Errorf("twitter oauth error: %s - %s", tr.Error, tr.ErrorDesc)
	}
	if tr.AccessToken == "" {
		return nil, errors.New("twitter: no access_token in response")
	}
	return &tr, nil
}

func (a *Adapter) normalizeTokens(tr *tokenResponse) *platform.Tokens {
	t := &platform.Tokens{
		AccessToken: tr.AccessToken,
		ExpiresAt:   time.Now().UTC().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}
	if tr.RefreshToken != "" {
		rt := tr.RefreshToken
		t.RefreshToken = &rt
	}
	if tr.Scope != "" {
		t.Scopes = strings.Split(tr.Scope, " ")
	}
	return t
}

type meResponse struct {
	Data struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Username        string `json:"username"`
		ProfileImageURL string `json:"profile_image_url"`
		PublicMetrics   struct {
			FollowersCount int64 `json:"followers_count"`
			FollowingCount int64 `json:"following_count"`
			TweetCount     int64 `json:"tweet_count"`
			ListedCount    int64 `json:"listed_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

func (a *Adapter) FetchMetrics(ctx context.Context, tokens platform.Tokens) (*platform.Metrics, error) {
	u := a.meEndpoint + "?user.fields=public_metrics,profile_image_url,username,name"
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: twitter users/me status %d", platform.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("twitter api error: status %d", resp.StatusCode)
	}

	var me meResponse
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, fmt.Errorf("twitter: decode users/me: %w", err)
	}

	pm := me.Data.PublicMetrics
	return &platform.Metrics{
		Followers:       pm.FollowersCount,
		Following:       pm.FollowingCount,
		DisplayName:     me.Data.Name,
		ProfileImageURL: me.Data.ProfileImageURL,
		Username:        me.Data.Username,
		Posts:           pm.TweetCount,
		Raw: map[string]any{
			"id":              me.Data.ID,
			"username":        me.Data.Username,
			"followers_count": pm.FollowersCount,
			"following_count": pm.FollowingCount,
			"tweet_count":     pm.TweetCount,
			"listed_count":    pm.ListedCount,
		},
	}, nil
}

// classifyTransport maps client.Do failures (timeouts, refused connections,
// DNS) onto ErrUnavailable so callers can treat them as retryable.
func classifyTransport(err error) error {
	return fmt.Errorf("%w: %v", platform.ErrUnavailable, err)
}
