// Package instagram implements the platform adapter for the Instagram API
// with Instagram Login.
//
// Instagram's token lifecycle differs from the standard refresh-token model:
// the short-lived token from code exchange is immediately traded for a
// long-lived token (~60 days), and "refreshing" means extending that
// long-lived token via refresh_access_token using the token itself. The
// adapter hides this by storing the long-lived token as the refresh token.
package instagram

import (
	"context"
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
	defaultAuthEndpoint    = "https://www.instagram.com/oauth/authorize"
	defaultTokenEndpoint   = "https://api.instagram.com/oauth/access_token"
	defaultGraphEndpoint   = "https://graph.instagram.com"
	longLivedTokenLifetime = 60 * 24 * time.Hour
)

// Adapter is the Instagram OAuth client.
type Adapter struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	authEndpoint  string
	tokenEndpoint string
	graphEndpoint string

	http *http.Client
}

func New(clientID, clientSecret, redirectURL string, scopes []string) *Adapter {
	if len(scopes) == 0 {
		scopes = []string{"instagram_business_basic"}
	}
	return &Adapter{
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		RedirectURL:   redirectURL,
		Scopes:        scopes,
		authEndpoint:  defaultAuthEndpoint,
		tokenEndpoint: defaultTokenEndpoint,
		graphEndpoint: defaultGraphEndpoint,
		http:          &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *Adapter) Name() string { return "instagram" }

// PrepareAuthRequest builds the authorization URL. Instagram ignores PKCE
// parameters; the verifier and state are still generated so the flow keeps
// its uniform shape through the session store.
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
	q.Set("scope", strings.Join(a.Scopes, ","))
	q.Set("state", state)
	u.RawQuery = q.Encode()

	return &platform.AuthRequest{URL: u.String(), State: state, CodeVerifier: verifier}, nil
}

func (a *Adapter) ExchangeCode(ctx context.Context, code, codeVerifier string) (*platform.Tokens, error) {
	form := url.Values{}
	form.Set("client_id", a.ClientID)
	form.Set("client_secret", a.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", a.RedirectURL)
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, "POST", a.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: instagram token endpoint status %d", platform.ErrUnavailable, resp.StatusCode)
	}

	var short struct {
		AccessToken string `json:"access_token"`
		UserID      any    `json:"user_id"`
		ErrorMsg    string `json:"error_message,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&short); err != nil {
		return nil, fmt.Errorf("instagram: decode token response: %w", err)
	}
	if short.ErrorMsg != "" {
		return nil, fmt.Errorf("instagram oauth error: %s", short.ErrorMsg)
	}
	if short.AccessToken == "" {
		return nil, errors.New("instagram: no access_token in response")
	}

	// Trade the short-lived token for a long-lived one right away; the
	// short-lived token only lives an hour.
	return a.exchangeLongLived(ctx, short.AccessToken)
}

func (a *Adapter) exchangeLongLived(ctx context.Context, shortToken string) (*platform.Tokens, error) {
	u := fmt.Sprintf("%s/access_token?grant_type=ig_exchange_token&client_secret=%s&access_token=%s",
		a.graphEndpoint, url.QueryEscape(a.ClientSecret), url.QueryEscape(shortToken))

	tr, err := a.getToken(ctx, u)
	if err != nil {
		return nil, err
	}
	return a.normalizeTokens(tr), nil
}

// RefreshTokens extends a long-lived token. The "refresh token" stored for
// Instagram accounts is the long-lived access token itself.
func (a *Adapter) RefreshTokens(ctx context.Context, refreshToken string) (*platform.Tokens, error) {
	u := fmt.Sprintf("%s/refresh_access_token?grant_type=ig_refresh_token&access_token=%s",
		a.graphEndpoint, url.QueryEscape(refreshToken))

	tr, err := a.getToken(ctx, u)
	if err != nil {
		if strings.Contains(err.Error(), "status 400") || strings.Contains(err.Error(), "status 401") {
			return nil, fmt.Errorf("%w: %v", platform.ErrRefreshRejected, err)
		}
		return nil, err
	}
	return a.normalizeTokens(tr), nil
}

type igTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *Adapter) getToken(ctx context.Context, u string) (*igTokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: instagram graph status %d", platform.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("instagram graph error: status %d", resp.StatusCode)
	}

	var tr igTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("instagram: decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, errors.New("instagram: no access_token in response")
	}
	return &tr, nil
}

func (a *Adapter) normalizeTokens(tr *igTokenResponse) *platform.Tokens {
	expiresIn := time.Duration(tr.ExpiresIn) * time.Second
	if tr.ExpiresIn == 0 {
		expiresIn = longLivedTokenLifetime
	}
	// The long-lived token doubles as the refresh credential.
	rt := tr.AccessToken
	return &platform.Tokens{
		AccessToken:  tr.AccessToken,
		RefreshToken: &rt,
		ExpiresAt:    time.Now().UTC().Add(expiresIn),
		Scopes:       nil,
	}
}

type igProfile struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profile_picture_url"`
	FollowersCount    int64  `json:"followers_count"`
	FollowsCount      int64  `json:"follows_count"`
	MediaCount        int64  `json:"media_count"`
}

func (a *Adapter) FetchMetrics(ctx context.Context, tokens platform.Tokens) (*platform.Metrics, error) {
	u := fmt.Sprintf("%s/me?fields=id,username,name,profile_picture_url,followers_count,follows_count,media_count&access_token=%s",
		a.graphEndpoint, url.QueryEscape(tokens.AccessToken))

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", platform.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: instagram graph status %d", platform.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("instagram api error: status %d", resp.StatusCode)
	}

	var p igProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("instagram: decode profile: %w", err)
	}

	displayName := p.Name
	if displayName == "" {
		displayName = p.Username
	}
	return &platform.Metrics{
		Followers:       p.FollowersCount,
		Following:       p.FollowsCount,
		DisplayName:     displayName,
		ProfileImageURL: p.ProfilePictureURL,
		Username:        p.Username,
		Posts:           p.MediaCount,
		Raw: map[string]any{
			"id":              p.ID,
			"username":        p.Username,
			"followers_count": p.FollowersCount,
			"follows_count":   p.FollowsCount,
			"media_count":     p.MediaCount,
		},
	}, nil
}
