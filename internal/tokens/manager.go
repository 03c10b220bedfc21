// Package tokens decides when a stored credential is usable and rotates it
// when it is not.
//
// Per account the credential moves between three states: Valid (now before
// expires_at), Expired (checked lazily at use time, no background timer) and
// RefreshFailed (no refresh token stored, or the provider rejected the
// refresh — terminal for the current request, the caller surfaces a
// re-authentication requirement).
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/observability/logger"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/observability/metrics"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/platform"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/store/core"
)

var (
	// ErrNoLinkedAccount means the user never linked this platform.
	ErrNoLinkedAccount = errors.New("tokens: no linked account")

	// ErrRefreshFailed means the credential is expired and could not be
	// rotated. The UI should prompt a reconnect, not retry.
	ErrRefreshFailed = errors.New("tokens: refresh failed")
)

// Manager is the token lifecycle manager. Safe for concurrent use; refreshes
// are deduplicated per (userID, platform) so two racing requests can never
// rotate the same refresh token twice.
type Manager struct {
	repo      core.Repository
	platforms *platform.Registry
	sf        singleflight.Group

	// now is replaceable in tests.
	now func() time.Time
}

func NewManager(repo core.Repository, platforms *platform.Registry) *Manager {
	return &Manager{
		repo:      repo,
		platforms: platforms,
		now:       time.Now,
	}
}

// EnsureValidTokens is the single entry point: it returns the linked account
// with usable credentials, refreshing and persisting them first if they
// expired. Errors are ErrNoLinkedAccount, ErrRefreshFailed (both matchable
// with errors.Is) or a storage error.
func (m *Manager) EnsureValidTokens(ctx context.Context, userID, platformName string) (*core.LinkedAccount, error) {
	acc, err := m.repo.GetAccount(ctx, userID, platformName)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, ErrNoLinkedAccount
		}
		return nil, err
	}

	if m.now().Before(acc.ExpiresAt) {
		return acc, nil
	}

	v, err, _ := m.sf.Do(userID+"|"+platformName, func() (any, error) {
		// Re-read inside the flight: a refresh that completed between our
		// expiry check and here already rotated the stored refresh token,
		// and replaying the old one would invalidate it.
		cur, err := m.repo.GetAccount(ctx, userID, platformName)
		if err != nil {
			return nil, err
		}
		if m.now().Before(cur.ExpiresAt) {
			return cur, nil
		}
		return m.refresh(ctx, cur)
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.LinkedAccount), nil
}

// refresh rotates the credential and persists the result atomically. If the
// provider omitted a new refresh token the stored one is retained (the
// repository COALESCEs a nil refresh token).
func (m *Manager) refresh(ctx context.Context, acc *core.LinkedAccount) (*core.LinkedAccount, error) {
	log := logger.From(ctx).With(
		logger.Component("tokens"),
		logger.UserID(acc.UserID),
		logger.Platform(acc.Platform),
	)

	adapter, ok := m.platforms.Get(acc.Platform)
	if !ok {
		return nil, fmt.Errorf("%w: no adapter registered for %s", ErrRefreshFailed, acc.Platform)
	}
	if acc.RefreshToken == nil || *acc.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token stored", ErrRefreshFailed)
	}

	t, err := adapter.RefreshTokens(ctx, *acc.RefreshToken)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues(acc.Platform, "failed").Inc()
		log.Warn("token refresh rejected", logger.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	metrics.TokenRefreshes.WithLabelValues(acc.Platform, "ok").Inc()

	if err := m.repo.UpdateAccountTokens(ctx, acc.ID, t.AccessToken, t.RefreshToken, t.ExpiresAt); err != nil {
		// The provider already rotated; losing this write strands the old
		// refresh token, so it is fatal to the refresh.
		log.Error("persisting refreshed tokens failed", logger.Err(err))
		return nil, fmt.Errorf("tokens: persist refreshed credentials: %w", err)
	}

	refreshed := *acc
	refreshed.AccessToken = t.AccessToken
	if t.RefreshToken != nil {
		refreshed.RefreshToken = t.RefreshToken
	}
	refreshed.ExpiresAt = t.ExpiresAt

	log.Info("tokens refreshed", logger.AccountID(acc.ID.String()))
	return &refreshed, nil
}
