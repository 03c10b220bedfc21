// Package reconcile decides whether a metrics request is answered from the
// cached snapshot or from a live provider call, and writes live results back
// to storage without letting the write block the response.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/observability/logger"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/platform"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/store/core"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/tokens"
)

// Source is the caller's directive for where metrics may come from.
type Source string

const (
	// SourceAuto answers from cache when possible, else goes live.
	SourceAuto Source = "auto"
	// SourceDB answers from cache only.
	SourceDB Source = "db"
	// SourceAPI forces a live fetch.
	SourceAPI Source = "api"
)

// ParseSource parses the query parameter form. Empty means auto.
func ParseSource(s string) (Source, error) {
	switch s {
	case "", "auto":
		return SourceAuto, nil
	case "db":
		return SourceDB, nil
	case "api":
		return SourceAPI, nil
	default:
		return "", fmt.Errorf("reconcile: unknown source %q", s)
	}
}

// Origins reported in the response. The tag always reflects where the
// returned data really came from.
const (
	OriginDatabase = "database"
	OriginAPI      = "api"
)

// ErrNoCachedMetrics is returned under SourceDB when no snapshot exists or
// the cache read failed: an explicit cache-only request is never silently
// substituted with a live call.
var ErrNoCachedMetrics = errors.New("reconcile: no cached metrics")

// Result is a reconciled metrics answer.
type Result struct {
	Metrics    platform.Metrics
	Origin     string
	CapturedAt time.Time
}

// Engine is the reconciliation engine.
type Engine struct {
	repo      core.Repository
	platforms *platform.Registry
	tokens    *tokens.Manager
}

func NewEngine(repo core.Repository, platforms *platform.Registry, tm *tokens.Manager) *Engine {
	return &Engine{repo: repo, platforms: platforms, tokens: tm}
}

// Fetch resolves metrics for (userID, platformName) under the source
// directive.
//
// SourceDB is read-only and side-effect-free. SourceAPI and an auto
// fallthrough may refresh tokens and overwrite the cache; both are safe to
// retry.
func (e *Engine) Fetch(ctx context.Context, userID, platformName string, source Source) (*Result, error) {
	log := logger.From(ctx).With(
		logger.Component("reconcile"),
		logger.UserID(userID),
		logger.Platform(platformName),
	)

	acc, err := e.repo.GetAccount(ctx, userID, platformName)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, tokens.ErrNoLinkedAccount
		}
		return nil, err
	}

	if source == SourceDB || source == SourceAuto {
		snap, err := e.repo.GetSnapshot(ctx, acc.ID)
		if err == nil {
			return fromSnapshot(snap), nil
		}
		if source == SourceDB {
			return nil, fmt.Errorf("%w: %v", ErrNoCachedMetrics, err)
		}
		// auto: swallow and go live.
		if !core.IsNotFound(err) {
			log.Warn("cache read failed, falling through to live fetch", logger.Err(err))
		}
	}

	// Live path. No metrics call without valid tokens.
	acc, err = e.tokens.EnsureValidTokens(ctx, userID, platformName)
	if err != nil {
		return nil, err
	}

	adapter, ok := e.platforms.Get(platformName)
	if !ok {
		return nil, fmt.Errorf("reconcile: no adapter registered for %s", platformName)
	}

	m, err := adapter.FetchMetrics(ctx, platform.Tokens{
		AccessToken:  acc.AccessToken,
		RefreshToken: acc.RefreshToken,
		ExpiresAt:    acc.ExpiresAt,
		Scopes:       acc.Scopes,
	})
	if err != nil {
		return nil, err
	}

	capturedAt := time.Now().UTC()
	e.storeBestEffort(ctx, log, acc, m, capturedAt)

	return &Result{Metrics: *m, Origin: OriginAPI, CapturedAt: capturedAt}, nil
}

func fromSnapshot(snap *core.MetricsSnapshot) *Result {
	return &Result{
		Metrics: platform.Metrics{
			Followers:       snap.Followers,
			Following:       snap.Following,
			DisplayName:     snap.DisplayName,
			ProfileImageURL: snap.ProfileImageURL,
			Raw:             snap.Raw,
		},
		Origin:     OriginDatabase,
		CapturedAt: snap.CapturedAt,
	}
}

// storeBestEffort caches the live result and refreshes the denormalized
// account metadata. Failures are logged and never propagated: the freshly
// fetched metrics are returned to the caller regardless.
func (e *Engine) storeBestEffort(ctx context.Context, log *zap.Logger, acc *core.LinkedAccount, m *platform.Metrics, capturedAt time.Time) {
	if err := e.repo.UpsertSnapshot(ctx, &core.MetricsSnapshot{
		AccountID:       acc.ID,
		Followers:       m.Followers,
		Following:       m.Following,
		DisplayName:     m.DisplayName,
		ProfileImageURL: m.ProfileImageURL,
		Raw:             m.Raw,
		CapturedAt:      capturedAt,
	}); err != nil {
		log.Warn("metrics write-back failed", logger.Err(err))
	}

	if err := e.repo.UpdateAccountMetadata(ctx, acc.ID, map[string]any{
		"display_name":      m.DisplayName,
		"username":          m.Username,
		"profile_image_url": m.ProfileImageURL,
	}); err != nil {
		log.Warn("account metadata update failed", logger.Err(err))
	}
}
