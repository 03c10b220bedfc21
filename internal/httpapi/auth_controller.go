package httpapi

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/auth"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/httpx"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/httpx/errors"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/oauth/session"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/observability/logger"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/observability/metrics"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/platform"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/store/core"
)

// authController owns the OAuth linking flow: login initiation and the
// provider callback.
type authController struct {
	platforms *platform.Registry
	sessions  *session.Resolver
	repo      core.Repository
}

// Login starts the authorization flow for a platform. It prepares fresh PKCE
// artifacts, persists the in-flight session on both channels and redirects
// the browser to the provider.
func (c *authController) Login(w http.ResponseWriter, r *http.Request) {
	httpx.NoStore(w)
	ctx := r.Context()
	name := chi.URLParam(r, "platform")

	adapter, ok := c.platforms.Get(name)
	if !ok {
		errors.WriteError(w, errors.ErrUnknownPlatform)
		return
	}

	uid, ok := auth.UserIDFrom(ctx)
	if !ok {
		errors.WriteError(w, errors.ErrUnauthenticated)
		return
	}

	req, err := adapter.PrepareAuthRequest()
	if err != nil {
		logger.From(ctx).Error("auth request preparation failed",
			logger.Platform(name), logger.Err(err))
		errors.WriteError(w, errors.ErrInternal.WithCause(err))
		return
	}

	sess := session.Session{
		State:        req.State,
		CodeVerifier: req.CodeVerifier,
		IsReconnect:  r.URL.Query().Get("reconnect") == "1",
		CreatedAt:    time.Now(),
	}
	// Cookies are the primary channel; a fallback-store failure is not fatal.
	if err := c.sessions.Begin(ctx, w, name, sess); err != nil {
		logger.From(ctx).Warn("fallback session save failed",
			logger.Platform(name), logger.Err(err))
	}

	metrics.LoginsStarted.WithLabelValues(name).Inc()
	logger.From(ctx).Info("login initiated",
		logger.UserID(uid), logger.Platform(name))

	http.Redirect(w, r, req.URL, http.StatusFound)
}

// Callback finishes the authorization flow. Checks run in a fixed order and
// every terminal outcome, success or rejection, consumes the session so it
// can never be replayed.
func (c *authController) Callback(w http.ResponseWriter, r *http.Request) {
	httpx.NoStore(w)
	ctx := r.Context()
	name := chi.URLParam(r, "platform")

	adapter, ok := c.platforms.Get(name)
	if !ok {
		errors.WriteError(w, errors.ErrUnknownPlatform)
		return
	}

	q := r.URL.Query()
	code, state := q.Get("code"), q.Get("state")

	if denied := q.Get("error"); denied != "" {
		c.reject(ctx, w, name, state, "provider_denied",
			errors.ErrInvalidRequest.WithDetail("provider returned error: "+denied))
		return
	}
	if code == "" || state == "" {
		c.reject(ctx, w, name, state, "missing_params",
			errors.ErrInvalidRequest.WithDetail("code and state are required"))
		return
	}

	sess, ok := c.sessions.Resolve(ctx, r, name, state)
	if !ok {
		c.reject(ctx, w, name, state, "state_mismatch",
			errors.ErrStateMismatch.WithDetail("no stored session for state"))
		return
	}
	if sess.State != state {
		c.reject(ctx, w, name, state, "state_mismatch", errors.ErrStateMismatch)
		return
	}
	if sess.CodeVerifier == "" {
		c.reject(ctx, w, name, state, "missing_verifier",
			errors.ErrInvalidRequest.WithDetail("session carries no code verifier"))
		return
	}

	uid, ok := auth.UserIDFrom(ctx)
	if !ok {
		c.reject(ctx, w, name, state, "unauthenticated", errors.ErrUnauthenticated)
		return
	}

	tok, err := adapter.ExchangeCode(ctx, code, sess.CodeVerifier)
	if err != nil {
		appErr := errors.ErrExchangeFailed.WithCause(err)
		if stderrors.Is(err, platform.ErrUnavailable) {
			appErr = errors.ErrProviderUnavailable.WithCause(err)
		}
		c.reject(ctx, w, name, state, "exchange_failed", appErr)
		return
	}

	if _, err := c.repo.UpsertAccount(ctx, &core.LinkedAccount{
		UserID:       uid,
		Platform:     name,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt,
		Scopes:       tok.Scopes,
		Metadata:     map[string]any{},
	}); err != nil {
		c.reject(ctx, w, name, state, "storage_failed",
			errors.ErrStorageFailed.WithCause(err))
		return
	}

	c.sessions.Consume(ctx, w, name, state)
	metrics.CallbackOutcomes.WithLabelValues(name, "success").Inc()
	logger.From(ctx).Info("account linked",
		logger.UserID(uid), logger.Platform(name))

	dest := "/accounts?linked=" + name
	if sess.IsReconnect {
		dest = "/accounts?relinked=" + name
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

// reject handles a terminal callback failure: the session is consumed, the
// outcome counted and the error serialized.
func (c *authController) reject(ctx context.Context, w http.ResponseWriter, name, state, outcome string, appErr *errors.AppError) {
	c.sessions.Consume(ctx, w, name, state)
	metrics.CallbackOutcomes.WithLabelValues(name, outcome).Inc()
	logger.From(ctx).Warn("oauth callback rejected",
		logger.Platform(name),
		logger.String("outcome", outcome),
		logger.Err(appErr))
	errors.WriteError(w, appErr)
}
