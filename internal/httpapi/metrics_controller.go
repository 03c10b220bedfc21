package httpapi

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/auth"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/httpx"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/httpx/errors"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/observability/metrics"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/platform"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/reconcile"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/tokens"
)

type metricsController struct {
	platforms *platform.Registry
	engine    *reconcile.Engine
}

// metricsResponse is the wire shape of a reconciled answer. Source always
// names where the data really came from.
type metricsResponse struct {
	Platform string `json:"platform"`
	platform.Metrics
	CapturedAt time.Time      `json:"capturedAt"`
	Source     string         `json:"_source"`
	Raw        map[string]any `json:"raw,omitempty"`
}

// Get serves the latest metrics for the caller's linked account, honoring the
// source directive (db, api, or the default auto).
func (c *metricsController) Get(w http.ResponseWriter, r *http.Request) {
	httpx.NoStore(w)
	ctx := r.Context()
	name := chi.URLParam(r, "platform")

	if _, ok := c.platforms.Get(name); !ok {
		errors.WriteError(w, errors.ErrUnknownPlatform)
		return
	}

	uid, ok := auth.UserIDFrom(ctx)
	if !ok {
		errors.WriteError(w, errors.ErrUnauthenticated)
		return
	}

	source, err := reconcile.ParseSource(r.URL.Query().Get("source"))
	if err != nil {
		errors.WriteError(w, errors.ErrInvalidRequest.WithDetail("source must be db, api or auto"))
		return
	}

	res, err := c.engine.Fetch(ctx, uid, name, source)
	if err != nil {
		errors.WriteError(w, mapFetchErr(err))
		return
	}

	metrics.MetricsServed.WithLabelValues(name, res.Origin).Inc()

	resp := metricsResponse{
		Platform:   name,
		Metrics:    res.Metrics,
		CapturedAt: res.CapturedAt,
		Source:     res.Origin,
	}
	if r.URL.Query().Get("raw") == "true" {
		resp.Raw = res.Metrics.Raw
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// mapFetchErr translates engine sentinels into the HTTP error taxonomy.
func mapFetchErr(err error) *errors.AppError {
	switch {
	case stderrors.Is(err, tokens.ErrNoLinkedAccount):
		return errors.ErrNoLinkedAccount
	case stderrors.Is(err, reconcile.ErrNoCachedMetrics):
		return errors.ErrNoCachedMetrics
	case stderrors.Is(err, tokens.ErrRefreshFailed):
		return errors.ErrReauthRequired
	case stderrors.Is(err, platform.ErrUnavailable):
		return errors.ErrProviderUnavailable
	default:
		return errors.ErrInternal.WithCause(err)
	}
}
