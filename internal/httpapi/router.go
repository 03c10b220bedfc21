package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/auth"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/config"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/httpx/errors"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/oauth/session"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/platform"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/reconcile"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/scheduler"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/store/core"
)

// Deps carries everything the handlers need. Wired once in cmd/tracker.
type Deps struct {
	Cfg       *config.Config
	Verifier  *auth.Verifier
	Repo      core.Repository
	Platforms *platform.Registry
	Sessions  *session.Resolver
	Engine    *reconcile.Engine
	Runner    *scheduler.Runner
}

// NewRouter builds the full route tree.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(withRequestID)
	r.Use(withLogging)
	r.Use(withRecover)
	r.Use(d.Verifier.Middleware)

	authCtl := &authController{
		platforms: d.Platforms,
		sessions:  d.Sessions,
		repo:      d.Repo,
	}
	metricsCtl := &metricsController{
		platforms: d.Platforms,
		engine:    d.Engine,
	}
	refreshCtl := &refreshController{
		secret: d.Cfg.RefreshJob.Secret,
		runner: d.Runner,
	}

	r.Get("/auth/{platform}/login", authCtl.Login)
	r.Get("/auth/{platform}/callback", authCtl.Callback)
	r.Get("/metrics/{platform}", metricsCtl.Get)
	r.Post("/internal/refresh", refreshCtl.Run)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := d.Repo.Ping(req.Context()); err != nil {
			errors.WriteError(w, errors.ErrInternal.WithDetail("storage unreachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metricsz", promhttp.Handler())

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteError(w, errors.ErrMethodNotAllowed)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteError(w, errors.ErrNotFound)
	})

	return r
}
