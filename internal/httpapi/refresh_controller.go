package httpapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/httpx"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/httpx/errors"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/observability/logger"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/scheduler"
)

// refreshController exposes the scheduled refresh trigger. External cron hits
// it with a shared secret; there is no user session on this path.
type refreshController struct {
	secret string
	runner *scheduler.Runner
}

type refreshResponse struct {
	Processed int                       `json:"processed"`
	Failed    int                       `json:"failed"`
	Results   []scheduler.AccountResult `json:"results"`
}

func (c *refreshController) Run(w http.ResponseWriter, r *http.Request) {
	// No secret configured means the endpoint does not exist.
	if c.secret == "" {
		errors.WriteError(w, errors.ErrNotFound)
		return
	}
	key := r.URL.Query().Get("key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(c.secret)) != 1 {
		errors.WriteError(w, errors.ErrUnauthenticated)
		return
	}

	results, err := c.runner.RefreshAll(r.Context())
	if err != nil {
		logger.From(r.Context()).Error("scheduled refresh aborted", logger.Err(err))
		errors.WriteError(w, errors.ErrStorageFailed.WithCause(err))
		return
	}

	failed := 0
	for _, res := range results {
		if !res.OK {
			failed++
		}
	}
	httpx.WriteJSON(w, http.StatusOK, refreshResponse{
		Processed: len(results),
		Failed:    failed,
		Results:   results,
	})
}
