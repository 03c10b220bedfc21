// Package scheduler runs the periodic metrics refresh over every linked
// account. The trigger itself is external (cron, a platform scheduler); this
// is the entry point it invokes.
package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/observability/logger"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/reconcile"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/store/core"
)

// perAccountTimeout bounds one account's refresh+fetch+store cycle.
const perAccountTimeout = 30 * time.Second

// AccountResult is one account's outcome in a refresh run.
type AccountResult struct {
	UserID   string `json:"userId"`
	Platform string `json:"platform"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// Runner iterates all linked accounts with bounded parallelism. Accounts are
// independent: one failure never aborts the others.
type Runner struct {
	repo        core.Repository
	engine      *reconcile.Engine
	parallelism int
}

func NewRunner(repo core.Repository, engine *reconcile.Engine, parallelism int) *Runner {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Runner{repo: repo, engine: engine, parallelism: parallelism}
}

// RefreshAll performs ensure-tokens + live fetch + store for every linked
// account and returns the per-account result list. Only listing the accounts
// can fail the run as a whole.
func (r *Runner) RefreshAll(ctx context.Context) ([]AccountResult, error) {
	accounts, err := r.repo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.From(ctx).With(logger.Component("scheduler"))
	results := make([]AccountResult, len(accounts))

	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for i, acc := range accounts {
		i, acc := i, acc
		g.Go(func() error {
			actx, cancel := context.WithTimeout(ctx, perAccountTimeout)
			defer cancel()

			res := AccountResult{UserID: acc.UserID, Platform: acc.Platform}
			if _, err := r.engine.Fetch(actx, acc.UserID, acc.Platform, reconcile.SourceAPI); err != nil {
				res.Error = err.Error()
				log.Warn("scheduled refresh failed",
					logger.UserID(acc.UserID),
					logger.Platform(acc.Platform),
					logger.Err(err),
				)
			} else {
				res.OK = true
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	log.Info("scheduled refresh run finished",
		logger.Int("accounts", len(accounts)),
		logger.Int("failed", countFailed(results)),
	)
	return results, nil
}

func countFailed(results []AccountResult) int {
	n := 0
	for _, r := range results {
		if !r.OK {
			n++
		}
	}
	return n
}
