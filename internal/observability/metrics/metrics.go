// Package metrics exposes the service's operational prometheus counters.
// (Domain "metrics" — follower counts — live in the reconcile package; these
// are about the service itself.)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginsStarted counts login initiations per platform.
	LoginsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "oauth",
		Name:      "logins_started_total",
		Help:      "OAuth login initiations.",
	}, []string{"platform"})

	// CallbackOutcomes counts callback terminal states per platform.
	CallbackOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "oauth",
		Name:      "callbacks_total",
		Help:      "OAuth callbacks by terminal outcome.",
	}, []string{"platform", "outcome"})

	// TokenRefreshes counts credential rotations per platform and outcome.
	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "tokens",
		Name:      "refreshes_total",
		Help:      "Token refresh attempts by outcome.",
	}, []string{"platform", "outcome"})

	// MetricsServed counts answered metrics requests by true origin.
	MetricsServed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "reconcile",
		Name:      "metrics_served_total",
		Help:      "Metrics responses by data origin (database/api).",
	}, []string{"platform", "origin"})
)
