// Package session correlates an in-flight OAuth authorization request across
// the provider redirect round trip.
//
// Two channels carry the PKCE artifacts:
//
//   - a short-lived http-only cookie pair written on the initiating response
//     and read back on the callback request (survives server restarts, but
//     depends on the browser round-tripping cookies across the redirect);
//   - a server-side keyed store consulted as fallback when cookie delivery is
//     unreliable, e.g. a hostname mismatch between the initiating and the
//     callback request.
//
// The Resolver consults them in that fixed order. Sessions are single-use:
// the callback consumes (deletes) them on success and on terminal rejection.
package session

import (
	"context"
	"time"
)

// TTL is how long an in-flight authorization request stays valid.
const TTL = 10 * time.Minute

// Session is the state bound to one login initiation.
type Session struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier"`
	IsReconnect  bool      `json:"is_reconnect"`
	CreatedAt    time.Time `json:"created_at"`
}

// Expired reports whether the session is older than the TTL.
// Backends also expire entries themselves; this is the per-read check so an
// entry can never validate a callback past its lifetime regardless of when
// the backend sweep runs.
func (s Session) Expired(now time.Time) bool {
	return !s.CreatedAt.IsZero() && now.Sub(s.CreatedAt) > TTL
}

// Store is the server-side fallback channel. Keyed by the state token, the
// only correlation value that survives the round trip when cookies drop.
//
// A single-instance deployment uses the memory backend. It does not survive
// restarts or horizontal scaling; deployments with more than one instance
// must select the redis backend so every instance sees every session.
type Store interface {
	Save(ctx context.Context, state string, s Session) error
	Get(ctx context.Context, state string) (*Session, bool)
	Delete(ctx context.Context, state string) error
}
