package session

import (
	"context"
	"net/http"
	"time"

	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/httpx"
)

// VerifierCookieName returns the per-platform cookie carrying the PKCE code
// verifier.
func VerifierCookieName(platform string) string {
	return platform + "_code_verifier"
}

// StateCookieName returns the per-platform cookie carrying the anti-CSRF
// state token.
func StateCookieName(platform string) string {
	return platform + "_oauth_state"
}

// Resolver is the best-effort replicated correlation store: it writes
// sessions to both channels at login initiation and resolves them back in a
// fixed priority order at the callback (cookies first, then the server-side
// store).
type Resolver struct {
	store  Store
	secure bool
}

func NewResolver(store Store, secure bool) *Resolver {
	return &Resolver{store: store, secure: secure}
}

// Begin persists a new session on both channels and writes the cookie pair
// onto the initiating response.
func (r *Resolver) Begin(ctx context.Context, w http.ResponseWriter, platform string, s Session) error {
	http.SetCookie(w, httpx.BuildFlowCookie(VerifierCookieName(platform), s.CodeVerifier, r.secure, TTL))
	http.SetCookie(w, httpx.BuildFlowCookie(StateCookieName(platform), s.State, r.secure, TTL))
	return r.store.Save(ctx, s.State, s)
}

// Resolve returns the session for an incoming callback, or false when neither
// channel yields one — in which case the callback must fail closed.
//
// The cookie pair carries no reconnect flag, so when the cookie channel wins
// the flag is merged in from the server-side entry if one exists.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request, platform, state string) (*Session, bool) {
	if sc, err := req.Cookie(StateCookieName(platform)); err == nil && sc.Value != "" {
		if vc, err := req.Cookie(VerifierCookieName(platform)); err == nil && vc.Value != "" {
			s := Session{State: sc.Value, CodeVerifier: vc.Value, CreatedAt: time.Now()}
			if fb, ok := r.store.Get(ctx, state); ok {
				s.IsReconnect = fb.IsReconnect
				s.CreatedAt = fb.CreatedAt
			}
			if s.Expired(time.Now()) {
				return nil, false
			}
			return &s, true
		}
	}
	return r.store.Get(ctx, state)
}

// Consume deletes the session from both channels. Called after the callback
// reaches a terminal outcome, success or rejection, so no session outlives
// its one use.
func (r *Resolver) Consume(ctx context.Context, w http.ResponseWriter, platform, state string) {
	http.SetCookie(w, httpx.BuildDeletionCookie(VerifierCookieName(platform), r.secure))
	http.SetCookie(w, httpx.BuildDeletionCookie(StateCookieName(platform), r.secure))
	_ = r.store.Delete(ctx, state)
}
