package httpx

import (
	"net/http"
	"time"
)

// BuildFlowCookie builds a short-lived http-only cookie used to carry OAuth
// flow artifacts (state, code verifier) across the provider redirect.
// SameSite is Lax: the callback arrives as a top-level cross-site navigation,
// which Lax allows while still blocking cross-site subrequests.
func BuildFlowCookie(name, value string, secure bool, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().UTC().Add(ttl),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// BuildDeletionCookie returns a cookie that clears the named cookie in the
// browser. Same name/path so the user agent overwrites it.
func BuildDeletionCookie(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
