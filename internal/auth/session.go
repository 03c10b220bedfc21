// Package auth identifies the current user of a request.
//
// Page-level session management lives outside this service; what arrives here
// is a signed HS256 session token, either in the app session cookie or as a
// bearer header. The core only needs the authenticated user id.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var ErrNoUser = errors.New("auth: no authenticated user")

// Verifier parses and validates session tokens.
type Verifier struct {
	secret     []byte
	cookieName string
}

func NewVerifier(secret, cookieName string) *Verifier {
	return &Verifier{secret: []byte(secret), cookieName: cookieName}
}

// UserID extracts and validates the session token from the request, returning
// the user id from the subject claim. Returns ErrNoUser when no valid token
// is present.
func (v *Verifier) UserID(r *http.Request) (string, error) {
	raw := v.rawToken(r)
	if raw == "" {
		return "", ErrNoUser
	}

	token, err := jwtv5.Parse(raw, func(t *jwtv5.Token) (any, error) {
		if _, ok := t.Method.(*jwtv5.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwtv5.WithValidMethods([]string{"HS256"}), jwtv5.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", ErrNoUser
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrNoUser
	}
	return sub, nil
}

func (v *Verifier) rawToken(r *http.Request) string {
	if c, err := r.Cookie(v.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// Issue signs a session token for a user. The HTTP surface never calls this;
// it exists for the session issuer that fronts this service and for tests.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtv5.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwtv5.NewNumericDate(now),
		ExpiresAt: jwtv5.NewNumericDate(now.Add(ttl)),
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(v.secret)
}

type ctxKey struct{}

// Middleware resolves the current user, if any, into the request context.
// It never rejects: endpoints that require a user check UserIDFrom and answer
// 401 themselves.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, err := v.UserID(r); err == nil {
			r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, uid))
		}
		next.ServeHTTP(w, r)
	})
}

// UserIDFrom returns the authenticated user id injected by Middleware.
func UserIDFrom(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(ctxKey{}).(string)
	return uid, ok && uid != ""
}
