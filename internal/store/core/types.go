// Package core defines the persistence types and the Repository contract the
// rest of the service is written against. Backends live in sibling packages
// (pg for production, memory for tests).
package core

import (
	"time"

	"github.com/google/uuid"
)

// LinkedAccount is one linked social account, one row per (UserID, Platform).
// Reconnects upsert, never duplicate. Token fields are mutated only by the
// callback flow (initial creation) and the token lifecycle manager (refresh).
type LinkedAccount struct {
	ID           uuid.UUID
	UserID       string
	Platform     string
	AccessToken  string
	RefreshToken *string // nil when the provider issued none
	ExpiresAt    time.Time
	Scopes       []string
	Metadata     map[string]any
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MetricsSnapshot is the cached result of a live metrics fetch, keyed by
// account. Upsert-oriented: a fresh fetch overwrites the previous row.
type MetricsSnapshot struct {
	AccountID       uuid.UUID
	Followers       int64
	Following       int64
	DisplayName     string
	ProfileImageURL string
	Raw             map[string]any
	CapturedAt      time.Time
}
