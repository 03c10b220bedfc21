package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for linked accounts and cached
// metrics snapshots.
type Repository interface {
	// UpsertAccount inserts or replaces the account for (UserID, Platform)
	// and returns the stored row with its id populated.
	UpsertAccount(ctx context.Context, acc *LinkedAccount) (*LinkedAccount, error)

	// GetAccount returns the account linked for (userID, platform).
	// Returns ErrNotFound when the user has not linked that platform.
	GetAccount(ctx context.Context, userID, platform string) (*LinkedAccount, error)

	// ListAccounts returns every linked account. Used by the scheduled
	// refresh job.
	ListAccounts(ctx context.Context) ([]*LinkedAccount, error)

	// UpdateAccountTokens replaces the credential triple in one write.
	// AccessToken and ExpiresAt always change together; refreshToken nil
	// means "keep the stored one".
	UpdateAccountTokens(ctx context.Context, accountID uuid.UUID, accessToken string, refreshToken *string, expiresAt time.Time) error

	// UpdateAccountMetadata replaces the denormalized profile metadata.
	UpdateAccountMetadata(ctx context.Context, accountID uuid.UUID, metadata map[string]any) error

	// GetSnapshot returns the cached metrics for an account.
	// Returns ErrNotFound when nothing has been cached yet.
	GetSnapshot(ctx context.Context, accountID uuid.UUID) (*MetricsSnapshot, error)

	// UpsertSnapshot stores the latest metrics for an account.
	UpsertSnapshot(ctx context.Context, snap *MetricsSnapshot) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend resources.
	Close()
}
