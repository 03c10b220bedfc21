// Package pg implements core.Repository on PostgreSQL via pgxpool.
//
// Expected schema (see migrations/postgres, applied by the migrate command):
//
//	linked_accounts(id uuid pk, user_id text, platform text,
//	    access_token text, refresh_token text, expires_at timestamptz,
//	    scopes text[], metadata jsonb, created_at timestamptz,
//	    updated_at timestamptz, unique(user_id, platform))
//	account_metrics(account_id uuid pk references linked_accounts(id),
//	    followers bigint, following bigint, display_name text,
//	    profile_image_url text, raw jsonb, captured_at timestamptz)
package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/store/core"
)

type Store struct{ pool *pgxpool.Pool }

// Tuning mirrors the storage.postgres config block.
type Tuning struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

func New(ctx context.Context, dsn string, tuning Tuning) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	if tuning.MaxOpenConns > 0 {
		pcfg.MaxConns = int32(tuning.MaxOpenConns)
	}
	// pgxpool has no idle count; map it onto MinConns.
	if tuning.MaxIdleConns > 0 {
		pcfg.MinConns = int32(tuning.MaxIdleConns)
	}
	if tuning.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(tuning.ConnMaxLifetime); err == nil {
			pcfg.MaxConnLifetime = d
			pcfg.MaxConnIdleTime = d
		}
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 8
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the underlying pool for advanced uses.
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const accountColumns = `id, user_id, platform, access_token, refresh_token,
	expires_at, scopes, metadata, created_at, updated_at`

func scanAccount(row pgx.Row) (*core.LinkedAccount, error) {
	var acc core.LinkedAccount
	err := row.Scan(
		&acc.ID, &acc.UserID, &acc.Platform, &acc.AccessToken, &acc.RefreshToken,
		&acc.ExpiresAt, &acc.Scopes, &acc.Metadata, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *Store) UpsertAccount(ctx context.Context, acc *core.LinkedAccount) (*core.LinkedAccount, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO linked_accounts
			(id, user_id, platform, access_token, refresh_token, expires_at, scopes, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token  = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at    = EXCLUDED.expires_at,
			scopes        = EXCLUDED.scopes,
			metadata      = EXCLUDED.metadata,
			updated_at    = now()
		RETURNING `+accountColumns,
		uuid.New(), acc.UserID, acc.Platform, acc.AccessToken, acc.RefreshToken,
		acc.ExpiresAt, acc.Scopes, acc.Metadata,
	)
	return scanAccount(row)
}

func (s *Store) GetAccount(ctx context.Context, userID, platform string) (*core.LinkedAccount, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM linked_accounts
		WHERE user_id = $1 AND platform = $2`,
		userID, platform,
	)
	return scanAccount(row)
}

func (s *Store) ListAccounts(ctx context.Context) ([]*core.LinkedAccount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM linked_accounts
		ORDER BY user_id, platform`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*core.LinkedAccount
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

// UpdateAccountTokens replaces the credential triple in a single statement so
// access_token and expires_at can never diverge. A nil refreshToken keeps the
// stored value (the provider rotated nothing).
func (s *Store) UpdateAccountTokens(ctx context.Context, accountID uuid.UUID, accessToken string, refreshToken *string, expiresAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE linked_accounts SET
			access_token  = $2,
			refresh_token = COALESCE($3, refresh_token),
			expires_at    = $4,
			updated_at    = now()
		WHERE id = $1`,
		accountID, accessToken, refreshToken, expiresAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateAccountMetadata(ctx context.Context, accountID uuid.UUID, metadata map[string]any) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE linked_accounts SET metadata = $2, updated_at = now()
		WHERE id = $1`,
		accountID, metadata,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) GetSnapshot(ctx context.Context, accountID uuid.UUID) (*core.MetricsSnapshot, error) {
	var snap core.MetricsSnapshot
	err := s.pool.QueryRow(ctx, `
		SELECT account_id, followers, following, display_name, profile_image_url, raw, captured_at
		FROM account_metrics
		WHERE account_id = $1`,
		accountID,
	).Scan(
		&snap.AccountID, &snap.Followers, &snap.Following,
		&snap.DisplayName, &snap.ProfileImageURL, &snap.Raw, &snap.CapturedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) UpsertSnapshot(ctx context.Context, snap *core.MetricsSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_metrics
			(account_id, followers, following, display_name, profile_image_url, raw, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id) DO UPDATE SET
			followers         = EXCLUDED.followers,
			following         = EXCLUDED.following,
			display_name      = EXCLUDED.display_name,
			profile_image_url = EXCLUDED.profile_image_url,
			raw               = EXCLUDED.raw,
			captured_at       = EXCLUDED.captured_at`,
		snap.AccountID, snap.Followers, snap.Following,
		snap.DisplayName, snap.ProfileImageURL, snap.Raw, snap.CapturedAt,
	)
	return err
}
