// Package memory implements core.Repository on an in-process map.
// Used by unit tests; production runs the pg backend.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/store/core"
)

type Store struct {
	mu        sync.RWMutex
	accounts  map[string]*core.LinkedAccount     // userID|platform
	snapshots map[uuid.UUID]*core.MetricsSnapshot // accountID
}

func New() *Store {
	return &Store{
		accounts:  make(map[string]*core.LinkedAccount),
		snapshots: make(map[uuid.UUID]*core.MetricsSnapshot),
	}
}

func key(userID, platform string) string {
	return userID + "|" + platform
}

func (s *Store) UpsertAccount(ctx context.Context, acc *core.LinkedAccount) (*core.LinkedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := *acc
	if prev, ok := s.accounts[key(acc.UserID, acc.Platform)]; ok {
		stored.ID = prev.ID
		stored.CreatedAt = prev.CreatedAt
	} else {
		stored.ID = uuid.New()
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	s.accounts[key(acc.UserID, acc.Platform)] = &stored
	out := stored
	return &out, nil
}

func (s *Store) GetAccount(ctx context.Context, userID, platform string) (*core.LinkedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[key(userID, platform)]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := *acc
	return &out, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]*core.LinkedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.LinkedAccount, 0, len(s.accounts))
	for _, acc := range s.accounts {
		cp := *acc
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) UpdateAccountTokens(ctx context.Context, accountID uuid.UUID, accessToken string, refreshToken *string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.ID == accountID {
			acc.AccessToken = accessToken
			if refreshToken != nil {
				acc.RefreshToken = refreshToken
			}
			acc.ExpiresAt = expiresAt
			acc.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) UpdateAccountMetadata(ctx context.Context, accountID uuid.UUID, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if acc.ID == accountID {
			acc.Metadata = metadata
			acc.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) GetSnapshot(ctx context.Context, accountID uuid.UUID) (*core.MetricsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[accountID]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := *snap
	return &out, nil
}

func (s *Store) UpsertSnapshot(ctx context.Context, snap *core.MetricsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *snap
	s.snapshots[snap.AccountID] = &cp
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() {}
