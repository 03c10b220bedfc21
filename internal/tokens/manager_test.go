package tokens

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/platform"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/store/core"
	"github.com/MichaelSuarez21/social-media-tracker-sub001/internal/store/memory"
)

type fakeAdapter struct {
	name         string
	refreshCalls int32
	refreshDelay time.Duration
	refreshFn    func(refreshToken string) (*platform.Tokens, error)
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) PrepareAuthRequest() (*platform.AuthRequest, error) {
	return &platform.AuthRequest{URL: "https://example.test/auth", State: "s", CodeVerifier: "v"}, nil
}

func (f *fakeAdapter) ExchangeCode(ctx context.Context, code, codeVerifier string) (*platform.Tokens, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAdapter) RefreshTokens(ctx context.Context, refreshToken string) (*platform.Tokens, error) {
	atomic.AddInt32(&f.refreshCalls, 1)
	if f.refreshDelay > 0 {
		time.Sleep(f.refreshDelay)
	}
	return f.refreshFn(refreshToken)
}

func (f *fakeAdapter) FetchMetrics(ctx context.Context, tokens platform.Tokens) (*platform.Metrics, error) {
	return nil, errors.New("not implemented")
}

func strptr(s string) *string { return &s }

func seedAccount(t *testing.T, repo core.Repository, expiresAt time.Time, refreshToken *string) *core.LinkedAccount {
	t.Helper()
	acc, err := repo.UpsertAccount(context.Background(), &core.LinkedAccount{
		UserID:       "user42",
		Platform:     "twitter",
		AccessToken:  "access-old",
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return acc
}

func TestEnsureValidTokens_NoAccount(t *testing.T) {
	m := NewManager(memory.New(), platform.NewRegistry())

	_, err := m.EnsureValidTokens(context.Background(), "nobody", "twitter")
	if !errors.Is(err, ErrNoLinkedAccount) {
		t.Fatalf("err = %v, want ErrNoLinkedAccount", err)
	}
}

func TestEnsureValidTokens_ValidTokensNeverRefresh(t *testing.T) {
	repo := memory.New()
	ad := &fakeAdapter{name: "twitter", refreshFn: func(string) (*platform.Tokens, error) {
		return nil, errors.New("must not be called")
	}}
	m := NewManager(repo, platform.NewRegistry(ad))

	seedAccount(t, repo, time.Now().Add(time.Hour), strptr("rt"))

	acc, err := m.EnsureValidTokens(context.Background(), "user42", "twitter")
	if err != nil {
		t.Fatalf("EnsureValidTokens err: %v", err)
	}
	if acc.AccessToken != "access-old" {
		t.Fatalf("token changed: %q", acc.AccessToken)
	}
	if n := atomic.LoadInt32(&ad.refreshCalls); n != 0 {
		t.Fatalf("refresh called %d times for a valid token", n)
	}
}

func TestEnsureValidTokens_ExpiredRefreshesAndPersists(t *testing.T) {
	repo := memory.New()
	newRT := "rt-new"
	ad := &fakeAdapter{name: "twitter", refreshFn: func(rt string) (*platform.Tokens, error) {
		if rt != "rt-old" {
			return nil, errors.New("wrong refresh token sent upstream")
		}
		return &platform.Tokens{
			AccessToken:  "access-new",
			RefreshToken: &newRT,
			ExpiresAt:    time.Now().Add(2 * time.Hour),
		}, nil
	}}
	m := NewManager(repo, platform.NewRegistry(ad))

	seedAccount(t, repo, time.Now().Add(-time.Hour), strptr("rt-old"))

	acc, err := m.EnsureValidTokens(context.Background(), "user42", "twitter")
	if err != nil {
		t.Fatalf("EnsureValidTokens err: %v", err)
	}
	if acc.AccessToken != "access-new" {
		t.Fatalf("AccessToken = %q, want access-new", acc.AccessToken)
	}
	if acc.RefreshToken == nil || *acc.RefreshToken != "rt-new" {
		t.Fatalf("RefreshToken = %v, want rt-new", acc.RefreshToken)
	}

	// Storage must reflect the rotation atomically.
	stored, err := repo.GetAccount(context.Background(), "user42", "twitter")
	if err != nil {
		t.Fatal(err)
	}
	if stored.AccessToken != "access-new" || !stored.ExpiresAt.After(time.Now().Add(time.Hour)) {
		t.Fatalf("stored credentials not rotated together: token=%q expires=%v", stored.AccessToken, stored.ExpiresAt)
	}
	if stored.RefreshToken == nil || *stored.RefreshToken != "rt-new" {
		t.Fatalf("stored RefreshToken = %v, want rt-new", stored.RefreshToken)
	}
}

func TestEnsureValidTokens_RetainsRefreshTokenWhenProviderOmitsIt(t *testing.T) {
	repo := memory.New()
	ad := &fakeAdapter{name: "twitter", refreshFn: func(string) (*platform.Tokens, error) {
		return &platform.Tokens{
			AccessToken: "access-new",
			ExpiresAt:   time.Now().Add(time.Hour),
			// no refresh token in the response
		}, nil
	}}
	m := NewManager(repo, platform.NewRegistry(ad))

	seedAccount(t, repo, time.Now().Add(-time.Minute), strptr("rt-keep"))

	acc, err := m.EnsureValidTokens(context.Background(), "user42", "twitter")
	if err != nil {
		t.Fatal(err)
	}
	if acc.RefreshToken == nil || *acc.RefreshToken != "rt-keep" {
		t.Fatalf("RefreshToken = %v, want retained rt-keep", acc.RefreshToken)
	}

	stored, _ := repo.GetAccount(context.Background(), "user42", "twitter")
	if stored.RefreshToken == nil || *stored.RefreshToken != "rt-keep" {
		t.Fatalf("stored RefreshToken = %v, want retained rt-keep", stored.RefreshToken)
	}
}

func TestEnsureValidTokens_NoRefreshTokenIsTerminal(t *testing.T) {
	repo := memory.New()
	ad := &fakeAdapter{name: "twitter", refreshFn: func(string) (*platform.Tokens, error) {
		return nil, errors.New("must not be called")
	}}
	m := NewManager(repo, platform.NewRegistry(ad))

	seedAccount(t, repo, time.Now().Add(-time.Minute), nil)

	_, err := m.EnsureValidTokens(context.Background(), "user42", "twitter")
	if !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("err = %v, want ErrRefreshFailed", err)
	}
	if n := atomic.LoadInt32(&ad.refreshCalls); n != 0 {
		t.Fatalf("refresh called %d times with no refresh token", n)
	}
}

func TestEnsureValidTokens_ProviderRejectionIsRefreshFailed(t *testing.T) {
	repo := memory.New()
	ad := &fakeAdapter{name: "twitter", refreshFn: func(string) (*platform.Tokens, error) {
		return nil, platform.ErrRefreshRejected
	}}
	m := NewManager(repo, platform.NewRegistry(ad))

	seedAccount(t, repo, time.Now().Add(-time.Minute), strptr("rt"))

	_, err := m.EnsureValidTokens(context.Background(), "user42", "twitter")
	if !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("err = %v, want ErrRefreshFailed", err)
	}
}

func TestEnsureValidTokens_ConcurrentCallsSingleRefresh(t *testing.T) {
	repo := memory.New()
	ad := &fakeAdapter{
		name:         "twitter",
		refreshDelay: 30 * time.Millisecond,
		refreshFn: func(string) (*platform.Tokens, error) {
			return &platform.Tokens{
				AccessToken: "access-new",
				ExpiresAt:   time.Now().Add(time.Hour),
			}, nil
		},
	}
	m := NewManager(repo, platform.NewRegistry(ad))

	seedAccount(t, repo, time.Now().Add(-time.Minute), strptr("rt"))

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = m.EnsureValidTokens(context.Background(), "user42", "twitter")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("call %d err: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&ad.refreshCalls); n != 1 {
		t.Fatalf("upstream refresh called %d times, want 1", n)
	}
}
