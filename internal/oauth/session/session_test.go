package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	s := Session{State: "abc123", CodeVerifier: "v1", CreatedAt: time.Now()}
	if err := st.Save(ctx, s.State, s); err != nil {
		t.Fatalf("Save err: %v", err)
	}

	got, ok := st.Get(ctx, "abc123")
	if !ok {
		t.Fatal("expected session, got none")
	}
	if got.CodeVerifier != "v1" || got.State != "abc123" {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := st.Delete(ctx, "abc123"); err != nil {
		t.Fatalf("Delete err: %v", err)
	}
	if _, ok := st.Get(ctx, "abc123"); ok {
		t.Fatal("session still readable after delete")
	}
}

func TestMemoryStore_ExpiredEntryNotHonored(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	// Backdated past the TTL: even if the backend sweep has not run yet, the
	// per-read expiry check must reject it.
	s := Session{State: "old", CodeVerifier: "v", CreatedAt: time.Now().Add(-11 * time.Minute)}
	if err := st.Save(ctx, s.State, s); err != nil {
		t.Fatal(err)
	}
	if _, ok := st.Get(ctx, "old"); ok {
		t.Fatal("expired session was honored")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s := Session{State: "s", CodeVerifier: "v", CreatedAt: time.Now()}
			_ = st.Save(ctx, s.State, s)
			st.Get(ctx, "s")
			if n%2 == 0 {
				_ = st.Delete(ctx, "s")
			}
		}(i)
	}
	wg.Wait()
}

func TestResolver_CookieChannelWins(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	r := NewResolver(st, false)

	w := httptest.NewRecorder()
	s := Session{State: "st1", CodeVerifier: "cv1", IsReconnect: true, CreatedAt: time.Now()}
	if err := r.Begin(ctx, w, "twitter", s); err != nil {
		t.Fatal(err)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	for _, c := range cookies {
		if !c.HttpOnly {
			t.Fatalf("cookie %s is not http-only", c.Name)
		}
		if c.SameSite != http.SameSiteLaxMode {
			t.Fatalf("cookie %s is not SameSite=Lax", c.Name)
		}
		if c.MaxAge != int(TTL.Seconds()) {
			t.Fatalf("cookie %s MaxAge = %d, want %d", c.Name, c.MaxAge, int(TTL.Seconds()))
		}
	}

	req := httptest.NewRequest("GET", "/auth/twitter/callback?state=st1", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	got, ok := r.Resolve(ctx, req, "twitter", "st1")
	if !ok {
		t.Fatal("expected resolved session")
	}
	if got.CodeVerifier != "cv1" || got.State != "st1" {
		t.Fatalf("unexpected session %+v", got)
	}
	if !got.IsReconnect {
		t.Fatal("reconnect flag not merged from fallback store")
	}
}

func TestResolver_FallbackWhenCookiesDropped(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	r := NewResolver(st, false)

	w := httptest.NewRecorder()
	s := Session{State: "st2", CodeVerifier: "cv2", CreatedAt: time.Now()}
	if err := r.Begin(ctx, w, "twitter", s); err != nil {
		t.Fatal(err)
	}

	// Callback arrives without any cookies (e.g. localhost vs 127.0.0.1).
	req := httptest.NewRequest("GET", "/auth/twitter/callback?state=st2", nil)

	got, ok := r.Resolve(ctx, req, "twitter", "st2")
	if !ok {
		t.Fatal("expected fallback-resolved session")
	}
	if got.CodeVerifier != "cv2" {
		t.Fatalf("unexpected verifier %q", got.CodeVerifier)
	}
}

func TestResolver_NeitherChannel_FailsClosed(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(NewMemory(), false)

	req := httptest.NewRequest("GET", "/auth/twitter/callback?state=nope", nil)
	if _, ok := r.Resolve(ctx, req, "twitter", "nope"); ok {
		t.Fatal("resolved a session that was never stored")
	}
}

func TestResolver_ConsumeMakesSessionSingleUse(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	r := NewResolver(st, false)

	w := httptest.NewRecorder()
	s := Session{State: "st3", CodeVerifier: "cv3", CreatedAt: time.Now()}
	if err := r.Begin(ctx, w, "twitter", s); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/auth/twitter/callback?state=st3", nil)
	if _, ok := r.Resolve(ctx, req, "twitter", "st3"); !ok {
		t.Fatal("first resolve failed")
	}

	w2 := httptest.NewRecorder()
	r.Consume(ctx, w2, "twitter", "st3")

	// Replay without cookies: the fallback entry must be gone.
	if _, ok := r.Resolve(ctx, req, "twitter", "st3"); ok {
		t.Fatal("consumed session validated a replayed callback")
	}

	// The response must have overwritten both cookies with deletions.
	var deletions int
	for _, c := range w2.Result().Cookies() {
		if c.MaxAge < 0 {
			deletions++
		}
	}
	if deletions != 2 {
		t.Fatalf("expected 2 deletion cookies, got %d", deletions)
	}
}
