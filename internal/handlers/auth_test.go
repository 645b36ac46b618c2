package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/docregistry/apiserver/config"
	"github.com/docregistry/apiserver/internal/auth"
	"github.com/docregistry/apiserver/types"
)

type stubRefresher struct {
	gotRaw string
	pair   auth.TokenPair
	err    error
	panics bool
}

func (s *stubRefresher) Refresh(_ context.Context, raw string) (auth.TokenPair, types.User, error) {
	s.gotRaw = raw
	if s.panics {
		panic("boom")
	}
	if s.err != nil {
		return auth.TokenPair{}, types.User{}, s.err
	}
	return s.pair, types.User{ID: 1}, nil
}

func doRefresh(t *testing.T, refresher TokenRefresher, cookie *http.Cookie) (*httptest.ResponseRecorder, RefreshResponse) {
	t.Helper()
	handler := NewAuthHandler(refresher, RefreshCookieFromConfig(config.AuthConfig{}), nil)

	req := httptest.NewRequest(http.MethodPost, "/refresh_token", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	handler.RefreshToken(rec, req)

	var body RefreshResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return rec, body
}

func TestRefreshTokenFailures(t *testing.T) {
	tests := []struct {
		name      string
		refresher *stubRefresher
		cookie    *http.Cookie
	}{
		{"no cookie", &stubRefresher{err: auth.ErrNoCookie}, nil},
		{"bad signature", &stubRefresher{err: auth.ErrBadSignature}, &http.Cookie{Name: "jid", Value: "garbage"}},
		{"version mismatch", &stubRefresher{err: auth.ErrVersionMismatch}, &http.Cookie{Name: "jid", Value: "old"}},
		{"store failure", &stubRefresher{err: errors.New("db down")}, &http.Cookie{Name: "jid", Value: "tok"}},
		{"panic", &stubRefresher{panics: true}, &http.Cookie{Name: "jid", Value: "tok"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doRefresh(t, tt.refresher, tt.cookie)
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			if body.Status != "error" || body.AccessToken != "" {
				t.Fatalf("unexpected body: %+v", body)
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Fatal("failed refresh must not set a cookie")
			}
		})
	}
}

func TestRefreshTokenSuccess(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	refresher := &stubRefresher{pair: auth.TokenPair{AccessToken: "access", RefreshToken: "rotated", RefreshExpiresAt: expires}}

	rec, body := doRefresh(t, refresher, &http.Cookie{Name: "jid", Value: "current"})
	if body.Status != "ok" || body.AccessToken != "access" {
		t.Fatalf("unexpected body: %+v", body)
	}
	if refresher.gotRaw != "current" {
		t.Fatalf("refresher got %q", refresher.gotRaw)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != "jid" || c.Value != "rotated" || c.Path != "/refresh_token" || !c.HttpOnly {
		t.Fatalf("unexpected cookie: %+v", c)
	}
}

func TestRefreshTokenWithIssuer(t *testing.T) {
	issuer, err := auth.NewIssuer(auth.Config{AccessSecret: "a", RefreshSecret: "r"})
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	user := types.User{ID: 3, TokenVersion: 1}
	pair, _ := issuer.Issue(user)
	stale, _ := issuer.Issue(types.User{ID: 3})

	refresher := auth.NewRefresher(issuer, identities{3: user})

	if _, body := doRefresh(t, refresher, &http.Cookie{Name: "jid", Value: pair.RefreshToken}); body.Status != "ok" {
		t.Fatalf("expected ok, got %+v", body)
	}
	if _, body := doRefresh(t, refresher, &http.Cookie{Name: "jid", Value: stale.RefreshToken}); body.Status != "error" {
		t.Fatalf("expected revoked token to fail, got %+v", body)
	}
}

type identities map[int]types.User

func (i identities) GetByID(_ context.Context, id int) (types.User, error) {
	u, ok := i[id]
	if !ok {
		return types.User{}, errors.New("not found")
	}
	return u, nil
}

func TestGuards(t *testing.T) {
	issuer, err := auth.NewIssuer(auth.Config{AccessSecret: "a", RefreshSecret: "r"})
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	clerk, _ := issuer.Issue(types.User{ID: 1, Clerk: true})
	plain, _ := issuer.Issue(types.User{ID: 2})

	var seen auth.AccessClaims
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		mw     func(http.Handler) http.Handler
		header string
		want   int
		userID int
	}{
		{"auth without header", RequireAuth(issuer), "", http.StatusUnauthorized, 0},
		{"auth with garbage", RequireAuth(issuer), "Bearer garbage", http.StatusUnauthorized, 0},
		{"auth with token", RequireAuth(issuer), "Bearer " + plain.AccessToken, http.StatusNoContent, 2},
		{"clerk without header", RequireClerk(issuer), "", http.StatusUnauthorized, 0},
		{"clerk without role", RequireClerk(issuer), "Bearer " + plain.AccessToken, http.StatusForbidden, 0},
		{"clerk with role", RequireClerk(issuer), "Bearer " + clerk.AccessToken, http.StatusNoContent, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = auth.AccessClaims{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			tt.mw(ok).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			if seen.UserID != tt.userID {
				t.Fatalf("expected claims for user %d, got %d", tt.userID, seen.UserID)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := CORS("http://localhost:3000")(next)

	req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code >= 300 {
		t.Fatalf("expected success for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("unexpected allow origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected credentials to be allowed")
	}

	req = httptest.NewRequest(http.MethodPost, "/graphql", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow origin for foreign origin, got %q", got)
	}
}

func TestCORSDisabled(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	handler := CORS("")(next)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected passthrough, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS headers, got %q", got)
	}
}
