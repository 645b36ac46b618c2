package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/docregistry/apiserver/config"
	"github.com/docregistry/apiserver/internal/auth"
	"github.com/docregistry/apiserver/internal/logger"
	"github.com/docregistry/apiserver/internal/metrics"
	"github.com/docregistry/apiserver/types"
)

// TokenRefresher exchanges a refresh token for a new pair.
type TokenRefresher interface {
	Refresh(ctx context.Context, raw string) (auth.TokenPair, types.User, error)
}

// Authenticator verifies Authorization header values.
type Authenticator interface {
	Authenticate(header string) (auth.AccessClaims, error)
	AuthenticateClerk(header string) (auth.AccessClaims, error)
}

// RefreshCookie describes the cookie carrying the refresh token.
type RefreshCookie struct {
	Name   string
	Path   string
	Domain string
	Secure bool
}

// RefreshCookieFromConfig applies defaults to the configured cookie settings.
func RefreshCookieFromConfig(cfg config.AuthConfig) RefreshCookie {
	c := RefreshCookie{Name: cfg.CookieName, Path: cfg.CookiePath, Domain: cfg.CookieDomain, Secure: cfg.CookieSecure}
	if c.Name == "" {
		c.Name = "jid"
	}
	if c.Path == "" {
		c.Path = "/refresh_token"
	}
	return c
}

func (c RefreshCookie) set(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     c.Path,
		Domain:   c.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c RefreshCookie) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     c.Path,
		Domain:   c.Domain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// cookieSession lets GraphQL resolvers set and clear the refresh cookie on
// the response being built.
type cookieSession struct {
	w      http.ResponseWriter
	cookie RefreshCookie
}

func (s cookieSession) SetRefreshToken(token string, expires time.Time) {
	s.cookie.set(s.w, token, expires)
}

func (s cookieSession) ClearRefreshToken() {
	s.cookie.clear(s.w)
}

// RefreshResponse is the body of every refresh endpoint response.
type RefreshResponse struct {
	Status      string `json:"status"`
	AccessToken string `json:"accessToken"`
}

// AuthHandler serves the refresh token exchange.
type AuthHandler struct {
	refresher TokenRefresher
	cookie    RefreshCookie
	log       *logger.Logger
}

func NewAuthHandler(refresher TokenRefresher, cookie RefreshCookie, log *logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuthHandler{refresher: refresher, cookie: cookie, log: log.Named("refresh")}
}

// AuthRouter registers the refresh route on the given router.
func AuthRouter(r chi.Router, refresher TokenRefresher, cookie RefreshCookie, log *logger.Logger) {
	handler := NewAuthHandler(refresher, cookie, log)
	r.Post("/refresh_token", handler.RefreshToken)
}

// RefreshToken reads the refresh cookie and answers with a new access token
// and a rotated cookie. Every failure produces the same 200 response with an
// empty token.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	log := h.log.WithContext(r.Context())
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RefreshTotal.WithLabelValues("panic").Inc()
			log.Error("refresh panicked", zap.Any("panic", rec))
			writeJSON(w, http.StatusOK, RefreshResponse{Status: "error"})
		}
	}()

	var raw string
	if c, err := r.Cookie(h.cookie.Name); err == nil {
		raw = c.Value
	}

	pair, user, err := h.refresher.Refresh(r.Context(), raw)
	outcome := auth.RefreshOutcome(err)
	metrics.RefreshTotal.WithLabelValues(outcome).Inc()
	if err != nil {
		if outcome == "store_error" {
			log.Error("refresh failed", zap.Error(err))
		} else {
			log.Info("refresh rejected", zap.String("outcome", outcome))
		}
		writeJSON(w, http.StatusOK, RefreshResponse{Status: "error"})
		return
	}

	h.cookie.set(w, pair.RefreshToken, pair.RefreshExpiresAt)
	log.Debug("refresh ok", zap.Int("user_id", user.ID))
	writeJSON(w, http.StatusOK, RefreshResponse{Status: "ok", AccessToken: pair.AccessToken})
}

// RequireAuth rejects requests without a valid access token with 401 and
// puts the verified claims on the request context.
func RequireAuth(a Authenticator) func(http.Handler) http.Handler {
	return guard(a.Authenticate)
}

// RequireClerk is RequireAuth plus the clerk role check, answering 403 for
// authenticated callers without the role.
func RequireClerk(a Authenticator) func(http.Handler) http.Handler {
	return guard(a.AuthenticateClerk)
}

func guard(verify func(header string) (auth.AccessClaims, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := verify(r.Header.Get("Authorization"))
			if err != nil {
				if errors.Is(err, auth.ErrNotAuthorized) {
					metrics.GuardRejections.WithLabelValues("not_authorized").Inc()
					writeError(w, http.StatusForbidden, auth.ErrNotAuthorized.Error())
					return
				}
				metrics.GuardRejections.WithLabelValues("not_authenticated").Inc()
				writeError(w, http.StatusUnauthorized, auth.ErrNotAuthenticated.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
		})
	}
}
