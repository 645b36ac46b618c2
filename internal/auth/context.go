package auth

import (
	"context"
	"errors"
	"strings"
)

type contextKey string

const claimsKey contextKey = "access_claims"

// ContextWithClaims attaches verified access claims to ctx.
func ContextWithClaims(ctx context.Context, claims AccessClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the claims attached by an auth guard.
func ClaimsFromContext(ctx context.Context) (AccessClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(AccessClaims)
	return claims, ok
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// Authenticate verifies the Authorization header of a request.
// Every failure, including a missing header, is ErrNotAuthenticated.
func (i *Issuer) Authenticate(header string) (AccessClaims, error) {
	token, err := BearerToken(header)
	if err != nil {
		return AccessClaims{}, ErrNotAuthenticated
	}
	return i.VerifyAccess(token)
}

// AuthenticateClerk is Authenticate plus the clerk role check.
// A valid token without the role yields ErrNotAuthorized.
func (i *Issuer) AuthenticateClerk(header string) (AccessClaims, error) {
	claims, err := i.Authenticate(header)
	if err != nil {
		return AccessClaims{}, err
	}
	if !claims.Clerk {
		return AccessClaims{}, ErrNotAuthorized
	}
	return claims, nil
}
