package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docregistry/apiserver/internal/store"
	"github.com/docregistry/apiserver/types"
)

// IdentityStore loads identities by id.
type IdentityStore interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// Refresher exchanges a refresh token for a new token pair.
type Refresher struct {
	issuer *Issuer
	users  IdentityStore
}

func NewRefresher(issuer *Issuer, users IdentityStore) *Refresher {
	return &Refresher{issuer: issuer, users: users}
}

// Refresh validates raw and, on success, rotates it: the returned pair holds
// a new refresh token carrying the identity's current token version.
//
// Failures wrap one of ErrNoCookie, ErrBadSignature, ErrExpired,
// ErrIdentityNotFound or ErrVersionMismatch. Store failures are returned
// wrapped as they are.
func (r *Refresher) Refresh(ctx context.Context, raw string) (TokenPair, types.User, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TokenPair{}, types.User{}, ErrNoCookie
	}

	claims, err := r.issuer.VerifyRefresh(raw)
	if err != nil {
		return TokenPair{}, types.User{}, err
	}

	user, err := r.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return TokenPair{}, types.User{}, fmt.Errorf("%w: user %d", ErrIdentityNotFound, claims.UserID)
		}
		return TokenPair{}, types.User{}, fmt.Errorf("load identity: %w", err)
	}

	if user.TokenVersion != claims.TokenVersion {
		return TokenPair{}, types.User{}, fmt.Errorf("%w: token has %d, identity has %d",
			ErrVersionMismatch, claims.TokenVersion, user.TokenVersion)
	}

	pair, err := r.issuer.Issue(user)
	if err != nil {
		return TokenPair{}, types.User{}, err
	}
	return pair, user, nil
}
