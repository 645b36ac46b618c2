package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/docregistry/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Issuer signs and verifies access and refresh tokens.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewIssuer validates cfg and constructs an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return &Issuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	clone := *i
	clone.now = now
	return &clone
}

// Issue mints a fresh access/refresh pair for user.
func (i *Issuer) Issue(user types.User) (TokenPair, error) {
	now := i.now()
	accessExp := now.Add(i.accessTTL)
	refreshExp := now.Add(i.refreshTTL)
	subject := strconv.Itoa(user.ID)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		UserID: user.ID,
		Clerk:  user.Clerk,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	})
	accessToken, err := access.SignedString(i.accessSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshClaims{
		UserID:       user.ID,
		Clerk:        user.Clerk,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	})
	refreshToken, err := refresh.SignedString(i.refreshSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess checks signature and expiry of an access token.
// Any failure is reported as ErrNotAuthenticated.
func (i *Issuer) VerifyAccess(tokenString string) (AccessClaims, error) {
	var claims AccessClaims
	if err := i.parse(tokenString, &claims, i.accessSecret); err != nil {
		return AccessClaims{}, fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	return claims, nil
}

// VerifyRefresh checks signature and expiry of a refresh token, reporting
// ErrExpired for expired tokens and ErrBadSignature for everything else.
func (i *Issuer) VerifyRefresh(tokenString string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := i.parse(tokenString, &claims, i.refreshSecret); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return RefreshClaims{}, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return RefreshClaims{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return claims, nil
}

func (i *Issuer) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}
