package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the payload of an access token.
type AccessClaims struct {
	UserID int  `json:"userId"`
	Clerk  bool `json:"clerk"`
	jwt.RegisteredClaims
}

// Validate is called by the jwt parser after the registered claims checks.
func (c AccessClaims) Validate() error {
	if c.UserID < 1 {
		return errors.New("missing user id")
	}
	return nil
}

// RefreshClaims is the payload of a refresh token. TokenVersion must equal
// the identity's stored version for the token to be exchanged.
type RefreshClaims struct {
	UserID       int  `json:"userId"`
	Clerk        bool `json:"clerk"`
	TokenVersion int  `json:"tokenVersion"`
	jwt.RegisteredClaims
}

func (c RefreshClaims) Validate() error {
	if c.UserID < 1 {
		return errors.New("missing user id")
	}
	if c.TokenVersion < 0 {
		return errors.New("negative token version")
	}
	return nil
}
