package types

import "time"

// User represents an identity that can sign in to the registry.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// DisplayName is the name shown next to registered documents.
	DisplayName string `json:"display_name" db:"display_name"`

	// Email is the user's email address. It is the login credential.
	Email string `json:"email" db:"email"`

	// Division is the office unit the user works in.
	Division string `json:"division" db:"division"`

	// Clerk marks users allowed to write persons, addresses and documents.
	Clerk bool `json:"clerk" db:"clerk"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// TokenVersion is embedded in every refresh token. Incrementing it
	// invalidates all refresh tokens issued before the increment.
	TokenVersion int `json:"-" db:"token_version"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
