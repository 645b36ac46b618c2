package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/docregistry/apiserver/internal/auth"
	"github.com/docregistry/apiserver/internal/events"
	"github.com/docregistry/apiserver/internal/store"
	"github.com/docregistry/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) (int, error)
	IncrementTokenVersion(ctx context.Context, id int) (int, error)
}

// UserService encapsulates identity use-cases.
type UserService struct {
	repo   UserRepository
	events events.Publisher
}

func NewUserService(repo UserRepository, publisher events.Publisher) *UserService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &UserService{repo: repo, events: publisher}
}

// RegisterInput is the data required to create an identity.
type RegisterInput struct {
	Username    string
	DisplayName string
	Email       string
	Division    string
	Password    string
	Clerk       bool
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

// Register creates a non-clerk identity unless in.Clerk is set, which only
// the bootstrap command does.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Division = strings.TrimSpace(in.Division)

	if in.Username == "" || in.Email == "" || in.Password == "" {
		return types.User{}, invalid("username, email and password are required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return types.User{}, invalid("invalid email")
	}
	if len(in.Password) < auth.MinPasswordLength {
		return types.User{}, invalid("password must be at least %d characters", auth.MinPasswordLength)
	}
	if in.DisplayName == "" {
		in.DisplayName = in.Username
	}

	if _, err := s.repo.GetByUsername(ctx, in.Username); err == nil {
		return types.User{}, invalid("username already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}
	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, invalid("email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Username:     in.Username,
		DisplayName:  in.DisplayName,
		Email:        in.Email,
		Division:     in.Division,
		Clerk:        in.Clerk,
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, invalid("username or email already exists")
		}
		return types.User{}, err
	}
	return user, nil
}

// Login verifies credentials and returns the identity.
func (s *UserService) Login(ctx context.Context, email, password string) (types.User, error) {
	return auth.VerifyCredentials(ctx, s.repo, email, password)
}

// ChangePassword replaces the password and invalidates all refresh tokens of
// the identity, including the caller's own.
func (s *UserService) ChangePassword(ctx context.Context, userID int, oldPassword, newPassword string) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	if !auth.CheckPassword(user.PasswordHash, oldPassword) {
		return types.User{}, auth.ErrInvalidCredentials
	}
	if len(newPassword) < auth.MinPasswordLength {
		return types.User{}, invalid("password must be at least %d characters", auth.MinPasswordLength)
	}

	hashed, err := auth.HashPassword(newPassword)
	if err != nil {
		return types.User{}, err
	}
	version, err := s.repo.UpdatePassword(ctx, userID, hashed)
	if err != nil {
		return types.User{}, err
	}
	user.PasswordHash = hashed
	user.TokenVersion = version

	s.events.Publish(ctx, events.Event{
		Type:      events.SessionsRevoked,
		ActorID:   userID,
		SubjectID: userID,
		Data:      map[string]any{"reason": "password_changed", "token_version": version},
	})
	return user, nil
}

// RevokeSessions bumps the token version of userID, so every refresh token
// issued to it so far stops working.
func (s *UserService) RevokeSessions(ctx context.Context, actorID, userID int) (int, error) {
	version, err := s.repo.IncrementTokenVersion(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.events.Publish(ctx, events.Event{
		Type:      events.SessionsRevoked,
		ActorID:   actorID,
		SubjectID: userID,
		Data:      map[string]any{"reason": "revoked", "token_version": version},
	})
	return version, nil
}

// SetClerk grants or removes the clerk role. Outstanding access tokens keep
// their old flag until they expire; refresh tokens pick up the new flag on
// the next exchange.
func (s *UserService) SetClerk(ctx context.Context, userID int, clerk bool) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	user.Clerk = clerk
	return s.repo.Update(ctx, user)
}
