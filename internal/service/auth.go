// Package service holds the business rules between the HTTP handlers and
// storage:
//
//	Handler (HTTP) → Service (business rules) → UserRepository (DB)
//	                         ↘ verification / enrichment clients
//
// Services never read requests or write responses, so they are tested with
// plain fakes and no HTTP machinery.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/cryptonite/profiles/internal/apperror"
	"github.com/cryptonite/profiles/internal/auth"
	"github.com/cryptonite/profiles/internal/model"
	"github.com/cryptonite/profiles/internal/repository"
)

// RecentUsersLimit is how many recent signups the login and signup pages
// list.
const RecentUsersLimit = 5

// defaultAvatarCount is the size of the stock avatar set a new account picks
// from.
const defaultAvatarCount = 8

const defaultAvatarURL = "https://bootdey.com/img/Content/avatar/avatar%d.png"

// AuthService handles signup, login and session issuing.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - sessions   *auth.SessionService       → issue session tokens
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	sessions  *auth.SessionService
	passwords *auth.PasswordService
	logger    *slog.Logger

	// pickAvatar returns a number in [1, defaultAvatarCount]. Tests replace
	// it to get a predictable photo.
	pickAvatar func() int
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	sessions *auth.SessionService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:      users,
		sessions:   sessions,
		passwords:  passwords,
		logger:     logger,
		pickAvatar: func() int { return rand.IntN(defaultAvatarCount) + 1 },
	}
}

// AuthResult bundles the user record and the issued session token so the
// handler can set the cookie and redirect in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// SignupInput is the signup form.
type SignupInput struct {
	Username string
	Password string
	FullName string
	Location string
}

// Signup creates an account and starts a session for it.
//
// The new account gets one of the stock avatars as its photo and starts with
// verification switched off. A taken username is an apperror.ErrConflict.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
	}

	user := &model.User{
		Username:     username,
		FullName:     strings.TrimSpace(in.FullName),
		Location:     strings.TrimSpace(in.Location),
		PasswordHash: hash,
		Photo:        fmt.Sprintf(defaultAvatarURL, s.pickAvatar()),
		SwitchState:  model.SwitchOff,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}

	s.logger.Info("user signed up",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
	)

	return s.startSession(user)
}

// Login checks a username and password and starts a session.
//
// An unknown username and a wrong password both return the same
// apperror.ErrInvalidCredential, so the response never reveals which
// usernames exist.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperror.InvalidCredential()
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredential()
		}
		return nil, fmt.Errorf("service/auth: loading user %q: %w", username, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Debug("login rejected", slog.String("username", username))
			return nil, apperror.InvalidCredential()
		}
		return nil, fmt.Errorf("service/auth: verifying password of %q: %w", username, err)
	}

	return s.startSession(user)
}

// RefreshSession issues a new token for user, picking up profile changes
// such as a new full name.
func (s *AuthService) RefreshSession(user *model.User) (string, error) {
	res, err := s.startSession(user)
	if err != nil {
		return "", err
	}
	return res.Token, nil
}

// RecentUsernames returns the newest signups for the login and signup pages.
func (s *AuthService) RecentUsernames(ctx context.Context) ([]string, error) {
	names, err := s.users.RecentUsernames(ctx, RecentUsersLimit)
	if err != nil {
		return nil, fmt.Errorf("service/auth: listing recent users: %w", err)
	}
	return names, nil
}

func (s *AuthService) startSession(user *model.User) (*AuthResult, error) {
	token, err := s.sessions.Issue(user.ID, user.Username, user.FullName)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing session for %q: %w", user.Username, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// validateUsername keeps usernames safe to embed in URL paths.
func validateUsername(username string) error {
	if username == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	if len(username) > 64 {
		return apperror.ValidationFailed("username", "username must be 64 characters or fewer")
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return apperror.ValidationFailed("username", "username may only contain letters, digits, '-', '_' and '.'")
		}
	}
	return nil
}
