package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// Table-driven: each case checks that errors.Is finds (or doesn't find) the
// sentinel through the AppError, including when it is wrapped again.
func TestErrorsIs(t *testing.T) {
	upstreamCause := errors.New("connection refused")

	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "alice"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("username", "username is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("user", "alice"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "InvalidCredential wraps ErrInvalidCredential",
			err:       InvalidCredential(),
			target:    ErrInvalidCredential,
			wantMatch: true,
		},
		{
			name:      "UpstreamFailure wraps ErrUpstream",
			err:       UpstreamFailure("Failed to fetch user profile", upstreamCause),
			target:    ErrUpstream,
			wantMatch: true,
		},
		{
			name:      "UpstreamFailure also exposes its cause",
			err:       UpstreamFailure("Failed to fetch user profile", upstreamCause),
			target:    upstreamCause,
			wantMatch: true,
		},
		{
			name:      "wrapped twice still matches",
			err:       fmt.Errorf("service: %w", fmt.Errorf("handler: %w", NotFound("user", "bob"))),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "InvalidCredential does NOT match ErrNotFound",
			err:       InvalidCredential(),
			target:    ErrNotFound,
			wantMatch: false,
		},
		{
			name:      "ValidationFailed does NOT match ErrNotFound",
			err:       ValidationFailed("password", "too long"),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("user", "alice"),
			wantMessage: "user not found: alice",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("username", "username is required"),
			wantMessage: "username is required",
		},
		{
			name:        "InvalidCredential is generic",
			err:         InvalidCredential(),
			wantMessage: "Invalid username or password",
		},
		{
			name:        "UpstreamFailure appends the cause",
			err:         UpstreamFailure("Failed to generate token", errors.New("status 502")),
			wantMessage: "Failed to generate token: status 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestErrorsAs(t *testing.T) {
	err := fmt.Errorf("service/profile: %w", Forbidden("not your profile"))

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As did not find *AppError")
	}
	if appErr.Message != "not your profile" {
		t.Errorf("Message = %q, want %q", appErr.Message, "not your profile")
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("password", "password is required")

	if err.Field != "password" {
		t.Errorf("Field = %q, want %q", err.Field, "password")
	}
}
