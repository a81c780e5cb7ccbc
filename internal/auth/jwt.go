// Package auth provides passwords, session tokens and the middleware that
// reads them.
//
// SESSION FLOW:
//  1. User submits /signup or /login
//  2. Server verifies the password (bcrypt) and issues a session JWT
//  3. The JWT is stored in the "session" HttpOnly cookie
//  4. On every page, OptionalAuth reads the cookie, validates the JWT and
//     puts the Session in the request context
//  5. /logout clears the cookie
//
// The token carries everything a page needs to know about the viewer (id,
// username, display name), so rendering "who am I" never touches the DB.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims → {"sub":"7","username":"alice","name":"Alice","jti":"...","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "profiles"

// Session is the identity carried by a valid session token.
type Session struct {
	UserID   int64
	Username string
	Name     string
	// TokenID is the token's "jti", unique per issued session.
	TokenID string
}

// SessionService handles session token creation and validation.
//
// It holds the HMAC secret used to sign and verify tokens, plus the token
// lifetime.
type SessionService struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionService creates a SessionService with the given secret and
// token lifetime.
// The secret should be at least 32 bytes of random data in production.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewSessionService(secret string, ttl time.Duration) (*SessionService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: session lifetime must be positive")
	}
	return &SessionService{secret: []byte(secret), ttl: ttl}, nil
}

// claims is the JWT payload. "sub" holds the user ID; username and name are
// the session copy of the profile shown in the page header.
type claims struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issue creates and signs a session token for the given user.
//
// Every token gets a fresh xid as its "jti". xids are sortable by creation
// time and shorter than UUIDs, which keeps the cookie small.
func (s *SessionService) Issue(userID int64, username, name string) (string, error) {
	return s.issue(userID, username, name, s.ttl)
}

// IssueWithDuration creates a token with a custom lifetime.
// Used in tests to produce already-expired tokens.
func (s *SessionService) IssueWithDuration(userID int64, username, name string, d time.Duration) (string, error) {
	return s.issue(userID, username, name, d)
}

func (s *SessionService) issue(userID int64, username, name string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		Username: username,
		Name:     name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        xid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// TTL returns the configured session lifetime, used for the cookie Max-Age.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Validate parses and verifies a session token.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired
//   - Issuer matches (prevents tokens from other apps signed with the same key)
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
func (s *SessionService) Validate(tokenStr string) (*Session, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}
	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("auth: token subject %q is not a user id", c.Subject)
	}
	if c.Username == "" {
		return nil, fmt.Errorf("auth: token has no username")
	}

	return &Session{
		UserID:   userID,
		Username: c.Username,
		Name:     c.Name,
		TokenID:  c.ID,
	}, nil
}
