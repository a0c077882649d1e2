package auth

import (
	"context"
	"errors"
	"fmt"
)

// dummyHash is verified against when the username is unknown, so a failed
// login takes the same time whether or not the account exists.
var dummyHash, _ = HashPassword("timing-equaliser") //nolint:errcheck // random salt cannot fail in practice

// Authenticator checks credentials and issues access tokens.
type Authenticator struct {
	users     UserRepository
	secret    string
	ttlMinute int
}

// NewAuthenticator creates an Authenticator signing tokens with secret.
func NewAuthenticator(users UserRepository, secret string, ttlMinutes int) *Authenticator {
	return &Authenticator{users: users, secret: secret, ttlMinute: ttlMinutes}
}

// Login verifies username and password and returns a signed token.
//
// Returns:
//   - ErrInvalidCredentials: unknown user or wrong password
//   - ErrUserInactive: the account is locked
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, *User, error) {
	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			VerifyPassword(password, dummyHash) //nolint:errcheck // timing only
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return "", nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", nil, ErrUserInactive
	}

	token, err := GenerateAccessToken(user, a.secret, a.ttlMinute)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

// Verify parses a bearer token issued by Login.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	return ParseToken(token, a.secret)
}
