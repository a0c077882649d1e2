package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// seedPasswordBytes is the number of random bytes for a generated admin password.
const seedPasswordBytes = 16

// Logger is the logging interface used by the auth package.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// SeedAccount is an account to create on first boot.
type SeedAccount struct {
	Username string
	Password string
	Role     Role
}

// SeedUsers creates accounts on first boot, when the users table is empty.
//
// With no accounts configured a single "admin" is created with a random
// password, which is returned and logged and must be changed immediately.
//
// Returns:
//   - int: Number of accounts created (0 if users already exist)
//   - string: The generated admin password, if one was generated
//   - error: If counting, hashing or inserting fails
func SeedUsers(ctx context.Context, repo UserRepository, accounts []SeedAccount, logger Logger) (int, string, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		logger.Info("users exist, skipping seed")
		return 0, "", nil
	}

	var generated string
	if len(accounts) == 0 {
		b := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(b); err != nil {
			return 0, "", fmt.Errorf("generating seed password: %w", err)
		}
		generated = hex.EncodeToString(b)
		accounts = []SeedAccount{{Username: "admin", Password: generated, Role: RoleAdmin}}
	}

	created := 0
	for _, acct := range accounts {
		if acct.Role == "" {
			acct.Role = RoleUser
		}
		if acct.Password == "" {
			return created, generated, fmt.Errorf("seed user %s: password is required", acct.Username)
		}
		hash, err := HashPassword(acct.Password)
		if err != nil {
			return created, generated, fmt.Errorf("hashing seed password: %w", err)
		}
		err = repo.Create(ctx, &User{
			Username:     acct.Username,
			PasswordHash: hash,
			Role:         acct.Role,
			IsActive:     true,
		})
		if errors.Is(err, ErrUsernameExists) {
			continue
		}
		if err != nil {
			return created, generated, fmt.Errorf("creating seed user %s: %w", acct.Username, err)
		}
		created++
		logger.Info("seed user created", "username", acct.Username, "role", acct.Role)
	}

	if generated != "" {
		logger.Warn("seed admin account created",
			"username", "admin",
			"password", generated,
			"action_required", "change this password immediately",
		)
	}
	return created, generated, nil
}
