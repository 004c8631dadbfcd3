package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"go.airavate.in/auth/services"
)

// MinCost is the lowest bcrypt cost factor the service accepts.
const MinCost = 10

// BcryptPasswordHasher implements the services.PasswordHasher interface
// using bcrypt. Comparison is constant-time with respect to the password.
type BcryptPasswordHasher struct {
	Cost int
}

// NewBcryptPasswordHasher creates a new BcryptPasswordHasher. Costs below
// MinCost (including zero) are raised to bcrypt.DefaultCost.
func NewBcryptPasswordHasher(cost int) *BcryptPasswordHasher {
	if cost < MinCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordHasher{Cost: cost}
}

// Hash generates a bcrypt digest for the given password.
func (h *BcryptPasswordHasher) Hash(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash generation failed: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a bcrypt digest with its possible plaintext equivalent.
// Returns nil on match; a malformed digest reports an error rather than
// panicking, so federated accounts with empty hashes simply fail to verify.
func (h *BcryptPasswordHasher) Verify(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

var _ services.PasswordHasher = (*BcryptPasswordHasher)(nil)
