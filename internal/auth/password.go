package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/referral-service/internal/domain"
)

// ErrEmptyPassword is returned when hashing an empty secret.
var ErrEmptyPassword = errors.New("password must not be empty")

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// VerifyCredential checks a supplied secret against a stored credential.
// Hashed credentials go through bcrypt; legacy plaintext ones are compared by exact equality.
func VerifyCredential(supplied string, stored domain.Credential) bool {
	switch stored.Kind {
	case domain.CredentialHashed:
		return ComparePassword(stored.Value, supplied) == nil
	case domain.CredentialPlaintext:
		return stored.Value != "" && supplied == stored.Value
	default:
		return false
	}
}
