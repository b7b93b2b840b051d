package identity

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHash is a stored bcrypt hash. Keeping it a distinct type ensures a
// raw password can never be persisted by mistake and that hashing happens
// exactly once, at the registration/update boundary.
type PasswordHash string

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (PasswordHash, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return PasswordHash(hash), nil
}

// Verify compares the stored hash against a plaintext candidate.
func (h PasswordHash) Verify(password string) error {
	if h == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(h), []byte(password))
}
