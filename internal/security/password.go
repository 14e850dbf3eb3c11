package security

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned when the plaintext does not produce the stored hash.
var ErrPasswordMismatch = errors.New("password does not match")

// bcrypt only reads the first 72 bytes of its input.
const bcryptMaxInput = 72

// HashPassword hashes a plaintext password with bcrypt. Every call draws a fresh salt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(bcryptInput(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(hash), nil
}

// CheckPassword compares a stored bcrypt hash with a plaintext password.
// A malformed hash is reported as an error, never a panic.
func CheckPassword(hash, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(plain))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return fmt.Errorf("check password: %w", err)
	}
}

// bcryptInput passes short passwords through unchanged and folds longer ones
// into a 44 byte SHA-256 digest, so every byte of a long password counts.
func bcryptInput(plain string) []byte {
	if len(plain) <= bcryptMaxInput {
		return []byte(plain)
	}

	sum := sha256.Sum256([]byte(plain))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])

	return out
}
