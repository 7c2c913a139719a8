package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinLength is the shortest accepted password.
	MinLength = 8
	// MaxBytes is the longest password bcrypt hashes without truncation.
	MaxBytes = 72
)

var (
	// ErrTooShort is returned for passwords below MinLength.
	ErrTooShort = fmt.Errorf("password: must be at least %d characters", MinLength)
	// ErrTooLong is returned for passwords above MaxBytes.
	ErrTooLong = fmt.Errorf("password: must be at most %d bytes", MaxBytes)
	// ErrMismatch is returned when a password does not match the stored hash.
	ErrMismatch = errors.New("password: mismatch")
)

// Hasher hashes and verifies account passwords.
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

// Validate applies the length policy.
func Validate(plain string) error {
	switch {
	case len([]rune(plain)) < MinLength:
		return ErrTooShort
	case len(plain) > MaxBytes:
		return ErrTooLong
	}
	return nil
}

// BcryptHasher is a Hasher backed by bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a BcryptHasher. Out of range costs fall back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash validates plain and returns its bcrypt hash.
func (h *BcryptHasher) Hash(plain string) (string, error) {
	if err := Validate(plain); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(hash), nil
}

// Compare returns ErrMismatch unless plain matches hash. Accounts created through Google sign-in
// have no hash and never match.
func (h *BcryptHasher) Compare(hash, plain string) error {
	if hash == "" {
		return ErrMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return err
}
