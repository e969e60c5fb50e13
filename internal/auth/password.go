package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor: roughly 250ms per hash on a
// current server, which is invisible at login and expensive for an attacker
// replaying a leaked hash table.
const defaultCost = 12

const (
	MinPasswordLength = 8
	// MaxPasswordLength is a bcrypt limit: bytes past 72 are silently
	// ignored, so longer passwords are rejected instead.
	MaxPasswordLength = 72
)

var (
	ErrPasswordTooShort = fmt.Errorf("auth: password must be at least %d characters", MinPasswordLength)
	ErrPasswordTooLong  = fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordLength)
	ErrInvalidPassword  = errors.New("auth: invalid password")
)

// PasswordService provides bcrypt hashing and verification.
//
// The cost is injectable so tests can use bcrypt.MinCost.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with the given cost.
// Use bcrypt.MinCost (4) in tests of other packages. Never in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// CheckPolicy enforces the length rules for a new password.
func (p *PasswordService) CheckPolicy(plaintext string) error {
	if len(plaintext) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(plaintext) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// Hash hashes the given plaintext password with bcrypt. The result embeds
// salt and cost ($2a$12$...) and is stored as-is.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash and ErrInvalidPassword
// when it does not. The comparison is constant-time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
