// Local accounts store a bcrypt digest; the salt and cost travel inside it.

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultCost = 12

	// Longer inputs would be truncated by bcrypt, so two passwords sharing
	// a 72-byte prefix would collide.
	maxPasswordBytes = 72

	// MinPasswordLength applies to new local accounts.
	MinPasswordLength = 8
)

// ErrInvalidPassword means the password does not match the account's digest.
var ErrInvalidPassword = errors.New("auth: invalid password")

// PasswordService hashes and checks local-account passwords.
type PasswordService struct {
	cost int
}

// NewPasswordService uses the production bcrypt cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest lets other packages' tests register accounts
// without paying for cost 12. Pass bcrypt.MinCost.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash returns the digest to store on the user row.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", maxPasswordBytes)
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(digest), nil
}

// Verify returns ErrInvalidPassword on a mismatch and a wrapped error when
// the stored digest itself is unusable.
func (p *PasswordService) Verify(digest, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrInvalidPassword
	default:
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
}
