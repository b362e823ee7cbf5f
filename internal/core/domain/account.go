package domain

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/jmoanes1/phonebook/pkg/token"
)

// Argon2id parameters for fallback account password hashes.
const (
	passwordSaltLength = 16
	passwordTime       = 1
	passwordMemory     = 64 * 1024
	passwordThreads    = 2
	passwordKeyLength  = 32
)

// Account is a user registered through the local store fallback.
// It only exists so fallback login can find the user by email.
type Account struct {
	User         User   `json:"user"`
	PasswordHash []byte `json:"password_hash"`
	Salt         []byte `json:"salt"`
	TokenHash    string `json:"token_hash"`
	CreatedAt    int64  `json:"created_at"` // Unix milliseconds
}

// NewAccount builds an account for user, hashing password with Argon2id.
func NewAccount(user User, password string, createdAt int64) (*Account, error) {
	salt, err := token.GenerateBytes(passwordSaltLength)
	if err != nil {
		return nil, ErrInternal.WithCause(fmt.Errorf("generate salt: %w", err))
	}
	return &Account{
		User:         user,
		PasswordHash: hashPassword(password, salt),
		Salt:         salt,
		CreatedAt:    createdAt,
	}, nil
}

// SetPassword replaces the stored password hash.
func (a *Account) SetPassword(password string) {
	a.PasswordHash = hashPassword(password, a.Salt)
}

// VerifyPassword reports whether password matches the stored hash.
func (a *Account) VerifyPassword(password string) bool {
	if len(a.Salt) == 0 || len(a.PasswordHash) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(hashPassword(password, a.Salt), a.PasswordHash) == 1
}

func hashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, passwordTime, passwordMemory, passwordThreads, passwordKeyLength)
}
