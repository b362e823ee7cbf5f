package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// DefaultLength is the default secret length in bytes.
const DefaultLength = 32

// Generate returns a random secret of DefaultLength bytes.
func Generate() (string, error) {
	return GenerateWithLength(DefaultLength)
}

// GenerateWithLength returns a Base64 RawURL encoded secret of length random bytes.
func GenerateWithLength(length int) (string, error) {
	b, err := GenerateBytes(length)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateBytes returns length bytes from crypto/rand.
func GenerateBytes(length int) ([]byte, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Hash returns the hex encoded SHA-256 of s.
func Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Verify reports whether s hashes to expectedHash, in constant time.
func Verify(s, expectedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(s)), []byte(expectedHash)) == 1
}
