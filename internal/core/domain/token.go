package domain

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jmoanes1/phonebook/pkg/token"
)

// Token constants for credentials synthesized by the local store fallback.
const (
	// LocalTokenPrefix is the prefix of locally issued tokens (sensitive).
	LocalTokenPrefix = "pbtk_"

	// TokenHashPrefix is the prefix of stored token hashes.
	TokenHashPrefix = "pbth_"

	// LocalTokenBytes is the number of random bytes in a local token.
	LocalTokenBytes = 32
)

// GenerateLocalToken generates a token for a fallback login or registration.
// Returns the plaintext token (pbtk_...) and its hash (pbth_...).
func GenerateLocalToken() (plaintext string, hash string, err error) {
	body, err := token.GenerateWithLength(LocalTokenBytes)
	if err != nil {
		return "", "", ErrInternal.WithCause(err)
	}
	plaintext = LocalTokenPrefix + body
	return plaintext, HashToken(plaintext), nil
}

// HashToken computes the lookup hash of a token.
// Format: pbth_{hex_sha256}.
func HashToken(plaintext string) string {
	return TokenHashPrefix + token.Hash(plaintext)
}

// IsLocalToken reports whether the token was issued by the local fallback.
func IsLocalToken(t string) bool {
	return strings.HasPrefix(t, LocalTokenPrefix)
}

// TokenExpiry returns the "exp" claim of a JWT bearer token.
//
// The signature is not verified: the client cannot verify it and only uses
// the claim to avoid presenting a token that is certainly expired.
// ok is false for opaque tokens and JWTs without an expiry.
func TokenExpiry(bearer string) (exp time.Time, ok bool) {
	if bearer == "" || IsLocalToken(bearer) || strings.Count(bearer, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(bearer, claims); err != nil {
		return time.Time{}, false
	}
	date, err := claims.GetExpirationTime()
	if err != nil || date == nil {
		return time.Time{}, false
	}
	return date.Time, true
}

// TokenExpired reports whether bearer is a JWT whose expiry is before now.
func TokenExpired(bearer string, now time.Time) bool {
	exp, ok := TokenExpiry(bearer)
	return ok && !now.Before(exp)
}
