package domain

import (
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// LocalIDPrefix marks identifiers synthesized by the local store fallback.
const LocalIDPrefix = "local-"

var (
	entropyMu sync.Mutex
	entropy   io.Reader = ulid.Monotonic(rand.Reader, 0)
)

// NewLocalID generates a process-unique, time-ordered identifier.
// Format: local-{ulid_lowercase}, 32 characters total.
func NewLocalID() (string, error) {
	entropyMu.Lock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	entropyMu.Unlock()
	if err != nil {
		return "", ErrInternal.WithCause(err)
	}
	return LocalIDPrefix + strings.ToLower(id.String()), nil
}
