package storage

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/jmoanes1/phonebook/internal/storage/kv"
	"github.com/jmoanes1/phonebook/pkg/crypto/adaptive"
	"github.com/jmoanes1/phonebook/pkg/token"
)

// Sealing errors.
var (
	ErrPassphraseTooWeak = errors.New("storage: passphrase too weak (minimum 8 characters)")
	ErrPassphraseWrong   = errors.New("storage: wrong passphrase or corrupted seal")
	ErrPassphraseNeeded  = errors.New("storage: store is sealed, a passphrase is required")
	ErrStoreNotSealed    = errors.New("storage: store holds unsealed data, clear it or remove the passphrase")
)

const (
	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the salt length used in key derivation.
	SaltLength = 16

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32

	valueKeyInfo = "phonebook store values v1"
	sealCheck    = "phonebook"
)

// sealer protects values at rest. The record key is bound as additional
// data, so a sealed value cannot be moved under another key.
type sealer interface {
	seal(key string, plaintext []byte) ([]byte, error)
	open(key string, sealed []byte) ([]byte, error)
	sealed() bool
}

type plainSealer struct{}

func (plainSealer) seal(_ string, b []byte) ([]byte, error) { return b, nil }
func (plainSealer) open(_ string, b []byte) ([]byte, error) { return b, nil }
func (plainSealer) sealed() bool                            { return false }

type aeadSealer struct {
	cipher adaptive.Cipher
}

func (s *aeadSealer) seal(key string, b []byte) ([]byte, error) {
	return s.cipher.Encrypt(b, []byte(key))
}

func (s *aeadSealer) open(key string, b []byte) ([]byte, error) {
	out, err := s.cipher.Decrypt(b, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPassphraseWrong, key)
	}
	return out, nil
}

func (s *aeadSealer) sealed() bool { return true }

// sealMeta is persisted unsealed under keySealMeta.
type sealMeta struct {
	Salt   []byte              `cbor:"salt"`
	Cipher adaptive.CipherType `cbor:"cipher"`
	Check  []byte              `cbor:"check"`
}

// deriveValueKey derives the value sealing key: Argon2id from the
// passphrase, then an HKDF subkey bound to the store purpose.
func deriveValueKey(passphrase, salt []byte) ([]byte, error) {
	master := argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	defer zero(master)

	r := hkdf.New(sha256.New, master, salt, []byte(valueKeyInfo))
	key := make([]byte, adaptive.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("storage: derive subkey: %w", err)
	}
	return key, nil
}

// sealerFromMeta rebuilds the sealer recorded in meta and checks the passphrase.
func sealerFromMeta(passphrase []byte, meta *sealMeta) (*aeadSealer, error) {
	key, err := deriveValueKey(passphrase, meta.Salt)
	if err != nil {
		return nil, err
	}
	defer zero(key)

	c, err := adaptive.NewWithType(key, meta.Cipher)
	if err != nil {
		return nil, fmt.Errorf("storage: seal cipher: %w", err)
	}
	s := &aeadSealer{cipher: c}
	if got, err := s.open(keySealMeta, meta.Check); err != nil || string(got) != sealCheck {
		return nil, ErrPassphraseWrong
	}
	return s, nil
}

// newSealMeta creates a fresh salt and check value for passphrase.
func newSealMeta(passphrase []byte) (*sealMeta, *aeadSealer, error) {
	salt, err := token.GenerateBytes(SaltLength)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: generate salt: %w", err)
	}
	key, err := deriveValueKey(passphrase, salt)
	if err != nil {
		return nil, nil, err
	}
	defer zero(key)

	c, err := adaptive.New(key)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: seal cipher: %w", err)
	}
	s := &aeadSealer{cipher: c}
	check, err := s.seal(keySealMeta, []byte(sealCheck))
	if err != nil {
		return nil, nil, err
	}
	return &sealMeta{Salt: salt, Cipher: c.Type(), Check: check}, s, nil
}

// setupSealer returns the sealer for engine, creating the seal on first use.
//
//   - no passphrase, no seal: values are stored as plain CBOR
//   - no passphrase, seal present: ErrPassphraseNeeded
//   - passphrase, seal present: the passphrase must open the check value
//   - passphrase, no seal: a seal is created when the store is empty,
//     ErrStoreNotSealed otherwise
func setupSealer(ctx context.Context, engine kv.Engine, passphrase string) (sealer, *sealMeta, error) {
	meta, err := loadSealMeta(ctx, engine)
	if err != nil {
		return nil, nil, err
	}

	if passphrase == "" {
		if meta != nil {
			return nil, nil, ErrPassphraseNeeded
		}
		return plainSealer{}, nil, nil
	}
	if len(passphrase) < MinPassphraseLength {
		return nil, nil, ErrPassphraseTooWeak
	}

	if meta != nil {
		s, err := sealerFromMeta([]byte(passphrase), meta)
		if err != nil {
			return nil, nil, err
		}
		return s, meta, nil
	}

	empty := true
	if err := engine.Scan(ctx, nil, func(_, _ []byte) bool {
		empty = false
		return false
	}); err != nil {
		return nil, nil, err
	}
	if !empty {
		return nil, nil, ErrStoreNotSealed
	}

	meta, s, err := newSealMeta([]byte(passphrase))
	if err != nil {
		return nil, nil, err
	}
	raw, err := marshal(meta)
	if err != nil {
		return nil, nil, err
	}
	if err := engine.Set(ctx, []byte(keySealMeta), raw); err != nil {
		return nil, nil, err
	}
	return s, meta, nil
}

func loadSealMeta(ctx context.Context, engine kv.Engine) (*sealMeta, error) {
	raw, err := engine.Get(ctx, []byte(keySealMeta))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var meta sealMeta
	if err := unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("storage: decode seal: %w", err)
	}
	return &meta, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
