package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmoanes1/phonebook/internal/core/domain"
	"github.com/jmoanes1/phonebook/internal/storage/kv"
)

// Key namespaces. The session, contact and account namespaces are owned by
// different components and never overlap.
const (
	keySessionToken    = "session/token"
	keySessionUser     = "session/user"
	prefixContact      = "contact/"
	keyContactSeq      = "meta/contact_seq"
	prefixAccount      = "account/"
	prefixAccountEmail = "account_email/"
	prefixAccountToken = "account_token/"
	keySealMeta        = "meta/seal"
)

// contactRecord keeps the position of a cached contact; Badger orders keys
// by id, the collection is ordered by insertion.
type contactRecord struct {
	Contact domain.Contact `cbor:"contact"`
	Seq     uint64         `cbor:"seq"`
}

// Local is the typed Local Store over a kv.Engine.
//
// Every error it returns is a *domain.DomainError. Engine failures are
// KindStorage; lookups that find nothing map to the matching domain error.
type Local struct {
	engine     kv.Engine
	sealer     sealer
	seal       *sealMeta
	passphrase string
	logger     *slog.Logger

	// mu serializes multi-key updates (indexes, sequence counter).
	mu sync.Mutex
}

// NewLocal wraps engine. A non-empty passphrase seals every value.
func NewLocal(ctx context.Context, engine kv.Engine, passphrase string, logger *slog.Logger) (*Local, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, meta, err := setupSealer(ctx, engine, passphrase)
	if err != nil {
		return nil, storageErr("open seal", err)
	}
	return &Local{
		engine:     engine,
		sealer:     s,
		seal:       meta,
		passphrase: passphrase,
		logger:     logger,
	}, nil
}

func storageErr(op string, err error) *domain.DomainError {
	return domain.ErrStorage.WithDetails(op).WithCause(err)
}

// get decodes the value under key into v. Reports false if the key is absent.
func (l *Local) get(ctx context.Context, key string, v any) (bool, error) {
	raw, err := l.engine.Get(ctx, []byte(key))
	if errors.Is(err, kv.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("get "+key, err)
	}
	if err := l.decode(key, raw, v); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Local) decode(key string, raw []byte, v any) error {
	plain, err := l.sealer.open(key, raw)
	if err != nil {
		return storageErr("open "+key, err)
	}
	if err := unmarshal(plain, v); err != nil {
		return storageErr("decode "+key, err)
	}
	return nil
}

func (l *Local) put(ctx context.Context, key string, v any) error {
	raw, err := marshal(v)
	if err != nil {
		return storageErr("encode "+key, err)
	}
	sealed, err := l.sealer.seal(key, raw)
	if err != nil {
		return storageErr("seal "+key, err)
	}
	if err := l.engine.Set(ctx, []byte(key), sealed); err != nil {
		return storageErr("set "+key, err)
	}
	return nil
}

func (l *Local) del(ctx context.Context, key string) error {
	if err := l.engine.Delete(ctx, []byte(key)); err != nil {
		return storageErr("delete "+key, err)
	}
	return nil
}

// ============================================================================
// Session
// ============================================================================

// LoadToken returns the persisted token, or "" when none is stored.
func (l *Local) LoadToken(ctx context.Context) (string, error) {
	var tok string
	if _, err := l.get(ctx, keySessionToken, &tok); err != nil {
		return "", err
	}
	return tok, nil
}

// SaveToken persists token. An empty token removes it.
func (l *Local) SaveToken(ctx context.Context, token string) error {
	if token == "" {
		return l.del(ctx, keySessionToken)
	}
	return l.put(ctx, keySessionToken, token)
}

// LoadUser returns the cached user together with the token it was cached
// under. The zero User means nothing is cached.
func (l *Local) LoadUser(ctx context.Context) (domain.User, string, error) {
	var rec cachedUser
	found, err := l.get(ctx, keySessionUser, &rec)
	if err != nil || !found {
		return domain.User{}, "", err
	}
	return rec.User, rec.Token, nil
}

// SaveUser caches u as the identity verified for token.
func (l *Local) SaveUser(ctx context.Context, u domain.User, token string) error {
	return l.put(ctx, keySessionUser, cachedUser{User: u, Token: token})
}

type cachedUser struct {
	User  domain.User `cbor:"user"`
	Token string      `cbor:"token"`
}

// ClearSession removes the persisted token and cached user.
func (l *Local) ClearSession(ctx context.Context) error {
	if err := l.del(ctx, keySessionToken); err != nil {
		return err
	}
	return l.del(ctx, keySessionUser)
}

// ============================================================================
// Contacts
// ============================================================================

// LoadContacts returns the cached collection in insertion order.
func (l *Local) LoadContacts(ctx context.Context) (domain.ContactList, error) {
	var (
		recs    []contactRecord
		scanErr error
	)
	err := l.engine.Scan(ctx, []byte(prefixContact), func(k, v []byte) bool {
		var rec contactRecord
		if scanErr = l.decode(string(k), v, &rec); scanErr != nil {
			return false
		}
		recs = append(recs, rec)
		return true
	})
	if scanErr != nil {
		return nil, scanErr
	}
	if err != nil {
		return nil, storageErr("scan contacts", err)
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Seq < recs[j].Seq })
	list := make(domain.ContactList, 0, len(recs))
	for _, r := range recs {
		list = append(list, r.Contact)
	}
	return list, nil
}

// ReplaceContacts makes list the cached collection.
func (l *Local) ReplaceContacts(ctx context.Context, list domain.ContactList) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.engine.DeletePrefix(ctx, []byte(prefixContact)); err != nil {
		return storageErr("clear contacts", err)
	}
	for i, c := range list {
		if err := l.put(ctx, prefixContact+c.ID, contactRecord{Contact: c, Seq: uint64(i + 1)}); err != nil {
			return err
		}
	}
	return l.put(ctx, keyContactSeq, uint64(len(list)))
}

// PutContact appends c to the cached collection, or updates it in place
// when a contact with the same id is already cached.
func (l *Local) PutContact(ctx context.Context, c domain.Contact) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := prefixContact + c.ID
	var existing contactRecord
	found, err := l.get(ctx, key, &existing)
	if err != nil {
		return err
	}
	if found {
		return l.put(ctx, key, contactRecord{Contact: c, Seq: existing.Seq})
	}

	var seq uint64
	if _, err := l.get(ctx, keyContactSeq, &seq); err != nil {
		return err
	}
	seq++
	if err := l.put(ctx, key, contactRecord{Contact: c, Seq: seq}); err != nil {
		return err
	}
	return l.put(ctx, keyContactSeq, seq)
}

// DeleteContact removes the cached contact with id.
// Returns domain.ErrContactNotFound if it is not cached.
func (l *Local) DeleteContact(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := prefixContact + id
	var rec contactRecord
	found, err := l.get(ctx, key, &rec)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrContactNotFound.WithDetails(id)
	}
	return l.del(ctx, key)
}

// ClearContacts removes the cached collection.
func (l *Local) ClearContacts(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.engine.DeletePrefix(ctx, []byte(prefixContact)); err != nil {
		return storageErr("clear contacts", err)
	}
	return l.del(ctx, keyContactSeq)
}

// ============================================================================
// Fallback accounts
// ============================================================================

// CreateAccount stores a fallback-registered account.
// Returns domain.ErrEmailTaken if the email is already registered locally.
func (l *Local) CreateAccount(ctx context.Context, acc *domain.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	emailKey := prefixAccountEmail + domain.NormalizeEmail(acc.User.Email)
	var owner string
	found, err := l.get(ctx, emailKey, &owner)
	if err != nil {
		return err
	}
	if found {
		return domain.ErrEmailTaken.WithDetails(acc.User.Email)
	}

	if err := l.put(ctx, prefixAccount+acc.User.ID, acc); err != nil {
		return err
	}
	if err := l.put(ctx, emailKey, acc.User.ID); err != nil {
		return err
	}
	if acc.TokenHash != "" {
		return l.put(ctx, prefixAccountToken+acc.TokenHash, acc.User.ID)
	}
	return nil
}

func (l *Local) accountByIndex(ctx context.Context, indexKey string) (*domain.Account, error) {
	var id string
	found, err := l.get(ctx, indexKey, &id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrAccountNotFound
	}
	return l.FindAccount(ctx, id)
}

// FindAccount returns the fallback account with user id.
func (l *Local) FindAccount(ctx context.Context, id string) (*domain.Account, error) {
	var acc domain.Account
	found, err := l.get(ctx, prefixAccount+id, &acc)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, domain.ErrAccountNotFound
	}
	return &acc, nil
}

// FindAccountByEmail returns the fallback account registered with email
// (case-insensitive).
func (l *Local) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return l.accountByIndex(ctx, prefixAccountEmail+domain.NormalizeEmail(email))
}

// FindAccountByToken returns the fallback account bound to token.
func (l *Local) FindAccountByToken(ctx context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, domain.ErrAccountNotFound
	}
	return l.accountByIndex(ctx, prefixAccountToken+domain.HashToken(token))
}

// BindAccountToken makes token the credential of the account with userID,
// replacing its previous token.
func (l *Local) BindAccountToken(ctx context.Context, userID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc, err := l.FindAccount(ctx, userID)
	if err != nil {
		return err
	}
	if acc.TokenHash != "" {
		if err := l.del(ctx, prefixAccountToken+acc.TokenHash); err != nil {
			return err
		}
	}
	acc.TokenHash = domain.HashToken(token)
	if err := l.put(ctx, prefixAccount+userID, acc); err != nil {
		return err
	}
	return l.put(ctx, prefixAccountToken+acc.TokenHash, userID)
}

// UpdateAccount replaces a fallback account, moving the email index when
// the email changed. Returns domain.ErrEmailTaken if the new email belongs
// to another account.
func (l *Local) UpdateAccount(ctx context.Context, acc *domain.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, err := l.FindAccount(ctx, acc.User.ID)
	if err != nil {
		return err
	}

	oldEmail := domain.NormalizeEmail(prev.User.Email)
	newEmail := domain.NormalizeEmail(acc.User.Email)
	if oldEmail != newEmail {
		var owner string
		found, err := l.get(ctx, prefixAccountEmail+newEmail, &owner)
		if err != nil {
			return err
		}
		if found && owner != acc.User.ID {
			return domain.ErrEmailTaken.WithDetails(acc.User.Email)
		}
		if err := l.del(ctx, prefixAccountEmail+oldEmail); err != nil {
			return err
		}
		if err := l.put(ctx, prefixAccountEmail+newEmail, acc.User.ID); err != nil {
			return err
		}
	}
	return l.put(ctx, prefixAccount+acc.User.ID, acc)
}

// ============================================================================
// Backup
// ============================================================================

const backupFormat = "phonebook-backup"

type backupHeader struct {
	Format    string    `cbor:"format"`
	Version   int       `cbor:"version"`
	Engine    string    `cbor:"engine"`
	Seal      *sealMeta `cbor:"seal,omitempty"`
	CreatedAt int64     `cbor:"created_at"`
}

// Export writes a backup of the whole store to w: a length-prefixed CBOR
// header followed by the engine snapshot. Sealed values stay sealed.
func (l *Local) Export(ctx context.Context, w io.Writer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hdr, err := marshal(backupHeader{
		Format:    backupFormat,
		Version:   1,
		Engine:    l.engine.Name(),
		Seal:      l.seal,
		CreatedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		return storageErr("encode backup header", err)
	}

	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(hdr)))
	if _, err := w.Write(size[:]); err != nil {
		return storageErr("write backup", err)
	}
	if _, err := w.Write(hdr); err != nil {
		return storageErr("write backup", err)
	}
	if err := l.engine.SaveSnapshot(ctx, w); err != nil {
		return storageErr("snapshot", err)
	}
	return nil
}

// Import replaces the store contents with a backup written by Export.
// The backup must come from the same engine kind, and must be sealed
// exactly when this store is sealed.
func (l *Local) Import(ctx context.Context, r io.Reader) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return storageErr("read backup header", err)
	}
	n := binary.BigEndian.Uint32(size[:])
	if n == 0 || n > 1<<16 {
		return storageErr("read backup header", fmt.Errorf("invalid header length %d", n))
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return storageErr("read backup header", err)
	}
	var hdr backupHeader
	if err := unmarshal(raw, &hdr); err != nil {
		return storageErr("decode backup header", err)
	}

	switch {
	case hdr.Format != backupFormat:
		return storageErr("import", fmt.Errorf("not a phonebook backup (format %q)", hdr.Format))
	case hdr.Engine != l.engine.Name():
		return storageErr("import", fmt.Errorf("backup was written by the %s engine, store uses %s", hdr.Engine, l.engine.Name()))
	case hdr.Seal == nil && l.sealer.sealed():
		return storageErr("import", ErrStoreNotSealed)
	case hdr.Seal != nil && !l.sealer.sealed():
		return storageErr("import", ErrPassphraseNeeded)
	}

	next := sealer(plainSealer{})
	if hdr.Seal != nil {
		s, err := sealerFromMeta([]byte(l.passphrase), hdr.Seal)
		if err != nil {
			return storageErr("import", err)
		}
		next = s
	}

	if err := l.engine.LoadSnapshot(ctx, r); err != nil {
		return storageErr("restore snapshot", err)
	}
	l.sealer = next
	l.seal = hdr.Seal
	l.logger.Info("backup restored", "engine", hdr.Engine, "created_at", time.UnixMilli(hdr.CreatedAt))
	return nil
}

// ============================================================================
// Engine passthrough
// ============================================================================

// EngineName returns the kind of the underlying engine.
func (l *Local) EngineName() string {
	return l.engine.Name()
}

// Sealed reports whether values are sealed at rest.
func (l *Local) Sealed() bool {
	return l.sealer.sealed()
}

// Stats returns engine statistics.
func (l *Local) Stats(ctx context.Context) (*kv.Stats, error) {
	st, err := l.engine.Stats(ctx)
	if err != nil {
		return nil, storageErr("stats", err)
	}
	return st, nil
}

// GC runs engine garbage collection.
func (l *Local) GC(ctx context.Context) (uint64, error) {
	n, err := l.engine.GC(ctx)
	if err != nil {
		return 0, storageErr("gc", err)
	}
	return n, nil
}

// RegisterMetrics registers engine metrics with reg when the engine
// exposes any.
func (l *Local) RegisterMetrics(reg prometheus.Registerer) error {
	if m, ok := l.engine.(interface {
		RegisterMetrics(prometheus.Registerer) error
	}); ok {
		return m.RegisterMetrics(reg)
	}
	return nil
}

// Close closes the engine.
func (l *Local) Close() error {
	if err := l.engine.Close(); err != nil {
		return storageErr("close", err)
	}
	return nil
}

// KeyCounts returns the number of keys per namespace ("session",
// "contact", "account", ...).
func (l *Local) KeyCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := l.engine.Scan(ctx, nil, func(k, _ []byte) bool {
		counts[keyspace(string(k))]++
		return true
	})
	if err != nil {
		return nil, storageErr("scan", err)
	}
	return counts, nil
}

func keyspace(key string) string {
	if i := strings.IndexByte(key, '/'); i > 0 {
		return key[:i]
	}
	return key
}
