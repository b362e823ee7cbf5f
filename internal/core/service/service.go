package service

import (
	"context"
	"time"

	"github.com/jmoanes1/phonebook/internal/core/domain"
	"github.com/jmoanes1/phonebook/internal/telemetry/logger"
)

// RemoteAPI is the remote contacts api as seen by the service layer.
// Every error it returns is a classified *domain.DomainError.
type RemoteAPI interface {
	SetToken(token string)
	Signup(ctx context.Context, cred domain.Credentials) (domain.User, string, error)
	Login(ctx context.Context, cred domain.Credentials) (domain.User, string, error)
	Logout(ctx context.Context, token string) error
	CurrentUser(ctx context.Context) (domain.User, error)
	UpdateUser(ctx context.Context, update domain.ProfileUpdate) (domain.User, error)
	ListContacts(ctx context.Context) (domain.ContactList, error)
	CreateContact(ctx context.Context, name, number string) (domain.Contact, error)
	DeleteContact(ctx context.Context, id string) error
}

// SessionStore persists the session and the fallback accounts.
type SessionStore interface {
	LoadToken(ctx context.Context) (string, error)
	SaveToken(ctx context.Context, token string) error
	LoadUser(ctx context.Context) (domain.User, string, error)
	SaveUser(ctx context.Context, u domain.User, token string) error
	ClearSession(ctx context.Context) error

	CreateAccount(ctx context.Context, acc *domain.Account) error
	FindAccount(ctx context.Context, id string) (*domain.Account, error)
	FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindAccountByToken(ctx context.Context, token string) (*domain.Account, error)
	BindAccountToken(ctx context.Context, userID, token string) error
	UpdateAccount(ctx context.Context, acc *domain.Account) error
}

// ContactStore persists the cached contact collection.
type ContactStore interface {
	LoadContacts(ctx context.Context) (domain.ContactList, error)
	ReplaceContacts(ctx context.Context, list domain.ContactList) error
	PutContact(ctx context.Context, c domain.Contact) error
	DeleteContact(ctx context.Context, id string) error
	ClearContacts(ctx context.Context) error
}

// LocalStore is the full local store. *storage.Local implements it.
type LocalStore interface {
	SessionStore
	ContactStore
}

// Recorder receives service metrics. *metric.Registry implements it.
type Recorder interface {
	RecordFallback(operation string)
	SetSessionState(state string)
	SetCachedContacts(n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordFallback(string) {}
func (nopRecorder) SetSessionState(string) {}
func (nopRecorder) SetCachedContacts(int)  {}

// Options configures the service layer.
type Options struct {
	// DisableFallback surfaces transport failures instead of replaying
	// the operation against the local store.
	DisableFallback bool

	// VerifyPassword makes fallback login check the stored password hash.
	// By default any password is accepted for a known email.
	VerifyPassword bool

	Recorder Recorder
	Logger   logger.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Recorder == nil {
		o.Recorder = nopRecorder{}
	}
	if o.Logger == nil {
		o.Logger = logger.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// domainErr normalizes err for callers above the service layer.
// A nil err stays nil.
func domainErr(err error) error {
	if err == nil {
		return nil
	}
	return domain.AsDomainError(err)
}
