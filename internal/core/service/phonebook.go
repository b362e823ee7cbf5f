package service

import (
	"context"
	"strings"

	"github.com/jmoanes1/phonebook/internal/core/domain"
)

// Phonebook coordinates the session and the contact collection for a view.
// Every error it returns is a *domain.DomainError.
type Phonebook struct {
	session  *SessionManager
	contacts *ContactSynchronizer
	opts     Options
}

// New builds the session manager and contact synchronizer over remote and
// store. The contact collection is reset whenever the session is cleared
// or the identity changes.
func New(ctx context.Context, remote RemoteAPI, store LocalStore, opts Options) (*Phonebook, error) {
	opts = opts.withDefaults()
	session, err := NewSessionManager(ctx, remote, store, opts)
	if err != nil {
		return nil, err
	}
	contacts := NewContactSynchronizer(remote, store, session, opts)

	session.OnInvalidate(func(ctx context.Context) {
		if err := contacts.Reset(ctx); err != nil {
			opts.Logger.WithContext(ctx).Warn("reset contacts", "error", err)
		}
	})

	return &Phonebook{
		session:  session,
		contacts: contacts,
		opts:     opts,
	}, nil
}

// SessionManager returns the underlying session manager.
func (p *Phonebook) SessionManager() *SessionManager { return p.session }

// Synchronizer returns the underlying contact synchronizer.
func (p *Phonebook) Synchronizer() *ContactSynchronizer { return p.contacts }

// Start resolves the persisted session and, when logged in, loads contacts.
// Only a refresh failure is returned; a failed load leaves the session as
// it is and Synchronizer().Loaded() false.
func (p *Phonebook) Start(ctx context.Context) error {
	if err := p.session.Refresh(ctx); err != nil {
		return domainErr(err)
	}
	if p.session.IsLoggedIn() {
		p.loadContacts(ctx, "load contacts at start")
	}
	return nil
}

// Session returns a copy of the current session.
func (p *Phonebook) Session() domain.Session {
	return p.session.Session()
}

// Register creates an account, logs it in and loads its contacts.
func (p *Phonebook) Register(ctx context.Context, name, email, password string) (domain.User, error) {
	user, err := p.session.Register(ctx, domain.Credentials{Name: name, Email: email, Password: password})
	if err != nil {
		return domain.User{}, domainErr(err)
	}
	p.loadContacts(ctx, "load contacts after login")
	return user, nil
}

// Login logs in and loads the user's contacts.
func (p *Phonebook) Login(ctx context.Context, email, password string) (domain.User, error) {
	user, err := p.session.Login(ctx, domain.Credentials{Email: email, Password: password})
	if err != nil {
		return domain.User{}, domainErr(err)
	}
	p.loadContacts(ctx, "load contacts after login")
	return user, nil
}

// loadContacts lists contacts; a failure does not undo the session.
func (p *Phonebook) loadContacts(ctx context.Context, msg string) {
	if _, err := p.contacts.List(ctx); err != nil {
		p.opts.Logger.WithContext(ctx).Warn(msg, "error", err)
	}
}

// Logout clears the session and the contact collection.
func (p *Phonebook) Logout(ctx context.Context) error {
	return domainErr(p.session.Logout(ctx))
}

// UpdateProfile changes the current user's profile.
func (p *Phonebook) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (domain.User, error) {
	user, err := p.session.UpdateProfile(ctx, update)
	return user, domainErr(err)
}

// SyncContacts reloads the collection.
func (p *Phonebook) SyncContacts(ctx context.Context) (domain.ContactList, error) {
	list, err := p.contacts.List(ctx)
	if err != nil {
		return nil, domainErr(err)
	}
	return list, nil
}

// Contacts returns the collection filtered by name. An empty filter
// returns every contact.
func (p *Phonebook) Contacts(filter string) domain.ContactList {
	return p.contacts.Filter(filter)
}

// AddContact trims name, rejects an empty name or one already in the
// collection (ignoring case), and adds the contact.
func (p *Phonebook) AddContact(ctx context.Context, name, number string) (domain.Contact, error) {
	name, err := domain.NormalizeContactName(name)
	if err != nil {
		return domain.Contact{}, domainErr(err)
	}
	if p.contacts.Contacts().HasName(name) {
		return domain.Contact{}, domain.ErrContactExists.WithDetails(name)
	}
	c, err := p.contacts.Add(ctx, name, strings.TrimSpace(number))
	if err != nil {
		return domain.Contact{}, domainErr(err)
	}
	return c, nil
}

// DeleteContact removes the contact with id.
func (p *Phonebook) DeleteContact(ctx context.Context, id string) error {
	return domainErr(p.contacts.Delete(ctx, strings.TrimSpace(id)))
}
