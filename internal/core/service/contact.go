package service

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/jmoanes1/phonebook/internal/core/domain"
)

// Gate is the part of the session the contact synchronizer depends on.
// *SessionManager implements it.
type Gate interface {
	IsLoggedIn() bool
	Invalidate(ctx context.Context, cause error) error
}

// ContactSynchronizer owns the in-memory contact collection.
//
// The remote api is the source of truth: a successful list replaces the
// collection wholesale. The local store holds the last known collection and
// serves it, and local mutations, while the remote api is unreachable.
type ContactSynchronizer struct {
	remote RemoteAPI
	store  ContactStore
	gate   Gate
	opts   Options
	policy decider

	opMu sync.Mutex

	mu       sync.RWMutex
	contacts domain.ContactList
	loaded   bool
}

// NewContactSynchronizer returns a synchronizer with an empty collection.
func NewContactSynchronizer(remote RemoteAPI, store ContactStore, gate Gate, opts Options) *ContactSynchronizer {
	opts = opts.withDefaults()
	return &ContactSynchronizer{
		remote:   remote,
		store:    store,
		gate:     gate,
		opts:     opts,
		policy:   decider{fallback: !opts.DisableFallback},
		contacts: domain.ContactList{},
	}
}

// Contacts returns a copy of the collection.
func (s *ContactSynchronizer) Contacts() domain.ContactList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contacts.Clone()
}

// Filter returns the contacts whose name contains query, ignoring case.
// The collection is not modified.
func (s *ContactSynchronizer) Filter(query string) domain.ContactList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contacts.Filter(query)
}

// Loaded reports whether a list has succeeded since the last reset.
func (s *ContactSynchronizer) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *ContactSynchronizer) replace(list domain.ContactList, loaded bool) {
	s.mu.Lock()
	s.contacts = list.Clone()
	s.loaded = loaded
	n := len(s.contacts)
	s.mu.Unlock()
	s.opts.Recorder.SetCachedContacts(n)
}

func (s *ContactSynchronizer) push(c domain.Contact) {
	s.mu.Lock()
	s.contacts = append(s.contacts, c)
	n := len(s.contacts)
	s.mu.Unlock()
	s.opts.Recorder.SetCachedContacts(n)
}

func (s *ContactSynchronizer) remove(id string) {
	s.mu.Lock()
	s.contacts = s.contacts.Without(id)
	n := len(s.contacts)
	s.mu.Unlock()
	s.opts.Recorder.SetCachedContacts(n)
}

// Reset empties the collection and the cached copy.
// It does not wait for an operation in flight.
func (s *ContactSynchronizer) Reset(ctx context.Context) error {
	s.replace(nil, false)
	return domainErr(s.store.ClearContacts(ctx))
}

// failed applies the policy for a remote failure of op. It returns the
// error to surface, or nil when the caller should fall back.
func (s *ContactSynchronizer) failed(ctx context.Context, op Operation, err error) error {
	switch s.policy.decide(op, err) {
	case ActionInvalidate:
		return s.gate.Invalidate(ctx, err)
	case ActionFallback:
		s.opts.Recorder.RecordFallback(string(op))
		s.opts.Logger.WithContext(ctx).Info("remote api unreachable, using local store",
			"operation", op, "error", err)
		return nil
	default:
		return domainErr(err)
	}
}

// List fetches the collection. A transport failure serves the cached copy.
func (s *ContactSynchronizer) List(ctx context.Context) (domain.ContactList, error) {
	if !s.gate.IsLoggedIn() {
		return nil, domain.ErrNotAuthenticated
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	list, err := s.remote.ListContacts(ctx)
	if err != nil {
		if err := s.failed(ctx, OpListContacts, err); err != nil {
			return nil, err
		}
		cached, err := s.store.LoadContacts(ctx)
		if err != nil {
			return nil, domainErr(err)
		}
		s.replace(cached, true)
		return cached.Clone(), nil
	}

	s.replace(list, true)
	if err := s.store.ReplaceContacts(ctx, list); err != nil {
		s.opts.Logger.WithContext(ctx).Warn("cache contacts", "count", len(list), "error", err)
	}
	return list.Clone(), nil
}

// Add creates a contact. name is used as given; the caller validates it.
// A transport failure stores the contact locally under a local- id.
func (s *ContactSynchronizer) Add(ctx context.Context, name, number string) (domain.Contact, error) {
	if !s.gate.IsLoggedIn() {
		return domain.Contact{}, domain.ErrNotAuthenticated
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	created, err := s.remote.CreateContact(ctx, name, number)
	if err != nil {
		if err := s.failed(ctx, OpAddContact, err); err != nil {
			return domain.Contact{}, err
		}
		id, err := domain.NewLocalID()
		if err != nil {
			return domain.Contact{}, domainErr(err)
		}
		created = domain.Contact{ID: id, Name: name, Number: number}
		if err := s.store.PutContact(ctx, created); err != nil {
			return domain.Contact{}, domainErr(err)
		}
		s.push(created)
		return created, nil
	}

	if err := s.store.PutContact(ctx, created); err != nil {
		s.opts.Logger.WithContext(ctx).Warn("cache contact", "contact_id", created.ID, "error", err)
	}
	s.push(created)
	return created, nil
}

// Delete removes the contact with id.
//
// A remote 404 is returned as domain.ErrContactNotFound and nothing changes.
// A transport failure deletes from the local store. Contacts with a local-
// id were never seen by the remote api and are only deleted locally.
func (s *ContactSynchronizer) Delete(ctx context.Context, id string) error {
	if !s.gate.IsLoggedIn() {
		return domain.ErrNotAuthenticated
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if (domain.Contact{ID: id}).IsLocal() {
		return s.deleteLocal(ctx, id)
	}

	err := s.remote.DeleteContact(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrContactNotFound.WithStatus(http.StatusNotFound).WithDetails(id).WithCause(err)
		}
		if err := s.failed(ctx, OpDeleteContact, err); err != nil {
			return err
		}
		return s.deleteLocal(ctx, id)
	}

	s.remove(id)
	if err := s.store.DeleteContact(ctx, id); err != nil && !errors.Is(err, domain.ErrContactNotFound) {
		s.opts.Logger.WithContext(ctx).Warn("uncache contact", "contact_id", id, "error", err)
	}
	return nil
}

func (s *ContactSynchronizer) deleteLocal(ctx context.Context, id string) error {
	if err := s.store.DeleteContact(ctx, id); err != nil {
		return domainErr(err)
	}
	s.remove(id)
	return nil
}
