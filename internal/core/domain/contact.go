package domain

import "strings"

// Contact is one entry of the contact book.
type Contact struct {
	// ID is unique and opaque. Server-assigned, or "local-<ulid>" when
	// created while the remote api was unreachable.
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// IsLocal reports whether the contact was created by the local fallback.
func (c Contact) IsLocal() bool {
	return strings.HasPrefix(c.ID, LocalIDPrefix)
}

// NormalizeContactName trims the name and rejects an empty result.
func NormalizeContactName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrContactNameRequired
	}
	return name, nil
}

// ContactList is an ordered contact collection.
// Order is fetch/add order; nothing sorts it.
type ContactList []Contact

// Clone returns an independent copy.
func (l ContactList) Clone() ContactList {
	if l == nil {
		return ContactList{}
	}
	out := make(ContactList, len(l))
	copy(out, l)
	return out
}

// IndexOf returns the position of the contact with id, or -1.
func (l ContactList) IndexOf(id string) int {
	for i, c := range l {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// HasName reports whether a contact with the same name exists,
// ignoring case and surrounding whitespace.
func (l ContactList) HasName(name string) bool {
	name = strings.TrimSpace(name)
	for _, c := range l {
		if strings.EqualFold(strings.TrimSpace(c.Name), name) {
			return true
		}
	}
	return false
}

// Without returns a copy of the list without the contact with id.
func (l ContactList) Without(id string) ContactList {
	out := make(ContactList, 0, len(l))
	for _, c := range l {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

// Filter returns the contacts whose name contains query, case-insensitively.
// An empty query matches everything. The receiver is never modified.
func (l ContactList) Filter(query string) ContactList {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make(ContactList, 0, len(l))
	for _, c := range l {
		if query == "" || strings.Contains(strings.ToLower(c.Name), query) {
			out = append(out, c)
		}
	}
	return out
}
