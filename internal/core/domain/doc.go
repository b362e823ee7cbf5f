// Package domain defines the core domain models for the phonebook client.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - Session: the client's belief about the current identity and its State
//   - User, Credentials, ProfileUpdate: identity and its inputs
//   - Contact, ContactList: the contact collection and its pure filter
//   - Account: users registered through the local store fallback
//   - Token: locally issued tokens, hashes and JWT expiry inspection
//   - Errors: the classified error taxonomy (auth, validation, transport,
//     server, storage)
package domain
