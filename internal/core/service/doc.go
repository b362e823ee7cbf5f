// Package service holds the client-side state owners of phonebook-cli.
//
//   - SessionManager owns the Session: register, login, logout, refresh
//     and profile updates, plus the decision to invalidate a token.
//   - ContactSynchronizer owns the in-memory contact collection and keeps
//     it consistent with the last successful operation.
//   - Phonebook is the view-facing coordinator over both.
//
// Every operation goes to the remote api first. A failure is classified
// once by the remote client and the per-operation table in policy.go
// decides whether to surface it, invalidate the session, or replay the
// operation against the local store. Only transport failures fall back.
package service
