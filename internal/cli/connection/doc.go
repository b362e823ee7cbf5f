// Package connection is the remote client of phonebook-cli.
//
// It talks to the contacts REST api over HTTP and turns every failure into
// exactly one domain.Kind:
//
//   - http.go: HTTPClient, bearer token, headers, timeout and rate limit
//   - classify.go: Classify, the single response/error classification
//   - api.go: typed endpoints (/users/*, /contacts)
//   - manager.go: online/offline tracking from classified outcomes
//
// Only a transport failure (no HTTP response at all) lets callers fall back
// to the local store. Everything that produced a response is auth,
// validation or server.
package connection
