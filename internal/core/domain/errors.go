package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by what the caller is allowed to do about it.
//
// Every error that leaves the remote client carries exactly one Kind.
type Kind string

const (
	// KindAuth means the credentials are missing, invalid or expired.
	// An existing session is invalidated.
	KindAuth Kind = "auth"

	// KindValidation means the server (or local validation) rejected the
	// input. Never retried, never falls back to the local store.
	KindValidation Kind = "validation"

	// KindTransport means no HTTP response was received. This is the only
	// kind that triggers the local store fallback.
	KindTransport Kind = "transport"

	// KindServer means the server failed internally. Surfaced, no fallback.
	KindServer Kind = "server"

	// KindStorage means the local store failed.
	KindStorage Kind = "storage"
)

// DomainError represents a classified error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "PB-CONT-4040")
	Kind    Kind   // Failure class
	Status  int    // HTTP status when the error came from a response, 0 otherwise
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code, kind and message.
func NewDomainError(code string, kind Kind, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

func (e *DomainError) clone() *DomainError {
	c := *e
	return &c
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := e.clone()
	c.Details = details
	return c
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithStatus returns a copy of the error carrying an HTTP status.
func (e *DomainError) WithStatus(status int) *DomainError {
	c := e.clone()
	c.Status = status
	return c
}

// WithMessage returns a copy of the error with the message replaced.
// Used to surface server-provided messages verbatim.
func (e *DomainError) WithMessage(message string) *DomainError {
	if message == "" {
		return e
	}
	c := e.clone()
	c.Message = message
	return c
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// KindOf returns the Kind of err, or "" for nil and unclassified errors.
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// AsDomainError returns err as a *DomainError. Unclassified errors are
// wrapped in ErrInternal so callers never see raw errors.
func AsDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de
	}
	return ErrInternal.WithCause(err).WithDetails(err.Error())
}

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrUnauthorized indicates the server rejected the bearer token or credentials.
	ErrUnauthorized = NewDomainError("PB-AUTH-4010", KindAuth, "unauthorized")

	// ErrInvalidCredentials indicates no account matches the given email.
	ErrInvalidCredentials = NewDomainError("PB-AUTH-4011", KindAuth, "invalid email or password")

	// ErrTokenExpired indicates the stored token carries an expiry in the past.
	ErrTokenExpired = NewDomainError("PB-AUTH-4012", KindAuth, "token expired")

	// ErrNotAuthenticated indicates the operation requires a logged-in session.
	ErrNotAuthenticated = NewDomainError("PB-AUTH-4013", KindAuth, "not logged in")

	// ErrIdentityUnverified indicates a token is held but no identity could be confirmed.
	ErrIdentityUnverified = NewDomainError("PB-AUTH-4014", KindAuth, "session could not be verified")
)

// ============================================================================
// Validation Errors (VAL / USER / CONT)
// ============================================================================

var (
	// ErrBadRequest indicates the server rejected the request input.
	ErrBadRequest = NewDomainError("PB-VAL-4000", KindValidation, "bad request")

	// ErrNotFound indicates the server could not find the resource.
	ErrNotFound = NewDomainError("PB-VAL-4040", KindValidation, "not found")

	// ErrConflict indicates the request conflicts with existing state.
	ErrConflict = NewDomainError("PB-VAL-4090", KindValidation, "conflict")

	// ErrRejected indicates any other 4xx rejection.
	ErrRejected = NewDomainError("PB-VAL-4001", KindValidation, "request rejected")

	// ErrInvalidRequest indicates a request could not be built, usually
	// because server.url is malformed. Nothing was sent.
	ErrInvalidRequest = NewDomainError("PB-VAL-4002", KindValidation, "invalid request")

	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = NewDomainError("PB-USER-4090", KindValidation, "email already registered")

	// ErrAccountNotFound indicates no fallback account matches the lookup.
	ErrAccountNotFound = NewDomainError("PB-USER-4040", KindValidation, "account not found")

	// ErrUserValidation indicates user input failed validation.
	ErrUserValidation = NewDomainError("PB-USER-4001", KindValidation, "user validation failed")

	// ErrContactNotFound indicates the contact does not exist.
	ErrContactNotFound = NewDomainError("PB-CONT-4040", KindValidation, "contact not found")

	// ErrContactNameRequired indicates an empty (after trim) contact name.
	ErrContactNameRequired = NewDomainError("PB-CONT-4001", KindValidation, "contact name is required")

	// ErrContactExists indicates a contact with the same name (case-insensitive) exists.
	ErrContactExists = NewDomainError("PB-CONT-4090", KindValidation, "contact already exists")
)

// ============================================================================
// Transport / Server / Storage Errors
// ============================================================================

var (
	// ErrTransport indicates no HTTP response was received.
	ErrTransport = NewDomainError("PB-NET-5030", KindTransport, "remote api unreachable")

	// ErrServer indicates the server failed internally.
	ErrServer = NewDomainError("PB-SRV-5000", KindServer, "remote server error")

	// ErrMalformedResponse indicates a 2xx response with an undecodable body.
	ErrMalformedResponse = NewDomainError("PB-SRV-5020", KindServer, "malformed response from remote api")

	// ErrStorage indicates a local store failure.
	ErrStorage = NewDomainError("PB-STORE-5001", KindStorage, "local store error")

	// ErrInternal indicates an unclassified internal failure.
	ErrInternal = NewDomainError("PB-SYS-5000", KindStorage, "internal error")
)
