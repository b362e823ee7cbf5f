package domain

// State is the authentication state of the client session.
type State string

const (
	// StateAnonymous means no token is held.
	StateAnonymous State = "anonymous"

	// StateRefreshing means a persisted token was found at startup and the
	// first refresh has not resolved yet.
	StateRefreshing State = "refreshing"

	// StateAuthenticated means a token is held and its user was verified.
	StateAuthenticated State = "authenticated"

	// StateUnverified means a token is held, the first refresh resolved,
	// and neither the remote api nor the local store could confirm the
	// identity. The token is kept so a later refresh can retry.
	StateUnverified State = "unverified"
)

// Session is the client's belief about the current identity.
type Session struct {
	User         User         `json:"user"`
	Token        string       `json:"-"`
	IsLoggedIn   bool         `json:"is_logged_in"`
	IsRefreshing bool         `json:"is_refreshing"`
	LastError    *DomainError `json:"last_error,omitempty"`
}

// NewSession returns the initial session for a process that found token
// (possibly empty) in the local store.
func NewSession(token string) Session {
	return Session{
		Token:        token,
		IsRefreshing: token != "",
	}
}

// State derives the state machine position from the session fields.
func (s Session) State() State {
	switch {
	case s.Token == "":
		return StateAnonymous
	case s.IsRefreshing:
		return StateRefreshing
	case s.IsLoggedIn:
		return StateAuthenticated
	default:
		return StateUnverified
	}
}

// HasToken reports whether a token is held.
func (s Session) HasToken() bool {
	return s.Token != ""
}

// Authenticated returns the session after a verified identity fetch.
func (s Session) Authenticated(token string, user User) Session {
	return Session{
		User:       user,
		Token:      token,
		IsLoggedIn: true,
	}
}

// Anonymous returns the logged-out session.
func (s Session) Anonymous() Session {
	return Session{LastError: s.LastError}
}

// Unverified returns the session holding token with no confirmed identity.
func (s Session) Unverified(cause *DomainError) Session {
	return Session{
		Token:     s.Token,
		LastError: cause,
	}
}
