package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jmoanes1/phonebook/internal/core/domain"
)

// SessionManager owns the client session.
//
// Operations are serialized by opMu. mu only guards the session value so
// reads never wait on a remote call. Listeners run with no lock held.
type SessionManager struct {
	remote RemoteAPI
	store  SessionStore
	opts   Options
	policy decider

	opMu sync.Mutex

	mu      sync.RWMutex
	session domain.Session

	lmu       sync.Mutex
	listeners []func(ctx context.Context)
}

// NewSessionManager loads the persisted token and returns a manager in the
// refreshing state when one was found, anonymous otherwise.
// Refresh must be called to resolve a refreshing session.
func NewSessionManager(ctx context.Context, remote RemoteAPI, store SessionStore, opts Options) (*SessionManager, error) {
	opts = opts.withDefaults()
	token, err := store.LoadToken(ctx)
	if err != nil {
		return nil, domainErr(err)
	}
	m := &SessionManager{
		remote: remote,
		store:  store,
		opts:   opts,
		policy: decider{fallback: !opts.DisableFallback},
	}
	m.set(domain.NewSession(token))
	return m, nil
}

// OnInvalidate registers fn to run after the session is cleared or the
// identity changes. fn must not call back into the SessionManager's
// mutating operations.
func (m *SessionManager) OnInvalidate(fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	m.lmu.Lock()
	m.listeners = append(m.listeners, fn)
	m.lmu.Unlock()
}

func (m *SessionManager) notify(ctx context.Context) {
	m.lmu.Lock()
	fns := make([]func(context.Context), len(m.listeners))
	copy(fns, m.listeners)
	m.lmu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
}

func (m *SessionManager) set(s domain.Session) {
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	m.remote.SetToken(s.Token)
	m.opts.Recorder.SetSessionState(string(s.State()))
}

// Session returns a copy of the current session.
func (m *SessionManager) Session() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// State returns the current session state.
func (m *SessionManager) State() domain.State {
	return m.Session().State()
}

// IsLoggedIn reports whether the session holds a verified identity.
func (m *SessionManager) IsLoggedIn() bool {
	return m.Session().IsLoggedIn
}

// Token returns the current bearer token, or "".
func (m *SessionManager) Token() string {
	return m.Session().Token
}

// User returns the current user, or the zero User.
func (m *SessionManager) User() domain.User {
	return m.Session().User
}

// Refresh resolves the persisted token into an identity.
//
// With no token the session becomes anonymous without a network call. An
// auth failure or an expired token clears the session, keeps the cause in
// Session().LastError and returns nil. A transport failure looks the
// identity up in the local store by token; when that fails too the token is
// kept and the session is unverified. Server and validation failures leave
// the session unverified and are returned.
func (m *SessionManager) Refresh(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	cur := m.Session()
	if !cur.HasToken() {
		m.set(cur.Anonymous())
		return nil
	}
	log := m.opts.Logger.WithContext(ctx)

	if domain.TokenExpired(cur.Token, m.opts.Now()) {
		log.Info("persisted token expired", "operation", OpRefresh)
		_ = m.invalidate(ctx, domain.ErrTokenExpired)
		return nil
	}

	user, err := m.remote.CurrentUser(ctx)
	if err == nil {
		return m.establish(ctx, cur, user, cur.Token)
	}

	switch m.policy.decide(OpRefresh, err) {
	case ActionInvalidate:
		log.Info("persisted token rejected", "operation", OpRefresh, "code", domain.GetErrorCode(err))
		_ = m.invalidate(ctx, err)
		return nil

	case ActionFallback:
		m.opts.Recorder.RecordFallback(string(OpRefresh))
		if user, ok := m.lookupLocal(ctx, cur.Token); ok {
			log.Info("identity restored from local store", "operation", OpRefresh, "user_id", user.ID)
			m.set(cur.Authenticated(cur.Token, user))
			return nil
		}
		log.Warn("identity unverified, keeping token", "operation", OpRefresh, "error", err)
		m.set(cur.Unverified(domain.ErrIdentityUnverified.WithCause(err)))
		return nil

	default:
		de := domain.AsDomainError(err)
		m.set(cur.Unverified(de))
		return de
	}
}

// lookupLocal finds the identity behind token in the local store: the
// cached user saved with the same token, then a fallback account.
func (m *SessionManager) lookupLocal(ctx context.Context, token string) (domain.User, bool) {
	log := m.opts.Logger.WithContext(ctx)

	user, cachedFor, err := m.store.LoadUser(ctx)
	if err != nil {
		log.Warn("load cached user", "error", err)
	} else if !user.IsZero() && cachedFor == token {
		return user, true
	}

	acc, err := m.store.FindAccountByToken(ctx, token)
	if err != nil {
		if !errors.Is(err, domain.ErrAccountNotFound) {
			log.Warn("find account by token", "error", err)
		}
		return domain.User{}, false
	}
	return acc.User, true
}

// Register creates an account and logs it in.
// A transport failure registers the account in the local store instead.
func (m *SessionManager) Register(ctx context.Context, cred domain.Credentials) (domain.User, error) {
	if err := cred.ValidateRegistration(); err != nil {
		return domain.User{}, domainErr(err)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	user, token, err := m.remote.Signup(ctx, cred)
	if err != nil {
		if m.policy.decide(OpRegister, err) != ActionFallback {
			return domain.User{}, domainErr(err)
		}
		m.opts.Recorder.RecordFallback(string(OpRegister))
		m.opts.Logger.WithContext(ctx).Info("remote api unreachable, registering locally",
			"operation", OpRegister, "error", err)

		user, token, err = m.registerLocal(ctx, cred)
		if err != nil {
			return domain.User{}, domainErr(err)
		}
	}

	if err := m.establish(ctx, m.Session(), user, token); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (m *SessionManager) registerLocal(ctx context.Context, cred domain.Credentials) (domain.User, string, error) {
	id, err := domain.NewLocalID()
	if err != nil {
		return domain.User{}, "", err
	}
	user := domain.User{
		ID:    id,
		Name:  strings.TrimSpace(cred.Name),
		Email: strings.TrimSpace(cred.Email),
	}
	acc, err := domain.NewAccount(user, cred.Password, m.opts.Now().UnixMilli())
	if err != nil {
		return domain.User{}, "", err
	}
	token, hash, err := domain.GenerateLocalToken()
	if err != nil {
		return domain.User{}, "", err
	}
	acc.TokenHash = hash

	if err := m.store.CreateAccount(ctx, acc); err != nil {
		return domain.User{}, "", err
	}
	return user, token, nil
}

// Login authenticates with email and password.
// A transport failure logs in against the local store accounts instead.
func (m *SessionManager) Login(ctx context.Context, cred domain.Credentials) (domain.User, error) {
	if err := cred.ValidateLogin(); err != nil {
		return domain.User{}, domainErr(err)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	user, token, err := m.remote.Login(ctx, cred)
	if err != nil {
		if m.policy.decide(OpLogin, err) != ActionFallback {
			return domain.User{}, domainErr(err)
		}
		m.opts.Recorder.RecordFallback(string(OpLogin))
		m.opts.Logger.WithContext(ctx).Info("remote api unreachable, logging in locally",
			"operation", OpLogin, "error", err)

		user, token, err = m.loginLocal(ctx, cred)
		if err != nil {
			return domain.User{}, domainErr(err)
		}
	}

	if err := m.establish(ctx, m.Session(), user, token); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// loginLocal accepts any password for a known email unless
// Options.VerifyPassword is set.
func (m *SessionManager) loginLocal(ctx context.Context, cred domain.Credentials) (domain.User, string, error) {
	acc, err := m.store.FindAccountByEmail(ctx, cred.Email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return domain.User{}, "", domain.ErrInvalidCredentials.WithDetails("no local account for this email")
	}
	if err != nil {
		return domain.User{}, "", err
	}
	if m.opts.VerifyPassword && !acc.VerifyPassword(cred.Password) {
		return domain.User{}, "", domain.ErrInvalidCredentials
	}

	token, _, err := domain.GenerateLocalToken()
	if err != nil {
		return domain.User{}, "", err
	}
	if err := m.store.BindAccountToken(ctx, acc.User.ID, token); err != nil {
		return domain.User{}, "", err
	}
	return acc.User, token, nil
}

// establish persists token and user and marks the session authenticated.
// Listeners are notified when a different identity replaces prev.
func (m *SessionManager) establish(ctx context.Context, prev domain.Session, user domain.User, token string) error {
	switched := m.switched(ctx, prev, user)

	if err := m.store.SaveToken(ctx, token); err != nil {
		return domainErr(err)
	}
	if err := m.store.SaveUser(ctx, user, token); err != nil {
		return domainErr(err)
	}
	m.set(prev.Authenticated(token, user))

	if switched {
		m.opts.Logger.WithContext(ctx).Debug("identity changed", "user_id", user.ID)
		m.notify(ctx)
	}
	return nil
}

// switched reports whether prev belonged to an identity other than user.
// An unverified prev is compared against the cached user.
func (m *SessionManager) switched(ctx context.Context, prev domain.Session, user domain.User) bool {
	known := prev.User
	if known.IsZero() {
		if !prev.HasToken() {
			return false
		}
		cached, _, err := m.store.LoadUser(ctx)
		if err != nil || cached.IsZero() {
			return false
		}
		known = cached
	}
	return known.ID != user.ID
}

// Logout clears the session locally first, then tells the remote api on a
// best-effort basis. The local clear always applies; only a local store
// failure is returned.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	prev := m.Session()
	log := m.opts.Logger.WithContext(ctx)

	clearErr := m.store.ClearSession(ctx)
	if clearErr != nil {
		log.Warn("clear persisted session", "error", clearErr)
	}
	m.set(domain.Session{})
	m.notify(ctx)

	if prev.HasToken() && !domain.IsLocalToken(prev.Token) {
		if err := m.remote.Logout(ctx, prev.Token); err != nil {
			// Every kind is ignored for logout.
			log.Debug("remote logout failed", "action", m.policy.decide(OpLogout, err), "error", err)
		}
	}
	return domainErr(clearErr)
}

// UpdateProfile changes the current user's profile.
// A transport failure applies the update to the cached user and, when the
// user was registered locally, to its fallback account.
func (m *SessionManager) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (domain.User, error) {
	if err := update.Validate(); err != nil {
		return domain.User{}, domainErr(err)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	cur := m.Session()
	if !cur.IsLoggedIn {
		return domain.User{}, domain.ErrNotAuthenticated
	}

	user, err := m.remote.UpdateUser(ctx, update)
	if err != nil {
		switch m.policy.decide(OpUpdateProfile, err) {
		case ActionInvalidate:
			_ = m.invalidate(ctx, err)
			return domain.User{}, domainErr(err)
		case ActionFallback:
			m.opts.Recorder.RecordFallback(string(OpUpdateProfile))
			m.opts.Logger.WithContext(ctx).Info("remote api unreachable, updating profile locally",
				"operation", OpUpdateProfile, "error", err)
			user, err = m.updateLocal(ctx, cur.User, update)
			if err != nil {
				return domain.User{}, domainErr(err)
			}
		default:
			return domain.User{}, domainErr(err)
		}
	}

	if err := m.store.SaveUser(ctx, user, cur.Token); err != nil {
		return domain.User{}, domainErr(err)
	}
	m.set(cur.Authenticated(cur.Token, user))
	return user, nil
}

func (m *SessionManager) updateLocal(ctx context.Context, current domain.User, update domain.ProfileUpdate) (domain.User, error) {
	user := update.Apply(current)

	acc, err := m.store.FindAccount(ctx, current.ID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return user, nil
	}
	if err != nil {
		return domain.User{}, err
	}
	acc.User = user
	if update.Password != nil {
		acc.SetPassword(*update.Password)
	}
	if err := m.store.UpdateAccount(ctx, acc); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// Invalidate clears the session after cause, an auth failure of an
// authenticated call, and notifies listeners. It returns cause normalized.
func (m *SessionManager) Invalidate(ctx context.Context, cause error) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.invalidate(ctx, cause)
}

func (m *SessionManager) invalidate(ctx context.Context, cause error) error {
	de := domain.AsDomainError(cause)
	if err := m.store.ClearSession(ctx); err != nil {
		m.opts.Logger.WithContext(ctx).Warn("clear persisted session", "error", err)
	}
	m.set(domain.Session{LastError: de})
	m.notify(ctx)
	return de
}
