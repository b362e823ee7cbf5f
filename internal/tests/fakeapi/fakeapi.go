// Package fakeapi is an in-process contacts REST api for tests.
//
// It implements the /users and /contacts endpoints consumed by the remote
// client with in-memory state, and can be switched "down" to simulate an
// unreachable server: connections are then accepted and closed without a
// response.
package fakeapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jmoanes1/phonebook/internal/core/domain"
)

type account struct {
	user     domain.User
	password string
}

// Server is a fake contacts api. All methods are safe for concurrent use.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]*account           // by lower email
	tokens   map[string]string             // token -> lower email
	contacts map[string]domain.ContactList // lower email -> contacts
	forced   map[string]int                // "METHOD /path" -> status
	down     bool
	nextID   int
	requests int
	hits     map[string]int // "METHOD /path" -> requests
}

// New starts a fake api. Callers Close it.
func New() *Server {
	s := &Server{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		contacts: make(map[string]domain.ContactList),
		forced:   make(map[string]int),
		hits:     make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/signup", s.signup)
	mux.HandleFunc("POST /users/login", s.login)
	mux.HandleFunc("POST /users/logout", s.authed(s.logout))
	mux.HandleFunc("GET /users/current", s.authed(s.current))
	mux.HandleFunc("PATCH /users", s.authed(s.updateUser))
	mux.HandleFunc("GET /contacts", s.authed(s.listContacts))
	mux.HandleFunc("POST /contacts", s.authed(s.createContact))
	mux.HandleFunc("DELETE /contacts/{id}", s.authed(s.deleteContact))

	s.Server = httptest.NewServer(s.intercept(mux))
	return s
}

// SetDown makes the server drop every connection without a response.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

// Force makes method+path answer with status until cleared with status 0.
func (s *Server) Force(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	if status == 0 {
		delete(s.forced, key)
		return
	}
	s.forced[key] = status
}

// RevokeTokens invalidates every issued token.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	s.tokens = make(map[string]string)
	s.mu.Unlock()
}

// Requests returns the number of requests that reached the server,
// including dropped ones.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Hits returns the number of requests for method+path.
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

// Seed registers an account directly and returns a valid token for it.
func (s *Server) Seed(name, email, password string) (domain.User, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.createAccountLocked(name, email, password)
	return u, s.issueLocked(u.Email)
}

// Contacts returns the server-side contacts of email.
func (s *Server) Contacts(email string) domain.ContactList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contacts[domain.NormalizeEmail(email)].Clone()
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		s.hits[r.Method+" "+r.URL.Path]++
		down := s.down
		status := s.forced[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		if down {
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			panic(http.ErrAbortHandler)
		}
		if status != 0 {
			writeError(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type handlerWithUser func(w http.ResponseWriter, r *http.Request, email, token string)

func (s *Server) authed(h handlerWithUser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		s.mu.Lock()
		email, ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Not authorized")
			return
		}
		h(w, r, email, token)
	}
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var body domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(body.Name) == "" || strings.TrimSpace(body.Email) == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "name, email and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[domain.NormalizeEmail(body.Email)]; exists {
		writeError(w, http.StatusConflict, "Email in use")
		return
	}
	u := s.createAccountLocked(body.Name, body.Email, body.Password)
	writeJSON(w, http.StatusCreated, map[string]any{"user": u, "token": s.issueLocked(u.Email)})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[domain.NormalizeEmail(body.Email)]
	if !ok || acc.password != body.Password {
		writeError(w, http.StatusUnauthorized, "Email or password is wrong")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": acc.user, "token": s.issueLocked(acc.user.Email)})
}

func (s *Server) logout(w http.ResponseWriter, _ *http.Request, _, token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) current(w http.ResponseWriter, _ *http.Request, email, _ string) {
	s.mu.Lock()
	u := s.accounts[email].user
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request, email, _ string) {
	var body domain.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[email]
	if body.Email != nil {
		next := domain.NormalizeEmail(*body.Email)
		if other, exists := s.accounts[next]; exists && other != acc {
			writeError(w, http.StatusConflict, "Email in use")
			return
		}
		if next != email {
			delete(s.accounts, email)
			s.accounts[next] = acc
			s.contacts[next] = s.contacts[email]
			delete(s.contacts, email)
			for tok, e := range s.tokens {
				if e == email {
					s.tokens[tok] = next
				}
			}
		}
	}
	if body.Password != nil {
		acc.password = *body.Password
	}
	acc.user = body.Apply(acc.user)
	writeJSON(w, http.StatusOK, acc.user)
}

func (s *Server) listContacts(w http.ResponseWriter, _ *http.Request, email, _ string) {
	s.mu.Lock()
	list := s.contacts[email].Clone()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createContact(w http.ResponseWriter, r *http.Request, email, _ string) {
	var body domain.Contact
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c := domain.Contact{ID: "c" + strconv.Itoa(s.nextID), Name: body.Name, Number: body.Number}
	s.contacts[email] = append(s.contacts[email], c)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) deleteContact(w http.ResponseWriter, r *http.Request, email, _ string) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.contacts[email]
	if list.IndexOf(id) < 0 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	s.contacts[email] = list.Without(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createAccountLocked(name, email, password string) domain.User {
	s.nextID++
	u := domain.User{ID: "u" + strconv.Itoa(s.nextID), Name: name, Email: email}
	s.accounts[domain.NormalizeEmail(email)] = &account{user: u, password: password}
	return u
}

func (s *Server) issueLocked(email string) string {
	token := "fake-" + uuid.NewString()
	s.tokens[token] = domain.NormalizeEmail(email)
	return token
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
