package connection

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jmoanes1/phonebook/internal/core/domain"
)

// API paths.
const (
	PathSignup      = "/users/signup"
	PathLogin       = "/users/login"
	PathLogout      = "/users/logout"
	PathCurrentUser = "/users/current"
	PathUsers       = "/users"
	PathContacts    = "/contacts"
)

type authResponse struct {
	User  domain.User `json:"user"`
	Token string      `json:"token"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type contactRequest struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// Signup registers a new account and returns its user and token.
func (c *HTTPClient) Signup(ctx context.Context, cred domain.Credentials) (domain.User, string, error) {
	return c.authenticate(ctx, PathSignup, cred)
}

// Login exchanges credentials for a user and token.
func (c *HTTPClient) Login(ctx context.Context, cred domain.Credentials) (domain.User, string, error) {
	return c.authenticate(ctx, PathLogin, loginRequest{Email: cred.Email, Password: cred.Password})
}

func (c *HTTPClient) authenticate(ctx context.Context, path string, body any) (domain.User, string, error) {
	var resp authResponse
	if err := c.Do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return domain.User{}, "", err
	}
	if resp.Token == "" || resp.User.IsZero() {
		return domain.User{}, "", domain.ErrMalformedResponse.WithDetails(path + ": missing user or token")
	}
	return resp.User, resp.Token, nil
}

// Logout revokes token on the server. The token is passed explicitly so
// the caller can drop it from the client first.
func (c *HTTPClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, PathLogout, token, nil, nil)
}

// CurrentUser returns the user owning the current token.
func (c *HTTPClient) CurrentUser(ctx context.Context) (domain.User, error) {
	var u domain.User
	if err := c.Do(ctx, http.MethodGet, PathCurrentUser, nil, &u); err != nil {
		return domain.User{}, err
	}
	if u.IsZero() {
		return domain.User{}, domain.ErrMalformedResponse.WithDetails(PathCurrentUser + ": empty user")
	}
	return u, nil
}

// UpdateUser applies a partial profile update and returns the new user.
func (c *HTTPClient) UpdateUser(ctx context.Context, update domain.ProfileUpdate) (domain.User, error) {
	var u domain.User
	if err := c.Do(ctx, http.MethodPatch, PathUsers, update, &u); err != nil {
		return domain.User{}, err
	}
	if u.IsZero() {
		return domain.User{}, domain.ErrMalformedResponse.WithDetails(PathUsers + ": empty user")
	}
	return u, nil
}

// ListContacts returns every contact of the current user in server order.
func (c *HTTPClient) ListContacts(ctx context.Context) (domain.ContactList, error) {
	var list domain.ContactList
	if err := c.Do(ctx, http.MethodGet, PathContacts, nil, &list); err != nil {
		return nil, err
	}
	for _, ct := range list {
		if ct.ID == "" {
			return nil, domain.ErrMalformedResponse.WithDetails(PathContacts + ": contact without id")
		}
	}
	return list.Clone(), nil
}

// CreateContact creates a contact and returns the server record.
func (c *HTTPClient) CreateContact(ctx context.Context, name, number string) (domain.Contact, error) {
	var ct domain.Contact
	if err := c.Do(ctx, http.MethodPost, PathContacts, contactRequest{Name: name, Number: number}, &ct); err != nil {
		return domain.Contact{}, err
	}
	if ct.ID == "" {
		return domain.Contact{}, domain.ErrMalformedResponse.WithDetails(PathContacts + ": contact without id")
	}
	return ct, nil
}

// DeleteContact deletes the contact with id.
func (c *HTTPClient) DeleteContact(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, PathContacts+"/"+url.PathEscape(id), nil, nil)
}
