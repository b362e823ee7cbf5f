package domain

import (
	"net/mail"
	"strings"
)

// User is the identity returned by the remote api.
// The zero value is the "no user" sentinel.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// IsZero reports whether u is the empty sentinel.
func (u User) IsZero() bool {
	return u.ID == "" && u.Email == ""
}

// NormalizeEmail lowercases and trims an email for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Credentials are the inputs of register and login.
type Credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ValidateRegistration checks the registration input.
// Password strength is not enforced.
func (c Credentials) ValidateRegistration() error {
	var violations []string
	if strings.TrimSpace(c.Name) == "" {
		violations = append(violations, "name is required")
	}
	if err := validateEmail(c.Email); err != "" {
		violations = append(violations, err)
	}
	if c.Password == "" {
		violations = append(violations, "password is required")
	}
	if len(violations) > 0 {
		return ErrUserValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

// ValidateLogin checks the login input.
func (c Credentials) ValidateLogin() error {
	var violations []string
	if err := validateEmail(c.Email); err != "" {
		violations = append(violations, err)
	}
	if c.Password == "" {
		violations = append(violations, "password is required")
	}
	if len(violations) > 0 {
		return ErrUserValidation.WithDetails(strings.Join(violations, "; "))
	}
	return nil
}

func validateEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return "email is required"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "email is invalid"
	}
	return ""
}

// ProfileUpdate is a partial update of the current user.
// Nil fields are left unchanged.
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// IsEmpty reports whether no field is set.
func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Password == nil
}

// Validate checks the update has at least one well-formed field.
func (p ProfileUpdate) Validate() error {
	if p.IsEmpty() {
		return ErrUserValidation.WithDetails("nothing to update")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return ErrUserValidation.WithDetails("name must not be empty")
	}
	if p.Email != nil {
		if msg := validateEmail(*p.Email); msg != "" {
			return ErrUserValidation.WithDetails(msg)
		}
	}
	if p.Password != nil && *p.Password == "" {
		return ErrUserValidation.WithDetails("password must not be empty")
	}
	return nil
}

// Apply returns u with the update's name and email applied.
func (p ProfileUpdate) Apply(u User) User {
	if p.Name != nil {
		u.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		u.Email = strings.TrimSpace(*p.Email)
	}
	return u
}
