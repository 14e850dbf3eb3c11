package user

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already exists")
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PasswordHash string    `json:"-"` // never expose hash in JSON
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RegisterRequest leaves password unchecked at bind time: an already
// registered email is reported before a missing password.
type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateRequest is a partial update: nil fields are left untouched.
// Name is the legacy spelling of FirstName.
type UpdateRequest struct {
	Name      *string `json:"name"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Password  *string `json:"password"`
}

// EmptyFields lists, in a stable order, every supplied field that is blank.
func (r UpdateRequest) EmptyFields() []string {
	var out []string

	blank := func(p *string) bool {
		return p != nil && strings.TrimSpace(*p) == ""
	}

	switch {
	case r.FirstName != nil:
		if blank(r.FirstName) {
			out = append(out, "firstName")
		}
	case blank(r.Name):
		out = append(out, "name")
	}
	if blank(r.LastName) {
		out = append(out, "lastName")
	}
	if blank(r.Password) {
		out = append(out, "password")
	}

	return out
}

// firstName resolves the firstName/name aliasing, firstName wins.
func (r UpdateRequest) firstName() *string {
	if r.FirstName != nil {
		return r.FirstName
	}
	return r.Name
}

// Apply copies the supplied profile fields onto u and stamps UpdatedAt.
// Password changes are handled by the caller since they need hashing.
func (r UpdateRequest) Apply(u *User, now time.Time) {
	if fn := r.firstName(); fn != nil {
		u.FirstName = strings.TrimSpace(*fn)
	}
	if r.LastName != nil {
		u.LastName = strings.TrimSpace(*r.LastName)
	}
	u.UpdatedAt = now
}

// NewFromRegisterRequest builds the record to insert; ID is assigned by the store.
func NewFromRegisterRequest(req RegisterRequest, passwordHash string, now time.Time) User {
	return User{
		Email:        NormalizeEmail(req.Email),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
