package entity

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-library-go/pkg/utilities"
)

// Role decides what a user may do in the library.
type Role string

const (
	RoleLibrarian Role = "LIBRARIAN"
	RolePatron    Role = "PATRON"
)

func (r Role) Valid() bool { return r == RoleLibrarian || r == RolePatron }

// Status is the account state. Only ACTIVE users may borrow or log in.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusInactive  Status = "INACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusBlocked   Status = "BLOCKED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusBlocked:
		return true
	}
	return false
}

// User represents an account row in the `users` table.
// PasswordHash never leaves the service layer.
type User struct {
	ID           int64      `db:"id" json:"id"`
	FirstName    string     `db:"first_name" json:"firstName"`
	LastName     string     `db:"last_name" json:"lastName"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Phone        string     `db:"phone" json:"phone,omitempty"`
	Address      string     `db:"address" json:"address,omitempty"`
	BirthDate    *time.Time `db:"birth_date" json:"birthDate,omitempty"`
	Role         Role       `db:"role" json:"role"`
	Status       Status     `db:"status" json:"status"`
	RegisteredAt time.Time  `db:"registered_at" json:"registeredAt"`
	LastAccessAt *time.Time `db:"last_access_at" json:"lastAccessAt,omitempty"`
}

// FullName joins first and last name.
func (u *User) FullName() string { return u.FirstName + " " + u.LastName }

var phonePattern = regexp.MustCompile(`^[0-9]{8,15}$`)

// NormalizeEmail trims and lower-cases an address; emails are unique
// regardless of case.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks field constraints against now.
func (u *User) Validate(now time.Time) error {
	switch {
	case strings.TrimSpace(u.FirstName) == "":
		return apperr.Invalid("firstName", "is required")
	case len(u.FirstName) > 100:
		return apperr.Invalid("firstName", "must not exceed 100 characters")
	case strings.TrimSpace(u.LastName) == "":
		return apperr.Invalid("lastName", "is required")
	case len(u.LastName) > 100:
		return apperr.Invalid("lastName", "must not exceed 100 characters")
	case !validEmail(u.Email):
		return apperr.Invalid("email", "is not a valid address")
	case u.Phone != "" && !phonePattern.MatchString(u.Phone):
		return apperr.Invalid("phone", "must have 8 to 15 digits")
	case len(u.Address) > 500:
		return apperr.Invalid("address", "must not exceed 500 characters")
	case u.BirthDate != nil && !u.BirthDate.Before(utilities.DateOf(now)):
		return apperr.Invalid("birthDate", "must be in the past")
	case u.Role != "" && !u.Role.Valid():
		return apperr.Invalid("role", "is unknown")
	case u.Status != "" && !u.Status.Valid():
		return apperr.Invalid("status", "is unknown")
	}
	return nil
}

func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s && strings.Contains(s[strings.LastIndexByte(s, '@'):], ".")
}
