package entity

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
)

func validUser() User {
	birth := time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC)
	return User{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Phone:     "5551234567",
		BirthDate: &birth,
		Role:      RolePatron,
		Status:    StatusActive,
	}
}

func TestUser_Validate(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	today := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)

	tests := []struct {
		name    string
		mutate  func(u *User)
		wantErr bool
	}{
		{"valid", func(u *User) {}, false},
		{"no phone", func(u *User) { u.Phone = "" }, false},
		{"missing first name", func(u *User) { u.FirstName = " " }, true},
		{"long last name", func(u *User) { u.LastName = strings.Repeat("x", 101) }, true},
		{"bad email", func(u *User) { u.Email = "ada.example.com" }, true},
		{"email without domain dot", func(u *User) { u.Email = "ada@localhost" }, true},
		{"display name email", func(u *User) { u.Email = "Ada <ada@example.com>" }, true},
		{"short phone", func(u *User) { u.Phone = "1234567" }, true},
		{"phone with letters", func(u *User) { u.Phone = "555-123-4567" }, true},
		{"long address", func(u *User) { u.Address = strings.Repeat("a", 501) }, true},
		{"born yesterday", func(u *User) { u.BirthDate = &yesterday }, false},
		{"born today", func(u *User) { u.BirthDate = &today }, true},
		{"unknown role", func(u *User) { u.Role = "ADMIN" }, true},
		{"unknown status", func(u *User) { u.Status = "GONE" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := validUser()
			tt.mutate(&u)
			err := u.Validate(now)
			if tt.wantErr {
				assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
}

func TestUser_FullName(t *testing.T) {
	u := validUser()
	assert.Equal(t, "Ada Lovelace", u.FullName())
}
