package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	bookentity "github.com/ovaphlow/pitchfork/service-library-go/internal/book/entity"
	bookrepo "github.com/ovaphlow/pitchfork/service-library-go/internal/book/repo"
	userentity "github.com/ovaphlow/pitchfork/service-library-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-library-go/internal/user/repo"
)

// Epoch is the default "now" of fixtures and fake clocks in tests.
var Epoch = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)

// InsertUser stores an ACTIVE patron with the given email. The password
// hash is a placeholder; it never verifies.
func InsertUser(t testing.TB, db *sqlx.DB, email string, opts ...func(*userentity.User)) *userentity.User {
	t.Helper()
	u := &userentity.User{
		FirstName:    "Test",
		LastName:     "Patron",
		Email:        email,
		PasswordHash: "-",
		Role:         userentity.RolePatron,
		Status:       userentity.StatusActive,
		RegisteredAt: Epoch,
	}
	for _, o := range opts {
		o(u)
	}
	_, err := userrepo.NewUserRepo(db).Create(context.Background(), u)
	require.NoError(t, err)
	return u
}

// InsertBook stores an AVAILABLE book with the given ISBN.
func InsertBook(t testing.TB, db *sqlx.DB, isbn string, opts ...func(*bookentity.Book)) *bookentity.Book {
	t.Helper()
	b := &bookentity.Book{
		Title:           "Book " + isbn,
		Author:          "Author",
		PublicationYear: 2001,
		ISBN:            isbn,
		PageCount:       100,
		DateAdded:       Epoch,
		Status:          bookentity.StatusAvailable,
	}
	for _, o := range opts {
		o(b)
	}
	_, err := bookrepo.NewBookRepo(db).Create(context.Background(), b)
	require.NoError(t, err)
	return b
}

// ISBN returns a distinct valid ISBN for n.
func ISBN(n int) string {
	return fmt.Sprintf("978%010d", n)
}
