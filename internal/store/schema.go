// Package store creates the library schema on a connected database.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	bookrepo "github.com/ovaphlow/pitchfork/service-library-go/internal/book/repo"
	loanrepo "github.com/ovaphlow/pitchfork/service-library-go/internal/loan/repo"
	userrepo "github.com/ovaphlow/pitchfork/service-library-go/internal/user/repo"
)

// EnsureSchema creates every table that does not exist yet. Loans reference
// users and books, so they go last.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	steps := []struct {
		table  string
		ensure func(context.Context) error
	}{
		{"users", userrepo.NewUserRepo(db).EnsureTable},
		{"books", bookrepo.NewBookRepo(db).EnsureTable},
		{"loans", loanrepo.NewLoanRepo(db).EnsureTable},
	}
	for _, s := range steps {
		if err := s.ensure(ctx); err != nil {
			return fmt.Errorf("ensure %s table: %w", s.table, err)
		}
	}
	return nil
}
