package repo_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/store/storetest"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/user/repo"
)

func ptr[T any](v T) *T { return &v }

func TestUserRepo_GetByEmail(t *testing.T) {
	db := storetest.NewSQLite(t)
	r := repo.NewUserRepo(db)
	ctx := context.Background()

	u := storetest.InsertUser(t, db, "ada@example.com")

	got, err := r.GetByEmail(ctx, "  ADA@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.RegisteredAt.Equal(storetest.Epoch))
	assert.Nil(t, got.LastAccessAt)

	_, err = r.GetByEmail(ctx, "nobody@example.com")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestUserRepo_DuplicateEmail(t *testing.T) {
	db := storetest.NewSQLite(t)
	r := repo.NewUserRepo(db)

	u := storetest.InsertUser(t, db, "ada@example.com")
	dup := *u
	dup.ID = 0
	_, err := r.Create(context.Background(), &dup)
	assert.True(t, errors.Is(err, apperr.ErrDuplicateKey), "got %v", err)
}

func TestUserRepo_Find(t *testing.T) {
	db := storetest.NewSQLite(t)
	r := repo.NewUserRepo(db)
	ctx := context.Background()

	storetest.InsertUser(t, db, "ada@example.com", func(u *entity.User) { u.FirstName, u.LastName = "Ada", "Lovelace" })
	storetest.InsertUser(t, db, "alan@example.com", func(u *entity.User) {
		u.FirstName, u.LastName, u.Role = "Alan", "Turing", entity.RoleLibrarian
	})
	storetest.InsertUser(t, db, "grace@example.com", func(u *entity.User) {
		u.FirstName, u.LastName, u.Status = "Grace", "Hopper", entity.StatusSuspended
	})

	tests := []struct {
		name   string
		filter repo.Filter
		want   []string
	}{
		{"all", repo.Filter{}, []string{"ada@example.com", "alan@example.com", "grace@example.com"}},
		{"first name ignores case", repo.Filter{FirstName: ptr("ALA")}, []string{"alan@example.com"}},
		{"substring", repo.Filter{LastName: ptr("r")}, []string{"alan@example.com", "grace@example.com"}},
		{"last name", repo.Filter{LastName: ptr("hop")}, []string{"grace@example.com"}},
		{"role", repo.Filter{Role: ptr(entity.RoleLibrarian)}, []string{"alan@example.com"}},
		{"status", repo.Filter{Status: ptr(entity.StatusActive)}, []string{"ada@example.com", "alan@example.com"}},
		{"conjunctive", repo.Filter{Role: ptr(entity.RolePatron), Status: ptr(entity.StatusActive)}, []string{"ada@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := r.Find(ctx, tt.filter)
			require.NoError(t, err)
			var got []string
			for _, u := range users {
				got = append(got, u.Email)
			}
			assert.Equal(t, tt.want, got)

			n, err := r.Count(ctx, tt.filter)
			require.NoError(t, err)
			assert.EqualValues(t, len(tt.want), n)
		})
	}
}

func TestUserRepo_PartialUpdates(t *testing.T) {
	db := storetest.NewSQLite(t)
	r := repo.NewUserRepo(db)
	ctx := context.Background()
	u := storetest.InsertUser(t, db, "ada@example.com")

	n, err := r.UpdateStatus(ctx, u.ID, entity.StatusBlocked)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	_, err = r.UpdateRole(ctx, u.ID, entity.RoleLibrarian)
	require.NoError(t, err)
	_, err = r.UpdatePassword(ctx, u.ID, "new-hash")
	require.NoError(t, err)
	require.NoError(t, r.TouchLastAccess(ctx, u.ID, storetest.Epoch))

	got, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusBlocked, got.Status)
	assert.Equal(t, entity.RoleLibrarian, got.Role)
	assert.Equal(t, "new-hash", got.PasswordHash)
	require.NotNil(t, got.LastAccessAt)
	assert.True(t, got.LastAccessAt.Equal(storetest.Epoch))

	n, err = r.UpdateStatus(ctx, u.ID+1, entity.StatusActive)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestUserRepo_FindTreatsWildcardsLiterally(t *testing.T) {
	db := storetest.NewSQLite(t)
	r := repo.NewUserRepo(db)
	ctx := context.Background()
	storetest.InsertUser(t, db, "ada@example.com", func(u *entity.User) { u.LastName = "Lovelace" })
	storetest.InsertUser(t, db, "jo@example.com", func(u *entity.User) { u.LastName = "O_Neil" })

	users, err := r.Find(ctx, repo.Filter{LastName: ptr("_")})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "jo@example.com", users[0].Email)

	n, err := r.Count(ctx, repo.Filter{FirstName: ptr("%")})
	require.NoError(t, err)
	assert.Zero(t, n)
}
