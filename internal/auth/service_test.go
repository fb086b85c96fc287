package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/store/storetest"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/user/entity"
)

func newTestService(t *testing.T) (*Service, *user.Service) {
	t.Helper()
	db := storetest.NewSQLite(t)
	clock := clockwork.NewFakeClockAt(storetest.Epoch)
	logger := zaptest.NewLogger(t).Sugar()
	users := user.NewService(db, user.BcryptHasher{Cost: bcrypt.MinCost}, clock, logger)
	return NewService(users, StubIssuer{}, logger), users
}

func TestService_RegisterAndLogin(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, &entity.User{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Role:      entity.RoleLibrarian,
		Status:    entity.StatusBlocked,
	}, "pw")
	require.NoError(t, err)
	assert.Equal(t, entity.RolePatron, u.Role, "registration cannot pick a role")
	assert.Equal(t, entity.StatusActive, u.Status)

	res, err := svc.Login(ctx, "ada@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Bearer_1", res.Token)
	assert.Equal(t, "ada@example.com", res.Email)
	assert.Equal(t, "Ada", res.FirstName)
	assert.Equal(t, "Lovelace", res.LastName)
	assert.Equal(t, entity.RolePatron, res.Role)

	got, err := svc.ValidateToken(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Login(ctx, "ada@example.com", "nope")
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	_, err = users.ChangeStatus(ctx, u.ID, entity.StatusSuspended)
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, res.Token)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized), "suspended users lose access")
}

func TestService_ValidateToken_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.ValidateToken(context.Background(), "Bearer_99")
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized), "got %v", err)
}
