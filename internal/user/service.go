package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
	loanentity "github.com/ovaphlow/pitchfork/service-library-go/internal/loan/entity"
	loanrepo "github.com/ovaphlow/pitchfork/service-library-go/internal/loan/repo"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-library-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-library-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-library-go/pkg/utilities"
)

// Service manages user accounts: registration, profile updates, role and
// status changes, and password authentication.
type Service struct {
	db     *sqlx.DB
	users  *userrepo.UserRepo
	loans  *loanrepo.LoanRepo
	hasher PasswordHasher
	clock  clockwork.Clock
	logger *zap.SugaredLogger
}

func NewService(db *sqlx.DB, hasher PasswordHasher, clock clockwork.Clock, logger *zap.SugaredLogger) *Service {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &Service{
		db:     db,
		users:  userrepo.NewUserRepo(db),
		loans:  loanrepo.NewLoanRepo(db),
		hasher: hasher,
		clock:  clock,
		logger: logger,
	}
}

func (s *Service) List(ctx context.Context) ([]*entity.User, error) {
	return s.users.Find(ctx, userrepo.Filter{})
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user", id)
	}
	return u, err
}

// GetByEmail looks a user up by address, ignoring case.
func (s *Service) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundBy("user", "email", entity.NormalizeEmail(email))
	}
	return u, err
}

// Create registers u with the given password. Role defaults to PATRON and
// status to ACTIVE.
func (s *Service) Create(ctx context.Context, u *entity.User, password string) (*entity.User, error) {
	now := s.clock.Now()
	u.ID = 0
	u.Email = entity.NormalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = entity.RolePatron
	}
	if u.Status == "" {
		u.Status = entity.StatusActive
	}
	if u.BirthDate != nil {
		d := utilities.DateOf(*u.BirthDate)
		u.BirthDate = &d
	}
	if err := u.Validate(now); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, apperr.Invalid("password", "is required")
	}
	if _, err := s.users.GetByEmail(ctx, u.Email); err == nil {
		return nil, apperr.Duplicate("user", "email", u.Email)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	u.RegisteredAt = now.UTC()
	u.LastAccessAt = nil
	if _, err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Infow("user created", "id", u.ID, "role", u.Role)
	return u, nil
}

// Update overwrites the profile of user id. An empty password keeps the
// stored hash; empty role or status keep the current values.
func (s *Service) Update(ctx context.Context, id int64, u *entity.User, password string) (*entity.User, error) {
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		users := s.users.WithTx(tx)
		cur, err := users.GetByIDForUpdate(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("user", id)
		}
		if err != nil {
			return err
		}

		u.ID = id
		u.Email = entity.NormalizeEmail(u.Email)
		if u.Role == "" {
			u.Role = cur.Role
		}
		if u.Status == "" {
			u.Status = cur.Status
		}
		if u.BirthDate != nil {
			d := utilities.DateOf(*u.BirthDate)
			u.BirthDate = &d
		}
		if err := u.Validate(s.clock.Now()); err != nil {
			return err
		}
		if other, err := users.GetByEmail(ctx, u.Email); err == nil && other.ID != id {
			return apperr.Duplicate("user", "email", u.Email)
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		u.PasswordHash = cur.PasswordHash
		if password != "" {
			if u.PasswordHash, err = s.hasher.Hash(password); err != nil {
				return err
			}
		}
		u.RegisteredAt = cur.RegisteredAt
		u.LastAccessAt = cur.LastAccessAt
		_, err = users.Update(ctx, u)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Delete removes a user. Users with open loans cannot be deleted; closed
// loans go with them.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := s.users.WithTx(tx).GetByIDForUpdate(ctx, id); errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("user", id)
		} else if err != nil {
			return err
		}
		open, err := s.loans.WithTx(tx).Count(ctx, loanrepo.Filter{UserID: id, Statuses: loanentity.OpenStatuses})
		if err != nil {
			return err
		}
		if open > 0 {
			return apperr.InvalidState("user has open loans")
		}
		_, err = s.users.WithTx(tx).Delete(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Infow("user deleted", "id", id)
	return nil
}

func (s *Service) FindByRole(ctx context.Context, role entity.Role) ([]*entity.User, error) {
	return s.users.Find(ctx, userrepo.Filter{Role: &role})
}

func (s *Service) FindByStatus(ctx context.Context, status entity.Status) ([]*entity.User, error) {
	return s.users.Find(ctx, userrepo.Filter{Status: &status})
}

func (s *Service) FindByFirstName(ctx context.Context, name string) ([]*entity.User, error) {
	return s.users.Find(ctx, userrepo.Filter{FirstName: &name})
}

func (s *Service) FindByLastName(ctx context.Context, name string) ([]*entity.User, error) {
	return s.users.Find(ctx, userrepo.Filter{LastName: &name})
}

func (s *Service) FindActive(ctx context.Context) ([]*entity.User, error) {
	return s.FindByStatus(ctx, entity.StatusActive)
}

func (s *Service) FindActiveLibrarians(ctx context.Context) ([]*entity.User, error) {
	role, status := entity.RoleLibrarian, entity.StatusActive
	return s.users.Find(ctx, userrepo.Filter{Role: &role, Status: &status})
}

// Search combines the optional criteria with AND.
func (s *Service) Search(ctx context.Context, f userrepo.Filter) ([]*entity.User, error) {
	return s.users.Find(ctx, f)
}

// ChangeStatus sets the account status of user id.
func (s *Service) ChangeStatus(ctx context.Context, id int64, status entity.Status) (*entity.User, error) {
	if !status.Valid() {
		return nil, apperr.Invalid("status", "is unknown")
	}
	n, err := s.users.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperr.NotFound("user", id)
	}
	s.logger.Infow("user status changed", "id", id, "status", status)
	return s.Get(ctx, id)
}

// PromoteToLibrarian grants the LIBRARIAN role.
func (s *Service) PromoteToLibrarian(ctx context.Context, id int64) (*entity.User, error) {
	n, err := s.users.UpdateRole(ctx, id, entity.RoleLibrarian)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperr.NotFound("user", id)
	}
	s.logger.Infow("user promoted", "id", id)
	return s.Get(ctx, id)
}

// SetPassword replaces the password of user id.
func (s *Service) SetPassword(ctx context.Context, id int64, password string) error {
	if password == "" {
		return apperr.Invalid("password", "is required")
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	n, err := s.users.UpdatePassword(ctx, id, hash)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("user", id)
	}
	return nil
}

func (s *Service) CountByRole(ctx context.Context, role entity.Role) (int64, error) {
	return s.users.Count(ctx, userrepo.Filter{Role: &role})
}

func (s *Service) CountByStatus(ctx context.Context, status entity.Status) (int64, error) {
	return s.users.Count(ctx, userrepo.Filter{Status: &status})
}

// Authenticate verifies an email/password pair and records the access
// time. Unknown emails and wrong passwords fail the same way; accounts
// that are not ACTIVE are refused.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		s.logger.Debugw("login failed", "user_id", u.ID)
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if u.Status != entity.StatusActive {
		return nil, apperr.Unauthorized("account is " + string(u.Status))
	}
	now := s.clock.Now().UTC()
	if err := s.users.TouchLastAccess(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastAccessAt = &now
	return u, nil
}
