package repo

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-library-go/pkg/database"
)

const (
	tableUsers  = "users"
	userColumns = "id, first_name, last_name, email, password_hash, phone, address, birth_date, role, status, registered_at, last_access_at"
)

var userSelect = []any{"id", "first_name", "last_name", "email", "password_hash", "phone", "address", "birth_date", "role", "status", "registered_at", "last_access_at"}

// UserRepo provides data access for users table using sqlx.
type UserRepo struct {
	db sqlx.ExtContext
}

func NewUserRepo(db sqlx.ExtContext) *UserRepo { return &UserRepo{db: db} }

// WithTx returns a repo bound to tx.
func (r *UserRepo) WithTx(tx *sqlx.Tx) *UserRepo { return &UserRepo{db: tx} }

// Filter selects users; nil fields are wildcards. Names match as
// case-insensitive substrings.
type Filter struct {
	FirstName *string
	LastName  *string
	Role      *entity.Role
	Status    *entity.Status
}

func (f Filter) expressions(q sqlx.ExtContext) []goqu.Expression {
	var ex []goqu.Expression
	if f.FirstName != nil {
		ex = append(ex, database.ContainsFold(q, "first_name", *f.FirstName))
	}
	if f.LastName != nil {
		ex = append(ex, database.ContainsFold(q, "last_name", *f.LastName))
	}
	if f.Role != nil {
		ex = append(ex, goqu.Ex{"role": string(*f.Role)})
	}
	if f.Status != nil {
		ex = append(ex, goqu.Ex{"status": string(*f.Status)})
	}
	return ex
}

// EnsureTable creates the users table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  phone TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT '',
  birth_date TIMESTAMPTZ NULL,
  role TEXT NOT NULL DEFAULT 'PATRON',
  status TEXT NOT NULL DEFAULT 'ACTIVE',
  registered_at TIMESTAMPTZ NOT NULL,
  last_access_at TIMESTAMPTZ NULL
);
CREATE INDEX IF NOT EXISTS idx_users_role_status ON users(role, status);
`
	if r.db.DriverName() == database.DriverSQLite {
		ddl = `
CREATE TABLE IF NOT EXISTS users (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  first_name TEXT NOT NULL,
  last_name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  phone TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT '',
  birth_date TIMESTAMP NULL,
  role TEXT NOT NULL DEFAULT 'PATRON',
  status TEXT NOT NULL DEFAULT 'ACTIVE',
  registered_at TIMESTAMP NOT NULL,
  last_access_at TIMESTAMP NULL
);
CREATE INDEX IF NOT EXISTS idx_users_role_status ON users(role, status);
`
	}
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new user row. Returns new ID.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) (int64, error) {
	const q = `INSERT INTO users (first_name, last_name, email, password_hash, phone, address, birth_date, role, status, registered_at, last_access_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(q),
		u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Phone, u.Address, u.BirthDate,
		string(u.Role), string(u.Status), u.RegisteredAt, u.LastAccessAt,
	).Scan(&u.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, apperr.Duplicate("user", "email", u.Email)
		}
		return 0, err
	}
	return u.ID, nil
}

// GetByID fetches a full user row or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByIDForUpdate fetches a user and locks the row.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, id int64) (*entity.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`+database.LockClause(r.db), id)
}

// GetByEmail returns a user matched by normalized email or sql.ErrNoRows.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, entity.NormalizeEmail(email))
}

func (r *UserRepo) get(ctx context.Context, q string, args ...any) (*entity.User, error) {
	var u entity.User
	if err := sqlx.GetContext(ctx, r.db, &u, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	normalize(&u)
	return &u, nil
}

func normalize(u *entity.User) {
	u.RegisteredAt = u.RegisteredAt.UTC()
	if u.BirthDate != nil {
		d := u.BirthDate.UTC()
		u.BirthDate = &d
	}
	if u.LastAccessAt != nil {
		t := u.LastAccessAt.UTC()
		u.LastAccessAt = &t
	}
}

// Find returns users matching f ordered by id.
func (r *UserRepo) Find(ctx context.Context, f Filter) ([]*entity.User, error) {
	ds := database.Dialect(r.db).From(tableUsers).Select(userSelect...).Order(goqu.C("id").Asc())
	if ex := f.expressions(r.db); len(ex) > 0 {
		ds = ds.Where(ex...)
	}
	q, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	users := []*entity.User{}
	if err := sqlx.SelectContext(ctx, r.db, &users, q, args...); err != nil {
		return nil, err
	}
	for _, u := range users {
		normalize(u)
	}
	return users, nil
}

// Count returns the number of users matching f.
func (r *UserRepo) Count(ctx context.Context, f Filter) (int64, error) {
	ds := database.Dialect(r.db).From(tableUsers).Select(goqu.COUNT(goqu.Star()))
	if ex := f.expressions(r.db); len(ex) > 0 {
		ds = ds.Where(ex...)
	}
	q, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := sqlx.GetContext(ctx, r.db, &n, q, args...); err != nil {
		return 0, err
	}
	return n, nil
}

// Update overwrites the profile columns, role, status and password hash of
// u.ID. registered_at and last_access_at are left alone. Returns rows affected.
func (r *UserRepo) Update(ctx context.Context, u *entity.User) (int64, error) {
	const q = `UPDATE users SET first_name = ?, last_name = ?, email = ?, password_hash = ?, phone = ?, address = ?,
		birth_date = ?, role = ?, status = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Phone, u.Address, u.BirthDate,
		string(u.Role), string(u.Status), u.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, apperr.Duplicate("user", "email", u.Email)
		}
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateStatus sets the account status. Returns rows affected.
func (r *UserRepo) UpdateStatus(ctx context.Context, id int64, status entity.Status) (int64, error) {
	return r.exec(ctx, `UPDATE users SET status = ? WHERE id = ?`, string(status), id)
}

// UpdateRole sets the role. Returns rows affected.
func (r *UserRepo) UpdateRole(ctx context.Context, id int64, role entity.Role) (int64, error) {
	return r.exec(ctx, `UPDATE users SET role = ? WHERE id = ?`, string(role), id)
}

// UpdatePassword replaces the stored hash. Returns rows affected.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, hash string) (int64, error) {
	return r.exec(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
}

// TouchLastAccess records a successful login.
func (r *UserRepo) TouchLastAccess(ctx context.Context, id int64, at time.Time) error {
	_, err := r.exec(ctx, `UPDATE users SET last_access_at = ? WHERE id = ?`, at, id)
	return err
}

// Delete removes a user. Returns rows affected.
func (r *UserRepo) Delete(ctx context.Context, id int64) (int64, error) {
	return r.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
}

func (r *UserRepo) exec(ctx context.Context, q string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
