package repo

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/loan/entity"
	"github.com/ovaphlow/pitchfork/service-library-go/pkg/database"
)

const (
	tableLoans  = "loans"
	loanColumns = "id, user_id, book_id, loan_date, expected_return, actual_return, status, notes, fee, created_at, updated_at"
)

var loanSelect = []any{"id", "user_id", "book_id", "loan_date", "expected_return", "actual_return", "status", "notes", "fee", "created_at", "updated_at"}

// LoanRepo provides data access for the loans table.
type LoanRepo struct {
	db sqlx.ExtContext
}

func NewLoanRepo(db sqlx.ExtContext) *LoanRepo { return &LoanRepo{db: db} }

// WithTx returns a repo bound to tx.
func (r *LoanRepo) WithTx(tx *sqlx.Tx) *LoanRepo { return &LoanRepo{db: tx} }

// Filter selects loans. Zero values match everything.
type Filter struct {
	UserID   int64
	BookID   int64
	Statuses []entity.Status
	// DueFrom and DueTo bound expected_return inclusively.
	DueFrom *time.Time
	DueTo   *time.Time
}

func (f Filter) expressions() []goqu.Expression {
	var ex []goqu.Expression
	if f.UserID != 0 {
		ex = append(ex, goqu.Ex{"user_id": f.UserID})
	}
	if f.BookID != 0 {
		ex = append(ex, goqu.Ex{"book_id": f.BookID})
	}
	if len(f.Statuses) > 0 {
		ss := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			ss[i] = string(s)
		}
		ex = append(ex, goqu.C("status").In(ss))
	}
	if f.DueFrom != nil {
		ex = append(ex, goqu.C("expected_return").Gte(*f.DueFrom))
	}
	if f.DueTo != nil {
		ex = append(ex, goqu.C("expected_return").Lte(*f.DueTo))
	}
	return ex
}

// EnsureTable creates the loans table. It must run after users and books.
func (r *LoanRepo) EnsureTable(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS loans (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  book_id BIGINT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
  loan_date TIMESTAMPTZ NOT NULL,
  expected_return TIMESTAMPTZ NOT NULL,
  actual_return TIMESTAMPTZ NULL,
  status TEXT NOT NULL DEFAULT 'ACTIVE',
  notes TEXT NOT NULL DEFAULT '',
  fee DOUBLE PRECISION NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_loans_user_status ON loans(user_id, status);
CREATE INDEX IF NOT EXISTS idx_loans_book ON loans(book_id);
`
	if r.db.DriverName() == database.DriverSQLite {
		ddl = `
CREATE TABLE IF NOT EXISTS loans (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
  loan_date TIMESTAMP NOT NULL,
  expected_return TIMESTAMP NOT NULL,
  actual_return TIMESTAMP NULL,
  status TEXT NOT NULL DEFAULT 'ACTIVE',
  notes TEXT NOT NULL DEFAULT '',
  fee REAL NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_loans_user_status ON loans(user_id, status);
CREATE INDEX IF NOT EXISTS idx_loans_book ON loans(book_id);
`
	}
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a loan and sets l.ID.
func (r *LoanRepo) Create(ctx context.Context, l *entity.Loan) (int64, error) {
	const q = `INSERT INTO loans (user_id, book_id, loan_date, expected_return, actual_return, status, notes, fee, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(q),
		l.UserID, l.BookID, l.LoanDate, l.ExpectedReturn, l.ActualReturn, string(l.Status), l.Notes, l.Fee, l.CreatedAt, l.UpdatedAt,
	).Scan(&l.ID)
	if err != nil {
		return 0, err
	}
	return l.ID, nil
}

// GetByID fetches a loan or sql.ErrNoRows.
func (r *LoanRepo) GetByID(ctx context.Context, id int64) (*entity.Loan, error) {
	return r.get(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id)
}

// GetByIDForUpdate fetches a loan and locks its row.
func (r *LoanRepo) GetByIDForUpdate(ctx context.Context, id int64) (*entity.Loan, error) {
	return r.get(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`+database.LockClause(r.db), id)
}

func (r *LoanRepo) get(ctx context.Context, q string, args ...any) (*entity.Loan, error) {
	var l entity.Loan
	if err := sqlx.GetContext(ctx, r.db, &l, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	l.Normalize()
	return &l, nil
}

// Find returns the loans matching f ordered by id.
func (r *LoanRepo) Find(ctx context.Context, f Filter) ([]*entity.Loan, error) {
	ds := database.Dialect(r.db).From(tableLoans).Select(loanSelect...).Order(goqu.C("id").Asc())
	if ex := f.expressions(); len(ex) > 0 {
		ds = ds.Where(ex...)
	}
	q, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	loans := []*entity.Loan{}
	if err := sqlx.SelectContext(ctx, r.db, &loans, q, args...); err != nil {
		return nil, err
	}
	for _, l := range loans {
		l.Normalize()
	}
	return loans, nil
}

// Count returns the number of loans matching f.
func (r *LoanRepo) Count(ctx context.Context, f Filter) (int64, error) {
	ds := database.Dialect(r.db).From(tableLoans).Select(goqu.COUNT(goqu.Star()))
	if ex := f.expressions(); len(ex) > 0 {
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

// CountByStatus groups all loans by stored status.
func (r *LoanRepo) CountByStatus(ctx context.Context) (map[entity.Status]int64, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int64  `db:"n"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, `SELECT status, COUNT(*) AS n FROM loans GROUP BY status`); err != nil {
		return nil, err
	}
	out := make(map[entity.Status]int64, len(rows))
	for _, row := range rows {
		out[entity.Status(row.Status)] = row.N
	}
	return out, nil
}

// Update persists every mutable column of l. Returns rows affected.
func (r *LoanRepo) Update(ctx context.Context, l *entity.Loan) (int64, error) {
	const q = `UPDATE loans SET expected_return = ?, actual_return = ?, status = ?, notes = ?, fee = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		l.ExpectedReturn, l.ActualReturn, string(l.Status), l.Notes, l.Fee, l.UpdatedAt, l.ID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes a loan. Returns rows affected.
func (r *LoanRepo) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM loans WHERE id = ?`), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
