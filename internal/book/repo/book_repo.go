package repo

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/book/entity"
	"github.com/ovaphlow/pitchfork/service-library-go/pkg/database"
)

const (
	tableBooks  = "books"
	bookColumns = "id, title, author, description, publication_year, isbn, page_count, date_added, status"
)

var bookSelect = []any{"id", "title", "author", "description", "publication_year", "isbn", "page_count", "date_added", "status"}

// BookRepo provides data access for the books table using sqlx.
// It works against either a *sqlx.DB or a *sqlx.Tx.
type BookRepo struct {
	db sqlx.ExtContext
}

func NewBookRepo(db sqlx.ExtContext) *BookRepo { return &BookRepo{db: db} }

// WithTx returns a repo bound to tx.
func (r *BookRepo) WithTx(tx *sqlx.Tx) *BookRepo { return &BookRepo{db: tx} }

// Filter selects books. Nil fields match everything; text fields are
// case-insensitive substring matches except ISBN which is exact.
type Filter struct {
	Title  *string
	Author *string
	ISBN   *string
	Status *entity.Status
}

func (f Filter) expressions(q sqlx.ExtContext) []goqu.Expression {
	var ex []goqu.Expression
	if f.Title != nil {
		ex = append(ex, database.ContainsFold(q, "title", *f.Title))
	}
	if f.Author != nil {
		ex = append(ex, database.ContainsFold(q, "author", *f.Author))
	}
	if f.ISBN != nil {
		ex = append(ex, goqu.Ex{"isbn": *f.ISBN})
	}
	if f.Status != nil {
		ex = append(ex, goqu.Ex{"status": string(*f.Status)})
	}
	return ex
}

// EnsureTable creates the books table if not exists (idempotent).
func (r *BookRepo) EnsureTable(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS books (
  id BIGSERIAL PRIMARY KEY,
  title TEXT NOT NULL,
  author TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  publication_year INT NOT NULL,
  isbn VARCHAR(13) NOT NULL UNIQUE,
  page_count INT NOT NULL,
  date_added TIMESTAMPTZ NOT NULL,
  status TEXT NOT NULL DEFAULT 'AVAILABLE'
);
CREATE INDEX IF NOT EXISTS idx_books_status ON books(status);
`
	if r.db.DriverName() == database.DriverSQLite {
		ddl = `
CREATE TABLE IF NOT EXISTS books (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL,
  author TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  publication_year INTEGER NOT NULL,
  isbn TEXT NOT NULL UNIQUE,
  page_count INTEGER NOT NULL,
  date_added TIMESTAMP NOT NULL,
  status TEXT NOT NULL DEFAULT 'AVAILABLE'
);
CREATE INDEX IF NOT EXISTS idx_books_status ON books(status);
`
	}
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new book row and sets b.ID.
func (r *BookRepo) Create(ctx context.Context, b *entity.Book) (int64, error) {
	const q = `INSERT INTO books (title, author, description, publication_year, isbn, page_count, date_added, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(q),
		b.Title, b.Author, b.Description, b.PublicationYear, b.ISBN, b.PageCount, b.DateAdded, string(b.Status),
	).Scan(&b.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, apperr.Duplicate("book", "isbn", b.ISBN)
		}
		return 0, err
	}
	return b.ID, nil
}

// GetByID fetches a book or sql.ErrNoRows.
func (r *BookRepo) GetByID(ctx context.Context, id int64) (*entity.Book, error) {
	return r.get(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id)
}

// GetByIDForUpdate fetches a book and locks its row for the rest of the
// surrounding transaction.
func (r *BookRepo) GetByIDForUpdate(ctx context.Context, id int64) (*entity.Book, error) {
	return r.get(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`+database.LockClause(r.db), id)
}

// GetByISBN fetches a book by its ISBN or sql.ErrNoRows.
func (r *BookRepo) GetByISBN(ctx context.Context, isbn string) (*entity.Book, error) {
	return r.get(ctx, `SELECT `+bookColumns+` FROM books WHERE isbn = ?`, isbn)
}

func (r *BookRepo) get(ctx context.Context, q string, args ...any) (*entity.Book, error) {
	var b entity.Book
	if err := sqlx.GetContext(ctx, r.db, &b, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	b.DateAdded = b.DateAdded.UTC()
	return &b, nil
}

// Find returns the books matching f ordered by id.
func (r *BookRepo) Find(ctx context.Context, f Filter) ([]*entity.Book, error) {
	ds := database.Dialect(r.db).From(tableBooks).Select(bookSelect...).Order(goqu.C("id").Asc())
	if ex := f.expressions(r.db); len(ex) > 0 {
		ds = ds.Where(ex...)
	}
	q, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}
	books := []*entity.Book{}
	if err := sqlx.SelectContext(ctx, r.db, &books, q, args...); err != nil {
		return nil, err
	}
	for _, b := range books {
		b.DateAdded = b.DateAdded.UTC()
	}
	return books, nil
}

// Count returns the number of books matching f.
func (r *BookRepo) Count(ctx context.Context, f Filter) (int64, error) {
	ds := database.Dialect(r.db).From(tableBooks).Select(goqu.COUNT(goqu.Star()))
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

// Update overwrites every mutable column of the row identified by b.ID.
// Returns rows affected.
func (r *BookRepo) Update(ctx context.Context, b *entity.Book) (int64, error) {
	const q = `UPDATE books SET title = ?, author = ?, description = ?, publication_year = ?, isbn = ?,
		page_count = ?, date_added = ?, status = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		b.Title, b.Author, b.Description, b.PublicationYear, b.ISBN, b.PageCount, b.DateAdded, string(b.Status), b.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, apperr.Duplicate("book", "isbn", b.ISBN)
		}
		return 0, err
	}
	return res.RowsAffected()
}

// SetStatusIf moves a book from one status to another. It reports false when
// the book does not exist or is not currently in status from.
func (r *BookRepo) SetStatusIf(ctx context.Context, id int64, from, to entity.Status) (bool, error) {
	const q = `UPDATE books SET status = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q), string(to), id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateStatus sets the status unconditionally. Returns rows affected.
func (r *BookRepo) UpdateStatus(ctx context.Context, id int64, status entity.Status) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE books SET status = ? WHERE id = ?`), string(status), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes a book. Returns rows affected.
func (r *BookRepo) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM books WHERE id = ?`), id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
