package book

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/book/entity"
	bookrepo "github.com/ovaphlow/pitchfork/service-library-go/internal/book/repo"
	loanentity "github.com/ovaphlow/pitchfork/service-library-go/internal/loan/entity"
	loanrepo "github.com/ovaphlow/pitchfork/service-library-go/internal/loan/repo"
	"github.com/ovaphlow/pitchfork/service-library-go/pkg/database"
)

// Service is the book catalog. LOANED is owned by the loan lifecycle: it
// can be neither set nor cleared here.
type Service struct {
	db     *sqlx.DB
	books  *bookrepo.BookRepo
	loans  *loanrepo.LoanRepo
	clock  clockwork.Clock
	logger *zap.SugaredLogger
}

func NewService(db *sqlx.DB, clock clockwork.Clock, logger *zap.SugaredLogger) *Service {
	return &Service{
		db:     db,
		books:  bookrepo.NewBookRepo(db),
		loans:  loanrepo.NewLoanRepo(db),
		clock:  clock,
		logger: logger,
	}
}

func (s *Service) List(ctx context.Context) ([]*entity.Book, error) {
	return s.books.Find(ctx, bookrepo.Filter{})
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.Book, error) {
	b, err := s.books.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("book", id)
	}
	return b, err
}

// Create adds a book to the catalog. DateAdded defaults to now and Status
// to AVAILABLE.
func (s *Service) Create(ctx context.Context, b *entity.Book) (*entity.Book, error) {
	now := s.clock.Now()
	b.ID = 0
	if b.Status == "" {
		b.Status = entity.StatusAvailable
	}
	if b.DateAdded.IsZero() {
		b.DateAdded = now
	}
	b.DateAdded = b.DateAdded.UTC()
	if err := b.Validate(now); err != nil {
		return nil, err
	}
	if b.Status == entity.StatusLoaned {
		return nil, apperr.InvalidState("a new book cannot be LOANED")
	}
	if _, err := s.books.GetByISBN(ctx, b.ISBN); err == nil {
		return nil, apperr.Duplicate("book", "isbn", b.ISBN)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, err := s.books.Create(ctx, b); err != nil {
		return nil, err
	}
	s.logger.Infow("book created", "id", b.ID, "isbn", b.ISBN)
	return b, nil
}

// Update overwrites book id. An empty status or date added keeps the
// stored value.
func (s *Service) Update(ctx context.Context, id int64, b *entity.Book) (*entity.Book, error) {
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		books := s.books.WithTx(tx)
		cur, err := books.GetByIDForUpdate(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("book", id)
		}
		if err != nil {
			return err
		}

		b.ID = id
		if b.Status == "" {
			b.Status = cur.Status
		}
		if b.DateAdded.IsZero() {
			b.DateAdded = cur.DateAdded
		}
		b.DateAdded = b.DateAdded.UTC()
		if err := b.Validate(s.clock.Now()); err != nil {
			return err
		}
		if err := checkStatusChange(cur.Status, b.Status); err != nil {
			return err
		}
		if other, err := books.GetByISBN(ctx, b.ISBN); err == nil && other.ID != id {
			return apperr.Duplicate("book", "isbn", b.ISBN)
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		_, err = books.Update(ctx, b)
		return err
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ChangeStatus moves a book between catalog states such as UNDER_REPAIR,
// LOST or RETIRED.
func (s *Service) ChangeStatus(ctx context.Context, id int64, status entity.Status) (*entity.Book, error) {
	if !status.Valid() {
		return nil, apperr.Invalid("status", "is unknown")
	}
	var b *entity.Book
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		books := s.books.WithTx(tx)
		cur, err := books.GetByIDForUpdate(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("book", id)
		}
		if err != nil {
			return err
		}
		if err := checkStatusChange(cur.Status, status); err != nil {
			return err
		}
		if _, err := books.UpdateStatus(ctx, id, status); err != nil {
			return err
		}
		cur.Status = status
		b = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("book status changed", "id", id, "status", status)
	return b, nil
}

func checkStatusChange(from, to entity.Status) error {
	if from == to {
		return nil
	}
	if from == entity.StatusLoaned {
		return apperr.InvalidState("book is on loan")
	}
	if to == entity.StatusLoaned {
		return apperr.InvalidState("books are loaned through the loan desk")
	}
	return nil
}

// Delete removes a book. Books with open loans cannot be deleted; closed
// loans go with them.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := s.books.WithTx(tx).GetByIDForUpdate(ctx, id); errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("book", id)
		} else if err != nil {
			return err
		}
		open, err := s.loans.WithTx(tx).Count(ctx, loanrepo.Filter{BookID: id, Statuses: loanentity.OpenStatuses})
		if err != nil {
			return err
		}
		if open > 0 {
			return apperr.InvalidState("book has open loans")
		}
		_, err = s.books.WithTx(tx).Delete(ctx, id)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Infow("book deleted", "id", id)
	return nil
}

func (s *Service) FindByTitle(ctx context.Context, title string) ([]*entity.Book, error) {
	return s.books.Find(ctx, bookrepo.Filter{Title: &title})
}

func (s *Service) FindByAuthor(ctx context.Context, author string) ([]*entity.Book, error) {
	return s.books.Find(ctx, bookrepo.Filter{Author: &author})
}

// FindByISBN returns the book with the exact ISBN.
func (s *Service) FindByISBN(ctx context.Context, isbn string) (*entity.Book, error) {
	b, err := s.books.GetByISBN(ctx, isbn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundBy("book", "isbn", isbn)
	}
	return b, err
}

func (s *Service) FindByStatus(ctx context.Context, status entity.Status) ([]*entity.Book, error) {
	return s.books.Find(ctx, bookrepo.Filter{Status: &status})
}

func (s *Service) FindAvailable(ctx context.Context) ([]*entity.Book, error) {
	return s.FindByStatus(ctx, entity.StatusAvailable)
}

func (s *Service) FindLoaned(ctx context.Context) ([]*entity.Book, error) {
	return s.FindByStatus(ctx, entity.StatusLoaned)
}

// Search combines the optional criteria with AND.
func (s *Service) Search(ctx context.Context, title, author *string, status *entity.Status) ([]*entity.Book, error) {
	return s.books.Find(ctx, bookrepo.Filter{Title: title, Author: author, Status: status})
}

func (s *Service) CountByStatus(ctx context.Context, status entity.Status) (int64, error) {
	return s.books.Count(ctx, bookrepo.Filter{Status: &status})
}
