package loan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
	bookentity "github.com/ovaphlow/pitchfork/service-library-go/internal/book/entity"
	bookrepo "github.com/ovaphlow/pitchfork/service-library-go/internal/book/repo"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/loan/entity"
	loanrepo "github.com/ovaphlow/pitchfork/service-library-go/internal/loan/repo"
	userentity "github.com/ovaphlow/pitchfork/service-library-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-library-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-library-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-library-go/pkg/utilities"
)

// Service runs the loan lifecycle. Every mutation happens in one
// transaction that also moves the book between AVAILABLE and LOANED.
type Service struct {
	db     *sqlx.DB
	loans  *loanrepo.LoanRepo
	books  *bookrepo.BookRepo
	users  *userrepo.UserRepo
	policy Policy
	clock  clockwork.Clock
	logger *zap.SugaredLogger
}

func NewService(db *sqlx.DB, policy Policy, clock clockwork.Clock, logger *zap.SugaredLogger) *Service {
	return &Service{
		db:     db,
		loans:  loanrepo.NewLoanRepo(db),
		books:  bookrepo.NewBookRepo(db),
		users:  userrepo.NewUserRepo(db),
		policy: policy,
		clock:  clock,
		logger: logger,
	}
}

// Policy returns the rules the service was built with.
func (s *Service) Policy() Policy { return s.policy }

// Borrow lends book bookID to user userID for the policy loan period.
func (s *Service) Borrow(ctx context.Context, userID, bookID int64) (*entity.Loan, error) {
	var l *entity.Loan
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		users, books, loans := s.users.WithTx(tx), s.books.WithTx(tx), s.loans.WithTx(tx)

		u, err := users.GetByIDForUpdate(ctx, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("user", userID)
		}
		if err != nil {
			return err
		}
		if u.Status != userentity.StatusActive {
			return apperr.InvalidState("user not active")
		}

		b, err := books.GetByIDForUpdate(ctx, bookID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("book", bookID)
		}
		if err != nil {
			return err
		}
		if b.Status != bookentity.StatusAvailable {
			return apperr.InvalidState("book not available")
		}

		active, err := loans.Count(ctx, loanrepo.Filter{UserID: userID, Statuses: []entity.Status{entity.StatusActive}})
		if err != nil {
			return err
		}
		if active >= int64(s.policy.MaxActive) {
			return apperr.LimitExceeded(fmt.Sprintf("user %d already has %d active loans", userID, active))
		}

		now := s.clock.Now().UTC()
		today := utilities.DateOf(now)
		l = &entity.Loan{
			UserID:         userID,
			BookID:         bookID,
			LoanDate:       today,
			ExpectedReturn: today.AddDate(0, 0, s.policy.LoanDays),
			Status:         entity.StatusActive,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err := loans.Create(ctx, l); err != nil {
			return err
		}
		ok, err := books.SetStatusIf(ctx, bookID, bookentity.StatusAvailable, bookentity.StatusLoaned)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.InvalidState("book not available")
		}
		return nil
	})
	if err != nil {
		s.logger.Debugw("borrow rejected", "user_id", userID, "book_id", bookID, "err", err)
		return nil, err
	}
	s.logger.Infow("loan created", "id", l.ID, "user_id", userID, "book_id", bookID, "due", l.ExpectedReturn)
	return l, nil
}

// Return closes an open loan, charging the late fee when it is overdue,
// and puts the book back on the shelf.
func (s *Service) Return(ctx context.Context, id int64, notes string) (*entity.Loan, error) {
	var l *entity.Loan
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if l, err = s.lockOpen(ctx, tx, id, "loan not active"); err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		today := utilities.DateOf(now)
		l.Fee = s.policy.Fee(l.OverdueDays(now))
		l.ActualReturn = &today
		l.Notes = notes
		l.SetStatus(entity.StatusReturned, now)
		if _, err := s.loans.WithTx(tx).Update(ctx, l); err != nil {
			return err
		}
		_, err = s.books.WithTx(tx).UpdateStatus(ctx, l.BookID, bookentity.StatusAvailable)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("loan returned", "id", id, "fee", l.Fee)
	return l, nil
}

// Renew extends an ACTIVE loan that is not overdue by one loan period.
// A loan can be renewed once.
func (s *Service) Renew(ctx context.Context, id int64) (*entity.Loan, error) {
	var l *entity.Loan
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		loans := s.loans.WithTx(tx)
		var err error
		l, err = loans.GetByIDForUpdate(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("loan", id)
		}
		if err != nil {
			return err
		}
		if l.Status != entity.StatusActive {
			return apperr.InvalidState("loan not active")
		}
		now := s.clock.Now().UTC()
		if l.IsOverdue(now) {
			return apperr.InvalidState("cannot renew overdue loan")
		}
		l.ExpectedReturn = l.ExpectedReturn.AddDate(0, 0, s.policy.LoanDays)
		l.SetStatus(entity.StatusRenewed, now)
		_, err = loans.Update(ctx, l)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("loan renewed", "id", id, "due", l.ExpectedReturn)
	return l, nil
}

// MarkLost closes an open loan whose book will not come back.
func (s *Service) MarkLost(ctx context.Context, id int64, notes string) (*entity.Loan, error) {
	return s.close(ctx, id, notes, entity.StatusLost, bookentity.StatusLost)
}

// Cancel voids an open loan and releases the book.
func (s *Service) Cancel(ctx context.Context, id int64, notes string) (*entity.Loan, error) {
	return s.close(ctx, id, notes, entity.StatusCancelled, bookentity.StatusAvailable)
}

func (s *Service) close(ctx context.Context, id int64, notes string, to entity.Status, bookTo bookentity.Status) (*entity.Loan, error) {
	var l *entity.Loan
	err := database.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		if l, err = s.lockOpen(ctx, tx, id, "loan is already closed"); err != nil {
			return err
		}
		if notes != "" {
			l.Notes = notes
		}
		l.SetStatus(to, s.clock.Now().UTC())
		if _, err := s.loans.WithTx(tx).Update(ctx, l); err != nil {
			return err
		}
		_, err = s.books.WithTx(tx).UpdateStatus(ctx, l.BookID, bookTo)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Infow("loan closed", "id", id, "status", to)
	return l, nil
}

func (s *Service) lockOpen(ctx context.Context, tx *sqlx.Tx, id int64, reason string) (*entity.Loan, error) {
	l, err := s.loans.WithTx(tx).GetByIDForUpdate(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("loan", id)
	}
	if err != nil {
		return nil, err
	}
	if !l.IsOpen() {
		return nil, apperr.InvalidState(reason)
	}
	return l, nil
}

// Delete removes the loan record only; the book and user are untouched.
func (s *Service) Delete(ctx context.Context, id int64) error {
	n, err := s.loans.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("loan", id)
	}
	s.logger.Infow("loan deleted", "id", id)
	return nil
}

func (s *Service) List(ctx context.Context) ([]*entity.Loan, error) {
	return s.loans.Find(ctx, loanrepo.Filter{})
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.Loan, error) {
	l, err := s.loans.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("loan", id)
	}
	return l, err
}

// FindActive returns loans in status ACTIVE, overdue or not.
func (s *Service) FindActive(ctx context.Context) ([]*entity.Loan, error) {
	return s.loans.Find(ctx, loanrepo.Filter{Statuses: []entity.Status{entity.StatusActive}})
}

// FindOverdue returns open loans whose expected return is before today.
func (s *Service) FindOverdue(ctx context.Context) ([]*entity.Loan, error) {
	return s.loans.Find(ctx, s.overdueFilter())
}

// FindDueSoon returns ACTIVE loans due between today and the end of the
// due-soon window, both inclusive.
func (s *Service) FindDueSoon(ctx context.Context) ([]*entity.Loan, error) {
	today := s.today()
	to := today.AddDate(0, 0, s.policy.DueSoonDays)
	return s.loans.Find(ctx, loanrepo.Filter{Statuses: []entity.Status{entity.StatusActive}, DueFrom: &today, DueTo: &to})
}

func (s *Service) overdueFilter() loanrepo.Filter {
	yesterday := s.today().AddDate(0, 0, -1)
	return loanrepo.Filter{Statuses: entity.OpenStatuses, DueTo: &yesterday}
}

func (s *Service) today() time.Time { return utilities.DateOf(s.clock.Now().UTC()) }

// FindByUser lists every loan of user userID.
func (s *Service) FindByUser(ctx context.Context, userID int64) ([]*entity.Loan, error) {
	if _, err := s.users.GetByID(ctx, userID); errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user", userID)
	} else if err != nil {
		return nil, err
	}
	return s.loans.Find(ctx, loanrepo.Filter{UserID: userID})
}

// FindByBook lists every loan of book bookID.
func (s *Service) FindByBook(ctx context.Context, bookID int64) ([]*entity.Loan, error) {
	if _, err := s.books.GetByID(ctx, bookID); errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("book", bookID)
	} else if err != nil {
		return nil, err
	}
	return s.loans.Find(ctx, loanrepo.Filter{BookID: bookID})
}

// FindByStatus lists loans by stored status. OVERDUE is never stored and
// is answered from dates instead.
func (s *Service) FindByStatus(ctx context.Context, status entity.Status) ([]*entity.Loan, error) {
	if !status.Valid() {
		return nil, apperr.Invalid("status", "is unknown")
	}
	if status == entity.StatusOverdue {
		return s.FindOverdue(ctx)
	}
	return s.loans.Find(ctx, loanrepo.Filter{Statuses: []entity.Status{status}})
}

// CountByStatus counts loans the same way FindByStatus lists them.
func (s *Service) CountByStatus(ctx context.Context, status entity.Status) (int64, error) {
	if !status.Valid() {
		return 0, apperr.Invalid("status", "is unknown")
	}
	if status == entity.StatusOverdue {
		return s.loans.Count(ctx, s.overdueFilter())
	}
	return s.loans.Count(ctx, loanrepo.Filter{Statuses: []entity.Status{status}})
}

// Statistics summarizes the loan table.
type Statistics struct {
	// ByStatus has an entry for every status. ACTIVE and RENEWED include
	// loans that are also counted under OVERDUE.
	ByStatus map[entity.Status]int64 `json:"byStatus"`
	Total    int64                   `json:"total"`
}

func (s *Service) Statistics(ctx context.Context) (*Statistics, error) {
	counts, err := s.loans.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	overdue, err := s.loans.Count(ctx, s.overdueFilter())
	if err != nil {
		return nil, err
	}
	st := &Statistics{ByStatus: make(map[entity.Status]int64, len(entity.Statuses))}
	for _, status := range entity.Statuses {
		st.ByStatus[status] = counts[status]
		st.Total += counts[status]
	}
	st.ByStatus[entity.StatusOverdue] = overdue
	return st, nil
}
