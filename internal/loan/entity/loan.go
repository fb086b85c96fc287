package entity

import (
	"time"

	"github.com/ovaphlow/pitchfork/service-library-go/pkg/utilities"
)

// Status is the lifecycle state of a loan.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusReturned  Status = "RETURNED"
	StatusOverdue   Status = "OVERDUE"
	StatusLost      Status = "LOST"
	StatusRenewed   Status = "RENEWED"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every status in reporting order.
var Statuses = []Status{StatusActive, StatusRenewed, StatusOverdue, StatusReturned, StatusLost, StatusCancelled}

// OpenStatuses are the statuses in which the book is still checked out.
var OpenStatuses = []Status{StatusActive, StatusRenewed}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Loan represents a row in the `loans` table. Dates are calendar dates at
// UTC midnight.
type Loan struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"userId"`
	BookID         int64      `db:"book_id" json:"bookId"`
	LoanDate       time.Time  `db:"loan_date" json:"loanDate"`
	ExpectedReturn time.Time  `db:"expected_return" json:"expectedReturn"`
	ActualReturn   *time.Time `db:"actual_return" json:"actualReturn,omitempty"`
	Status         Status     `db:"status" json:"status"`
	Notes          string     `db:"notes" json:"notes"`
	Fee            *float64   `db:"fee" json:"fee,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsOpen reports whether the book is still out on this loan.
func (l *Loan) IsOpen() bool {
	return l.Status == StatusActive || l.Status == StatusRenewed
}

// IsOverdue reports whether the loan is open and today is past the
// expected return date.
func (l *Loan) IsOverdue(today time.Time) bool {
	return l.IsOpen() && utilities.DateOf(today).After(l.ExpectedReturn)
}

// OverdueDays is the number of days past the expected return date, or 0.
func (l *Loan) OverdueDays(today time.Time) int {
	if !l.IsOverdue(today) {
		return 0
	}
	return utilities.DaysBetween(l.ExpectedReturn, today)
}

// SetStatus changes the status and bumps UpdatedAt.
func (l *Loan) SetStatus(s Status, now time.Time) {
	l.Status = s
	l.UpdatedAt = now
}

// Normalize puts scanned dates back into their canonical form; drivers
// may hand them back in a local or fabricated zone.
func (l *Loan) Normalize() {
	l.LoanDate = utilities.DateOf(l.LoanDate)
	l.ExpectedReturn = utilities.DateOf(l.ExpectedReturn)
	if l.ActualReturn != nil {
		d := utilities.DateOf(*l.ActualReturn)
		l.ActualReturn = &d
	}
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
}
