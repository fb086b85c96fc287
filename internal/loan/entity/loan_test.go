package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoan_Overdue(t *testing.T) {
	due := time.Date(2026, 10, 30, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		status  Status
		today   time.Time
		overdue bool
		days    int
	}{
		{"active before due", StatusActive, due.AddDate(0, 0, -1), false, 0},
		{"active on due date", StatusActive, due.Add(22 * time.Hour), false, 0},
		{"active one day late", StatusActive, due.AddDate(0, 0, 1), true, 1},
		{"renewed four days late", StatusRenewed, due.AddDate(0, 0, 4), true, 4},
		{"returned late is not overdue", StatusReturned, due.AddDate(0, 0, 9), false, 0},
		{"lost is not overdue", StatusLost, due.AddDate(0, 0, 9), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := Loan{Status: tt.status, ExpectedReturn: due}
			assert.Equal(t, tt.overdue, l.IsOverdue(tt.today))
			assert.Equal(t, tt.days, l.OverdueDays(tt.today))
		})
	}
}

func TestLoan_SetStatus(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	l := Loan{Status: StatusActive}

	l.SetStatus(StatusRenewed, now)

	assert.Equal(t, StatusRenewed, l.Status)
	assert.True(t, l.UpdatedAt.Equal(now))
	assert.True(t, l.IsOpen())
}
