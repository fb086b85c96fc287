package loan

import (
	"os"
	"strconv"
)

// Policy holds the circulation rules.
type Policy struct {
	LoanDays    int
	MaxActive   int
	DailyFee    float64
	DueSoonDays int
}

// DefaultPolicy is a 15 day loan, 3 open loans per user and 1.0 per
// overdue day.
func DefaultPolicy() Policy {
	return Policy{LoanDays: 15, MaxActive: 3, DailyFee: 1.0, DueSoonDays: 3}
}

// PolicyFromEnv overrides the defaults with LOAN_DAYS, LOAN_MAX_ACTIVE,
// LOAN_DAILY_FEE and LOAN_DUE_SOON_DAYS. Unparseable or non-positive
// values are ignored.
func PolicyFromEnv() Policy {
	p := DefaultPolicy()
	if v, ok := envInt("LOAN_DAYS"); ok {
		p.LoanDays = v
	}
	if v, ok := envInt("LOAN_MAX_ACTIVE"); ok {
		p.MaxActive = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("LOAN_DAILY_FEE"), 64); err == nil && v >= 0 {
		p.DailyFee = v
	}
	if v, ok := envInt("LOAN_DUE_SOON_DAYS"); ok {
		p.DueSoonDays = v
	}
	return p
}

func envInt(key string) (int, bool) {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// Fee is the late charge for a loan returned overdueDays late. It is nil
// when the loan was not late.
func (p Policy) Fee(overdueDays int) *float64 {
	if overdueDays <= 0 {
		return nil
	}
	f := float64(overdueDays) * p.DailyFee
	return &f
}
