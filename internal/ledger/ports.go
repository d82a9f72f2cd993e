package ledger

import (
	"context"

	"expensetracker/internal/core"
)

// Ports implemented by ledger backends and consumed by the HTTP layer.
type (
	// Recorder validates and stores an expense. A rule violation is reported
	// as core.Rejected; only infrastructure failures come back as errors.
	Recorder interface {
		Record(ctx context.Context, e core.Expense) (core.RecordResult, error)
	}

	// DailyLister returns the expenses recorded for a YYYY-MM-DD date, in
	// ledger order. An unknown date yields an empty slice, not an error.
	DailyLister interface {
		ExpensesOn(ctx context.Context, date string) ([]core.Expense, error)
	}

	Ledger interface {
		Recorder
		DailyLister
	}
)
