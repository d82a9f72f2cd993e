package memory

import (
	"context"
	"errors"
	"sync"

	"expensetracker/internal/core"
)

// Ledger is an in-process ledger. Expenses are lost when the process exits.
type Ledger struct {
	mu       sync.RWMutex
	expenses []core.Expense
	nextID   int64
}

func New() *Ledger {
	return &Ledger{nextID: 1}
}

// Record validates the expense and appends a copy of it with a fresh id.
func (l *Ledger) Record(ctx context.Context, e core.Expense) (core.RecordResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := core.ValidateExpense(e); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return core.Rejected{Message: verr.Error()}, nil
		}
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.expenses = append(l.expenses, e.WithID(id))
	return core.Recorded{ExpenseID: id}, nil
}

// ExpensesOn returns copies of the expenses dated date, in insertion order.
func (l *Ledger) ExpensesOn(ctx context.Context, date string) ([]core.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := []core.Expense{}
	for _, e := range l.expenses {
		if d, ok := e.Date(); ok && d == date {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

// Len reports how many expenses are stored.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.expenses)
}

func (l *Ledger) Close() error { return nil }
