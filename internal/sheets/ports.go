package sheets

import (
	"context"

	"expensetracker/internal/core"
)

// RowAppender is the outbound port of the spreadsheet mirror.
type RowAppender interface {
	// AppendRow adds one row after the last used one and returns its range.
	AppendRow(ctx context.Context, row []any) (rowRef string, err error)
}

// ExpenseRow lays out a recorded expense as [id, date, payee, amount].
// Missing or malformed fields become empty cells.
func ExpenseRow(id int64, e core.Expense) []any {
	row := []any{id, "", "", ""}
	if date, ok := e.Date(); ok {
		row[1] = date
	}
	if payee, ok := e[core.FieldPayee].(string); ok {
		row[2] = payee
	}
	if amount, ok := core.AmountOf(e[core.FieldAmount]); ok {
		row[3] = amount
	}
	return row
}
