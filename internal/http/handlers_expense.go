package http

import (
	"errors"
	"fmt"
	"net/http"

	"expensetracker/internal/config"
	"expensetracker/internal/core"
	"expensetracker/internal/ledger"
	"expensetracker/internal/log"
)

// API serves the two ledger operations. It holds no mutable state; every
// request makes exactly one ledger call.
type API struct {
	ledger       ledger.Ledger
	maxBodyBytes int64
}

// APIOption customizes an API.
type APIOption func(*API)

// WithMaxBodyBytes caps the size of POST bodies.
func WithMaxBodyBytes(n int64) APIOption {
	return func(a *API) {
		if n > 0 {
			a.maxBodyBytes = n
		}
	}
}

func NewAPI(l ledger.Ledger, opts ...APIOption) *API {
	a := &API{ledger: l, maxBodyBytes: config.DefaultMaxBodyBytes}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HandleRecordExpense serves POST /expenses.
func (a *API) HandleRecordExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	expense, err := ParseExpense(w, r, a.maxBodyBytes)
	if err != nil {
		var reqErr *RequestError
		if !errors.As(err, &reqErr) {
			reqErr = invalidJSON(err)
		}
		log.FromContext(ctx).DebugContext(ctx, "Rejected request body", log.FieldError, err)
		writeResponse(r, w, reqErr.Response())
		return
	}

	result, err := a.ledger.Record(ctx, expense)
	if err != nil {
		logFailure(r, "Failed to record expense", err, log.OpRecord, nil)
		writeResponse(r, w, InternalServerError())
		return
	}

	switch res := result.(type) {
	case core.Recorded:
		writeResponse(r, w, NewJSONResponse().Body(recordedBody{ExpenseID: res.ExpenseID}))
	case core.Rejected:
		writeResponse(r, w, UnprocessableEntityError(res.Message))
	default:
		logFailure(r, "Unknown record result", fmt.Errorf("unexpected result type %T", result), log.OpRecord, nil)
		writeResponse(r, w, InternalServerError())
	}
}

// HandleExpensesOn serves GET /expenses/{date}. The date segment is passed to
// the ledger as-is.
func (a *API) HandleExpensesOn(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")

	expenses, err := a.ledger.ExpensesOn(r.Context(), date)
	if err != nil {
		logFailure(r, "Failed to list expenses", err, log.OpList, log.NewFields().WithDate(date))
		writeResponse(r, w, InternalServerError())
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	writeResponse(r, w, NewJSONResponse().Body(expenses))
}
