package core

import (
	"errors"
	"maps"
)

// Well-known expense fields. The HTTP layer never looks at them; ledgers do.
const (
	FieldID     = "id"
	FieldPayee  = "payee"
	FieldAmount = "amount"
	FieldDate   = "date"
)

// DateLayout is the layout of the date key expenses are looked up by.
const DateLayout = "2006-01-02"

type (
	// Expense is an opaque JSON object describing one expense.
	Expense map[string]any

	// RecordResult is the outcome of recording an expense: either Recorded or Rejected.
	RecordResult interface {
		recordResult()
	}

	// Recorded reports that the ledger stored the expense under ExpenseID.
	Recorded struct {
		ExpenseID int64
	}

	// Rejected reports that the ledger refused the expense.
	Rejected struct {
		Message string
	}
)

func (Recorded) recordResult() {}
func (Rejected) recordResult() {}

var ErrNotObject = errors.New("expense must be a JSON object")

// Date returns the expense's date key, if it has a string one.
func (e Expense) Date() (string, bool) {
	d, ok := e[FieldDate].(string)
	return d, ok
}

// Clone returns a deep copy of the expense so cached or stored values
// can't be mutated through the returned map.
func (e Expense) Clone() Expense {
	if e == nil {
		return nil
	}
	out := make(Expense, len(e))
	for k, v := range e {
		out[k] = cloneValue(v)
	}
	return out
}

// WithID returns a copy of the expense carrying the given id.
func (e Expense) WithID(id int64) Expense {
	out := e.Clone()
	if out == nil {
		out = Expense{}
	}
	out[FieldID] = id
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := maps.Clone(val)
		for k, inner := range m {
			m[k] = cloneValue(inner)
		}
		return m
	case Expense:
		return val.Clone()
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}

// CloneAll deep-copies a slice of expenses. A nil input yields an empty, non-nil slice.
func CloneAll(in []Expense) []Expense {
	out := make([]Expense, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}
