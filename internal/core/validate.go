package core

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError describes the first rule an expense broke.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid expense: `%s` %s", e.Field, e.Reason)
}

const (
	reasonRequired   = "is required"
	reasonString     = "must be a string"
	reasonNumber     = "must be a number"
	reasonDateFormat = "must be in YYYY-MM-DD format"
)

// ValidateExpense checks payee, amount and date, in that order, and returns
// a *ValidationError for the first one that is missing or malformed.
func ValidateExpense(e Expense) error {
	if err := validatePayee(e); err != nil {
		return err
	}
	if err := validateAmount(e); err != nil {
		return err
	}
	return validateDate(e)
}

func validatePayee(e Expense) error {
	raw, ok := e[FieldPayee]
	if !ok || raw == nil {
		return &ValidationError{Field: FieldPayee, Reason: reasonRequired}
	}
	payee, ok := raw.(string)
	if !ok {
		return &ValidationError{Field: FieldPayee, Reason: reasonString}
	}
	if err := validate.Var(payee, "required"); err != nil {
		return &ValidationError{Field: FieldPayee, Reason: reasonRequired}
	}
	return nil
}

func validateAmount(e Expense) error {
	raw, ok := e[FieldAmount]
	if !ok || raw == nil {
		return &ValidationError{Field: FieldAmount, Reason: reasonRequired}
	}
	if _, ok := AmountOf(raw); !ok {
		return &ValidationError{Field: FieldAmount, Reason: reasonNumber}
	}
	return nil
}

func validateDate(e Expense) error {
	raw, ok := e[FieldDate]
	if !ok || raw == nil {
		return &ValidationError{Field: FieldDate, Reason: reasonRequired}
	}
	date, ok := raw.(string)
	if !ok {
		return &ValidationError{Field: FieldDate, Reason: reasonDateFormat}
	}
	if err := validate.Var(date, "required,datetime="+DateLayout); err != nil {
		return &ValidationError{Field: FieldDate, Reason: reasonDateFormat}
	}
	return nil
}

// AmountOf converts the numeric representations an amount can arrive in
// (decoded JSON, json.Number, or Go integers) to a float64.
func AmountOf(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
