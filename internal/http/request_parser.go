// Package http exposes the ledger over a JSON HTTP API.
//
// This file decodes request bodies and maps decoding failures onto status
// codes.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"expensetracker/internal/core"
)

// RequestError is a client error detected before the ledger is called.
type RequestError struct {
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string { return e.Message }

func (e *RequestError) Unwrap() error { return e.Err }

// Response renders the error as a JSON response.
func (e *RequestError) Response() *JSONResponseBuilder {
	if e.Status == http.StatusBadRequest {
		return BadRequestError(e.Message)
	}
	return ErrorResponse(e.Status, e.Message)
}

var errTrailingData = errors.New("unexpected data after JSON object")

// ParseExpense reads exactly one JSON object from the body, at most maxBytes
// long. Numbers are kept as json.Number so they reach the ledger unchanged.
func ParseExpense(w http.ResponseWriter, r *http.Request, maxBytes int64) (core.Expense, error) {
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, decodeError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errTrailingData
		}
		return nil, decodeError(err)
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, invalidJSON(core.ErrNotObject)
	}
	return core.Expense(obj), nil
}

func decodeError(err error) *RequestError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &RequestError{
			Status:  http.StatusRequestEntityTooLarge,
			Message: "request body too large",
			Err:     err,
		}
	}
	if errors.Is(err, io.EOF) {
		err = errors.New("empty body")
	}
	return invalidJSON(err)
}

func invalidJSON(err error) *RequestError {
	return &RequestError{
		Status:  http.StatusBadRequest,
		Message: fmt.Sprintf("invalid JSON body: %v", err),
		Err:     err,
	}
}
