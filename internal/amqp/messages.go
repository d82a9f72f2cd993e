package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"expensetracker/internal/core"
)

// ExpenseRecordedMessage is published once per expense the ledger accepts.
// It carries the full expense so consumers never have to read the ledger back.
type ExpenseRecordedMessage struct {
	ID        int64        `json:"id"`
	Expense   core.Expense `json:"expense"`
	Timestamp time.Time    `json:"timestamp"`
	// RequestID is the id of the HTTP request that recorded the expense.
	RequestID string       `json:"request_id,omitempty"`
}

func NewExpenseRecordedMessage(id int64, e core.Expense) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		ID:        id,
		Expense:   e.Clone(),
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

var errMissingID = errors.New("message has no expense id")

// ExpenseRecordedMessageFromJSON decodes and sanity-checks a message body.
func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode expense recorded message: %w", err)
	}
	if msg.ID <= 0 {
		return nil, errMissingID
	}
	if msg.Expense == nil {
		msg.Expense = core.Expense{}
	}
	return &msg, nil
}
