package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"expensetracker/internal/core"
	"expensetracker/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteLedger persists expenses in a SQLite database. The well-known fields
// live in their own columns; anything else the client sent is kept as JSON in
// details and merged back on read.
type SQLiteLedger struct {
	db     *sql.DB
	logger *log.Logger
}

const (
	insertExpenseSQL = `INSERT INTO expenses (payee, amount, date, details) VALUES (?, ?, ?, ?)`
	expensesOnSQL    = `SELECT id, payee, amount, date, details FROM expenses WHERE date = ? ORDER BY id`
)

// NewSQLiteLedger opens (creating if needed) the database at dbPath and runs
// pending migrations.
func NewSQLiteLedger(dbPath string, logger *log.Logger) (*SQLiteLedger, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	return &SQLiteLedger{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (l *SQLiteLedger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (l *SQLiteLedger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Record validates and inserts the expense.
func (l *SQLiteLedger) Record(ctx context.Context, e core.Expense) (core.RecordResult, error) {
	if err := core.ValidateExpense(e); err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			return core.Rejected{Message: verr.Error()}, nil
		}
		return nil, err
	}

	payee := e[core.FieldPayee].(string)
	amount, _ := core.AmountOf(e[core.FieldAmount])
	date, _ := e.Date()

	details, err := encodeDetails(e)
	if err != nil {
		return nil, fmt.Errorf("encode expense details: %w", err)
	}

	res, err := l.db.ExecContext(ctx, insertExpenseSQL, payee, amount, date, details)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("read inserted expense id: %w", err)
	}

	l.logger.DebugContext(ctx, "Expense saved to SQLite", log.FieldExpenseID, id, log.FieldDate, date)
	return core.Recorded{ExpenseID: id}, nil
}

// ExpensesOn returns the expenses dated date ordered by id.
func (l *SQLiteLedger) ExpensesOn(ctx context.Context, date string) ([]core.Expense, error) {
	rows, err := l.db.QueryContext(ctx, expensesOnSQL, date)
	if err != nil {
		return nil, fmt.Errorf("query expenses on %s: %w", date, err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		var (
			id      int64
			payee   string
			amount  float64
			day     string
			details string
		)
		if err := rows.Scan(&id, &payee, &amount, &day, &details); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}

		e, err := decodeDetails(details)
		if err != nil {
			return nil, fmt.Errorf("decode details of expense %d: %w", id, err)
		}
		e[core.FieldID] = id
		e[core.FieldPayee] = payee
		e[core.FieldAmount] = amount
		e[core.FieldDate] = day
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func encodeDetails(e core.Expense) (string, error) {
	extra := make(map[string]any, len(e))
	for k, v := range e {
		switch k {
		case core.FieldID, core.FieldPayee, core.FieldAmount, core.FieldDate:
			continue
		}
		extra[k] = v
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeDetails(s string) (core.Expense, error) {
	e := core.Expense{}
	if s == "" {
		return e, nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&e); err != nil {
		return nil, err
	}
	return e, nil
}
