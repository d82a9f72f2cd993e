package worker

import (
	"context"
	"fmt"
	"strconv"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cache"
	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/sheets"
)

// Consumer delivers recorded-expense events until ctx is cancelled.
type Consumer interface {
	ConsumeExpenseRecorded(ctx context.Context, handler amqp.Handler) error
}

// MirrorWorker copies every recorded expense into a spreadsheet row.
type MirrorWorker struct {
	sheets  sheets.RowAppender
	metrics *metrics.Metrics
	logger  *log.Logger

	// ids appended by this process; broker redeliveries are skipped
	mirrored *cache.LRUCache[string]
}

func NewMirrorWorker(appender sheets.RowAppender, m *metrics.Metrics, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{
		sheets:   appender,
		metrics:  m,
		logger:   logger.WithComponent(log.ComponentWorker),
		mirrored: cache.NewLRUCache[string](4096, 0),
	}
}

// HandleExpenseRecorded appends one row. A returned error makes the
// consumer requeue the message.
func (w *MirrorWorker) HandleExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error {
	key := strconv.FormatInt(msg.ID, 10)
	if ref, ok := w.mirrored.Get(key); ok {
		w.logger.InfoContext(ctx, "Skipping already mirrored expense", log.FieldExpenseID, msg.ID, "range", ref)
		return nil
	}

	row := sheets.ExpenseRow(msg.ID, msg.Expense)
	ref, err := w.sheets.AppendRow(ctx, row)
	w.metrics.ObserveMirror(err)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to mirror expense",
			log.FieldExpenseID, msg.ID,
			log.FieldOperation, log.OpAppend,
			log.FieldError, err)
		return fmt.Errorf("append expense %d: %w", msg.ID, err)
	}

	w.mirrored.Set(key, ref)
	w.logger.InfoContext(ctx, "Mirrored expense",
		log.FieldExpenseID, msg.ID,
		log.FieldRequestID, msg.RequestID,
		"range", ref)
	return nil
}

// Run consumes until ctx is cancelled.
func (w *MirrorWorker) Run(ctx context.Context, c Consumer) error {
	w.logger.InfoContext(ctx, "Mirror worker started")
	err := c.ConsumeExpenseRecorded(ctx, w.HandleExpenseRecorded)
	w.logger.InfoContext(ctx, "Mirror worker stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}
