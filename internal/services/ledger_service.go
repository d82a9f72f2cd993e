package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/ledger"
	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
	"expensetracker/internal/middleware/trace"
)

// Publisher announces recorded expenses to downstream consumers.
type Publisher interface {
	PublishExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error
	Close() error
}

// LedgerService wraps a backing ledger with a per-date read cache, event
// publication and metrics. It satisfies ledger.Ledger itself.
type LedgerService struct {
	backing   ledger.Ledger
	cache     cache.Cache[[]core.Expense]
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *log.Logger

	group singleflight.Group
	// generation bumps on every successful Record so loads that raced a
	// write neither populate the cache nor get shared with later readers.
	generation atomic.Uint64
}

type Option func(*LedgerService)

func WithCache(c cache.Cache[[]core.Expense]) Option {
	return func(s *LedgerService) { s.cache = c }
}

func WithPublisher(p Publisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *LedgerService) { s.metrics = m }
}

func WithLogger(l *log.Logger) Option {
	return func(s *LedgerService) { s.logger = l }
}

func NewLedgerService(backing ledger.Ledger, opts ...Option) *LedgerService {
	s := &LedgerService{backing: backing}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Discard()
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	return s
}

// Record stores the expense through the backing ledger. Accepted expenses
// invalidate their date in the cache and are published; a failed publish is
// logged only, since the expense is already stored.
func (s *LedgerService) Record(ctx context.Context, e core.Expense) (core.RecordResult, error) {
	res, err := s.backing.Record(ctx, e)
	if err != nil {
		s.metrics.ObserveRecord(metrics.OutcomeError)
		return nil, fmt.Errorf("record expense: %w", err)
	}

	switch r := res.(type) {
	case core.Recorded:
		s.metrics.ObserveRecord(metrics.OutcomeRecorded)
		date, _ := e.Date()
		s.generation.Add(1)
		if s.cache != nil {
			s.cache.Delete(date)
		}
		s.logger.InfoContext(ctx, "Expense recorded", log.FieldExpenseID, r.ExpenseID, log.FieldDate, date)
		s.publish(ctx, r.ExpenseID, e)
	case core.Rejected:
		s.metrics.ObserveRecord(metrics.OutcomeRejected)
		s.logger.InfoContext(ctx, "Expense rejected", "reason", r.Message)
	}
	return res, nil
}

func (s *LedgerService) publish(ctx context.Context, id int64, e core.Expense) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewExpenseRecordedMessage(id, e)
	msg.RequestID = trace.GetRequestID(ctx)
	err := s.publisher.PublishExpenseRecorded(ctx, msg)
	s.metrics.ObservePublish(err)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense recorded message",
			log.FieldExpenseID, id, log.FieldError, err, log.FieldOperation, log.OpPublish)
	}
}

// ExpensesOn serves the date from cache when possible. Concurrent misses for
// the same date share one backing query, which is detached from any single
// caller's cancellation; each caller still stops waiting when its own ctx ends.
// Callers always get their own copy.
func (s *LedgerService) ExpensesOn(ctx context.Context, date string) ([]core.Expense, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(date); ok {
			s.metrics.ObserveCache(true)
			return core.CloneAll(cached), nil
		}
		s.metrics.ObserveCache(false)
	}

	gen := s.generation.Load()
	key := date + "#" + strconv.FormatUint(gen, 10)
	shared := context.WithoutCancel(ctx)

	ch := s.group.DoChan(key, func() (any, error) {
		expenses, err := s.backing.ExpensesOn(shared, date)
		if err != nil {
			return nil, err
		}
		if expenses == nil {
			expenses = []core.Expense{}
		}
		if s.cache != nil && s.generation.Load() == gen {
			s.cache.Set(date, core.CloneAll(expenses))
		}
		return expenses, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("list expenses on %s: %w", date, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("list expenses on %s: %w", date, res.Err)
		}
		return core.CloneAll(res.Val.([]core.Expense)), nil
	}
}

// Ping checks the backing store when it supports health checks.
func (s *LedgerService) Ping(ctx context.Context) error {
	if p, ok := s.backing.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases the publisher and the backing ledger.
func (s *LedgerService) Close() error {
	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if c, ok := s.backing.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close ledger service: %w", err)
	}
	return nil
}
