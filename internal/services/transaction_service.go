package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// EventPublisher announces transaction changes. *amqp.Client implements it.
type EventPublisher interface {
	Publish(ctx context.Context, evt amqp.TransactionEvent) error
}

// TransactionService orchestrates transaction operations across the store
// and the event publisher. Every operation is scoped to one user.
type TransactionService struct {
	store     storage.TransactionStore
	publisher EventPublisher
	logger    *log.Logger
	events    *log.StructuredLogger
	now       func() time.Time
	newID     func() string
}

type Option func(*TransactionService)

// WithClock replaces the time source used for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *TransactionService) { s.now = now }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *TransactionService) { s.newID = newID }
}

// NewTransactionService wires the service. publisher may be nil, in which
// case no events are sent.
func NewTransactionService(store storage.TransactionStore, publisher EventPublisher, logger *log.Logger, opts ...Option) *TransactionService {
	if logger == nil {
		logger = log.Discard()
	}
	s := &TransactionService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentTransaction),
		events:    log.NewStructuredLogger(logger),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates in, stores it for userID and returns the new record.
func (s *TransactionService) Create(ctx context.Context, userID string, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	in = in.Normalize()

	now := s.now().UTC()
	tx := core.Transaction{
		ID:        s.newID(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.Apply(&tx)

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.events.LogTransactionChanged(ctx, log.OpCreate, userID, tx.ID, string(tx.Type), tx.Category, tx.Amount)
	s.publish(ctx, amqp.TransactionCreated, tx.ID, userID)
	return tx, nil
}

// List returns the user's transactions, newest first. A positive limit keeps
// only the most recent ones.
func (s *TransactionService) List(ctx context.Context, userID string, limit int) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	core.SortByDateDesc(txs)
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

// Update replaces the editable fields of the user's transaction id. A
// transaction owned by someone else is reported as core.ErrNotFound.
func (s *TransactionService) Update(ctx context.Context, userID, id string, in core.TransactionInput) (core.Transaction, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Transaction{}, core.ErrNotFound
	}
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	in = in.Normalize()

	tx := core.Transaction{ID: id, UserID: userID, UpdatedAt: s.now().UTC()}
	in.Apply(&tx)
	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}
	s.events.LogTransactionChanged(ctx, log.OpUpdate, userID, tx.ID, string(tx.Type), tx.Category, tx.Amount)
	s.publish(ctx, amqp.TransactionUpdated, tx.ID, userID)
	return tx, nil
}

// Delete removes the user's transaction id.
func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return core.ErrNotFound
	}
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldUserID, userID,
		log.FieldTransactionID, id)
	s.publish(ctx, amqp.TransactionDeleted, id, userID)
	return nil
}

// Stats recomputes the user's totals from their transactions.
func (s *TransactionService) Stats(ctx context.Context, userID string) (core.Stats, error) {
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return core.Stats{}, fmt.Errorf("list transactions: %w", err)
	}
	return core.Summarize(txs), nil
}

// CategoryBreakdown returns expense totals per category, largest first.
func (s *TransactionService) CategoryBreakdown(ctx context.Context, userID string) ([]core.CategoryTotal, error) {
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return core.ExpensesByCategory(txs), nil
}

// MonthlyTrend returns income and expenses per calendar month, oldest first.
func (s *TransactionService) MonthlyTrend(ctx context.Context, userID string) ([]core.MonthlyTotal, error) {
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return core.MonthlyTrend(txs), nil
}

// publish sends the event without failing the caller: the change is already
// stored.
func (s *TransactionService) publish(ctx context.Context, t amqp.EventType, id, userID string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, amqp.NewTransactionEvent(t, id, userID)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish transaction event",
			log.FieldRoutingKey, string(t),
			log.FieldTransactionID, id,
			log.FieldUserID, userID,
			log.FieldError, err)
	}
}
