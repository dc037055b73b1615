// Package storage defines the persistence ports used by the services and the
// lazily established connection shared by the store implementations.
package storage

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

// ErrEmailTaken is returned by CreateUser when the address is registered.
var ErrEmailTaken = errors.New("email already registered")

// Ports for outbound adapters.
type (
	// UserStore is the credential store. Lookups of unknown users return
	// core.ErrNotFound.
	UserStore interface {
		CreateUser(ctx context.Context, u core.User) error
		GetUserByID(ctx context.Context, id string) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
	}

	// TransactionStore persists transactions. Update and Delete match on
	// both id and owner and return core.ErrNotFound when nothing matched,
	// whether the record is missing or belongs to someone else.
	TransactionStore interface {
		CreateTransaction(ctx context.Context, tx core.Transaction) error
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, userID, id string) error
	}

	// Store is a complete backend.
	Store interface {
		UserStore
		TransactionStore
		Ping(ctx context.Context) error
		Close() error
	}
)
