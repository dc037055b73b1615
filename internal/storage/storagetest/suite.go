// Package storagetest holds behaviour tests shared by every storage backend.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) storage.Store

// Run exercises the storage contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"UserRoundTrip", testUserRoundTrip},
		{"DuplicateEmail", testDuplicateEmail},
		{"UnknownUser", testUnknownUser},
		{"ListScopedAndOrdered", testListScopedAndOrdered},
		{"UpdateOwnership", testUpdateOwnership},
		{"DeleteOwnership", testDeleteOwnership},
		{"Ping", testPing},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tc.fn(t, s)
		})
	}
}

var base = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func newUser(email string) core.User {
	return core.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		CreatedAt:    base,
	}
}

func newTx(userID, desc string, amount float64, typ core.TransactionType, date time.Time) core.Transaction {
	return core.Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Description: desc,
		Amount:      amount,
		Category:    "Other",
		Type:        typ,
		Date:        date,
		CreatedAt:   base,
		UpdatedAt:   base,
	}
}

func testUserRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := newUser("alice@example.com")
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.GetUserByEmail(ctx, "Alice@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, u.Name, got.Name)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)
	assert.True(t, u.CreatedAt.Equal(got.CreatedAt))

	byID, err := s.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", byID.Email)
}

func testDuplicateEmail(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateUser(ctx, newUser("bob@example.com")))
	err := s.CreateUser(ctx, newUser("bob@example.com"))
	assert.True(t, errors.Is(err, storage.ErrEmailTaken), "got %v", err)
}

func testUnknownUser(t *testing.T, s storage.Store) {
	ctx := context.Background()
	_, err := s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.GetUserByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testListScopedAndOrdered(t *testing.T, s storage.Store) {
	ctx := context.Background()
	alice, bob := uuid.NewString(), uuid.NewString()

	older := newTx(alice, "Rent", -800, core.Expense, base.AddDate(0, 0, -10))
	newer := newTx(alice, "Salary", 2500.5, core.Income, base)
	middle := newTx(alice, "Groceries", -42.1, core.Expense, base.AddDate(0, 0, -3))
	other := newTx(bob, "Coffee", -3, core.Expense, base)
	for _, tx := range []core.Transaction{older, newer, middle, other} {
		require.NoError(t, s.CreateTransaction(ctx, tx))
	}

	got, err := s.ListTransactions(ctx, alice)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{newer.ID, middle.ID, older.ID}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, 2500.5, got[0].Amount)
	assert.Equal(t, core.Income, got[0].Type)
	assert.True(t, got[0].Date.Equal(newer.Date))
	assert.Equal(t, alice, got[0].UserID)

	empty, err := s.ListTransactions(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testUpdateOwnership(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner, intruder := uuid.NewString(), uuid.NewString()
	tx := newTx(owner, "Dinner", -30, core.Expense, base)
	require.NoError(t, s.CreateTransaction(ctx, tx))

	hijack := tx
	hijack.UserID = intruder
	hijack.Description = "Hijacked"
	assert.ErrorIs(t, s.UpdateTransaction(ctx, hijack), core.ErrNotFound)

	missing := newTx(owner, "Ghost", -1, core.Expense, base)
	assert.ErrorIs(t, s.UpdateTransaction(ctx, missing), core.ErrNotFound)

	tx.Description = "Dinner with friends"
	tx.Amount = -45
	tx.UpdatedAt = base.Add(time.Hour)
	require.NoError(t, s.UpdateTransaction(ctx, tx))

	got, err := s.ListTransactions(ctx, owner)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dinner with friends", got[0].Description)
	assert.Equal(t, -45.0, got[0].Amount)
	assert.True(t, got[0].UpdatedAt.Equal(base.Add(time.Hour)))
	assert.True(t, got[0].CreatedAt.Equal(base))
}

func testDeleteOwnership(t *testing.T, s storage.Store) {
	ctx := context.Background()
	owner, intruder := uuid.NewString(), uuid.NewString()
	tx := newTx(owner, "Cinema", -12, core.Expense, base)
	require.NoError(t, s.CreateTransaction(ctx, tx))

	assert.ErrorIs(t, s.DeleteTransaction(ctx, intruder, tx.ID), core.ErrNotFound)
	got, err := s.ListTransactions(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, s.DeleteTransaction(ctx, owner, tx.ID))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, owner, tx.ID), core.ErrNotFound)

	got, err = s.ListTransactions(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testPing(t *testing.T, s storage.Store) {
	assert.NoError(t, s.Ping(context.Background()))
}
