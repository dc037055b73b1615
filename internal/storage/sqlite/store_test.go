package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/storagetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "data", "fintrack.db"), nil)
}

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return newTestStore(t) })
}

func TestStoreOpensLazily(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	assert.False(t, s.conn.Ready(), "no connection before first use")
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, 1, s.conn.Dials())
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrack.db")

	first := New(path, nil)
	require.NoError(t, first.CreateUser(context.Background(), core.User{
		ID: "u1", Email: "carol@example.com", Name: "Carol", PasswordHash: "x", CreatedAt: time.Now(),
	}))
	require.NoError(t, first.Close())

	second := New(path, nil)
	defer second.Close()
	u, err := second.GetUserByEmail(context.Background(), "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestTimesRoundTripAsUTC(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()
	ctx := context.Background()

	local := time.FixedZone("CET", 3600)
	date := time.Date(2025, 1, 31, 23, 30, 0, 123456789, local)
	tx := core.Transaction{
		ID: "t1", UserID: "u1", Description: "Late dinner", Amount: -20,
		Category: "Food & Dining", Type: core.Expense,
		Date: date, CreatedAt: date, UpdatedAt: date,
	}
	require.NoError(t, s.CreateTransaction(ctx, tx))

	got, err := s.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Date.Equal(date))
	assert.Equal(t, time.UTC, got[0].Date.Location())
}

func TestClosedStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), storage.ErrClosed)
}
