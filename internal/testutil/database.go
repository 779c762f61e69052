// Package testutil provides shared fixtures for tests that need a real database.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/model"
	"github.com/Veraticus/finscale/internal/service"
	"github.com/Veraticus/finscale/internal/storage"
)

// TestDB represents a migrated in-memory database with seeding helpers.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
	owners  int
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	owner := db.MustCreateOwner("ana@example.com")
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// MustCreateOwner registers an owner or fails the test. An empty email gets a
// generated one.
func (db *TestDB) MustCreateOwner(email string) *model.User {
	db.t.Helper()

	db.owners++
	if email == "" {
		email = fmt.Sprintf("owner%d@example.com", db.owners)
	}

	user := &model.User{
		Name:         fmt.Sprintf("Owner %d", db.owners),
		Email:        email,
		PasswordHash: "not-a-real-hash",
	}
	if err := db.Storage.CreateUser(context.Background(), user); err != nil {
		db.t.Fatalf("failed to seed owner %q: %v", email, err)
	}
	return user
}

// MustCreateCharge stores an active monthly expense charge or fails the test.
func (db *TestDB) MustCreateCharge(ownerID int64, description, amount string, next calendar.Date) *model.RecurringCharge {
	db.t.Helper()

	charge := &model.RecurringCharge{
		OwnerID:     ownerID,
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Cadence:     calendar.Monthly,
		NextDueDate: next,
	}
	if err := db.Storage.CreateCharge(context.Background(), charge); err != nil {
		db.t.Fatalf("failed to seed charge %q: %v", description, err)
	}
	return charge
}

// WithTransaction executes the given function within a database transaction.
// The transaction is always rolled back after the function completes.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	tx, err := db.Storage.BeginTx(context.Background())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
