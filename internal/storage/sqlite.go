// Package storage provides the SQLite persistence layer for the ledger.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/model"
	"github.com/Veraticus/finscale/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

var _ service.Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dsn := ":memory:"
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; one connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// DB exposes the underlying handle for stores that share the database file.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{tx: tx}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx *sql.Tx
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return insertTransaction(ctx, t.tx, txn)
}

func (t *sqliteTransaction) ListTransactionsByOwner(ctx context.Context, ownerID int64) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listTransactionsByOwner(ctx, t.tx, ownerID)
}

func (t *sqliteTransaction) DeleteTransaction(ctx context.Context, id, ownerID int64) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return deleteTransaction(ctx, t.tx, id, ownerID)
}

func (t *sqliteTransaction) SummarizeOwner(ctx context.Context, ownerID int64) (*model.Summary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return summarizeOwner(ctx, t.tx, ownerID)
}

func (t *sqliteTransaction) CreateCharge(ctx context.Context, charge *model.RecurringCharge) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return createCharge(ctx, t.tx, charge)
}

func (t *sqliteTransaction) ListChargesByOwner(ctx context.Context, ownerID int64) ([]model.RecurringCharge, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listChargesByOwner(ctx, t.tx, ownerID)
}

func (t *sqliteTransaction) ListActiveDueBy(ctx context.Context, date calendar.Date, ownerID *int64) ([]model.RecurringCharge, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listActiveDueBy(ctx, t.tx, date, ownerID)
}

func (t *sqliteTransaction) UpdateNextDueDate(ctx context.Context, chargeID int64, expected, next calendar.Date) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return updateNextDueDate(ctx, t.tx, chargeID, expected, next)
}

func (t *sqliteTransaction) ToggleChargeActive(ctx context.Context, id, ownerID int64) (*model.RecurringCharge, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return toggleChargeActive(ctx, t.tx, id, ownerID)
}

func (t *sqliteTransaction) DeleteCharge(ctx context.Context, id, ownerID int64) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return deleteCharge(ctx, t.tx, id, ownerID)
}
