package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 5

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS users (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					email TEXT UNIQUE NOT NULL,
					password TEXT NOT NULL,
					telegram_id INTEGER UNIQUE,
					created_at DATETIME NOT NULL
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					users_id INTEGER NOT NULL REFERENCES users(id),
					description TEXT NOT NULL,
					amount TEXT NOT NULL,
					type TEXT NOT NULL CHECK (type IN ('income', 'expense')),
					category TEXT NOT NULL,
					date TEXT NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_transactions_user_date ON transactions(users_id, date)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					color TEXT NOT NULL DEFAULT '',
					icon TEXT NOT NULL DEFAULT ''
				)`,
				`INSERT INTO categories (name, color, icon) VALUES
					('Food', '#f97316', '🍽️'),
					('Transport', '#3b82f6', '🚌'),
					('Leisure', '#a855f7', '🎉'),
					('Education', '#14b8a6', '📚'),
					('Health', '#ef4444', '🩺'),
					('Work', '#22c55e', '💼'),
					('Other', '#6b7280', '📦')`,
			})
		},
	},
	{
		Version:     2,
		Description: "Add installment groups to transactions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE transactions ADD COLUMN installment_id TEXT`,
				`ALTER TABLE transactions ADD COLUMN installment_number INTEGER`,
				`ALTER TABLE transactions ADD COLUMN installment_total INTEGER`,
				`CREATE INDEX idx_transactions_installment ON transactions(installment_id)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Add recurring charges",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS recurrent_charges (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					users_id INTEGER NOT NULL REFERENCES users(id),
					description TEXT NOT NULL,
					amount TEXT NOT NULL,
					type TEXT NOT NULL DEFAULT 'expense',
					frequency TEXT NOT NULL CHECK (frequency IN ('daily', 'weekly', 'monthly', 'yearly')),
					next_due_date TEXT NOT NULL,
					category TEXT NOT NULL DEFAULT 'recurrent',
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_recurrent_charges_due ON recurrent_charges(is_active, next_due_date)`,
				`CREATE INDEX idx_recurrent_charges_user ON recurrent_charges(users_id)`,
			})
		},
	},
	{
		Version:     4,
		Description: "Add cards and card tagging",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS cards (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					users_id INTEGER NOT NULL REFERENCES users(id),
					name TEXT NOT NULL,
					last_digits TEXT,
					color TEXT NOT NULL DEFAULT '#6366f1',
					initial_balance TEXT NOT NULL DEFAULT '0',
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_cards_user ON cards(users_id)`,
				`ALTER TABLE transactions ADD COLUMN card_id INTEGER REFERENCES cards(id)`,
				`ALTER TABLE recurrent_charges ADD COLUMN card_id INTEGER REFERENCES cards(id)`,
				`CREATE INDEX idx_transactions_card ON transactions(card_id)`,
			})
		},
	},
	{
		Version:     5,
		Description: "Add conversation sessions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS conversation_sessions (
					session_id INTEGER PRIMARY KEY,
					step TEXT NOT NULL,
					data TEXT NOT NULL DEFAULT '{}',
					updated_at TEXT NOT NULL
				)`,
				`CREATE INDEX idx_conversation_sessions_updated ON conversation_sessions(updated_at)`,
			})
		},
	},
}

// SchemaVersion reports the schema version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies every pending migration.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
