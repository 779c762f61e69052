package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/model"
)

const userColumns = `id, name, email, password, telegram_id, created_at`

// CreateUser registers a new owner. Emails are stored lower-cased.
func (s *SQLiteStorage) CreateUser(ctx context.Context, user *model.User) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateUser(user); err != nil {
		return err
	}
	user.Email = normalizeEmail(user.Email)

	createdAt := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (name, email, password, telegram_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		user.Name, user.Email, user.PasswordHash, nullableID(user.TelegramID), createdAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user id: %w", err)
	}

	user.ID = id
	user.CreatedAt = createdAt
	return nil
}

// FindUserByID returns the owner with the given id.
func (s *SQLiteStorage) FindUserByID(ctx context.Context, id int64) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.findUser(ctx, `id = ?`, id)
}

// FindUserByEmail returns the owner registered with email.
func (s *SQLiteStorage) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(email, "email"); err != nil {
		return nil, err
	}
	return s.findUser(ctx, `email = ?`, normalizeEmail(email))
}

// FindUserByTelegramID returns the owner bound to a chat actor.
func (s *SQLiteStorage) FindUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.findUser(ctx, `telegram_id = ?`, telegramID)
}

// LinkTelegram binds a chat actor to an owner, moving the binding away from
// any owner that held it before.
func (s *SQLiteStorage) LinkTelegram(ctx context.Context, ownerID, telegramID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateOwner(ownerID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE users SET telegram_id = NULL WHERE telegram_id = ? AND id != ?`, telegramID, ownerID); err != nil {
		return fmt.Errorf("failed to release telegram binding: %w", err)
	}

	result, err := tx.ExecContext(ctx, `UPDATE users SET telegram_id = ? WHERE id = ?`, telegramID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to link telegram: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user %d: %w", ownerID, common.ErrNotFound)
	}

	return tx.Commit()
}

func (s *SQLiteStorage) findUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		user       model.User
		telegramID sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &telegramID, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	user.TelegramID = idFromNull(telegramID)
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
