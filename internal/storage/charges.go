package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/model"
)

const chargeColumns = `
	id, users_id, description, amount, type, frequency, next_due_date,
	category, is_active, created_at, card_id`

// CreateCharge stores a new recurring charge definition.
func (s *SQLiteStorage) CreateCharge(ctx context.Context, charge *model.RecurringCharge) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return createCharge(ctx, s.db, charge)
}

// ListChargesByOwner returns an owner's charges, active ones first.
func (s *SQLiteStorage) ListChargesByOwner(ctx context.Context, ownerID int64) ([]model.RecurringCharge, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listChargesByOwner(ctx, s.db, ownerID)
}

// ListActiveDueBy returns active charges whose next due date is on or before date.
func (s *SQLiteStorage) ListActiveDueBy(ctx context.Context, date calendar.Date, ownerID *int64) ([]model.RecurringCharge, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listActiveDueBy(ctx, s.db, date, ownerID)
}

// UpdateNextDueDate moves a charge's schedule forward.
func (s *SQLiteStorage) UpdateNextDueDate(ctx context.Context, chargeID int64, expected, next calendar.Date) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return updateNextDueDate(ctx, s.db, chargeID, expected, next)
}

// ToggleChargeActive flips a charge between active and paused.
func (s *SQLiteStorage) ToggleChargeActive(ctx context.Context, id, ownerID int64) (*model.RecurringCharge, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return toggleChargeActive(ctx, s.db, id, ownerID)
}

// DeleteCharge removes a charge definition. Transactions it already produced are kept.
func (s *SQLiteStorage) DeleteCharge(ctx context.Context, id, ownerID int64) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return deleteCharge(ctx, s.db, id, ownerID)
}

func createCharge(ctx context.Context, q queryable, charge *model.RecurringCharge) error {
	if err := validateCharge(charge); err != nil {
		return err
	}
	charge.ApplyDefaults()

	createdAt := time.Now().UTC()
	result, err := q.ExecContext(ctx, `
		INSERT INTO recurrent_charges (
			users_id, description, amount, type, frequency, next_due_date,
			category, is_active, created_at, card_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		charge.OwnerID,
		charge.Description,
		charge.Amount.StringFixed(2),
		string(charge.Kind),
		string(charge.Cadence),
		charge.NextDueDate.String(),
		charge.Category,
		createdAt,
		nullableID(charge.CardID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert recurring charge: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get recurring charge id: %w", err)
	}

	charge.ID = id
	charge.Active = true
	charge.CreatedAt = createdAt
	return nil
}

func listChargesByOwner(ctx context.Context, q queryable, ownerID int64) ([]model.RecurringCharge, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	return queryCharges(ctx, q, `SELECT `+chargeColumns+`
		FROM recurrent_charges
		WHERE users_id = ?
		ORDER BY is_active DESC, next_due_date ASC, id ASC`, ownerID)
}

func listActiveDueBy(ctx context.Context, q queryable, date calendar.Date, ownerID *int64) ([]model.RecurringCharge, error) {
	if !date.IsValid() {
		return nil, fmt.Errorf("%w: invalid date %v", common.ErrInvalidArgument, date)
	}

	query := `SELECT ` + chargeColumns + `
		FROM recurrent_charges
		WHERE is_active = 1 AND next_due_date <= ?`
	args := []any{date.String()}
	if ownerID != nil {
		query += ` AND users_id = ?`
		args = append(args, *ownerID)
	}
	query += ` ORDER BY next_due_date ASC, id ASC`

	charges, err := queryCharges(ctx, q, query, args...)
	if err != nil {
		return nil, err
	}

	slog.Debug("found due recurring charges", "date", date.String(), "count", len(charges))
	return charges, nil
}

// updateNextDueDate only moves a charge that is still active and due on
// expected, so a stale copy of the charge never advances it twice.
func updateNextDueDate(ctx context.Context, q queryable, chargeID int64, expected, next calendar.Date) error {
	if !next.IsValid() || !expected.IsValid() {
		return fmt.Errorf("%w: invalid due dates %v -> %v", common.ErrInvalidArgument, expected, next)
	}

	result, err := q.ExecContext(ctx, `
		UPDATE recurrent_charges SET next_due_date = ?
		WHERE id = ? AND next_due_date = ? AND is_active = 1`,
		next.String(), chargeID, expected.String())
	if err != nil {
		return fmt.Errorf("failed to update next due date: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recurring charge %d not active and due on %s: %w", chargeID, expected, common.ErrConflict)
	}
	return nil
}

func toggleChargeActive(ctx context.Context, q queryable, id, ownerID int64) (*model.RecurringCharge, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	result, err := q.ExecContext(ctx, `
		UPDATE recurrent_charges
		SET is_active = CASE WHEN is_active = 1 THEN 0 ELSE 1 END
		WHERE id = ? AND users_id = ?`, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle recurring charge: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check updated rows: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("recurring charge %d: %w", id, common.ErrNotFound)
	}

	row := q.QueryRowContext(ctx, `SELECT `+chargeColumns+`
		FROM recurrent_charges
		WHERE id = ? AND users_id = ?`, id, ownerID)
	charge, err := scanCharge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("recurring charge %d: %w", id, common.ErrNotFound)
	}
	return charge, err
}

func deleteCharge(ctx context.Context, q queryable, id, ownerID int64) (bool, error) {
	if err := validateOwner(ownerID); err != nil {
		return false, err
	}

	result, err := q.ExecContext(ctx, `DELETE FROM recurrent_charges WHERE id = ? AND users_id = ?`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete recurring charge: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check deleted rows: %w", err)
	}
	return affected > 0, nil
}

func queryCharges(ctx context.Context, q queryable, query string, args ...any) ([]model.RecurringCharge, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring charges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var charges []model.RecurringCharge
	for rows.Next() {
		charge, scanErr := scanCharge(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		charges = append(charges, *charge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recurring charges: %w", err)
	}
	return charges, nil
}

func scanCharge(row rowScanner) (*model.RecurringCharge, error) {
	var (
		charge    model.RecurringCharge
		amount    string
		kind      string
		cadence   string
		nextDue   string
		cardID    sql.NullInt64
		createdAt time.Time
	)

	if err := row.Scan(
		&charge.ID, &charge.OwnerID, &charge.Description, &amount, &kind, &cadence, &nextDue,
		&charge.Category, &charge.Active, &createdAt, &cardID,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan recurring charge: %w", err)
	}

	var err error
	if charge.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q on recurring charge %d: %w", amount, charge.ID, err)
	}
	if charge.NextDueDate, err = calendar.ParseDate(nextDue); err != nil {
		return nil, fmt.Errorf("invalid next due date on recurring charge %d: %w", charge.ID, err)
	}
	charge.Kind = model.Kind(kind)
	charge.Cadence = calendar.Cadence(cadence)
	charge.CreatedAt = createdAt
	charge.CardID = idFromNull(cardID)

	return &charge, nil
}
