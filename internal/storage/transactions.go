package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/model"
)

const transactionColumns = `
	id, users_id, description, amount, type, category, date, created_at,
	installment_id, installment_number, installment_total, card_id`

// InsertTransaction stores a single ledger entry.
func (s *SQLiteStorage) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return insertTransaction(ctx, s.db, txn)
}

// ListTransactionsByOwner returns every entry of an owner, newest first.
func (s *SQLiteStorage) ListTransactionsByOwner(ctx context.Context, ownerID int64) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return listTransactionsByOwner(ctx, s.db, ownerID)
}

// DeleteTransaction removes a single entry owned by ownerID.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id, ownerID int64) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	return deleteTransaction(ctx, s.db, id, ownerID)
}

// SummarizeOwner totals the owner's income and expenses.
func (s *SQLiteStorage) SummarizeOwner(ctx context.Context, ownerID int64) (*model.Summary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return summarizeOwner(ctx, s.db, ownerID)
}

func insertTransaction(ctx context.Context, q queryable, txn *model.Transaction) error {
	if err := validateTransaction(txn); err != nil {
		return err
	}

	var groupID sql.NullString
	var number, total sql.NullInt64
	if inst := txn.Installment; inst != nil {
		groupID = sql.NullString{String: inst.GroupID, Valid: true}
		number = sql.NullInt64{Int64: int64(inst.Sequence), Valid: true}
		total = sql.NullInt64{Int64: int64(inst.Total), Valid: true}
	}

	createdAt := time.Now().UTC()
	result, err := q.ExecContext(ctx, `
		INSERT INTO transactions (
			users_id, description, amount, type, category, date, created_at,
			installment_id, installment_number, installment_total, card_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.OwnerID,
		txn.Description,
		txn.Amount.StringFixed(2),
		string(txn.Kind),
		txn.Category,
		txn.Date.String(),
		createdAt,
		groupID,
		number,
		total,
		nullableID(txn.CardID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get transaction id: %w", err)
	}

	txn.ID = id
	txn.CreatedAt = createdAt
	return nil
}

func listTransactionsByOwner(ctx context.Context, q queryable, ownerID int64) ([]model.Transaction, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `SELECT `+transactionColumns+`
		FROM transactions
		WHERE users_id = ?
		ORDER BY date DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		transactions = append(transactions, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	slog.Debug("retrieved transactions", "owner_id", ownerID, "count", len(transactions))
	return transactions, nil
}

func deleteTransaction(ctx context.Context, q queryable, id, ownerID int64) (bool, error) {
	if err := validateOwner(ownerID); err != nil {
		return false, err
	}

	result, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND users_id = ?`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check deleted rows: %w", err)
	}
	return affected > 0, nil
}

func summarizeOwner(ctx context.Context, q queryable, ownerID int64) (*model.Summary, error) {
	transactions, err := listTransactionsByOwner(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	summary := model.Summarize(transactions)
	return &summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var (
		txn       model.Transaction
		amount    string
		kind      string
		date      string
		groupID   sql.NullString
		number    sql.NullInt64
		total     sql.NullInt64
		cardID    sql.NullInt64
		createdAt time.Time
	)

	if err := row.Scan(
		&txn.ID, &txn.OwnerID, &txn.Description, &amount, &kind, &txn.Category, &date, &createdAt,
		&groupID, &number, &total, &cardID,
	); err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	var err error
	if txn.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid amount %q on transaction %d: %w", amount, txn.ID, err)
	}
	if txn.Date, err = calendar.ParseDate(date); err != nil {
		return nil, fmt.Errorf("invalid date on transaction %d: %w", txn.ID, err)
	}
	txn.Kind = model.Kind(kind)
	txn.CreatedAt = createdAt
	txn.CardID = idFromNull(cardID)
	if groupID.Valid {
		txn.Installment = &model.Installment{
			GroupID:  groupID.String,
			Sequence: int(number.Int64),
			Total:    int(total.Int64),
		}
	}

	return &txn, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idFromNull(id sql.NullInt64) *int64 {
	if !id.Valid {
		return nil
	}
	v := id.Int64
	return &v
}
