package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/model"
)

const cardColumns = `id, users_id, name, last_digits, color, initial_balance, created_at`

// CreateCard stores a new payment card.
func (s *SQLiteStorage) CreateCard(ctx context.Context, card *model.Card) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCard(card); err != nil {
		return err
	}
	if card.Color == "" {
		card.Color = model.DefaultCardColor
	}

	createdAt := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO cards (users_id, name, last_digits, color, initial_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		card.OwnerID,
		card.Name,
		nullableString(card.LastDigits),
		card.Color,
		card.InitialBalance.StringFixed(2),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get card id: %w", err)
	}

	card.ID = id
	card.CreatedAt = createdAt
	return nil
}

// GetCard returns a card owned by ownerID.
func (s *SQLiteStorage) GetCard(ctx context.Context, id, ownerID int64) (*model.Card, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ? AND users_id = ?`, id, ownerID)
	card, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("card %d: %w", id, common.ErrNotFound)
	}
	return card, err
}

// ListCards returns the owner's cards with their running balances.
func (s *SQLiteStorage) ListCards(ctx context.Context, ownerID int64) ([]model.CardBalance, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE users_id = ? ORDER BY created_at ASC, id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}

	var balances []model.CardBalance
	index := make(map[int64]int)
	for rows.Next() {
		card, scanErr := scanCard(rows)
		if scanErr != nil {
			_ = rows.Close()
			return nil, scanErr
		}
		index[card.ID] = len(balances)
		balances = append(balances, model.CardBalance{
			Card:           *card,
			TotalIncome:    decimal.Zero,
			TotalExpense:   decimal.Zero,
			CurrentBalance: card.InitialBalance,
		})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}
	_ = rows.Close()

	if len(balances) == 0 {
		return balances, nil
	}

	tagged, err := s.db.QueryContext(ctx, `
		SELECT card_id, type, amount
		FROM transactions
		WHERE users_id = ? AND card_id IS NOT NULL`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query card transactions: %w", err)
	}
	defer func() { _ = tagged.Close() }()

	for tagged.Next() {
		var (
			cardID int64
			kind   string
			raw    string
		)
		if err := tagged.Scan(&cardID, &kind, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan card transaction: %w", err)
		}
		i, ok := index[cardID]
		if !ok {
			continue
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q on card %d: %w", raw, cardID, err)
		}

		b := &balances[i]
		if model.Kind(kind) == model.KindIncome {
			b.TotalIncome = b.TotalIncome.Add(amount)
		} else {
			b.TotalExpense = b.TotalExpense.Add(amount)
		}
	}
	if err := tagged.Err(); err != nil {
		return nil, fmt.Errorf("error iterating card transactions: %w", err)
	}

	for i := range balances {
		b := &balances[i]
		b.CurrentBalance = b.InitialBalance.Add(b.TotalIncome).Sub(b.TotalExpense)
	}
	return balances, nil
}

// UpdateCard applies the non-nil fields of update.
func (s *SQLiteStorage) UpdateCard(ctx context.Context, id, ownerID int64, update model.CardUpdate) (*model.Card, error) {
	card, err := s.GetCard(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		card.Name = *update.Name
	}
	if update.LastDigits != nil {
		card.LastDigits = *update.LastDigits
	}
	if update.Color != nil && *update.Color != "" {
		card.Color = *update.Color
	}
	if update.InitialBalance != nil {
		card.InitialBalance = *update.InitialBalance
	}
	if err := card.Validate(); err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE cards
		SET name = ?, last_digits = ?, color = ?, initial_balance = ?
		WHERE id = ? AND users_id = ?`,
		card.Name,
		nullableString(card.LastDigits),
		card.Color,
		card.InitialBalance.StringFixed(2),
		id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update card: %w", err)
	}
	return card, nil
}

// DeleteCard removes a card. Entries and charges tagged with it are kept and untagged.
func (s *SQLiteStorage) DeleteCard(ctx context.Context, id, ownerID int64) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateOwner(ownerID); err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE transactions SET card_id = NULL WHERE card_id = ? AND users_id = ?`, id, ownerID); err != nil {
		return false, fmt.Errorf("failed to untag transactions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE recurrent_charges SET card_id = NULL WHERE card_id = ? AND users_id = ?`, id, ownerID); err != nil {
		return false, fmt.Errorf("failed to untag recurring charges: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id = ? AND users_id = ?`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete card: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit card deletion: %w", err)
	}
	return true, nil
}

func scanCard(row rowScanner) (*model.Card, error) {
	var (
		card       model.Card
		lastDigits sql.NullString
		balance    string
	)

	if err := row.Scan(&card.ID, &card.OwnerID, &card.Name, &lastDigits, &card.Color, &balance, &card.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan card: %w", err)
	}

	amount, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("invalid initial balance %q on card %d: %w", balance, card.ID, err)
	}
	card.InitialBalance = amount
	card.LastDigits = lastDigits.String
	return &card, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
