// Package service defines the contracts between the core engines and their collaborators.
package service

import (
	"context"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/model"
)

// TransactionStore persists ledger entries.
type TransactionStore interface {
	// InsertTransaction stores txn and sets its ID and CreatedAt.
	InsertTransaction(ctx context.Context, txn *model.Transaction) error
	// ListTransactionsByOwner returns the owner's entries, newest date first.
	ListTransactionsByOwner(ctx context.Context, ownerID int64) ([]model.Transaction, error)
	// DeleteTransaction removes an entry owned by ownerID. It reports false when
	// no such entry exists for that owner.
	DeleteTransaction(ctx context.Context, id, ownerID int64) (bool, error)
	SummarizeOwner(ctx context.Context, ownerID int64) (*model.Summary, error)
}

// ChargeStore persists recurring charge definitions.
type ChargeStore interface {
	CreateCharge(ctx context.Context, charge *model.RecurringCharge) error
	// ListChargesByOwner returns active charges first, then by next due date.
	ListChargesByOwner(ctx context.Context, ownerID int64) ([]model.RecurringCharge, error)
	// ListActiveDueBy returns active charges due on or before date, optionally
	// limited to one owner.
	ListActiveDueBy(ctx context.Context, date calendar.Date, ownerID *int64) ([]model.RecurringCharge, error)
	// UpdateNextDueDate moves an active charge from expected to next. It
	// returns common.ErrConflict when the charge is no longer active and due
	// on expected.
	UpdateNextDueDate(ctx context.Context, chargeID int64, expected, next calendar.Date) error
	// ToggleChargeActive flips the active flag. It returns common.ErrNotFound
	// when the charge does not exist for that owner.
	ToggleChargeActive(ctx context.Context, id, ownerID int64) (*model.RecurringCharge, error)
	DeleteCharge(ctx context.Context, id, ownerID int64) (bool, error)
}

// CardStore persists payment cards.
type CardStore interface {
	CreateCard(ctx context.Context, card *model.Card) error
	GetCard(ctx context.Context, id, ownerID int64) (*model.Card, error)
	ListCards(ctx context.Context, ownerID int64) ([]model.CardBalance, error)
	UpdateCard(ctx context.Context, id, ownerID int64, update model.CardUpdate) (*model.Card, error)
	DeleteCard(ctx context.Context, id, ownerID int64) (bool, error)
}

// CategoryStore lists the labels offered for new entries.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
}

// UserDirectory resolves owners and their chat bindings.
type UserDirectory interface {
	CreateUser(ctx context.Context, user *model.User) error
	FindUserByID(ctx context.Context, id int64) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	// FindUserByTelegramID returns common.ErrNotFound when no owner is bound
	// to the chat actor.
	FindUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	LinkTelegram(ctx context.Context, ownerID, telegramID int64) error
}

// Ledger is the subset of operations available inside a unit of work.
type Ledger interface {
	TransactionStore
	ChargeStore
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	Ledger
	CardStore
	CategoryStore
	UserDirectory

	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	Ledger
}

// UnitOfWork opens database transactions.
type UnitOfWork interface {
	BeginTx(ctx context.Context) (Transaction, error)
}

// RunInTx runs fn inside a database transaction, committing when fn succeeds
// and rolling back otherwise.
func RunInTx(ctx context.Context, uow UnitOfWork, fn func(Ledger) error) error {
	tx, err := uow.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
