package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/finscale/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrInvalidOwner = errors.New("owner id must be positive")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateOwner ensures an owner id was supplied.
func validateOwner(ownerID int64) error {
	if ownerID <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidOwner, ownerID)
	}
	return nil
}

// validateTransaction validates a single transaction before insert.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	return txn.Validate()
}

// validateCharge validates a recurring charge before insert.
func validateCharge(charge *model.RecurringCharge) error {
	if charge == nil {
		return fmt.Errorf("%w: charge", ErrNilParameter)
	}
	return charge.Validate()
}

// validateCard validates a card before insert.
func validateCard(card *model.Card) error {
	if card == nil {
		return fmt.Errorf("%w: card", ErrNilParameter)
	}
	return card.Validate()
}

// validateUser validates a user before insert.
func validateUser(user *model.User) error {
	if user == nil {
		return fmt.Errorf("%w: user", ErrNilParameter)
	}
	if err := validateString(user.Name, "name"); err != nil {
		return err
	}
	if err := validateString(user.Email, "email"); err != nil {
		return err
	}
	return validateString(user.PasswordHash, "password hash")
}
