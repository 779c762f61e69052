// Package installment turns a purchase paid over several months into one
// ledger entry per month.
package installment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/model"
	"github.com/Veraticus/finscale/internal/money"
	"github.com/Veraticus/finscale/internal/service"
)

// Request describes a purchase to record.
type Request struct {
	StartDate   calendar.Date
	Amount      decimal.Decimal
	CardID      *int64
	Description string
	Category    string
	Kind        model.Kind
	OwnerID     int64
	Count       int
}

// Validate checks the request before anything is written.
func (r *Request) Validate() error {
	if r.OwnerID == 0 {
		return common.Validationf("owner is required")
	}
	if strings.TrimSpace(r.Description) == "" {
		return common.Validationf("description is required")
	}
	if !r.Amount.IsPositive() {
		return common.Validationf("amount must be greater than 0")
	}
	if !r.Kind.Valid() {
		return common.Validationf("kind must be income or expense")
	}
	if strings.TrimSpace(r.Category) == "" {
		return common.Validationf("category is required")
	}
	if !r.StartDate.IsValid() {
		return common.Validationf("date is required")
	}
	if r.Count < 1 {
		return common.Validationf("installments must be at least 1")
	}
	return nil
}

// Expander writes installment groups.
type Expander struct {
	uow   service.UnitOfWork
	newID func() string
}

// Option configures an Expander.
type Option func(*Expander)

// WithGroupIDs overrides the group id generator.
func WithGroupIDs(fn func() string) Option {
	return func(e *Expander) {
		e.newID = fn
	}
}

// NewExpander creates an Expander that persists through uow.
func NewExpander(uow service.UnitOfWork, opts ...Option) *Expander {
	e := &Expander{
		uow:   uow,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Plan builds the entries for req without storing them. A count of one yields
// a single plain entry; otherwise entry i falls i months after the start date
// and carries its share of the split amount.
func (e *Expander) Plan(req Request) ([]model.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	description := strings.TrimSpace(req.Description)
	amount := req.Amount.Round(money.Cents)
	if req.Count == 1 {
		return []model.Transaction{{
			OwnerID:     req.OwnerID,
			Description: description,
			Amount:      amount,
			Kind:        req.Kind,
			Category:    req.Category,
			Date:        req.StartDate,
			CardID:      req.CardID,
		}}, nil
	}

	parts, err := money.SplitAmount(amount, req.Count)
	if err != nil {
		return nil, err
	}
	if !parts[0].IsPositive() {
		return nil, common.Validationf("amount %s is too small to split into %d installments", money.Format(amount), req.Count)
	}

	groupID := e.newID()
	transactions := make([]model.Transaction, req.Count)
	for i := range transactions {
		txn := model.Transaction{
			OwnerID:  req.OwnerID,
			Amount:   parts[i],
			Kind:     req.Kind,
			Category: req.Category,
			Date:     calendar.AddMonths(req.StartDate, i),
			CardID:   req.CardID,
			Installment: &model.Installment{
				GroupID:  groupID,
				Sequence: i + 1,
				Total:    req.Count,
			},
		}
		txn.Description = description + txn.InstallmentLabel()
		transactions[i] = txn
	}
	return transactions, nil
}

// Expand stores every entry of req in one unit of work and returns them in
// creation order. When any insert fails nothing is stored.
func (e *Expander) Expand(ctx context.Context, req Request) ([]model.Transaction, error) {
	transactions, err := e.Plan(req)
	if err != nil {
		return nil, err
	}

	err = service.RunInTx(ctx, e.uow, func(ledger service.Ledger) error {
		for i := range transactions {
			if insertErr := ledger.InsertTransaction(ctx, &transactions[i]); insertErr != nil {
				return fmt.Errorf("failed to store installment %d/%d: %w", i+1, len(transactions), insertErr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if req.Count > 1 {
		slog.Info("created installment group",
			"owner_id", req.OwnerID,
			"group_id", transactions[0].Installment.GroupID,
			"count", req.Count,
			"total", money.Format(req.Amount))
	}
	return transactions, nil
}
