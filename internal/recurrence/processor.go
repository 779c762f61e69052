// Package recurrence materializes recurring charges into ledger entries.
//
// A charge is caught up one period at a time: every period whose start is on
// or before today becomes a transaction dated on that period, and the charge's
// next due date moves to the first period still in the future. The entries and
// the due-date move are written in one unit of work, so processing a charge
// twice in a row creates nothing the second time.
package recurrence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/model"
	"github.com/Veraticus/finscale/internal/service"
)

// DescriptionPrefix marks entries produced from a recurring charge.
const DescriptionPrefix = "🔄 "

// Store is what the processor needs from persistence.
type Store interface {
	service.UnitOfWork
	ListActiveDueBy(ctx context.Context, date calendar.Date, ownerID *int64) ([]model.RecurringCharge, error)
}

// Observer is notified after each charge of a sweep is handled.
type Observer func(charge model.RecurringCharge, created int, err error)

// ChargeFailure records a charge that could not be processed during a sweep.
type ChargeFailure struct {
	Err      error
	ChargeID int64
	OwnerID  int64
}

// SweepResult summarizes a sweep over due charges.
type SweepResult struct {
	Failures  []ChargeFailure
	Created   int
	Processed int
	// Skipped counts charges another writer changed after they were listed.
	Skipped int
}

// Processor catches recurring charges up to the current day.
type Processor struct {
	store    Store
	clock    calendar.Clock
	observer Observer
}

// Option configures a Processor.
type Option func(*Processor)

// WithObserver registers a per-charge callback.
func WithObserver(observer Observer) Option {
	return func(p *Processor) {
		p.observer = observer
	}
}

// NewProcessor creates a processor. A nil clock uses the host's calendar day.
func NewProcessor(store Store, clock calendar.Clock, opts ...Option) *Processor {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	p := &Processor{
		store: store,
		clock: clock,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Pending returns the entries a charge owes as of today and the due date that
// follows them. Inactive charges owe nothing.
func Pending(charge *model.RecurringCharge, today calendar.Date) ([]model.Transaction, calendar.Date, error) {
	cursor := charge.NextDueDate
	if !charge.Active {
		return nil, cursor, nil
	}

	var pending []model.Transaction
	for calendar.OnOrBefore(cursor, today) {
		pending = append(pending, model.Transaction{
			OwnerID:     charge.OwnerID,
			Description: DescriptionPrefix + charge.Description,
			Amount:      charge.Amount,
			Kind:        charge.EffectiveKind(),
			Category:    charge.EffectiveCategory(),
			Date:        cursor,
			CardID:      charge.CardID,
		})

		next, err := calendar.AdvanceDate(cursor, charge.Cadence)
		if err != nil {
			return nil, charge.NextDueDate, fmt.Errorf("charge %d: %w", charge.ID, err)
		}
		cursor = next
	}
	return pending, cursor, nil
}

// ProcessCharge creates every entry the charge owes, oldest first, then moves
// its next due date past today. It returns the number of entries created and
// updates charge.NextDueDate on success. When another sweep already moved the
// charge, or it was paused or deleted since it was read, nothing is written and
// the error wraps common.ErrConflict.
func (p *Processor) ProcessCharge(ctx context.Context, charge *model.RecurringCharge) (int, error) {
	pending, next, err := Pending(charge, p.clock.Today())
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	err = service.RunInTx(ctx, p.store, func(ledger service.Ledger) error {
		for i := range pending {
			if insertErr := ledger.InsertTransaction(ctx, &pending[i]); insertErr != nil {
				return fmt.Errorf("failed to create entry for %s: %w", pending[i].Date, insertErr)
			}
		}
		return ledger.UpdateNextDueDate(ctx, charge.ID, charge.NextDueDate, next)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to process charge %d: %w", charge.ID, err)
	}

	charge.NextDueDate = next
	slog.Debug("processed recurring charge",
		"charge_id", charge.ID,
		"owner_id", charge.OwnerID,
		"created", len(pending),
		"next_due_date", next.String())
	return len(pending), nil
}

// ProcessAllDue sweeps every owner's due charges. A failing charge is logged
// and recorded without stopping the sweep.
func (p *Processor) ProcessAllDue(ctx context.Context) (SweepResult, error) {
	return p.sweep(ctx, nil)
}

// ProcessOwner sweeps the due charges of a single owner.
func (p *Processor) ProcessOwner(ctx context.Context, ownerID int64) (SweepResult, error) {
	return p.sweep(ctx, &ownerID)
}

func (p *Processor) sweep(ctx context.Context, ownerID *int64) (SweepResult, error) {
	var result SweepResult

	today := p.clock.Today()
	charges, err := p.store.ListActiveDueBy(ctx, today, ownerID)
	if err != nil {
		return result, fmt.Errorf("failed to list due charges: %w", err)
	}
	if len(charges) == 0 {
		return result, nil
	}

	sort.SliceStable(charges, func(i, j int) bool {
		return charges[i].OwnerID < charges[j].OwnerID
	})

	for i := range charges {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}

		charge := &charges[i]
		created, chargeErr := p.ProcessCharge(ctx, charge)
		switch {
		case errors.Is(chargeErr, common.ErrConflict):
			slog.Debug("skipped recurring charge changed by another writer",
				"charge_id", charge.ID,
				"owner_id", charge.OwnerID)
			result.Skipped++
			chargeErr = nil
		case chargeErr != nil:
			slog.Error("failed to process recurring charge",
				"charge_id", charge.ID,
				"owner_id", charge.OwnerID,
				"error", chargeErr)
			result.Failures = append(result.Failures, ChargeFailure{
				ChargeID: charge.ID,
				OwnerID:  charge.OwnerID,
				Err:      chargeErr,
			})
		default:
			result.Processed++
			result.Created += created
		}

		if p.observer != nil {
			p.observer(*charge, created, chargeErr)
		}
	}

	slog.Info("recurring charge sweep complete",
		"date", today.String(),
		"charges", len(charges),
		"created", result.Created,
		"skipped", result.Skipped,
		"failed", len(result.Failures))
	return result, nil
}
