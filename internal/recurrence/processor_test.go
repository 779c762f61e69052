package recurrence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/model"
	"github.com/Veraticus/finscale/internal/service"
	"github.com/Veraticus/finscale/internal/storage"
	"github.com/Veraticus/finscale/internal/testutil"
)

var errInjected = errors.New("write failed")

var today = calendar.New(2026, time.October, 15)

// flakyStore fails the due-date update of one charge.
type flakyStore struct {
	*storage.SQLiteStorage
	failCharge int64
}

func (f *flakyStore) BeginTx(ctx context.Context) (service.Transaction, error) {
	tx, err := f.SQLiteStorage.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return &flakyTx{Transaction: tx, failCharge: f.failCharge}, nil
}

type flakyTx struct {
	service.Transaction
	failCharge int64
}

func (t *flakyTx) UpdateNextDueDate(ctx context.Context, chargeID int64, expected, next calendar.Date) error {
	if chargeID == t.failCharge {
		return errInjected
	}
	return t.Transaction.UpdateNextDueDate(ctx, chargeID, expected, next)
}

func newProcessor(store Store, opts ...Option) *Processor {
	return NewProcessor(store, calendar.FixedClock{Date: today}, opts...)
}

func TestPending(t *testing.T) {
	tests := []struct {
		name      string
		cadence   calendar.Cadence
		next      calendar.Date
		wantDates []calendar.Date
		wantNext  calendar.Date
	}{
		{
			name:      "future charge owes nothing",
			cadence:   calendar.Monthly,
			next:      calendar.New(2026, time.October, 16),
			wantDates: nil,
			wantNext:  calendar.New(2026, time.October, 16),
		},
		{
			name:      "due today",
			cadence:   calendar.Weekly,
			next:      today,
			wantDates: []calendar.Date{today},
			wantNext:  calendar.New(2026, time.October, 22),
		},
		{
			name:    "daily catch-up",
			cadence: calendar.Daily,
			next:    calendar.New(2026, time.October, 13),
			wantDates: []calendar.Date{
				calendar.New(2026, time.October, 13),
				calendar.New(2026, time.October, 14),
				calendar.New(2026, time.October, 15),
			},
			wantNext: calendar.New(2026, time.October, 16),
		},
		{
			name:    "monthly from month end clamps",
			cadence: calendar.Monthly,
			next:    calendar.New(2026, time.July, 31),
			wantDates: []calendar.Date{
				calendar.New(2026, time.July, 31),
				calendar.New(2026, time.August, 31),
				calendar.New(2026, time.September, 30),
			},
			wantNext: calendar.New(2026, time.October, 30),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			charge := &model.RecurringCharge{
				ID:          1,
				OwnerID:     1,
				Description: "Rent",
				Amount:      decimal.NewFromInt(10),
				Cadence:     tt.cadence,
				NextDueDate: tt.next,
				Active:      true,
			}

			pending, next, err := Pending(charge, today)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNext, next)

			var dates []calendar.Date
			for _, txn := range pending {
				dates = append(dates, txn.Date)
				assert.Equal(t, "🔄 Rent", txn.Description)
				assert.Equal(t, model.KindExpense, txn.Kind)
				assert.Equal(t, model.DefaultRecurringCategory, txn.Category)
			}
			assert.Equal(t, tt.wantDates, dates)
		})
	}
}

func TestPending_InactiveAndUnknownCadence(t *testing.T) {
	charge := &model.RecurringCharge{Cadence: calendar.Daily, NextDueDate: calendar.New(2026, time.January, 1)}
	pending, next, err := Pending(charge, today)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, charge.NextDueDate, next)

	charge.Active = true
	charge.Cadence = "fortnightly"
	_, _, err = Pending(charge, today)
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestProcessCharge_CatchUpAndIdempotence(t *testing.T) {
	db := testutil.SetupTestDB(t)
	owner := db.MustCreateOwner("")
	ctx := context.Background()

	charge := db.MustCreateCharge(owner.ID, "Coffee", "4.50", calendar.New(2026, time.October, 13))
	charge.Cadence = calendar.Daily

	processor := newProcessor(db.Storage)
	created, err := processor.ProcessCharge(ctx, charge)
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Equal(t, calendar.New(2026, time.October, 16), charge.NextDueDate)

	again, err := processor.ProcessCharge(ctx, charge)
	require.NoError(t, err)
	assert.Zero(t, again)

	txns, err := db.Storage.ListTransactionsByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, calendar.New(2026, time.October, 15), txns[0].Date)
	assert.Equal(t, calendar.New(2026, time.October, 13), txns[2].Date)
	assert.Equal(t, "🔄 Coffee", txns[0].Description)

	due, err := db.Storage.ListActiveDueBy(ctx, today, &owner.ID)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestProcessAllDue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	alice := db.MustCreateOwner("alice@example.com")
	bob := db.MustCreateOwner("bob@example.com")

	db.MustCreateCharge(alice.ID, "Rent", "900", calendar.New(2026, time.September, 15))
	db.MustCreateCharge(bob.ID, "Gym", "30", today)
	db.MustCreateCharge(bob.ID, "Future", "30", calendar.New(2026, time.November, 1))
	paused := db.MustCreateCharge(bob.ID, "Paused", "30", calendar.New(2026, time.October, 1))
	_, err := db.Storage.ToggleChargeActive(ctx, paused.ID, bob.ID)
	require.NoError(t, err)

	var observed []int64
	processor := newProcessor(db.Storage, WithObserver(func(charge model.RecurringCharge, _ int, _ error) {
		observed = append(observed, charge.ID)
	}))

	result, err := processor.ProcessAllDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 3, result.Created)
	assert.Empty(t, result.Failures)
	assert.Len(t, observed, 2)

	bobTxns, err := db.Storage.ListTransactionsByOwner(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobTxns, 1, "inactive and future charges create nothing")
	assert.Equal(t, "🔄 Gym", bobTxns[0].Description)

	again, err := processor.ProcessAllDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Created)
	assert.Zero(t, again.Processed)
}

func TestProcessAllDue_IsolatesFailures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	owner := db.MustCreateOwner("")

	broken := db.MustCreateCharge(owner.ID, "Broken", "10", calendar.New(2026, time.August, 15))
	db.MustCreateCharge(owner.ID, "Healthy", "20", calendar.New(2026, time.September, 15))

	processor := newProcessor(&flakyStore{SQLiteStorage: db.Storage, failCharge: broken.ID})
	result, err := processor.ProcessAllDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 2, result.Created)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, broken.ID, result.Failures[0].ChargeID)
	assert.ErrorIs(t, result.Failures[0].Err, errInjected)

	txns, err := db.Storage.ListTransactionsByOwner(ctx, owner.ID)
	require.NoError(t, err)
	for _, txn := range txns {
		assert.Equal(t, "🔄 Healthy", txn.Description, "failed charge leaves no entries behind")
	}

	charges, err := db.Storage.ListChargesByOwner(ctx, owner.ID)
	require.NoError(t, err)
	for _, c := range charges {
		if c.ID == broken.ID {
			assert.Equal(t, calendar.New(2026, time.August, 15), c.NextDueDate)
		}
	}
}

func TestProcessOwner_OnlyTouchesOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	alice := db.MustCreateOwner("a@example.com")
	bob := db.MustCreateOwner("b@example.com")
	db.MustCreateCharge(alice.ID, "A", "1", today)
	db.MustCreateCharge(bob.ID, "B", "1", today)

	result, err := newProcessor(db.Storage).ProcessOwner(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	bobTxns, err := db.Storage.ListTransactionsByOwner(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, bobTxns)
}

func TestProcessAllDue_NothingDue(t *testing.T) {
	db := testutil.SetupTestDB(t)

	result, err := newProcessor(db.Storage).ProcessAllDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, result)
}

func TestProcessCharge_StaleCopiesCreateOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	owner := db.MustCreateOwner("")
	ctx := context.Background()
	db.MustCreateCharge(owner.ID, "Rent", "900", calendar.New(2026, time.October, 13))

	first, err := db.Storage.ListActiveDueBy(ctx, today, &owner.ID)
	require.NoError(t, err)
	second, err := db.Storage.ListActiveDueBy(ctx, today, &owner.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Len(t, second, 1)

	processor := newProcessor(db.Storage)
	created, err := processor.ProcessCharge(ctx, &first[0])
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	created, err = processor.ProcessCharge(ctx, &second[0])
	require.ErrorIs(t, err, common.ErrConflict)
	assert.Zero(t, created)
	assert.Equal(t, calendar.New(2026, time.October, 13), second[0].NextDueDate)

	txns, err := db.Storage.ListTransactionsByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestProcessCharge_PausedAfterListing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	owner := db.MustCreateOwner("")
	ctx := context.Background()
	charge := db.MustCreateCharge(owner.ID, "Gym", "30", calendar.New(2026, time.October, 1))

	_, err := db.Storage.ToggleChargeActive(ctx, charge.ID, owner.ID)
	require.NoError(t, err)

	_, err = newProcessor(db.Storage).ProcessCharge(ctx, charge)
	require.ErrorIs(t, err, common.ErrConflict)

	txns, err := db.Storage.ListTransactionsByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

// racingStore lets a second sweep process every charge right after the first
// sweep listed them.
type racingStore struct {
	*storage.SQLiteStorage
	rival *Processor
}

func (r *racingStore) ListActiveDueBy(ctx context.Context, date calendar.Date, ownerID *int64) ([]model.RecurringCharge, error) {
	charges, err := r.SQLiteStorage.ListActiveDueBy(ctx, date, ownerID)
	if err != nil {
		return nil, err
	}
	if _, err := r.rival.ProcessAllDue(ctx); err != nil {
		return nil, err
	}
	return charges, nil
}

func TestProcessAllDue_OverlappingSweepsSkip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	owner := db.MustCreateOwner("")
	ctx := context.Background()
	db.MustCreateCharge(owner.ID, "Rent", "900", calendar.New(2026, time.September, 15))

	var observedErr error
	store := &racingStore{SQLiteStorage: db.Storage, rival: newProcessor(db.Storage)}
	processor := newProcessor(store, WithObserver(func(_ model.RecurringCharge, _ int, err error) {
		observedErr = err
	}))

	result, err := processor.ProcessAllDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Processed)
	assert.Zero(t, result.Created)
	assert.Empty(t, result.Failures)
	assert.NoError(t, observedErr)

	txns, err := db.Storage.ListTransactionsByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, txns, 2, "September and October are recorded once each")
}
