package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/model"
	"github.com/Veraticus/finscale/internal/service"
)

func TestSetupTestDB_SeedsOwnersAndCharges(t *testing.T) {
	db := SetupTestDB(t)

	first := db.MustCreateOwner("")
	second := db.MustCreateOwner("bo@example.com")
	assert.Equal(t, "owner1@example.com", first.Email)
	assert.Equal(t, "bo@example.com", second.Email)
	assert.NotEqual(t, first.ID, second.ID)

	charge := db.MustCreateCharge(first.ID, "Rent", "900", calendar.New(2026, time.October, 1))
	assert.NotZero(t, charge.ID)
	assert.True(t, charge.Active)
}

func TestWithTransaction_AlwaysRollsBack(t *testing.T) {
	db := SetupTestDB(t)
	owner := db.MustCreateOwner("")
	ctx := context.Background()

	err := db.WithTransaction(func(tx service.Transaction) error {
		return tx.InsertTransaction(ctx, &model.Transaction{
			OwnerID:     owner.ID,
			Description: "Coffee",
			Amount:      decimal.RequireFromString("4.50"),
			Kind:        model.KindExpense,
			Category:    "Food",
			Date:        calendar.New(2026, time.October, 15),
		})
	})
	require.NoError(t, err)

	transactions, err := db.Storage.ListTransactionsByOwner(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, transactions)
}
