package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/model"
)

func TestSQLiteStorage_CardBalances(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	owner := createTestUser(t, store, "cards@example.com")

	card := &model.Card{OwnerID: owner.ID, Name: "Visa", LastDigits: "4242", InitialBalance: decimal.NewFromInt(100)}
	require.NoError(t, store.CreateCard(ctx, card))
	assert.Equal(t, model.DefaultCardColor, card.Color)

	empty := &model.Card{OwnerID: owner.ID, Name: "Cash"}
	require.NoError(t, store.CreateCard(ctx, empty))

	date := calendar.New(2026, time.October, 10)
	income := newTestTransaction(owner.ID, "Refund", "20", model.KindIncome, date)
	income.CardID = &card.ID
	expense := newTestTransaction(owner.ID, "Dinner", "45.30", model.KindExpense, date)
	expense.CardID = &card.ID
	untagged := newTestTransaction(owner.ID, "Bus", "2", model.KindExpense, date)
	for _, txn := range []*model.Transaction{income, expense, untagged} {
		require.NoError(t, store.InsertTransaction(ctx, txn))
	}

	balances, err := store.ListCards(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, balances, 2)

	visa := balances[0]
	assert.Equal(t, "Visa", visa.Name)
	assert.Equal(t, "20", visa.TotalIncome.String())
	assert.Equal(t, "45.3", visa.TotalExpense.String())
	assert.Equal(t, "74.7", visa.CurrentBalance.String())

	cash := balances[1]
	assert.True(t, cash.CurrentBalance.IsZero())
}

func TestSQLiteStorage_UpdateCard(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	owner := createTestUser(t, store, "update@example.com")
	card := &model.Card{OwnerID: owner.ID, Name: "Visa"}
	require.NoError(t, store.CreateCard(ctx, card))

	name := "Visa Gold"
	balance := decimal.RequireFromString("10.50")
	updated, err := store.UpdateCard(ctx, card.ID, owner.ID, model.CardUpdate{Name: &name, InitialBalance: &balance})
	require.NoError(t, err)
	assert.Equal(t, "Visa Gold", updated.Name)

	fetched, err := store.GetCard(ctx, card.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Visa Gold", fetched.Name)
	assert.True(t, balance.Equal(fetched.InitialBalance))

	bad := "abcd"
	_, err = store.UpdateCard(ctx, card.ID, owner.ID, model.CardUpdate{LastDigits: &bad})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = store.UpdateCard(ctx, card.ID, owner.ID+100, model.CardUpdate{Name: &name})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteStorage_DeleteCardKeepsTransactions(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	ctx := context.Background()
	owner := createTestUser(t, store, "delete@example.com")
	card := &model.Card{OwnerID: owner.ID, Name: "Debit"}
	require.NoError(t, store.CreateCard(ctx, card))

	txn := newTestTransaction(owner.ID, "Books", "30", model.KindExpense, calendar.New(2026, time.August, 3))
	txn.CardID = &card.ID
	require.NoError(t, store.InsertTransaction(ctx, txn))

	deleted, err := store.DeleteCard(ctx, card.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	txns, err := store.ListTransactionsByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Nil(t, txns[0].CardID)

	deleted, err = store.DeleteCard(ctx, card.ID, owner.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}
