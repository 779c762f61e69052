package api

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/model"
	"github.com/Veraticus/finscale/internal/money"
)

type userDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	ID    int64  `json:"id"`
}

type authResponse struct {
	Token string  `json:"token"`
	User  userDTO `json:"user"`
}

type transactionDTO struct {
	Date              calendar.Date `json:"date"`
	CreatedAt         time.Time     `json:"created_at"`
	CardID            *int64        `json:"card_id"`
	InstallmentID     *string       `json:"installment_id"`
	InstallmentNumber *int          `json:"installment_number"`
	InstallmentTotal  *int          `json:"installment_total"`
	Description       string        `json:"description"`
	Amount            string        `json:"amount"`
	Type              model.Kind    `json:"type"`
	Category          string        `json:"category"`
	ID                int64         `json:"id"`
	OwnerID           int64         `json:"users_id"`
}

type summaryDTO struct {
	TotalIncome  string `json:"total_income"`
	TotalExpense string `json:"total_expense"`
	Balance      string `json:"balance"`
}

type chargeDTO struct {
	NextDueDate calendar.Date    `json:"next_due_date"`
	CreatedAt   time.Time        `json:"created_at"`
	CardID      *int64           `json:"card_id"`
	Description string           `json:"description"`
	Amount      string           `json:"amount"`
	Type        model.Kind       `json:"type"`
	Frequency   calendar.Cadence `json:"frequency"`
	Category    string           `json:"category"`
	ID          int64            `json:"id"`
	OwnerID     int64            `json:"users_id"`
	IsActive    bool             `json:"is_active"`
}

type cardDTO struct {
	CreatedAt      time.Time `json:"created_at"`
	Name           string    `json:"name"`
	LastDigits     string    `json:"last_digits"`
	Color          string    `json:"color"`
	InitialBalance string    `json:"initial_balance"`
	TotalIncome    string    `json:"total_income,omitempty"`
	TotalExpense   string    `json:"total_expense,omitempty"`
	CurrentBalance string    `json:"current_balance,omitempty"`
	ID             int64     `json:"id"`
	OwnerID        int64     `json:"users_id"`
}

type categoryDTO struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
	ID    int64  `json:"id"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type processResponse struct {
	Message   string `json:"message"`
	Processed int    `json:"processed"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createTransactionRequest struct {
	Amount       *decimal.Decimal `json:"amount"`
	Date         *calendar.Date   `json:"date"`
	CardID       *int64           `json:"card_id"`
	Description  string           `json:"description"`
	Type         string           `json:"type"`
	Category     string           `json:"category"`
	Installments int              `json:"installments"`
}

type createChargeRequest struct {
	Amount      *decimal.Decimal `json:"amount"`
	NextDueDate *calendar.Date   `json:"next_due_date"`
	CardID      *int64           `json:"card_id"`
	Description string           `json:"description"`
	Type        string           `json:"type"`
	Frequency   string           `json:"frequency"`
	Category    string           `json:"category"`
}

type cardRequest struct {
	Name           *string          `json:"name"`
	LastDigits     *string          `json:"last_digits"`
	Color          *string          `json:"color"`
	InitialBalance *decimal.Decimal `json:"initial_balance"`
}

func toUserDTO(u *model.User) userDTO {
	return userDTO{ID: u.ID, Name: u.Name, Email: u.Email}
}

func toTransactionDTO(t *model.Transaction) transactionDTO {
	dto := transactionDTO{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Description: t.Description,
		Amount:      money.Format(t.Amount),
		Type:        t.Kind,
		Category:    t.Category,
		Date:        t.Date,
		CardID:      t.CardID,
		CreatedAt:   t.CreatedAt,
	}
	if inst := t.Installment; inst != nil {
		groupID, seq, total := inst.GroupID, inst.Sequence, inst.Total
		dto.InstallmentID = &groupID
		dto.InstallmentNumber = &seq
		dto.InstallmentTotal = &total
	}
	return dto
}

func toTransactionDTOs(transactions []model.Transaction) []transactionDTO {
	out := make([]transactionDTO, len(transactions))
	for i := range transactions {
		out[i] = toTransactionDTO(&transactions[i])
	}
	return out
}

func toSummaryDTO(s *model.Summary) summaryDTO {
	return summaryDTO{
		TotalIncome:  money.Format(s.TotalIncome),
		TotalExpense: money.Format(s.TotalExpense),
		Balance:      money.Format(s.Balance),
	}
}

func toChargeDTO(c *model.RecurringCharge) chargeDTO {
	return chargeDTO{
		ID:          c.ID,
		OwnerID:     c.OwnerID,
		Description: c.Description,
		Amount:      money.Format(c.Amount),
		Type:        c.EffectiveKind(),
		Frequency:   c.Cadence,
		NextDueDate: c.NextDueDate,
		Category:    c.EffectiveCategory(),
		CardID:      c.CardID,
		IsActive:    c.Active,
		CreatedAt:   c.CreatedAt,
	}
}

func toCardDTO(c *model.Card) cardDTO {
	return cardDTO{
		ID:             c.ID,
		OwnerID:        c.OwnerID,
		Name:           c.Name,
		LastDigits:     c.LastDigits,
		Color:          c.Color,
		InitialBalance: money.Format(c.InitialBalance),
		CreatedAt:      c.CreatedAt,
	}
}

func toCardBalanceDTO(c *model.CardBalance) cardDTO {
	dto := toCardDTO(&c.Card)
	dto.TotalIncome = money.Format(c.TotalIncome)
	dto.TotalExpense = money.Format(c.TotalExpense)
	dto.CurrentBalance = money.Format(c.CurrentBalance)
	return dto
}

func parsePositive(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}
