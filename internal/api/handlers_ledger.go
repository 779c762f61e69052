package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Veraticus/finscale/internal/calendar"
	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/installment"
	"github.com/Veraticus/finscale/internal/model"
)

// listCategories handles GET /api/categories.
func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.deps.Store.ListCategories(r.Context())
	if err != nil {
		writeFailure(w, r, err, "Failed to list categories")
		return
	}

	out := make([]categoryDTO, len(categories))
	for i, c := range categories {
		out[i] = categoryDTO{ID: c.ID, Name: c.Name, Color: c.Color, Icon: c.Icon}
	}
	WriteJSON(w, http.StatusOK, out)
}

// listTransactions handles GET /api/transactions.
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.deps.Store.ListTransactionsByOwner(r.Context(), ownerFrom(r))
	if err != nil {
		writeFailure(w, r, err, "Failed to list transactions")
		return
	}
	WriteJSON(w, http.StatusOK, toTransactionDTOs(transactions))
}

// summary handles GET /api/transactions/summary.
func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Store.SummarizeOwner(r.Context(), ownerFrom(r))
	if err != nil {
		writeFailure(w, r, err, "Failed to summarize transactions")
		return
	}
	WriteJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// createTransaction handles POST /api/transactions. The response lists every
// stored entry, one per installment.
func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, err, "")
		return
	}

	if strings.TrimSpace(req.Description) == "" || req.Amount == nil || req.Type == "" ||
		strings.TrimSpace(req.Category) == "" || req.Date == nil {
		WriteError(w, http.StatusBadRequest, "Fields description, amount, type, category and date are required")
		return
	}
	kind, err := model.ParseKind(req.Type)
	if err != nil {
		WriteError(w, http.StatusBadRequest, `Type must be "income" or "expense"`)
		return
	}
	if req.Installments == 0 {
		req.Installments = 1
	}

	ctx := r.Context()
	ownerID := ownerFrom(r)
	if err := s.checkCard(ctx, ownerID, req.CardID); err != nil {
		writeFailure(w, r, err, "Failed to create transaction")
		return
	}

	transactions, err := s.deps.Expander.Expand(ctx, installment.Request{
		OwnerID:     ownerID,
		Description: req.Description,
		Amount:      *req.Amount,
		Kind:        kind,
		Category:    strings.TrimSpace(req.Category),
		StartDate:   *req.Date,
		Count:       req.Installments,
		CardID:      req.CardID,
	})
	if err != nil {
		writeFailure(w, r, err, "Failed to create transaction")
		return
	}
	WriteJSON(w, http.StatusCreated, toTransactionDTOs(transactions))
}

// deleteTransaction handles DELETE /api/transactions/{id}.
func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, r, err, "")
		return
	}

	deleted, err := s.deps.Store.DeleteTransaction(r.Context(), id, ownerFrom(r))
	if err != nil {
		writeFailure(w, r, err, "Failed to delete transaction")
		return
	}
	if !deleted {
		WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{Message: "Transaction deleted"})
}

// listCharges handles GET /api/recurrent-charges.
func (s *Server) listCharges(w http.ResponseWriter, r *http.Request) {
	charges, err := s.deps.Store.ListChargesByOwner(r.Context(), ownerFrom(r))
	if err != nil {
		writeFailure(w, r, err, "Failed to list recurring charges")
		return
	}

	out := make([]chargeDTO, len(charges))
	for i := range charges {
		out[i] = toChargeDTO(&charges[i])
	}
	WriteJSON(w, http.StatusOK, out)
}

// createCharge handles POST /api/recurrent-charges.
func (s *Server) createCharge(w http.ResponseWriter, r *http.Request) {
	var req createChargeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, err, "")
		return
	}

	if strings.TrimSpace(req.Description) == "" || req.Amount == nil || req.Frequency == "" || req.NextDueDate == nil {
		WriteError(w, http.StatusBadRequest, "Fields description, amount, frequency and next_due_date are required")
		return
	}
	cadence, err := calendar.ParseCadence(req.Frequency)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Frequency must be daily, weekly, monthly or yearly")
		return
	}
	var kind model.Kind
	if req.Type != "" {
		if kind, err = model.ParseKind(req.Type); err != nil {
			WriteError(w, http.StatusBadRequest, `Type must be "income" or "expense"`)
			return
		}
	}

	ctx := r.Context()
	ownerID := ownerFrom(r)
	if err := s.checkCard(ctx, ownerID, req.CardID); err != nil {
		writeFailure(w, r, err, "Failed to create recurring charge")
		return
	}

	charge := &model.RecurringCharge{
		OwnerID:     ownerID,
		Description: strings.TrimSpace(req.Description),
		Amount:      *req.Amount,
		Kind:        kind,
		Cadence:     cadence,
		NextDueDate: *req.NextDueDate,
		Category:    strings.TrimSpace(req.Category),
		CardID:      req.CardID,
	}
	if err := s.deps.Store.CreateCharge(ctx, charge); err != nil {
		writeFailure(w, r, err, "Failed to create recurring charge")
		return
	}
	WriteJSON(w, http.StatusCreated, toChargeDTO(charge))
}

// processCharges handles POST /api/recurrent-charges/process.
func (s *Server) processCharges(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Sweeper.ProcessOwner(r.Context(), ownerFrom(r))
	if err != nil {
		writeFailure(w, r, err, "Failed to process recurring charges")
		return
	}

	message := "No pending charges"
	if result.Created > 0 {
		message = fmt.Sprintf("%d transaction(s) created", result.Created)
	}
	WriteJSON(w, http.StatusOK, processResponse{Processed: result.Created, Message: message})
}

// toggleCharge handles PATCH /api/recurrent-charges/{id}/toggle.
func (s *Server) toggleCharge(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, r, err, "")
		return
	}

	charge, err := s.deps.Store.ToggleChargeActive(r.Context(), id, ownerFrom(r))
	if errors.Is(err, common.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Recurring charge not found")
		return
	}
	if err != nil {
		writeFailure(w, r, err, "Failed to toggle recurring charge")
		return
	}
	WriteJSON(w, http.StatusOK, toChargeDTO(charge))
}

// deleteCharge handles DELETE /api/recurrent-charges/{id}.
func (s *Server) deleteCharge(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, r, err, "")
		return
	}

	deleted, err := s.deps.Store.DeleteCharge(r.Context(), id, ownerFrom(r))
	if err != nil {
		writeFailure(w, r, err, "Failed to delete recurring charge")
		return
	}
	if !deleted {
		WriteError(w, http.StatusNotFound, "Recurring charge not found")
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{Message: "Recurring charge deleted"})
}

// checkCard rejects card ids the owner does not hold.
func (s *Server) checkCard(ctx context.Context, ownerID int64, cardID *int64) error {
	if cardID == nil {
		return nil
	}
	_, err := s.deps.Store.GetCard(ctx, *cardID, ownerID)
	if errors.Is(err, common.ErrNotFound) {
		return common.Validationf("Card %d not found", *cardID)
	}
	return err
}
