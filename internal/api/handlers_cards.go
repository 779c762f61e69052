package api

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/finscale/internal/common"
	"github.com/Veraticus/finscale/internal/model"
)

// listCards handles GET /api/cards.
func (s *Server) listCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.deps.Store.ListCards(r.Context(), ownerFrom(r))
	if err != nil {
		writeFailure(w, r, err, "Failed to list cards")
		return
	}

	out := make([]cardDTO, len(cards))
	for i := range cards {
		out[i] = toCardBalanceDTO(&cards[i])
	}
	WriteJSON(w, http.StatusOK, out)
}

// createCard handles POST /api/cards.
func (s *Server) createCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, err, "")
		return
	}

	card := &model.Card{OwnerID: ownerFrom(r), InitialBalance: decimal.Zero}
	if req.Name != nil {
		card.Name = *req.Name
	}
	if req.LastDigits != nil {
		card.LastDigits = *req.LastDigits
	}
	if req.Color != nil {
		card.Color = *req.Color
	}
	if req.InitialBalance != nil {
		card.InitialBalance = *req.InitialBalance
	}

	if err := s.deps.Store.CreateCard(r.Context(), card); err != nil {
		writeFailure(w, r, err, "Failed to create card")
		return
	}
	WriteJSON(w, http.StatusCreated, toCardDTO(card))
}

// updateCard handles PUT /api/cards/{id}. Omitted fields keep their value.
func (s *Server) updateCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, r, err, "")
		return
	}

	var req cardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, r, err, "")
		return
	}

	card, err := s.deps.Store.UpdateCard(r.Context(), id, ownerFrom(r), model.CardUpdate{
		Name:           req.Name,
		LastDigits:     req.LastDigits,
		Color:          req.Color,
		InitialBalance: req.InitialBalance,
	})
	if errors.Is(err, common.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Card not found")
		return
	}
	if err != nil {
		writeFailure(w, r, err, "Failed to update card")
		return
	}
	WriteJSON(w, http.StatusOK, toCardDTO(card))
}

// deleteCard handles DELETE /api/cards/{id}. Tagged transactions are kept.
func (s *Server) deleteCard(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeFailure(w, r, err, "")
		return
	}

	deleted, err := s.deps.Store.DeleteCard(r.Context(), id, ownerFrom(r))
	if err != nil {
		writeFailure(w, r, err, "Failed to delete card")
		return
	}
	if !deleted {
		WriteError(w, http.StatusNotFound, "Card not found")
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{Message: "Card deleted"})
}
