package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/salon-comanda/internal/model"
)

type openSessionRequest struct {
	ResponsibleID string          `json:"responsibleId"`
	InitialCash   decimal.Decimal `json:"initialCash"`
	Notes         string          `json:"notes"`
}

// OpenSession открывает кассовую смену.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "open session", err)
		return
	}

	s, err := h.service.OpenSession(r.Context(), req.ResponsibleID, req.InitialCash, req.Notes)
	if err != nil {
		h.writeError(w, r, "open session", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, s)
}

// ListSessions возвращает смены с указанным статусом.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ListSessions(r.Context(), model.SessionStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.writeError(w, r, "list sessions", err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

type sessionResponse struct {
	*model.CashierSession
	Movements []model.CashMovement `json:"movements"`
}

// GetSession возвращает смену вместе с движениями наличных.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s, err := h.service.GetSession(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get session", err)
		return
	}

	movements, err := h.service.ListMovements(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "list movements", err)
		return
	}

	h.writeJSON(w, http.StatusOK, sessionResponse{CashierSession: s, Movements: movements})
}

type movementRequest struct {
	Type        model.MovementType `json:"type"`
	Amount      decimal.Decimal    `json:"amount"`
	Description string             `json:"description"`
}

// RecordMovement записывает внесение или изъятие наличных.
func (h *Handler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "record movement", err)
		return
	}

	m, err := h.service.RecordMovement(r.Context(), chi.URLParam(r, "id"), req.Type, req.Amount, req.Description)
	if err != nil {
		h.writeError(w, r, "record movement", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, m)
}

type closeSessionRequest struct {
	FinalCash *decimal.Decimal `json:"finalCash"`
	Notes     string           `json:"notes"`
}

// CloseSession закрывает смену и возвращает её итог.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	var req closeSessionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		h.writeError(w, r, "close session", err)
		return
	}

	s, err := h.service.CloseSession(r.Context(), chi.URLParam(r, "id"), req.FinalCash, req.Notes)
	if err != nil {
		h.writeError(w, r, "close session", err)
		return
	}

	h.writeJSON(w, http.StatusOK, s)
}
