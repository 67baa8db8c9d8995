// Package handler содержит HTTP-обработчики API сервиса команд салона.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/salon-comanda/internal/apperror"
	"github.com/mmeshcher/salon-comanda/internal/middleware"
	"github.com/mmeshcher/salon-comanda/internal/model"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateComanda(ctx context.Context, clientID, staffID string) (*model.Comanda, error)
	GetComanda(ctx context.Context, id string) (*model.Comanda, error)
	ListComandas(ctx context.Context, status model.ComandaStatus) ([]model.Comanda, error)
	AddLine(ctx context.Context, comandaID string, in model.NewLine) (*model.Line, error)
	RemoveLine(ctx context.Context, comandaID, lineID string) error
	FinalizeComanda(ctx context.Context, comandaID string, in model.FinalizeInput) (*model.Finalization, error)
	ComandaCommissions(ctx context.Context, comandaID string) ([]model.Commission, error)

	GetFaturamento(ctx context.Context, day string) (*model.Faturamento, error)

	OpenSession(ctx context.Context, staffID string, initialCash decimal.Decimal, notes string) (*model.CashierSession, error)
	GetSession(ctx context.Context, id string) (*model.CashierSession, error)
	ListSessions(ctx context.Context, status model.SessionStatus) ([]model.CashierSession, error)
	ListMovements(ctx context.Context, sessionID string) ([]model.CashMovement, error)
	RecordMovement(ctx context.Context, sessionID string, typ model.MovementType, amount decimal.Decimal, description string) (*model.CashMovement, error)
	CloseSession(ctx context.Context, id string, declaredCash *decimal.Decimal, notes string) (*model.CashierSession, error)

	CommissionReport(ctx context.Context, from, to, staffID string) ([]model.StaffCommissionTotals, error)
}

// Handler реализует HTTP-обработчики API сервиса команд салона.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
	}
}

type errorResponse struct {
	Code    apperror.Kind `json:"code"`
	Message string        `json:"message"`
}

var errInvalidBody = apperror.Invalid("invalid request body")

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// writeError отвечает стабильным кодом ошибки; внутренние ошибки журналируются и не раскрываются клиенту.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	public := apperror.Public(err)
	if public.Kind == apperror.Internal {
		fields := []zap.Field{zap.String("op", op), zap.Error(err)}
		if id, ok := middleware.GetRequestID(r.Context()); ok {
			fields = append(fields, zap.String("request_id", id))
		}
		h.logger.Error("request failed", fields...)
	}

	h.writeJSON(w, apperror.HTTPStatus(public.Kind), errorResponse{Code: public.Kind, Message: public.Message})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errInvalidBody
	}
	return nil
}

// decodeOptionalJSON допускает пустое тело запроса.
func decodeOptionalJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}

type createComandaRequest struct {
	ClientID string `json:"clientId"`
	StaffID  string `json:"staffId"`
}

// CreateComanda открывает новую комманду.
func (h *Handler) CreateComanda(w http.ResponseWriter, r *http.Request) {
	var req createComandaRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "create comanda", err)
		return
	}

	c, err := h.service.CreateComanda(r.Context(), req.ClientID, req.StaffID)
	if err != nil {
		h.writeError(w, r, "create comanda", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, c)
}

// ListComandas возвращает комманды с указанным статусом.
func (h *Handler) ListComandas(w http.ResponseWriter, r *http.Request) {
	status := model.ComandaStatus(r.URL.Query().Get("status"))

	res, err := h.service.ListComandas(r.Context(), status)
	if err != nil {
		h.writeError(w, r, "list comandas", err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// GetComanda возвращает комманду по идентификатору.
func (h *Handler) GetComanda(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetComanda(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "get comanda", err)
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

type addLineRequest struct {
	Type      model.LineType   `json:"type"`
	CatalogID *string          `json:"catalogId"`
	Name      string           `json:"name"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
	Quantity  int              `json:"quantity"`
	SoldByID  *string          `json:"soldById"`
}

// AddLine добавляет строку в открытую комманду.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	var req addLineRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "add line", err)
		return
	}

	l, err := h.service.AddLine(r.Context(), chi.URLParam(r, "id"), model.NewLine{
		Type:      req.Type,
		CatalogID: req.CatalogID,
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
		SoldByID:  req.SoldByID,
	})
	if err != nil {
		h.writeError(w, r, "add line", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, l)
}

// RemoveLine удаляет строку из открытой комманды.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	err := h.service.RemoveLine(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineId"))
	if err != nil {
		h.writeError(w, r, "remove line", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type finalizeRequest struct {
	Discount                *decimal.Decimal           `json:"discount"`
	PaymentMethod           model.PaymentMethod        `json:"paymentMethod"`
	CreditAmount            *decimal.Decimal           `json:"creditAmount"`
	LineCommissionOverrides map[string]decimal.Decimal `json:"lineCommissionOverrides"`
}

// FinalizeComanda закрывает комманду и возвращает запись о закрытии.
func (h *Handler) FinalizeComanda(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "finalize comanda", err)
		return
	}

	in := model.FinalizeInput{
		PaymentMethod:           req.PaymentMethod,
		LineCommissionOverrides: req.LineCommissionOverrides,
	}
	if req.Discount != nil {
		in.Discount = *req.Discount
	}
	if req.CreditAmount != nil {
		in.CreditAmount = *req.CreditAmount
	}

	f, err := h.service.FinalizeComanda(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, "finalize comanda", err)
		return
	}

	h.writeJSON(w, http.StatusOK, f)
}

// GetComandaCommissions возвращает записи реестра комиссий комманды.
func (h *Handler) GetComandaCommissions(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ComandaCommissions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "comanda commissions", err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// GetFaturamento возвращает выручку за день и закрытые в этот день комманды.
func (h *Handler) GetFaturamento(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.GetFaturamento(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, r, "faturamento", err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

// GetCommissionReport возвращает итоги комиссий по сотрудникам за период.
func (h *Handler) GetCommissionReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	res, err := h.service.CommissionReport(r.Context(), q.Get("from"), q.Get("to"), q.Get("staffId"))
	if err != nil {
		h.writeError(w, r, "commission report", err)
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}
