package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/salon-comanda/internal/apperror"
	"github.com/mmeshcher/salon-comanda/internal/model"
	"github.com/mmeshcher/salon-comanda/internal/validation"
)

// OpenSession открывает кассовую смену сотрудника с начальной суммой в кассе.
func (s *Service) OpenSession(ctx context.Context, staffID string, initialCash decimal.Decimal, notes string) (*model.CashierSession, error) {
	if err := requireID(staffID, "responsible id"); err != nil {
		return nil, err
	}
	if !validation.IsValidAmount(initialCash) {
		return nil, apperror.Invalid("invalid initial cash")
	}

	if _, err := s.repo.GetStaff(ctx, staffID); err != nil {
		return nil, err
	}

	cs := model.CashierSession{
		ID:          uuid.NewString(),
		StaffID:     staffID,
		InitialCash: initialCash,
		Status:      model.SessionOpen,
		OpenedAt:    s.cal.Now(),
		Notes:       strings.TrimSpace(notes),
	}
	if err := s.repo.OpenSession(ctx, cs); err != nil {
		return nil, err
	}

	s.logger.Info("cashier session opened", zap.String("session_id", cs.ID), zap.String("staff_id", staffID))
	return &cs, nil
}

// GetSession возвращает кассовую смену.
func (s *Service) GetSession(ctx context.Context, id string) (*model.CashierSession, error) {
	if err := requireID(id, "session id"); err != nil {
		return nil, err
	}
	return s.repo.GetSession(ctx, id)
}

// ListSessions возвращает смены с указанным статусом.
func (s *Service) ListSessions(ctx context.Context, status model.SessionStatus) ([]model.CashierSession, error) {
	if status == "" {
		status = model.SessionOpen
	}
	if status != model.SessionOpen && status != model.SessionClosed {
		return nil, apperror.Invalid("invalid session status")
	}

	res, err := s.repo.ListSessions(ctx, status)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = []model.CashierSession{}
	}
	return res, nil
}

// ListMovements возвращает движения наличных смены.
func (s *Service) ListMovements(ctx context.Context, sessionID string) ([]model.CashMovement, error) {
	if err := requireID(sessionID, "session id"); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, sessionID)
}

// RecordMovement записывает внесение или изъятие наличных в открытую смену.
func (s *Service) RecordMovement(ctx context.Context, sessionID string, typ model.MovementType, amount decimal.Decimal, description string) (*model.CashMovement, error) {
	if err := requireID(sessionID, "session id"); err != nil {
		return nil, err
	}
	if !validation.IsValidMovementType(typ) {
		return nil, apperror.Invalid("invalid movement type")
	}
	if !validation.IsPositiveAmount(amount) {
		return nil, apperror.Invalid("movement amount must be positive")
	}

	m := model.CashMovement{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Type:        typ,
		Amount:      amount,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.cal.Now(),
	}
	if err := s.repo.AddMovement(ctx, m); err != nil {
		return nil, err
	}
	return &m, nil
}

// CloseSession закрывает смену и фиксирует итог.
// declaredCash содержит пересчитанную кассиром сумму; если она задана, сохраняется расхождение с ожидаемой.
func (s *Service) CloseSession(ctx context.Context, id string, declaredCash *decimal.Decimal, notes string) (*model.CashierSession, error) {
	if err := requireID(id, "session id"); err != nil {
		return nil, err
	}
	if declaredCash != nil && !validation.IsValidAmount(*declaredCash) {
		return nil, apperror.Invalid("invalid final cash")
	}

	cs, err := s.repo.CloseSession(ctx, id, strings.TrimSpace(notes), s.cal.Now,
		func(cs *model.CashierSession, movements []model.CashMovement, payments map[model.PaymentMethod]decimal.Decimal) (*model.SessionSummary, error) {
			return summarizeSession(cs.InitialCash, movements, payments, declaredCash), nil
		})
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("session_id", cs.ID),
		zap.String("expected_cash", cs.Summary.ExpectedCash.StringFixed(2)),
	}
	if cs.Summary.Difference != nil {
		fields = append(fields, zap.String("difference", cs.Summary.Difference.StringFixed(2)))
	}
	s.logger.Info("cashier session closed", fields...)

	return cs, nil
}

// summarizeSession считает итог смены: ожидаемая сумма в кассе равна начальной
// плюс внесения минус изъятия и не зависит от порядка движений.
func summarizeSession(initialCash decimal.Decimal, movements []model.CashMovement, payments map[model.PaymentMethod]decimal.Decimal, declared *decimal.Decimal) *model.SessionSummary {
	supplies, withdrawals := decimal.Zero, decimal.Zero
	for _, m := range movements {
		switch m.Type {
		case model.MovementSupply:
			supplies = supplies.Add(m.Amount)
		case model.MovementWithdrawal:
			withdrawals = withdrawals.Add(m.Amount)
		}
	}

	totals := make(map[model.PaymentMethod]decimal.Decimal, len(model.PaymentMethods))
	for _, pm := range model.PaymentMethods {
		totals[pm] = decimal.Zero
	}
	for pm, v := range payments {
		totals[pm] = v
	}

	summary := &model.SessionSummary{
		Supplies:      supplies,
		Withdrawals:   withdrawals,
		ExpectedCash:  initialCash.Add(supplies).Sub(withdrawals),
		PaymentTotals: totals,
	}
	if declared != nil {
		d := *declared
		diff := d.Sub(summary.ExpectedCash)
		summary.DeclaredCash = &d
		summary.Difference = &diff
	}
	return summary
}
