package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/salon-comanda/internal/apperror"
	"github.com/mmeshcher/salon-comanda/internal/commission"
	"github.com/mmeshcher/salon-comanda/internal/model"
	"github.com/mmeshcher/salon-comanda/internal/repository"
	"github.com/mmeshcher/salon-comanda/internal/validation"
)

var (
	// ErrEmptyComanda возвращается при попытке закрыть комманду без строк.
	ErrEmptyComanda = apperror.Invalid("comanda has no lines")
	// ErrDiscountTooLarge возвращается, если скидка больше суммы комманды.
	ErrDiscountTooLarge = apperror.Invalid("discount exceeds comanda subtotal")
	// ErrCreditTooLarge возвращается, если кредит больше итоговой суммы.
	ErrCreditTooLarge = apperror.Invalid("credit amount exceeds final value")
	// ErrAmountTooLarge возвращается, если сумма строки или комманды превышает допустимый максимум.
	ErrAmountTooLarge = apperror.Invalid("amount exceeds maximum allowed value")
)

// FinalizeComanda закрывает комманду: сохраняет запись о закрытии, комиссии,
// дневную выручку и историю клиента в одной транзакции.
// Повторное закрытие возвращает Conflict и ничего не меняет.
func (s *Service) FinalizeComanda(ctx context.Context, comandaID string, in model.FinalizeInput) (*model.Finalization, error) {
	if err := requireID(comandaID, "comanda id"); err != nil {
		return nil, err
	}
	if err := validateFinalizeInput(in); err != nil {
		return nil, err
	}

	f, err := s.repo.FinalizeComanda(ctx, comandaID, func(c *model.Comanda, client *model.Client) (*model.Settlement, error) {
		return s.settle(c, client, in)
	})
	if err != nil {
		return nil, err
	}

	s.reports.Invalidate(ctx)
	s.logger.Info("comanda finalized",
		zap.String("comanda_id", f.ComandaID),
		zap.String("client_id", f.ClientID),
		zap.String("business_day", f.BusinessDay),
		zap.String("valor_final", f.ValorFinal.StringFixed(2)),
		zap.String("total_commission", f.TotalComissao.StringFixed(2)),
		zap.Int("commission_records", len(f.Commissions)),
	)

	return f, nil
}

func validateFinalizeInput(in model.FinalizeInput) error {
	if in.PaymentMethod == "" {
		return apperror.Invalid("payment method is required")
	}
	if !validation.IsValidPaymentMethod(in.PaymentMethod) {
		return apperror.Invalid("invalid payment method")
	}
	if !validation.IsValidAmount(in.Discount) {
		return apperror.Invalid("invalid discount")
	}
	if !validation.IsValidAmount(in.CreditAmount) {
		return apperror.Invalid("invalid credit amount")
	}
	for lineID, amount := range in.LineCommissionOverrides {
		if err := requireID(lineID, "line id in commission overrides"); err != nil {
			return err
		}
		if !validation.IsValidAmount(amount) {
			return commission.ErrOverrideOutOfRange
		}
	}
	return nil
}

// settle рассчитывает закрытие по заблокированному снимку комманды и клиента.
// Функция не обращается к хранилищу: все записи делает репозиторий в той же транзакции.
func (s *Service) settle(c *model.Comanda, client *model.Client, in model.FinalizeInput) (*model.Settlement, error) {
	if len(c.Lines) == 0 {
		return nil, ErrEmptyComanda
	}

	subtotal := commission.Round(c.Total())
	if !validation.IsValidAmount(subtotal) {
		return nil, ErrAmountTooLarge
	}
	if in.Discount.GreaterThan(subtotal) {
		return nil, ErrDiscountTooLarge
	}
	valorFinal := subtotal.Sub(in.Discount)

	if in.CreditAmount.GreaterThan(valorFinal) {
		return nil, ErrCreditTooLarge
	}
	if in.CreditAmount.GreaterThan(client.CreditBalance) {
		return nil, repository.ErrInsufficientCredit
	}

	lines, total, err := commission.Settle(*c, s.rates, in.LineCommissionOverrides)
	if err != nil {
		return nil, err
	}

	now := s.cal.Now()
	items := make([]model.HistoryItem, 0, len(c.Lines))
	for _, l := range c.Lines {
		items = append(items, model.HistoryItem{Type: l.Type, Name: l.Name, Quantity: l.Quantity})
	}

	return &model.Settlement{
		Finalization: model.Finalization{
			ID:            uuid.NewString(),
			ComandaID:     c.ID,
			ClientID:      c.ClientID,
			StaffID:       c.StaffID,
			Subtotal:      subtotal,
			Discount:      in.Discount,
			CreditAmount:  in.CreditAmount,
			ValorFinal:    valorFinal,
			AmountPaid:    valorFinal.Sub(in.CreditAmount),
			PaymentMethod: in.PaymentMethod,
			TotalComissao: total,
			Commissions:   lines,
			BusinessDay:   s.cal.Day(now),
			FinalizedAt:   now,
		},
		HistoryItems: items,
	}, nil
}

// ComandaCommissions возвращает записи реестра комиссий закрытой комманды.
func (s *Service) ComandaCommissions(ctx context.Context, comandaID string) ([]model.Commission, error) {
	if err := requireID(comandaID, "comanda id"); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetComanda(ctx, comandaID); err != nil {
		return nil, err
	}
	return s.repo.ListCommissionsByComanda(ctx, comandaID)
}
