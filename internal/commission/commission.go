// Package commission рассчитывает комиссии сотрудников по строкам комманды.
package commission

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/salon-comanda/internal/apperror"
	"github.com/mmeshcher/salon-comanda/internal/model"
)

// Rates содержит ставки комиссии по умолчанию.
type Rates struct {
	Service decimal.Decimal
	Product decimal.Decimal
}

// DefaultRates возвращает ставки 10% на услуги и 15% на товары.
func DefaultRates() Rates {
	return Rates{
		Service: decimal.RequireFromString("0.10"),
		Product: decimal.RequireFromString("0.15"),
	}
}

// Validate проверяет, что ставки лежат в диапазоне [0, 1].
func (r Rates) Validate() error {
	one := decimal.NewFromInt(1)
	if r.Service.IsNegative() || r.Service.GreaterThan(one) {
		return fmt.Errorf("service rate %s out of range", r.Service)
	}
	if r.Product.IsNegative() || r.Product.GreaterThan(one) {
		return fmt.Errorf("product rate %s out of range", r.Product)
	}
	return nil
}

// Result описывает комиссию по одной строке до округления.
type Result struct {
	StaffID string
	Gross   decimal.Decimal
	Amount  decimal.Decimal
}

// Compute рассчитывает комиссию по строке.
// Услуги начисляются основному мастеру комманды, товары — продавцу строки.
func Compute(line model.Line, primaryStaffID string, rates Rates) Result {
	gross := line.Gross()

	rate := rates.Service
	staffID := primaryStaffID
	if line.Type == model.LineTypeProduct {
		rate = rates.Product
		if line.StaffID != "" {
			staffID = line.StaffID
		}
	}
	if line.CommissionRate != nil {
		rate = *line.CommissionRate
	}

	return Result{
		StaffID: staffID,
		Gross:   gross,
		Amount:  gross.Mul(rate),
	}
}

var (
	// ErrUnknownOverrideLine возвращается, если переопределение ссылается на отсутствующую строку.
	ErrUnknownOverrideLine = apperror.Invalid("commission override references unknown line")
	// ErrOverrideOutOfRange возвращается для отрицательной комиссии или комиссии больше стоимости строки.
	ErrOverrideOutOfRange = apperror.Invalid("commission override out of range")
)

// Settle рассчитывает комиссии по всем строкам комманды.
// Каждая сумма округляется до копеек один раз, итог равен сумме округлённых строк.
// Строки с нулевой комиссией в результат не попадают.
func Settle(c model.Comanda, rates Rates, overrides map[string]decimal.Decimal) ([]model.LineCommission, decimal.Decimal, error) {
	known := make(map[string]struct{}, len(c.Lines))
	for _, l := range c.Lines {
		known[l.ID] = struct{}{}
	}
	for lineID := range overrides {
		if _, ok := known[lineID]; !ok {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownOverrideLine, lineID)
		}
	}

	total := decimal.Zero
	res := make([]model.LineCommission, 0, len(c.Lines))
	for _, l := range c.Lines {
		r := Compute(l, c.StaffID, rates)

		if override, ok := overrides[l.ID]; ok {
			if override.IsNegative() || override.GreaterThan(r.Gross) {
				return nil, decimal.Zero, fmt.Errorf("%w: line %s", ErrOverrideOutOfRange, l.ID)
			}
			r.Amount = override
		}

		amount := Round(r.Amount)
		if amount.IsZero() {
			continue
		}

		total = total.Add(amount)
		res = append(res, model.LineCommission{
			LineID:   l.ID,
			Type:     l.Type,
			ItemName: l.Name,
			Gross:    Round(r.Gross),
			Amount:   amount,
			StaffID:  r.StaffID,
		})
	}

	return res, total, nil
}

// Round округляет денежную сумму до двух знаков.
func Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// ToCents переводит денежную сумму в целые копейки для хранения.
// Входные суммы ограничены validation.MaxAmount, поэтому результат помещается в int64.
func ToCents(v decimal.Decimal) int64 {
	return v.Round(2).Shift(2).IntPart()
}

// FromCents переводит копейки из хранилища в денежную сумму.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
