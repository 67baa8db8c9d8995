// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/salon-comanda/internal/model"
)

// IsValidPaymentMethod проверяет, что способ оплаты входит в список допустимых.
func IsValidPaymentMethod(method model.PaymentMethod) bool {
	for _, m := range model.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

// IsValidLineType проверяет тип строки комманды.
func IsValidLineType(t model.LineType) bool {
	return t == model.LineTypeService || t == model.LineTypeProduct
}

// IsValidMovementType проверяет тип кассового движения.
func IsValidMovementType(t model.MovementType) bool {
	return t == model.MovementSupply || t == model.MovementWithdrawal
}

// MaxAmount ограничивает любую денежную сумму: в копейках она должна помещаться в BIGINT
// с запасом на суммирование в дневной выручке.
var MaxAmount = decimal.New(1, 11)

// MaxQuantity ограничивает количество в строке комманды.
const MaxQuantity = 10000

// IsValidAmount проверяет денежную сумму: неотрицательная, не больше MaxAmount и не точнее копейки.
func IsValidAmount(v decimal.Decimal) bool {
	if v.IsNegative() || v.GreaterThan(MaxAmount) {
		return false
	}
	return v.Equal(v.Round(2))
}

// IsValidQuantity проверяет количество в строке комманды.
func IsValidQuantity(q int) bool {
	return q > 0 && q <= MaxQuantity
}

// IsPositiveAmount проверяет, что сумма корректна и больше нуля.
func IsPositiveAmount(v decimal.Decimal) bool {
	return IsValidAmount(v) && v.IsPositive()
}

// IsValidID проверяет идентификатор сущности.
func IsValidID(id string) bool {
	if strings.TrimSpace(id) == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
