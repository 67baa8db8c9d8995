package commission

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/salon-comanda/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCompute(t *testing.T) {
	rates := DefaultRates()
	custom := d("0.30")

	tests := []struct {
		name      string
		line      model.Line
		wantStaff string
		wantAmt   string
	}{
		{
			name:      "service goes to primary professional",
			line:      model.Line{Type: model.LineTypeService, UnitPrice: d("100"), Quantity: 1, StaffID: "B"},
			wantStaff: "A",
			wantAmt:   "10",
		},
		{
			name:      "product goes to seller",
			line:      model.Line{Type: model.LineTypeProduct, UnitPrice: d("50"), Quantity: 1, StaffID: "B"},
			wantStaff: "B",
			wantAmt:   "7.5",
		},
		{
			name:      "product without seller falls back to primary",
			line:      model.Line{Type: model.LineTypeProduct, UnitPrice: d("20"), Quantity: 3},
			wantStaff: "A",
			wantAmt:   "9",
		},
		{
			name:      "catalog rate wins over default",
			line:      model.Line{Type: model.LineTypeService, UnitPrice: d("80"), Quantity: 2, CommissionRate: &custom},
			wantStaff: "A",
			wantAmt:   "48",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compute(tt.line, "A", rates)
			assert.Equal(t, tt.wantStaff, res.StaffID)
			assert.True(t, d(tt.wantAmt).Equal(res.Amount), "amount = %s, want %s", res.Amount, tt.wantAmt)
		})
	}
}

func TestSettleServiceAndUpsell(t *testing.T) {
	c := model.Comanda{
		StaffID: "A",
		Lines: []model.Line{
			{ID: "l1", Type: model.LineTypeService, Name: "Corte", UnitPrice: d("100"), Quantity: 1, StaffID: "A"},
			{ID: "l2", Type: model.LineTypeProduct, Name: "Shampoo", UnitPrice: d("50"), Quantity: 1, StaffID: "B"},
		},
	}

	lines, total, err := Settle(c, DefaultRates(), nil)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, "A", lines[0].StaffID)
	assert.True(t, d("10").Equal(lines[0].Amount))
	assert.Equal(t, "B", lines[1].StaffID)
	assert.True(t, d("7.5").Equal(lines[1].Amount))
	assert.True(t, d("17.5").Equal(total), "total = %s", total)
}

func TestSettleTotalEqualsSumOfRoundedLines(t *testing.T) {
	c := model.Comanda{StaffID: "A"}
	for i := 0; i < 7; i++ {
		c.Lines = append(c.Lines, model.Line{
			ID:        string(rune('a' + i)),
			Type:      model.LineTypeProduct,
			UnitPrice: d("0.33"),
			Quantity:  1,
		})
	}

	lines, total, err := Settle(c, DefaultRates(), nil)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Amount)
		assert.True(t, l.Amount.Equal(Round(l.Amount)))
	}
	assert.True(t, sum.Equal(total))
	// 0.33 * 0.15 = 0.0495 rounds to 0.05 per line.
	assert.True(t, d("0.35").Equal(total), "total = %s", total)
}

func TestSettleSkipsZeroCommission(t *testing.T) {
	zero := decimal.Zero
	c := model.Comanda{
		StaffID: "A",
		Lines: []model.Line{
			{ID: "l1", Type: model.LineTypeService, UnitPrice: d("40"), Quantity: 1, CommissionRate: &zero},
			{ID: "l2", Type: model.LineTypeService, UnitPrice: d("60"), Quantity: 1},
		},
	}

	lines, total, err := Settle(c, DefaultRates(), nil)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "l2", lines[0].LineID)
	assert.True(t, d("6").Equal(total))
}

func TestSettleOverrides(t *testing.T) {
	c := model.Comanda{
		StaffID: "A",
		Lines: []model.Line{
			{ID: "l1", Type: model.LineTypeService, UnitPrice: d("100"), Quantity: 1},
		},
	}

	lines, total, err := Settle(c, DefaultRates(), map[string]decimal.Decimal{"l1": d("25")})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, d("25").Equal(total))

	_, _, err = Settle(c, DefaultRates(), map[string]decimal.Decimal{"missing": d("1")})
	assert.True(t, errors.Is(err, ErrUnknownOverrideLine))

	_, _, err = Settle(c, DefaultRates(), map[string]decimal.Decimal{"l1": d("101")})
	assert.True(t, errors.Is(err, ErrOverrideOutOfRange))

	_, _, err = Settle(c, DefaultRates(), map[string]decimal.Decimal{"l1": d("-1")})
	assert.True(t, errors.Is(err, ErrOverrideOutOfRange))
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(1750), ToCents(d("17.5")))
	assert.Equal(t, int64(5), ToCents(d("0.0495")))
	assert.True(t, d("17.5").Equal(FromCents(1750)))
	assert.Equal(t, int64(10_000_000_000_000), ToCents(d("100000000000")))
}

func TestRatesValidate(t *testing.T) {
	assert.NoError(t, DefaultRates().Validate())
	assert.Error(t, Rates{Service: d("1.5"), Product: d("0.1")}.Validate())
	assert.Error(t, Rates{Service: d("0.1"), Product: d("-0.1")}.Validate())
}
