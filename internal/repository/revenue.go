package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/salon-comanda/internal/commission"
	"github.com/mmeshcher/salon-comanda/internal/model"
)

// IncrementDaily атомарно увеличивает дневную выручку, создавая запись при первом закрытии дня.
func (r *PostgresRepository) IncrementDaily(ctx context.Context, day string, revenueCents, commissionCents int64) error {
	return r.withRetry(ctx, func() error {
		return incrementDaily(ctx, r.pool, day, revenueCents, commissionCents)
	})
}

func incrementDaily(ctx context.Context, q querier, day string, revenueCents, commissionCents int64) error {
	date, err := dayToDate(day)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx,
		`INSERT INTO daily_revenue (day, revenue, commission, count, updated_at)
		 VALUES ($1, $2, $3, 1, now())
		 ON CONFLICT (day) DO UPDATE
		 SET revenue = daily_revenue.revenue + EXCLUDED.revenue,
		     commission = daily_revenue.commission + EXCLUDED.commission,
		     count = daily_revenue.count + 1,
		     updated_at = now()`,
		date, revenueCents, commissionCents,
	)
	if err != nil {
		return fmt.Errorf("increment daily revenue: %w", err)
	}
	return nil
}

// GetDaily возвращает выручку за день; для дня без закрытий возвращается нулевой агрегат.
func (r *PostgresRepository) GetDaily(ctx context.Context, day string) (*model.DailyRevenue, error) {
	date, err := dayToDate(day)
	if err != nil {
		return nil, err
	}

	var revenue, commissionTotal int64
	var count int
	err = r.pool.QueryRow(ctx,
		`SELECT revenue, commission, count FROM daily_revenue WHERE day = $1`,
		date,
	).Scan(&revenue, &commissionTotal, &count)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get daily revenue: %w", err)
	}

	return &model.DailyRevenue{
		Day:        day,
		Revenue:    commission.FromCents(revenue),
		Commission: commission.FromCents(commissionTotal),
		Count:      count,
	}, nil
}

// RebuildDaily пересчитывает дневную выручку по записям о закрытии.
// Используется только для обслуживания; день без закрытий удаляется.
func (r *PostgresRepository) RebuildDaily(ctx context.Context, day string) (*model.DailyRevenue, error) {
	date, err := dayToDate(day)
	if err != nil {
		return nil, err
	}

	var revenue, commissionTotal int64
	var count int

	err = r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(SUM(valor_final), 0)::bigint, COALESCE(SUM(total_commission), 0)::bigint, COUNT(*)
			 FROM finalizations
			 WHERE business_day = $1`,
			date,
		).Scan(&revenue, &commissionTotal, &count)
		if err != nil {
			return fmt.Errorf("sum finalizations: %w", err)
		}

		if count == 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM daily_revenue WHERE day = $1`, date); err != nil {
				return fmt.Errorf("delete daily revenue: %w", err)
			}
			return nil
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO daily_revenue (day, revenue, commission, count, updated_at)
			 VALUES ($1, $2, $3, $4, now())
			 ON CONFLICT (day) DO UPDATE
			 SET revenue = EXCLUDED.revenue, commission = EXCLUDED.commission, count = EXCLUDED.count, updated_at = now()`,
			date, revenue, commissionTotal, count,
		)
		if err != nil {
			return fmt.Errorf("upsert daily revenue: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.DailyRevenue{
		Day:        day,
		Revenue:    commission.FromCents(revenue),
		Commission: commission.FromCents(commissionTotal),
		Count:      count,
	}, nil
}

// ListFinalizationsByDay возвращает записи о закрытии за день салона.
func (r *PostgresRepository) ListFinalizationsByDay(ctx context.Context, day string) ([]model.Finalization, error) {
	date, err := dayToDate(day)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, comanda_id, client_id, staff_id, subtotal, discount, credit_amount, valor_final, amount_paid,
		        payment_method, total_commission, commissions, business_day, finalized_at
		 FROM finalizations
		 WHERE business_day = $1
		 ORDER BY finalized_at`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("select finalizations: %w", err)
	}
	defer rows.Close()

	var res []model.Finalization
	for rows.Next() {
		var (
			f                                                      model.Finalization
			subtotal, discount, credit, valorFinal, paid, totalCom int64
			paymentMethod                                          string
			breakdown                                              []byte
			businessDay                                            time.Time
		)
		if err := rows.Scan(&f.ID, &f.ComandaID, &f.ClientID, &f.StaffID, &subtotal, &discount, &credit,
			&valorFinal, &paid, &paymentMethod, &totalCom, &breakdown, &businessDay, &f.FinalizedAt); err != nil {
			return nil, fmt.Errorf("scan finalization: %w", err)
		}

		f.Subtotal = commission.FromCents(subtotal)
		f.Discount = commission.FromCents(discount)
		f.CreditAmount = commission.FromCents(credit)
		f.ValorFinal = commission.FromCents(valorFinal)
		f.AmountPaid = commission.FromCents(paid)
		f.PaymentMethod = model.PaymentMethod(paymentMethod)
		f.TotalComissao = commission.FromCents(totalCom)
		f.BusinessDay = dateToDay(businessDay)
		if err := json.Unmarshal(breakdown, &f.Commissions); err != nil {
			return nil, fmt.Errorf("decode commission breakdown: %w", err)
		}

		res = append(res, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
