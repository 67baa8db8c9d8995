package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mmeshcher/salon-comanda/internal/commission"
	"github.com/mmeshcher/salon-comanda/internal/model"
)

// CommissionReport возвращает итоги комиссий по сотрудникам за дни салона [from, to].
// Если staffID задан, отчёт ограничивается одним сотрудником.
func (r *PostgresRepository) CommissionReport(ctx context.Context, from, to string, staffID *string) ([]model.StaffCommissionTotals, error) {
	fromDate, err := dayToDate(from)
	if err != nil {
		return nil, err
	}
	toDate, err := dayToDate(to)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT c.staff_id, s.name,
		        COALESCE(SUM(c.amount) FILTER (WHERE c.type = 'service'), 0)::bigint,
		        COALESCE(SUM(c.amount) FILTER (WHERE c.type = 'product'), 0)::bigint,
		        COALESCE(SUM(c.amount), 0)::bigint,
		        COALESCE(SUM(c.amount) FILTER (WHERE c.status = 'pending'), 0)::bigint,
		        COALESCE(SUM(c.amount) FILTER (WHERE c.status = 'paid'), 0)::bigint,
		        COUNT(*)
		 FROM commissions c
		 JOIN staff s ON s.id = c.staff_id
		 WHERE c.business_day BETWEEN $1 AND $2
		   AND ($3::text IS NULL OR c.staff_id = $3)
		 GROUP BY c.staff_id, s.name
		 ORDER BY s.name, c.staff_id`,
		fromDate, toDate, staffID,
	)
	if err != nil {
		return nil, fmt.Errorf("select commission report: %w", err)
	}
	defer rows.Close()

	res := []model.StaffCommissionTotals{}
	for rows.Next() {
		var t model.StaffCommissionTotals
		var service, product, total, pending, paid int64
		if err := rows.Scan(&t.StaffID, &t.StaffName, &service, &product, &total, &pending, &paid, &t.Count); err != nil {
			return nil, fmt.Errorf("scan commission report: %w", err)
		}
		t.ServiceTotal = commission.FromCents(service)
		t.ProductTotal = commission.FromCents(product)
		t.Total = commission.FromCents(total)
		t.Pending = commission.FromCents(pending)
		t.Paid = commission.FromCents(paid)
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListCommissionsByComanda возвращает записи реестра комиссий одной комманды.
func (r *PostgresRepository) ListCommissionsByComanda(ctx context.Context, comandaID string) ([]model.Commission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, comanda_id, finalization_id, line_id, type, item_name, gross, amount, staff_id,
		        status, business_day, created_at, paid_at
		 FROM commissions
		 WHERE comanda_id = $1
		 ORDER BY created_at, line_id`,
		comandaID,
	)
	if err != nil {
		return nil, fmt.Errorf("select commissions: %w", err)
	}
	defer rows.Close()

	res := []model.Commission{}
	for rows.Next() {
		var (
			c             model.Commission
			typ, status   string
			gross, amount int64
			businessDay   time.Time
		)
		if err := rows.Scan(&c.ID, &c.ComandaID, &c.FinalizationID, &c.LineID, &typ, &c.ItemName,
			&gross, &amount, &c.StaffID, &status, &businessDay, &c.CreatedAt, &c.PaidAt); err != nil {
			return nil, fmt.Errorf("scan commission: %w", err)
		}
		c.Type = model.LineType(typ)
		c.Status = model.CommissionStatus(status)
		c.Gross = commission.FromCents(gross)
		c.Amount = commission.FromCents(amount)
		c.BusinessDay = dateToDay(businessDay)
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// MarkCommissionsPaid помечает ожидающие комиссии сотрудника за дни [from, to] выплаченными.
// Возвращает число изменённых записей.
func (r *PostgresRepository) MarkCommissionsPaid(ctx context.Context, staffID, from, to string, paidAt time.Time) (int64, error) {
	fromDate, err := dayToDate(from)
	if err != nil {
		return 0, err
	}
	toDate, err := dayToDate(to)
	if err != nil {
		return 0, err
	}

	var affected int64
	err = r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE commissions
			 SET status = $1, paid_at = $2
			 WHERE staff_id = $3 AND status = $4 AND business_day BETWEEN $5 AND $6`,
			string(model.CommissionPaid), paidAt, staffID, string(model.CommissionPending), fromDate, toDate,
		)
		if err != nil {
			return fmt.Errorf("mark commissions paid: %w", err)
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}

	return affected, nil
}
