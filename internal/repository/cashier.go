package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/salon-comanda/internal/commission"
	"github.com/mmeshcher/salon-comanda/internal/model"
)

const sessionColumns = `id, staff_id, initial_cash, status, opened_at, closed_at, notes,
	supplies, withdrawals, expected_cash, declared_cash, difference, payment_totals`

// SummarizeFunc рассчитывает итог смены по заблокированному снимку смены,
// её движениям и суммам оплат за время смены.
type SummarizeFunc func(s *model.CashierSession, movements []model.CashMovement, payments map[model.PaymentMethod]decimal.Decimal) (*model.SessionSummary, error)

// OpenSession открывает кассовую смену.
// У сотрудника может быть не больше одной открытой смены: это гарантирует частичный уникальный индекс.
func (r *PostgresRepository) OpenSession(ctx context.Context, s model.CashierSession) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO cashier_sessions (id, staff_id, initial_cash, status, opened_at, notes)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.StaffID, commission.ToCents(s.InitialCash), string(model.SessionOpen), s.OpenedAt, s.Notes,
	)
	if err != nil {
		if isUniqueViolation(err, "cashier_sessions_one_open_per_staff") {
			return ErrSessionOpen
		}
		if _, ok := foreignKeyColumn(err, "cashier_sessions"); ok {
			return ErrStaffNotFound
		}
		return fmt.Errorf("insert cashier session: %w", err)
	}
	return nil
}

// GetSession возвращает кассовую смену по идентификатору.
func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*model.CashierSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM cashier_sessions WHERE id = $1`, id))
}

// ListSessions возвращает смены с указанным статусом, новые первыми.
func (r *PostgresRepository) ListSessions(ctx context.Context, status model.SessionStatus) ([]model.CashierSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM cashier_sessions
		 WHERE status = $1
		 ORDER BY opened_at DESC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("select cashier sessions: %w", err)
	}
	defer rows.Close()

	var res []model.CashierSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AddMovement записывает внесение или изъятие наличных в открытую смену.
func (r *PostgresRepository) AddMovement(ctx context.Context, m model.CashMovement) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := lockOpenSession(ctx, tx, m.SessionID); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO cash_movements (id, session_id, type, amount, description, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			m.ID, m.SessionID, string(m.Type), commission.ToCents(m.Amount), m.Description, m.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert cash movement: %w", err)
		}
		return nil
	})
}

// ListMovements возвращает движения наличных смены в порядке записи.
func (r *PostgresRepository) ListMovements(ctx context.Context, sessionID string) ([]model.CashMovement, error) {
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return listMovements(ctx, r.pool, sessionID)
}

// CloseSession закрывает смену и сохраняет неизменяемый итог.
// Смена блокируется на время транзакции, поэтому движения не могут появиться после расчёта итога.
// Момент закрытия берётся из now только после эксклюзивной блокировки закрытий комманд:
// все закрытия с более ранним моментом к этому времени уже зафиксированы и попадают в итог.
func (r *PostgresRepository) CloseSession(ctx context.Context, id, notes string, now func() time.Time, summarize SummarizeFunc) (*model.CashierSession, error) {
	var res *model.CashierSession

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		s, err := lockOpenSession(ctx, tx, id)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, settlementLockKey); err != nil {
			return fmt.Errorf("lock settlements: %w", err)
		}
		closedAt := now()

		movements, err := listMovements(ctx, tx, id)
		if err != nil {
			return err
		}

		payments, err := paymentTotals(ctx, tx, s.OpenedAt, closedAt)
		if err != nil {
			return err
		}

		summary, err := summarize(s, movements, payments)
		if err != nil {
			return err
		}

		totals, err := json.Marshal(summary.PaymentTotals)
		if err != nil {
			return fmt.Errorf("marshal payment totals: %w", err)
		}

		var declared, difference *int64
		if summary.DeclaredCash != nil {
			v := commission.ToCents(*summary.DeclaredCash)
			declared = &v
		}
		if summary.Difference != nil {
			v := commission.ToCents(*summary.Difference)
			difference = &v
		}

		tag, err := tx.Exec(ctx,
			`UPDATE cashier_sessions
			 SET status = $2, closed_at = $3, notes = $4, supplies = $5, withdrawals = $6,
			     expected_cash = $7, declared_cash = $8, difference = $9, payment_totals = $10
			 WHERE id = $1 AND status = $11`,
			id, string(model.SessionClosed), closedAt, notes,
			commission.ToCents(summary.Supplies), commission.ToCents(summary.Withdrawals),
			commission.ToCents(summary.ExpectedCash), declared, difference, totals,
			string(model.SessionOpen),
		)
		if err != nil {
			return fmt.Errorf("close cashier session: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return ErrSessionClosed
		}

		s.Status = model.SessionClosed
		s.ClosedAt = &closedAt
		s.Notes = notes
		s.Summary = summary
		res = s
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func lockOpenSession(ctx context.Context, tx pgx.Tx, id string) (*model.CashierSession, error) {
	s, err := scanSession(tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM cashier_sessions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if s.Status != model.SessionOpen {
		return nil, ErrSessionClosed
	}
	return s, nil
}

func listMovements(ctx context.Context, q querier, sessionID string) ([]model.CashMovement, error) {
	rows, err := q.Query(ctx,
		`SELECT id, session_id, type, amount, description, created_at
		 FROM cash_movements
		 WHERE session_id = $1
		 ORDER BY created_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cash movements: %w", err)
	}
	defer rows.Close()

	res := []model.CashMovement{}
	for rows.Next() {
		var (
			m      model.CashMovement
			typ    string
			amount int64
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &typ, &amount, &m.Description, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cash movement: %w", err)
		}
		m.Type = model.MovementType(typ)
		m.Amount = commission.FromCents(amount)
		res = append(res, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// paymentTotals суммирует оплаченные клиентами суммы по способам оплаты в полуинтервале [from, to).
func paymentTotals(ctx context.Context, q querier, from, to time.Time) (map[model.PaymentMethod]decimal.Decimal, error) {
	rows, err := q.Query(ctx,
		`SELECT payment_method, COALESCE(SUM(amount_paid), 0)::bigint
		 FROM finalizations
		 WHERE finalized_at >= $1 AND finalized_at < $2
		 GROUP BY payment_method`,
		from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("select payment totals: %w", err)
	}
	defer rows.Close()

	res := make(map[model.PaymentMethod]decimal.Decimal)
	for rows.Next() {
		var (
			method string
			total  int64
		)
		if err := rows.Scan(&method, &total); err != nil {
			return nil, fmt.Errorf("scan payment total: %w", err)
		}
		res[model.PaymentMethod(method)] = commission.FromCents(total)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func scanSession(row pgx.Row) (*model.CashierSession, error) {
	var (
		s           model.CashierSession
		status      string
		initialCash int64
		totals      []byte
	)
	var supplies, withdrawals, expected, declared, difference *int64
	err := row.Scan(&s.ID, &s.StaffID, &initialCash, &status, &s.OpenedAt, &s.ClosedAt, &s.Notes,
		&supplies, &withdrawals, &expected, &declared, &difference, &totals)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("scan cashier session: %w", err)
	}

	s.Status = model.SessionStatus(status)
	s.InitialCash = commission.FromCents(initialCash)

	if s.Status == model.SessionClosed && expected != nil {
		summary := &model.SessionSummary{
			Supplies:      centsOrZero(supplies),
			Withdrawals:   centsOrZero(withdrawals),
			ExpectedCash:  centsOrZero(expected),
			DeclaredCash:  centsPtr(declared),
			Difference:    centsPtr(difference),
			PaymentTotals: map[model.PaymentMethod]decimal.Decimal{},
		}
		if len(totals) > 0 {
			if err := json.Unmarshal(totals, &summary.PaymentTotals); err != nil {
				return nil, fmt.Errorf("decode payment totals: %w", err)
			}
		}
		s.Summary = summary
	}

	return &s, nil
}
