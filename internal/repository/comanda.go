package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/salon-comanda/internal/commission"
	"github.com/mmeshcher/salon-comanda/internal/model"
)

const comandaColumns = `id, client_id, staff_id, status, subtotal, discount, valor_final, payment_method, created_at, finalized_at`

// CreateComanda сохраняет новую открытую комманду.
// У клиента может быть не больше одной открытой комманды: это гарантирует частичный уникальный индекс.
func (r *PostgresRepository) CreateComanda(ctx context.Context, c model.Comanda) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO comandas (id, client_id, staff_id, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.ClientID, c.StaffID, string(model.ComandaStatusOpen), c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "comandas_one_open_per_client") {
			return ErrOpenComandaExists
		}
		if col, ok := foreignKeyColumn(err, "comandas"); ok {
			if col == "client_id" {
				return ErrClientNotFound
			}
			return ErrStaffNotFound
		}
		return fmt.Errorf("insert comanda: %w", err)
	}
	return nil
}

// GetComanda возвращает комманду вместе со строками.
func (r *PostgresRepository) GetComanda(ctx context.Context, id string) (*model.Comanda, error) {
	c, err := scanComanda(r.pool.QueryRow(ctx,
		`SELECT `+comandaColumns+` FROM comandas WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	lines, err := listLines(ctx, r.pool, []string{c.ID})
	if err != nil {
		return nil, err
	}
	if ls, ok := lines[c.ID]; ok {
		c.Lines = ls
	}
	return c, nil
}

// ListComandas возвращает комманды с указанным статусом, новые первыми.
func (r *PostgresRepository) ListComandas(ctx context.Context, status model.ComandaStatus) ([]model.Comanda, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+comandaColumns+`
		 FROM comandas
		 WHERE status = $1
		 ORDER BY created_at DESC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("select comandas: %w", err)
	}
	defer rows.Close()

	var res []model.Comanda
	for rows.Next() {
		c, err := scanComanda(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	ids := make([]string, 0, len(res))
	for _, c := range res {
		ids = append(ids, c.ID)
	}
	lines, err := listLines(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range res {
		if ls, ok := lines[res[i].ID]; ok {
			res[i].Lines = ls
		}
	}

	return res, nil
}

// AddLine добавляет строку в открытую комманду.
func (r *PostgresRepository) AddLine(ctx context.Context, comandaID string, l model.Line) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := lockOpenComanda(ctx, tx, comandaID); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO comanda_lines
			 (id, comanda_id, type, catalog_id, name, unit_price, quantity, staff_id, sold_by_name, commission_rate_bp, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			l.ID, comandaID, string(l.Type), l.CatalogID, l.Name, commission.ToCents(l.UnitPrice), l.Quantity,
			l.StaffID, l.SoldByName, rateToBP(l.CommissionRate), l.CreatedAt,
		)
		if err != nil {
			if col, ok := foreignKeyColumn(err, "comanda_lines"); ok {
				if col == "catalog_id" {
					return ErrCatalogItemNotFound
				}
				return ErrStaffNotFound
			}
			return fmt.Errorf("insert line: %w", err)
		}
		return nil
	})
}

// RemoveLine удаляет строку из открытой комманды.
func (r *PostgresRepository) RemoveLine(ctx context.Context, comandaID, lineID string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := lockOpenComanda(ctx, tx, comandaID); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`DELETE FROM comanda_lines WHERE id = $1 AND comanda_id = $2`,
			lineID, comandaID,
		)
		if err != nil {
			return fmt.Errorf("delete line: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrLineNotFound
		}
		return nil
	})
}

// lockOpenComanda блокирует строку комманды до конца транзакции и проверяет, что она открыта.
func lockOpenComanda(ctx context.Context, tx pgx.Tx, id string) (*model.Comanda, error) {
	c, err := scanComanda(tx.QueryRow(ctx,
		`SELECT `+comandaColumns+` FROM comandas WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if c.Status != model.ComandaStatusOpen {
		return nil, ErrComandaFinalized
	}
	return c, nil
}

func scanComanda(row pgx.Row) (*model.Comanda, error) {
	var (
		c                              model.Comanda
		status                         string
		subtotal, discount, valorFinal *int64
		paymentMethod                  *string
		finalizedAt                    *time.Time
	)
	err := row.Scan(&c.ID, &c.ClientID, &c.StaffID, &status, &subtotal, &discount, &valorFinal,
		&paymentMethod, &c.CreatedAt, &finalizedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrComandaNotFound
		}
		return nil, fmt.Errorf("scan comanda: %w", err)
	}

	c.Status = model.ComandaStatus(status)
	c.Subtotal = centsPtr(subtotal)
	c.Discount = centsPtr(discount)
	c.ValorFinal = centsPtr(valorFinal)
	if paymentMethod != nil {
		pm := model.PaymentMethod(*paymentMethod)
		c.PaymentMethod = &pm
	}
	c.FinalizedAt = finalizedAt
	c.Lines = []model.Line{}
	return &c, nil
}

func listLines(ctx context.Context, q querier, comandaIDs []string) (map[string][]model.Line, error) {
	res := make(map[string][]model.Line, len(comandaIDs))
	if len(comandaIDs) == 0 {
		return res, nil
	}

	rows, err := q.Query(ctx,
		`SELECT comanda_id, id, type, catalog_id, name, unit_price, quantity, staff_id, sold_by_name, commission_rate_bp, created_at
		 FROM comanda_lines
		 WHERE comanda_id = ANY($1)
		 ORDER BY created_at, id`,
		comandaIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			comandaID string
			l         model.Line
			typ       string
			unitPrice int64
			rateBP    *int32
		)
		if err := rows.Scan(&comandaID, &l.ID, &typ, &l.CatalogID, &l.Name, &unitPrice, &l.Quantity,
			&l.StaffID, &l.SoldByName, &rateBP, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		l.Type = model.LineType(typ)
		l.UnitPrice = commission.FromCents(unitPrice)
		l.CommissionRate = rateFromBP(rateBP)
		res[comandaID] = append(res[comandaID], l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
