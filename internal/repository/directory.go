package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/salon-comanda/internal/commission"
	"github.com/mmeshcher/salon-comanda/internal/model"
)

// GetStaff возвращает активного сотрудника по идентификатору.
func (r *PostgresRepository) GetStaff(ctx context.Context, id string) (*model.Staff, error) {
	var s model.Staff
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, active FROM staff WHERE id = $1 AND active`,
		id,
	).Scan(&s.ID, &s.Name, &s.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaffNotFound
		}
		return nil, fmt.Errorf("get staff: %w", err)
	}
	return &s, nil
}

// CreateStaff добавляет сотрудника в справочник.
func (r *PostgresRepository) CreateStaff(ctx context.Context, s model.Staff) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO staff (id, name, active) VALUES ($1, $2, $3)`,
		s.ID, s.Name, s.Active,
	)
	if err != nil {
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

// GetClient возвращает клиента по идентификатору.
func (r *PostgresRepository) GetClient(ctx context.Context, id string) (*model.Client, error) {
	return getClient(ctx, r.pool, id, false)
}

func getClient(ctx context.Context, q querier, id string, forUpdate bool) (*model.Client, error) {
	query := `SELECT id, name, visit_count, lifetime_spend, credit_balance FROM clients WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		c              model.Client
		spend, balance int64
	)
	err := q.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.VisitCount, &spend, &balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	c.LifetimeSpend = commission.FromCents(spend)
	c.CreditBalance = commission.FromCents(balance)
	return &c, nil
}

// CreateClient добавляет клиента с начальным кредитным балансом.
func (r *PostgresRepository) CreateClient(ctx context.Context, c model.Client) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO clients (id, name, credit_balance) VALUES ($1, $2, $3)`,
		c.ID, c.Name, commission.ToCents(c.CreditBalance),
	)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	return nil
}

// GetCatalogItem возвращает активную услугу или товар из справочника.
func (r *PostgresRepository) GetCatalogItem(ctx context.Context, itemType model.LineType, id string) (*model.CatalogItem, error) {
	var (
		item   model.CatalogItem
		typ    string
		price  int64
		rateBP *int32
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, type, name, price, commission_rate_bp
		 FROM catalog_items
		 WHERE id = $1 AND type = $2 AND active`,
		id, string(itemType),
	).Scan(&item.ID, &typ, &item.Name, &price, &rateBP)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCatalogItemNotFound
		}
		return nil, fmt.Errorf("get catalog item: %w", err)
	}

	item.Type = model.LineType(typ)
	item.Price = commission.FromCents(price)
	item.CommissionRate = rateFromBP(rateBP)
	return &item, nil
}

// CreateCatalogItem добавляет услугу или товар в справочник.
func (r *PostgresRepository) CreateCatalogItem(ctx context.Context, item model.CatalogItem) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO catalog_items (id, type, name, price, commission_rate_bp) VALUES ($1, $2, $3, $4, $5)`,
		item.ID, string(item.Type), item.Name, commission.ToCents(item.Price), rateToBP(item.CommissionRate),
	)
	if err != nil {
		return fmt.Errorf("create catalog item: %w", err)
	}
	return nil
}

// Ставки хранятся в базисных пунктах: 1000 = 10%.
func rateToBP(rate *decimal.Decimal) *int32 {
	if rate == nil {
		return nil
	}
	bp := int32(rate.Shift(4).Round(0).IntPart())
	return &bp
}

func rateFromBP(bp *int32) *decimal.Decimal {
	if bp == nil {
		return nil
	}
	rate := decimal.New(int64(*bp), -4)
	return &rate
}
