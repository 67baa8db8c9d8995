package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/salon-comanda/internal/commission"
	"github.com/mmeshcher/salon-comanda/internal/model"
)

// settlementLockKey задаёт ключ рекомендательной блокировки между закрытием комманд
// (разделяемая) и закрытием кассовых смен (эксклюзивная).
const settlementLockKey int64 = 0x73616c6f6e

// SettleFunc рассчитывает закрытие по заблокированному снимку комманды и клиента.
type SettleFunc func(c *model.Comanda, client *model.Client) (*model.Settlement, error)

// FinalizeComanda закрывает комманду в одной транзакции:
// помечает её закрытой, сохраняет запись о закрытии, увеличивает дневную выручку,
// создаёт записи комиссий и обновляет историю клиента.
// Строка комманды блокируется на всё время транзакции, поэтому из параллельных
// вызовов успешно завершается ровно один, остальные получают ErrComandaFinalized.
func (r *PostgresRepository) FinalizeComanda(ctx context.Context, comandaID string, settle SettleFunc) (*model.Finalization, error) {
	var res *model.Finalization

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock_shared($1)`, settlementLockKey); err != nil {
			return fmt.Errorf("lock settlements: %w", err)
		}

		c, err := lockOpenComanda(ctx, tx, comandaID)
		if err != nil {
			return err
		}

		lines, err := listLines(ctx, tx, []string{c.ID})
		if err != nil {
			return err
		}
		if ls, ok := lines[c.ID]; ok {
			c.Lines = ls
		}

		client, err := getClient(ctx, tx, c.ClientID, true)
		if err != nil {
			return err
		}

		s, err := settle(c, client)
		if err != nil {
			return err
		}
		f := s.Finalization

		if err := markFinalized(ctx, tx, &f); err != nil {
			return err
		}
		if err := insertFinalization(ctx, tx, &f); err != nil {
			return err
		}
		if err := incrementDaily(ctx, tx, f.BusinessDay, commission.ToCents(f.ValorFinal), commission.ToCents(f.TotalComissao)); err != nil {
			return err
		}
		if err := insertCommissions(ctx, tx, &f); err != nil {
			return err
		}
		if err := appendClientHistory(ctx, tx, &f, s.HistoryItems); err != nil {
			return err
		}

		res = &f
		return nil
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

func markFinalized(ctx context.Context, tx pgx.Tx, f *model.Finalization) error {
	tag, err := tx.Exec(ctx,
		`UPDATE comandas
		 SET status = $2, subtotal = $3, discount = $4, valor_final = $5, payment_method = $6, finalized_at = $7
		 WHERE id = $1 AND status = $8`,
		f.ComandaID, string(model.ComandaStatusFinalized),
		commission.ToCents(f.Subtotal), commission.ToCents(f.Discount), commission.ToCents(f.ValorFinal),
		string(f.PaymentMethod), f.FinalizedAt, string(model.ComandaStatusOpen),
	)
	if err != nil {
		return fmt.Errorf("mark comanda finalized: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrComandaFinalized
	}
	return nil
}

func insertFinalization(ctx context.Context, tx pgx.Tx, f *model.Finalization) error {
	breakdown, err := json.Marshal(f.Commissions)
	if err != nil {
		return fmt.Errorf("marshal commission breakdown: %w", err)
	}

	day, err := dayToDate(f.BusinessDay)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO finalizations
		 (id, comanda_id, client_id, staff_id, subtotal, discount, credit_amount, valor_final, amount_paid,
		  payment_method, total_commission, commissions, business_day, finalized_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		f.ID, f.ComandaID, f.ClientID, f.StaffID,
		commission.ToCents(f.Subtotal), commission.ToCents(f.Discount), commission.ToCents(f.CreditAmount),
		commission.ToCents(f.ValorFinal), commission.ToCents(f.AmountPaid),
		string(f.PaymentMethod), commission.ToCents(f.TotalComissao), breakdown, day, f.FinalizedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "finalizations_comanda_id_key") {
			return ErrComandaFinalized
		}
		return fmt.Errorf("insert finalization: %w", err)
	}
	return nil
}

func insertCommissions(ctx context.Context, tx pgx.Tx, f *model.Finalization) error {
	if len(f.Commissions) == 0 {
		return nil
	}

	day, err := dayToDate(f.BusinessDay)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, lc := range f.Commissions {
		batch.Queue(
			`INSERT INTO commissions
			 (id, comanda_id, finalization_id, line_id, type, item_name, gross, amount, staff_id, status, business_day, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			newID(), f.ComandaID, f.ID, lc.LineID, string(lc.Type), lc.ItemName,
			commission.ToCents(lc.Gross), commission.ToCents(lc.Amount), lc.StaffID,
			string(model.CommissionPending), day, f.FinalizedAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range f.Commissions {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if _, ok := foreignKeyColumn(err, "commissions"); ok {
				return ErrStaffNotFound
			}
			return fmt.Errorf("insert commission: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close commission batch: %w", err)
	}
	return nil
}

func appendClientHistory(ctx context.Context, tx pgx.Tx, f *model.Finalization, items []model.HistoryItem) error {
	tag, err := tx.Exec(ctx,
		`UPDATE clients
		 SET visit_count = visit_count + 1,
		     lifetime_spend = lifetime_spend + $2,
		     credit_balance = credit_balance - $3
		 WHERE id = $1 AND credit_balance >= $3`,
		f.ClientID, commission.ToCents(f.ValorFinal), commission.ToCents(f.CreditAmount),
	)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrInsufficientCredit
	}

	if items == nil {
		items = []model.HistoryItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal history items: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO client_history (client_id, comanda_id, valor_final, items, finalized_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		f.ClientID, f.ComandaID, commission.ToCents(f.ValorFinal), payload, f.FinalizedAt,
	)
	if err != nil {
		return fmt.Errorf("insert client history: %w", err)
	}
	return nil
}
