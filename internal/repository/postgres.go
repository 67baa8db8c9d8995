// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/salon-comanda/internal/apperror"
	"github.com/mmeshcher/salon-comanda/internal/calendar"
	"github.com/mmeshcher/salon-comanda/internal/commission"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrComandaNotFound возвращается, если комманда не найдена.
var (
	ErrComandaNotFound = apperror.New(apperror.NotFound, "comanda not found")
	// ErrComandaFinalized возвращается при попытке изменить или повторно закрыть закрытую комманду.
	ErrComandaFinalized = apperror.New(apperror.Conflict, "comanda already finalized")
	// ErrOpenComandaExists возвращается, если у клиента уже есть открытая комманда.
	ErrOpenComandaExists = apperror.New(apperror.Conflict, "client already has an open comanda")
	// ErrLineNotFound возвращается, если строка комманды не найдена.
	ErrLineNotFound = apperror.New(apperror.NotFound, "comanda line not found")
	// ErrClientNotFound возвращается, если клиент не найден.
	ErrClientNotFound = apperror.New(apperror.NotFound, "client not found")
	// ErrStaffNotFound возвращается, если сотрудник не найден или неактивен.
	ErrStaffNotFound = apperror.New(apperror.NotFound, "staff member not found")
	// ErrCatalogItemNotFound возвращается, если позиция справочника не найдена.
	ErrCatalogItemNotFound = apperror.New(apperror.NotFound, "catalog item not found")
	// ErrInsufficientCredit возвращается при попытке списать кредит больше баланса клиента.
	ErrInsufficientCredit = apperror.Invalid("credit amount exceeds client credit balance")
	// ErrSessionNotFound возвращается, если кассовая смена не найдена.
	ErrSessionNotFound = apperror.New(apperror.NotFound, "cashier session not found")
	// ErrSessionOpen возвращается, если у сотрудника уже есть открытая смена.
	ErrSessionOpen = apperror.New(apperror.Conflict, "cashier session already open for staff member")
	// ErrSessionClosed возвращается при попытке изменить закрытую смену.
	ErrSessionClosed = apperror.New(apperror.Conflict, "cashier session already closed")
)

// querier описывает общий интерфейс пула и транзакции.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	delays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool:   pool,
		delays: []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second},
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет fn при конфликтах сериализации, дедлоках и обрывах соединения.
// fn должна открывать собственную транзакцию, чтобы повтор начинался с чистого состояния.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(r.delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(r.delays) {
			break
		}

		timer := time.NewTimer(r.delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// inTx выполняет fn в транзакции с повтором при временных ошибках.
func (r *PostgresRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func pgErrorCode(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

func isUniqueViolation(err error, constraint string) bool {
	code, name := pgErrorCode(err)
	return code == pgerrcode.UniqueViolation && (constraint == "" || name == constraint)
}

// foreignKeyColumn возвращает столбец нарушенного внешнего ключа вида <table>_<column>_fkey.
func foreignKeyColumn(err error, table string) (string, bool) {
	code, name := pgErrorCode(err)
	if code != pgerrcode.ForeignKeyViolation {
		return "", false
	}
	col := strings.TrimSuffix(strings.TrimPrefix(name, table+"_"), "_fkey")
	return col, true
}

// dayToDate переводит день салона в значение для столбца DATE.
func dayToDate(day string) (time.Time, error) {
	t, err := time.Parse(calendar.DayLayout, day)
	if err != nil {
		return time.Time{}, apperror.Invalid(fmt.Sprintf("invalid day %q", day))
	}
	return t, nil
}

func dateToDay(t time.Time) string {
	return t.Format(calendar.DayLayout)
}

func centsPtr(v *int64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := commission.FromCents(*v)
	return &d
}

func centsOrZero(v *int64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return commission.FromCents(*v)
}

func newID() string {
	return uuid.NewString()
}
