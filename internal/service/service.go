// Package service реализует бизнес-логику сервиса команд салона.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/salon-comanda/internal/apperror"
	"github.com/mmeshcher/salon-comanda/internal/calendar"
	"github.com/mmeshcher/salon-comanda/internal/commission"
	"github.com/mmeshcher/salon-comanda/internal/model"
	"github.com/mmeshcher/salon-comanda/internal/repository"
	"github.com/mmeshcher/salon-comanda/internal/validation"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	GetStaff(ctx context.Context, id string) (*model.Staff, error)
	CreateStaff(ctx context.Context, s model.Staff) error
	GetClient(ctx context.Context, id string) (*model.Client, error)
	CreateClient(ctx context.Context, c model.Client) error
	GetCatalogItem(ctx context.Context, itemType model.LineType, id string) (*model.CatalogItem, error)
	CreateCatalogItem(ctx context.Context, item model.CatalogItem) error

	CreateComanda(ctx context.Context, c model.Comanda) error
	GetComanda(ctx context.Context, id string) (*model.Comanda, error)
	ListComandas(ctx context.Context, status model.ComandaStatus) ([]model.Comanda, error)
	AddLine(ctx context.Context, comandaID string, l model.Line) error
	RemoveLine(ctx context.Context, comandaID, lineID string) error
	FinalizeComanda(ctx context.Context, comandaID string, settle repository.SettleFunc) (*model.Finalization, error)

	GetDaily(ctx context.Context, day string) (*model.DailyRevenue, error)
	RebuildDaily(ctx context.Context, day string) (*model.DailyRevenue, error)
	ListFinalizationsByDay(ctx context.Context, day string) ([]model.Finalization, error)

	OpenSession(ctx context.Context, s model.CashierSession) error
	GetSession(ctx context.Context, id string) (*model.CashierSession, error)
	ListSessions(ctx context.Context, status model.SessionStatus) ([]model.CashierSession, error)
	AddMovement(ctx context.Context, m model.CashMovement) error
	ListMovements(ctx context.Context, sessionID string) ([]model.CashMovement, error)
	CloseSession(ctx context.Context, id, notes string, now func() time.Time, summarize repository.SummarizeFunc) (*model.CashierSession, error)

	CommissionReport(ctx context.Context, from, to string, staffID *string) ([]model.StaffCommissionTotals, error)
	ListCommissionsByComanda(ctx context.Context, comandaID string) ([]model.Commission, error)
	MarkCommissionsPaid(ctx context.Context, staffID, from, to string, paidAt time.Time) (int64, error)
}

// ReportCache кэширует отчёты по комиссиям.
type ReportCache interface {
	GetReport(ctx context.Context, from, to, staffID string) ([]model.StaffCommissionTotals, int64, bool)
	SetReport(ctx context.Context, gen int64, from, to, staffID string, report []model.StaffCommissionTotals)
	Invalidate(ctx context.Context)
}

// Service содержит бизнес-логику сервиса команд салона.
type Service struct {
	repo    Repository
	reports ReportCache
	cal     *calendar.Calendar
	rates   commission.Rates
	logger  *zap.Logger
}

// NewService создаёт новый сервис.
// reports и logger могут быть nil: тогда отчёты не кэшируются, а журнал не ведётся.
func NewService(repo Repository, reports ReportCache, cal *calendar.Calendar, rates commission.Rates, logger *zap.Logger) *Service {
	if reports == nil {
		reports = noopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		reports: reports,
		cal:     cal,
		rates:   rates,
		logger:  logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterStaff добавляет сотрудника в справочник.
func (s *Service) RegisterStaff(ctx context.Context, name string) (*model.Staff, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Invalid("staff name is required")
	}

	st := model.Staff{ID: uuid.NewString(), Name: name, Active: true}
	if err := s.repo.CreateStaff(ctx, st); err != nil {
		return nil, err
	}
	return &st, nil
}

// RegisterClient добавляет клиента с начальным кредитным балансом.
func (s *Service) RegisterClient(ctx context.Context, name string, credit decimal.Decimal) (*model.Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Invalid("client name is required")
	}
	if !validation.IsValidAmount(credit) {
		return nil, apperror.Invalid("invalid credit balance")
	}

	c := model.Client{ID: uuid.NewString(), Name: name, CreditBalance: credit}
	if err := s.repo.CreateClient(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// RegisterCatalogItem добавляет услугу или товар в справочник.
// rate задаёт собственную ставку комиссии позиции; nil означает ставку по умолчанию.
func (s *Service) RegisterCatalogItem(ctx context.Context, itemType model.LineType, name string, price decimal.Decimal, rate *decimal.Decimal) (*model.CatalogItem, error) {
	name = strings.TrimSpace(name)
	switch {
	case !validation.IsValidLineType(itemType):
		return nil, apperror.Invalid("invalid catalog item type")
	case name == "":
		return nil, apperror.Invalid("catalog item name is required")
	case !validation.IsValidAmount(price):
		return nil, apperror.Invalid("invalid catalog item price")
	case rate != nil && (rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1))):
		return nil, apperror.Invalid("commission rate must be between 0 and 1")
	case rate != nil && !rate.Equal(rate.Round(4)):
		return nil, apperror.Invalid("commission rate precision is limited to basis points")
	}

	item := model.CatalogItem{ID: uuid.NewString(), Type: itemType, Name: name, Price: price, CommissionRate: rate}
	if err := s.repo.CreateCatalogItem(ctx, item); err != nil {
		return nil, err
	}
	return &item, nil
}

// parseDay проверяет день салона; пустая строка означает сегодня.
func (s *Service) parseDay(day string) (string, error) {
	if day == "" {
		return s.cal.Today(), nil
	}
	d, err := s.cal.Parse(day)
	if err != nil {
		return "", apperror.Invalid(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", day))
	}
	return d, nil
}

func requireID(id, what string) error {
	if !validation.IsValidID(id) {
		return apperror.Invalid("invalid " + what)
	}
	return nil
}

type noopCache struct{}

func (noopCache) GetReport(context.Context, string, string, string) ([]model.StaffCommissionTotals, int64, bool) {
	return nil, -1, false
}

func (noopCache) SetReport(context.Context, int64, string, string, string, []model.StaffCommissionTotals) {}

func (noopCache) Invalidate(context.Context) {}
