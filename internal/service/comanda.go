package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mmeshcher/salon-comanda/internal/apperror"
	"github.com/mmeshcher/salon-comanda/internal/model"
	"github.com/mmeshcher/salon-comanda/internal/repository"
	"github.com/mmeshcher/salon-comanda/internal/validation"
)

// CreateComanda открывает пустую комманду клиента у основного мастера.
func (s *Service) CreateComanda(ctx context.Context, clientID, staffID string) (*model.Comanda, error) {
	if err := requireID(clientID, "client id"); err != nil {
		return nil, err
	}
	if err := requireID(staffID, "staff id"); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetStaff(ctx, staffID); err != nil {
		return nil, err
	}

	c := model.Comanda{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		StaffID:   staffID,
		Status:    model.ComandaStatusOpen,
		Lines:     []model.Line{},
		CreatedAt: s.cal.Now(),
	}
	if err := s.repo.CreateComanda(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetComanda возвращает комманду со строками.
func (s *Service) GetComanda(ctx context.Context, id string) (*model.Comanda, error) {
	if err := requireID(id, "comanda id"); err != nil {
		return nil, err
	}
	return s.repo.GetComanda(ctx, id)
}

// ListComandas возвращает комманды с указанным статусом.
func (s *Service) ListComandas(ctx context.Context, status model.ComandaStatus) ([]model.Comanda, error) {
	if status == "" {
		status = model.ComandaStatusOpen
	}
	if status != model.ComandaStatusOpen && status != model.ComandaStatusFinalized {
		return nil, apperror.Invalid("invalid comanda status")
	}

	res, err := s.repo.ListComandas(ctx, status)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = []model.Comanda{}
	}
	return res, nil
}

// AddLine добавляет строку услуги или товара в открытую комманду.
// Позиция справочника задаёт название, цену и ставку комиссии; явно переданные
// название и цена имеют приоритет. Строка всегда привязана к сотруднику:
// к продавцу, если он указан, иначе к основному мастеру комманды.
func (s *Service) AddLine(ctx context.Context, comandaID string, in model.NewLine) (*model.Line, error) {
	if err := requireID(comandaID, "comanda id"); err != nil {
		return nil, err
	}
	if !validation.IsValidLineType(in.Type) {
		return nil, apperror.Invalid("invalid line type")
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if !validation.IsValidQuantity(in.Quantity) {
		return nil, apperror.Invalid(fmt.Sprintf("quantity must be between 1 and %d", validation.MaxQuantity))
	}
	if in.UnitPrice != nil && !validation.IsValidAmount(*in.UnitPrice) {
		return nil, apperror.Invalid("invalid unit price")
	}

	c, err := s.repo.GetComanda(ctx, comandaID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.ComandaStatusOpen {
		return nil, repository.ErrComandaFinalized
	}

	l := model.Line{
		ID:        uuid.NewString(),
		Type:      in.Type,
		Name:      strings.TrimSpace(in.Name),
		Quantity:  in.Quantity,
		StaffID:   c.StaffID,
		CreatedAt: s.cal.Now(),
	}

	if in.CatalogID != nil {
		if err := requireID(*in.CatalogID, "catalog id"); err != nil {
			return nil, err
		}
		item, err := s.repo.GetCatalogItem(ctx, in.Type, *in.CatalogID)
		if err != nil {
			return nil, err
		}
		l.CatalogID = &item.ID
		l.CommissionRate = item.CommissionRate
		l.UnitPrice = item.Price
		if l.Name == "" {
			l.Name = item.Name
		}
	}
	if in.UnitPrice != nil {
		l.UnitPrice = *in.UnitPrice
	} else if in.CatalogID == nil {
		return nil, apperror.Invalid("unit price is required without catalog item")
	}
	if l.Name == "" {
		return nil, apperror.Invalid("line name is required")
	}
	if !validation.IsValidAmount(l.Gross()) {
		return nil, ErrAmountTooLarge
	}

	if in.SoldByID != nil && *in.SoldByID != "" {
		if err := requireID(*in.SoldByID, "seller id"); err != nil {
			return nil, err
		}
		l.StaffID = *in.SoldByID
	}
	staff, err := s.repo.GetStaff(ctx, l.StaffID)
	if err != nil {
		return nil, err
	}
	l.SoldByName = staff.Name

	if err := s.repo.AddLine(ctx, comandaID, l); err != nil {
		return nil, err
	}
	return &l, nil
}

// RemoveLine удаляет строку из открытой комманды.
func (s *Service) RemoveLine(ctx context.Context, comandaID, lineID string) error {
	if err := requireID(comandaID, "comanda id"); err != nil {
		return err
	}
	if err := requireID(lineID, "line id"); err != nil {
		return err
	}
	return s.repo.RemoveLine(ctx, comandaID, lineID)
}
