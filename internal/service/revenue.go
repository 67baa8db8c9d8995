package service

import (
	"context"

	"github.com/mmeshcher/salon-comanda/internal/model"
)

// GetFaturamento возвращает выручку за день салона и закрытые в этот день комманды.
// Пустой день означает сегодня в часовом поясе салона.
func (s *Service) GetFaturamento(ctx context.Context, day string) (*model.Faturamento, error) {
	d, err := s.parseDay(day)
	if err != nil {
		return nil, err
	}

	daily, err := s.repo.GetDaily(ctx, d)
	if err != nil {
		return nil, err
	}

	finalizations, err := s.repo.ListFinalizationsByDay(ctx, d)
	if err != nil {
		return nil, err
	}
	if finalizations == nil {
		finalizations = []model.Finalization{}
	}

	return &model.Faturamento{DailyRevenue: *daily, Comandas: finalizations}, nil
}

// RebuildDaily пересчитывает дневную выручку по записям о закрытии.
func (s *Service) RebuildDaily(ctx context.Context, day string) (*model.DailyRevenue, error) {
	d, err := s.parseDay(day)
	if err != nil {
		return nil, err
	}

	daily, err := s.repo.RebuildDaily(ctx, d)
	if err != nil {
		return nil, err
	}

	s.logger.Sugar().Infow("daily revenue rebuilt", "day", d, "count", daily.Count)
	return daily, nil
}
