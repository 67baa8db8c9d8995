package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/salon-comanda/internal/apperror"
	"github.com/mmeshcher/salon-comanda/internal/model"
)

// CommissionReport возвращает итоги комиссий по сотрудникам за дни салона [from, to].
// Пустые границы означают сегодня; staffID ограничивает отчёт одним сотрудником.
func (s *Service) CommissionReport(ctx context.Context, from, to, staffID string) ([]model.StaffCommissionTotals, error) {
	from, to, err := s.parseRange(from, to)
	if err != nil {
		return nil, err
	}

	var staff *string
	if staffID != "" {
		if err := requireID(staffID, "staff id"); err != nil {
			return nil, err
		}
		staff = &staffID
	}

	cached, gen, ok := s.reports.GetReport(ctx, from, to, staffID)
	if ok {
		return cached, nil
	}

	report, err := s.repo.CommissionReport(ctx, from, to, staff)
	if err != nil {
		return nil, err
	}
	if report == nil {
		report = []model.StaffCommissionTotals{}
	}

	s.reports.SetReport(ctx, gen, from, to, staffID, report)
	return report, nil
}

// PayCommissions помечает ожидающие комиссии сотрудника за дни [from, to] выплаченными.
func (s *Service) PayCommissions(ctx context.Context, staffID, from, to string) (int64, error) {
	if err := requireID(staffID, "staff id"); err != nil {
		return 0, err
	}
	from, to, err := s.parseRange(from, to)
	if err != nil {
		return 0, err
	}

	if _, err := s.repo.GetStaff(ctx, staffID); err != nil {
		return 0, err
	}

	n, err := s.repo.MarkCommissionsPaid(ctx, staffID, from, to, s.cal.Now())
	if err != nil {
		return 0, err
	}

	s.reports.Invalidate(ctx)
	s.logger.Info("commissions paid",
		zap.String("staff_id", staffID),
		zap.String("from", from),
		zap.String("to", to),
		zap.Int64("records", n),
	)
	return n, nil
}

func (s *Service) parseRange(from, to string) (string, string, error) {
	from, err := s.parseDay(from)
	if err != nil {
		return "", "", err
	}
	to, err = s.parseDay(to)
	if err != nil {
		return "", "", err
	}

	// Дни в формате YYYY-MM-DD упорядочены так же, как строки.
	if from > to {
		return "", "", apperror.Invalid("date range start is after its end")
	}
	return from, to, nil
}
