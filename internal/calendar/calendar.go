// Package calendar определяет границы рабочего дня салона в его часовом поясе.
package calendar

import (
	"fmt"
	"time"
)

// DayLayout задаёт формат календарного дня в API и хранилище.
const DayLayout = "2006-01-02"

// Calendar переводит моменты времени в календарные дни салона.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// New создаёт календарь для указанного часового пояса IANA.
func New(timezone string) (*Calendar, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Calendar{loc: loc, now: time.Now}, nil
}

// NewWithClock создаёт календарь с подменяемыми часами.
func NewWithClock(loc *time.Location, now func() time.Time) *Calendar {
	return &Calendar{loc: loc, now: now}
}

// Location возвращает часовой пояс салона.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// Now возвращает текущий момент в UTC с точностью до микросекунды, как в PostgreSQL.
func (c *Calendar) Now() time.Time {
	return c.now().UTC().Truncate(time.Microsecond)
}

// Day возвращает календарный день салона, к которому относится момент t.
func (c *Calendar) Day(t time.Time) string {
	return t.In(c.loc).Format(DayLayout)
}

// Today возвращает текущий календарный день салона.
func (c *Calendar) Today() string {
	return c.Day(c.now())
}

// Parse проверяет строку дня и возвращает её в каноническом виде.
func (c *Calendar) Parse(day string) (string, error) {
	t, err := time.ParseInLocation(DayLayout, day, c.loc)
	if err != nil {
		return "", fmt.Errorf("invalid day %q: %w", day, err)
	}
	return t.Format(DayLayout), nil
}
