// Package cache кэширует отчёты по комиссиям в Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/mmeshcher/salon-comanda/internal/model"
)

const (
	reportPrefix  = "commission_report:"
	generationKey = reportPrefix + "generation"
	reportTTL     = 2 * time.Hour
)

// NewRedisClient подключается к Redis и проверяет соединение.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// ReportCache хранит готовые отчёты по комиссиям.
// Ключ отчёта содержит номер поколения: любое закрытие комманды или выплата
// увеличивает поколение, и старые отчёты перестают читаться, истекая по TTL.
// С нулевым клиентом все операции ничего не делают.
type ReportCache struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// New создаёт кэш отчётов. rdb может быть nil.
func New(rdb *redis.Client, logger *zap.Logger) *ReportCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportCache{rdb: rdb, logger: logger}
}

// GetReport возвращает отчёт из кэша и поколение, прочитанное до обращения к ключу.
// Это поколение передаётся в SetReport после чтения из БД: если между ними
// прошло закрытие или выплата, отчёт запишется под устаревшим поколением и не будет прочитан.
// Ошибки Redis считаются промахом; при недоступном поколении возвращается -1.
func (c *ReportCache) GetReport(ctx context.Context, from, to, staffID string) ([]model.StaffCommissionTotals, int64, bool) {
	if c == nil || c.rdb == nil {
		return nil, -1, false
	}

	gen, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn("read report cache generation", zap.Error(err))
		return nil, -1, false
	}

	val, err := c.rdb.Get(ctx, reportKey(gen, from, to, staffID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("read report cache", zap.Error(err))
		}
		return nil, gen, false
	}

	var report []model.StaffCommissionTotals
	if err := json.Unmarshal(val, &report); err != nil {
		c.logger.Warn("decode cached report", zap.Error(err))
		return nil, gen, false
	}
	return report, gen, true
}

// SetReport сохраняет отчёт под поколением gen, полученным из GetReport.
// Отрицательное поколение означает, что кэш недоступен.
func (c *ReportCache) SetReport(ctx context.Context, gen int64, from, to, staffID string, report []model.StaffCommissionTotals) {
	if c == nil || c.rdb == nil || gen < 0 {
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		c.logger.Warn("encode report for cache", zap.Error(err))
		return
	}

	if err := c.rdb.Set(ctx, reportKey(gen, from, to, staffID), data, reportTTL).Err(); err != nil {
		c.logger.Warn("write report cache", zap.Error(err))
	}
}

// Invalidate делает все ранее сохранённые отчёты недоступными.
func (c *ReportCache) Invalidate(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Incr(ctx, generationKey).Err(); err != nil {
		c.logger.Warn("bump report cache generation", zap.Error(err))
	}
}

func (c *ReportCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func reportKey(gen int64, from, to, staffID string) string {
	if staffID == "" {
		staffID = "all"
	}
	return fmt.Sprintf("%s%d:%s:%s:%s", reportPrefix, gen, from, to, staffID)
}
