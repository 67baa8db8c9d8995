// Package main запускает HTTP-сервер сервиса команд салона.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/salon-comanda/internal/cache"
	"github.com/mmeshcher/salon-comanda/internal/calendar"
	"github.com/mmeshcher/salon-comanda/internal/config"
	"github.com/mmeshcher/salon-comanda/internal/handler"
	"github.com/mmeshcher/salon-comanda/internal/middleware"
	"github.com/mmeshcher/salon-comanda/internal/repository"
	"github.com/mmeshcher/salon-comanda/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	cal, err := calendar.New(cfg.SalonTimezone)
	if err != nil {
		sugar.Fatalw("calendar initialization error", "error", err.Error())
	}

	rates, err := cfg.CommissionRates()
	if err != nil {
		sugar.Fatalw("commission rates error", "error", err.Error())
	}

	rateLimit, err := middleware.RateLimit(cfg.RateLimit)
	if err != nil {
		sugar.Fatalw("rate limit error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	var rdb *redis.Client
	if cfg.RedisAddress != "" {
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err = cache.NewRedisClient(pingCtx, cfg.RedisAddress)
		cancel()
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer rdb.Close()
	}

	svc := service.NewService(repo, cache.New(rdb, logger), cal, rates, logger)
	defer svc.Close()

	h := handler.NewHandler(svc, logger)

	r := h.SetupRouter(rateLimit)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sugar.Infow("starting salon server",
			"addr", cfg.RunAddress,
			"timezone", cal.Location().String(),
			"service_rate", rates.Service.String(),
			"product_rate", rates.Product.String(),
			"report_cache", rdb != nil,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
