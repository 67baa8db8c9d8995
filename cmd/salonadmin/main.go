// Package main реализует утилиту администрирования справочников и выплат салона.
//
// Использование:
//
//	salonadmin [флаги сервиса] <команда> [флаги команды]
//
// Команды: staff-add, client-add, catalog-add, commissions-pay, rebuild-revenue.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/salon-comanda/internal/cache"
	"github.com/mmeshcher/salon-comanda/internal/calendar"
	"github.com/mmeshcher/salon-comanda/internal/config"
	"github.com/mmeshcher/salon-comanda/internal/model"
	"github.com/mmeshcher/salon-comanda/internal/repository"
	"github.com/mmeshcher/salon-comanda/internal/service"
)

var errUsage = errors.New("usage: salonadmin [flags] <staff-add|client-add|catalog-add|commissions-pay|rebuild-revenue> [command flags]")

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, errUsage)
		os.Exit(2)
	}

	cal, err := calendar.New(cfg.SalonTimezone)
	if err != nil {
		sugar.Fatalw("calendar initialization error", "error", err.Error())
	}

	rates, err := cfg.CommissionRates()
	if err != nil {
		sugar.Fatalw("commission rates error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	var rdb *redis.Client
	if cfg.RedisAddress != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err = cache.NewRedisClient(pingCtx, cfg.RedisAddress)
		cancel()
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer rdb.Close()
	}

	svc := service.NewService(repo, cache.New(rdb, logger), cal, rates, logger)
	defer svc.Close()

	res, err := run(ctx, svc, args[0], args[1:])
	if err != nil {
		sugar.Fatalw("command failed", "command", args[0], "error", err.Error())
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		sugar.Errorw("encode result error", "error", err.Error())
	}
}

func run(ctx context.Context, svc *service.Service, cmd string, args []string) (any, error) {
	switch cmd {
	case "staff-add":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		name := fs.String("name", "", "staff member name")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return svc.RegisterStaff(ctx, *name)

	case "client-add":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		name := fs.String("name", "", "client name")
		credit := fs.String("credit", "0", "initial credit balance")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		amount, err := decimal.NewFromString(*credit)
		if err != nil {
			return nil, fmt.Errorf("parse credit: %w", err)
		}
		return svc.RegisterClient(ctx, *name, amount)

	case "catalog-add":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		itemType := fs.String("type", string(model.LineTypeService), "service or product")
		name := fs.String("name", "", "item name")
		price := fs.String("price", "", "unit price")
		rate := fs.String("rate", "", "own commission rate, empty for default")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		p, err := decimal.NewFromString(*price)
		if err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		var r *decimal.Decimal
		if *rate != "" {
			v, err := decimal.NewFromString(*rate)
			if err != nil {
				return nil, fmt.Errorf("parse rate: %w", err)
			}
			r = &v
		}
		return svc.RegisterCatalogItem(ctx, model.LineType(*itemType), *name, p, r)

	case "commissions-pay":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		staffID := fs.String("staff", "", "staff id")
		from := fs.String("from", "", "first day, YYYY-MM-DD")
		to := fs.String("to", "", "last day, YYYY-MM-DD")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		n, err := svc.PayCommissions(ctx, *staffID, *from, *to)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"paid": n}, nil

	case "rebuild-revenue":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		day := fs.String("date", "", "salon day, YYYY-MM-DD; empty for today")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return svc.RebuildDaily(ctx, *day)
	}

	return nil, errUsage
}
