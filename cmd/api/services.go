package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/pos-backend/api/routes"
	"github.com/angelmondragon/pos-backend/internal/apikeys"
	"github.com/angelmondragon/pos-backend/internal/catalog"
	"github.com/angelmondragon/pos-backend/internal/changelog"
	"github.com/angelmondragon/pos-backend/internal/coupons"
	"github.com/angelmondragon/pos-backend/internal/pricing"
	"github.com/angelmondragon/pos-backend/internal/receipts"
	"github.com/angelmondragon/pos-backend/internal/reports"
	"github.com/angelmondragon/pos-backend/internal/returns"
	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/internal/stock"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/db"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/metrics"
	"github.com/angelmondragon/pos-backend/pkg/outbox"
	"github.com/angelmondragon/pos-backend/pkg/redis"
	"github.com/angelmondragon/pos-backend/pkg/txid"
)

// buildDependencies constructs the domain services behind the HTTP router.
func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, reg *prometheus.Registry) (routes.Dependencies, error) {
	conn := dbClient.DB()
	salesMetrics := metrics.NewSalesMetrics(reg)

	recorder, err := changelog.NewService(changelog.NewRepository(conn))
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("change log: %w", err)
	}
	stockSvc, err := stock.NewService(stock.NewRepository(conn), recorder, dbClient, logg)
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("stock: %w", err)
	}
	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), dbClient, stockSvc, recorder)
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("catalog: %w", err)
	}
	publisher := outbox.NewService(outbox.NewRepository(conn), logg)
	couponSvc, err := coupons.NewService(coupons.NewRepository(conn), dbClient, catalogSvc, recorder, publisher)
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("coupons: %w", err)
	}

	pricingCfg, err := pricing.ConfigFrom(cfg.Pricing)
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("pricing config: %w", err)
	}
	engine, err := pricing.NewEngine(pricingCfg)
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("pricing engine: %w", err)
	}
	ids, err := txid.NewGenerator()
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("transaction ids: %w", err)
	}
	printer, err := newPrinter(cfg)
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("receipt printer: %w", err)
	}
	deliverer := receipts.NewService(receipts.NewRenderer(cfg.Receipt.ShopName, cfg.Receipt.Width), printer, salesMetrics, logg)

	salesSvc, err := sales.NewService(sales.ServiceParams{
		Repo:     sales.NewRepository(conn),
		Tx:       dbClient,
		Stores:   catalogSvc,
		Products: catalogSvc,
		Stock:    stockSvc,
		Coupons:  couponSvc,
		Engine:   engine,
		IDs:      ids,
		Recorder: recorder,
		Outbox:   publisher,
		Receipts: deliverer,
		Metrics:  salesMetrics,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("sales: %w", err)
	}
	returnsSvc, err := returns.NewService(returns.ServiceParams{
		Repo:     returns.NewRepository(conn),
		Tx:       dbClient,
		Origins:  salesSvc,
		Stock:    stockSvc,
		Engine:   engine,
		IDs:      ids,
		Recorder: recorder,
		Outbox:   publisher,
		Receipts: deliverer,
		Metrics:  salesMetrics,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("returns: %w", err)
	}
	reportsSvc, err := reports.NewService(reports.NewRepository(conn))
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("reports: %w", err)
	}
	keys, err := apikeys.NewService(apikeys.NewRepository(conn), cfg.APIKey, redisClient, logg)
	if err != nil {
		return routes.Dependencies{}, fmt.Errorf("api keys: %w", err)
	}

	return routes.Dependencies{
		DB:          dbClient,
		Redis:       redisClient,
		Idempotency: redisClient,
		Counters:    redisClient,
		Gatherer:    reg,
		APIKeys:     keys,
		Catalog:     catalogSvc,
		Stock:       stockSvc,
		Coupons:     couponSvc,
		Sales:       salesSvc,
		Returns:     returnsSvc,
		Reports:     reportsSvc,
		ChangeLog:   recorder,
	}, nil
}

func newPrinter(cfg *config.Config) (receipts.Printer, error) {
	if !cfg.FeatureFlags.ReceiptPrinter || cfg.Receipt.PrinterURL == "" {
		return receipts.NopPrinter{}, nil
	}
	return receipts.NewHTTPPrinter(cfg.Receipt.PrinterURL, cfg.Receipt.Timeout)
}
