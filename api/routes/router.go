package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/pos-backend/api/controllers"
	"github.com/angelmondragon/pos-backend/api/middleware"
	"github.com/angelmondragon/pos-backend/internal/apikeys"
	"github.com/angelmondragon/pos-backend/internal/catalog"
	"github.com/angelmondragon/pos-backend/internal/changelog"
	"github.com/angelmondragon/pos-backend/internal/coupons"
	"github.com/angelmondragon/pos-backend/internal/reports"
	"github.com/angelmondragon/pos-backend/internal/returns"
	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/internal/stock"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/pos-backend/pkg/redis"
)

type counterStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	CounterKey(name string) string
}

// Dependencies carries everything the HTTP surface calls into. Nil stores
// disable the middleware that needs them.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	Counters    counterStore
	Gatherer    prometheus.Gatherer

	APIKeys   apikeys.Service
	Catalog   catalog.Service
	Stock     stock.Service
	Coupons   coupons.Service
	Sales     sales.Service
	Returns   returns.Service
	Reports   reports.Service
	ChangeLog changelog.Recorder
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.Dependency{Name: "db", Pinger: deps.DB},
			controllers.Dependency{Name: "redis", Pinger: deps.Redis},
		))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	policy := middleware.NewRateLimitPolicy(
		"api",
		cfg.RateLimit.Window,
		cfg.RateLimit.IPLimit,
		cfg.RateLimit.KeyLimit,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKey(deps.APIKeys, cfg.APIKey.Header, logg))
		if deps.Counters != nil {
			r.Use(middleware.RateLimit(policy, deps.Counters, logg))
		}
		if deps.Idempotency != nil {
			r.Use(middleware.Idempotency(deps.Idempotency, cfg.Idempotency.TTL, logg))
		}

		r.Get("/test", controllers.Ping())

		r.Route("/items", func(r chi.Router) {
			r.Get("/", controllers.ItemLookup(deps.Catalog, logg))
			r.Post("/", controllers.ItemCreate(deps.Catalog, logg))
			r.Patch("/{jan}", controllers.ItemUpdate(deps.Catalog, logg))
		})

		r.Route("/stores", func(r chi.Router) {
			r.Get("/", controllers.StoreList(deps.Catalog, logg))
			r.Post("/", controllers.StoreCreate(deps.Catalog, logg))
			r.Get("/{storeCode}", controllers.StoreDetail(deps.Catalog, logg))
		})

		r.Get("/stocks", controllers.StockLookup(deps.Stock, logg))

		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", controllers.CouponList(deps.Coupons, logg))
			r.Post("/", controllers.CouponCreate(deps.Coupons, logg))
			r.Get("/{code}", controllers.CouponDetail(deps.Coupons, logg))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", controllers.TransactionLookup(deps.Sales, logg))
			r.Post("/", controllers.TransactionCreate(deps.Sales, logg))
			r.Get("/{saleID}", controllers.TransactionDetail(deps.Sales, logg))
			r.Post("/{saleID}/receipt", controllers.TransactionReceipt(deps.Sales, logg))
		})

		r.Route("/returntransactions", func(r chi.Router) {
			r.Get("/", controllers.ReturnLookup(deps.Returns, logg))
			r.Post("/", controllers.ReturnCreate(deps.Returns, logg))
			r.Get("/{returnID}", controllers.ReturnDetail(deps.Returns, logg))
		})

		r.Get("/reports/sales-summary", controllers.SalesSummary(deps.Reports, logg))
		r.Get("/history/{entity}/{entityID}", controllers.ChangeHistory(deps.ChangeLog, logg))

		r.Route("/admin", func(r chi.Router) {
			r.Post("/stocks/regenerate", controllers.AdminStockRegenerate(deps.Stock, logg))
			r.Post("/stocks/add", controllers.AdminStockAdd(deps.Stock, logg))
			r.Post("/stocks/reset", controllers.AdminStockReset(deps.Stock, logg))
			r.Post("/coupons/purge", controllers.AdminCouponPurge(deps.Coupons, logg))
		})
	})

	return r
}
