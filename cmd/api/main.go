package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/backend-b2b-orders/internal/accounts"
	"github.com/noah-isme/backend-b2b-orders/internal/app"
	"github.com/noah-isme/backend-b2b-orders/internal/audit"
	"github.com/noah-isme/backend-b2b-orders/internal/auth"
	"github.com/noah-isme/backend-b2b-orders/internal/catalog"
	"github.com/noah-isme/backend-b2b-orders/internal/common"
	"github.com/noah-isme/backend-b2b-orders/internal/config"
	"github.com/noah-isme/backend-b2b-orders/internal/health"
	"github.com/noah-isme/backend-b2b-orders/internal/ledger"
	"github.com/noah-isme/backend-b2b-orders/internal/lock"
	"github.com/noah-isme/backend-b2b-orders/internal/obs"
	"github.com/noah-isme/backend-b2b-orders/internal/order"
	"github.com/noah-isme/backend-b2b-orders/internal/pricing"
	"github.com/noah-isme/backend-b2b-orders/internal/ratelimit"
	"github.com/noah-isme/backend-b2b-orders/internal/security"
	"github.com/noah-isme/backend-b2b-orders/internal/shop"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "json"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("env", cfg.AppEnv).Str("component", "api").Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "b2b")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	if metricsEnabled {
		shutdownMeter, err := obs.InitMeterProvider(nil)
		if err != nil {
			logger.Error().Err(err).Msg("initialise meter provider")
		} else {
			defer func() { _ = shutdownMeter(context.Background()) }()
		}
	}

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "b2b-orders-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	deps, err := app.Open(openCtx, cfg, logger, app.Options{ApplicationName: "b2b-orders-api", RedisMetrics: metricsEnabled})
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	router, err := newRouter(deps, routerOptions{
		MetricsNamespace: metricsNamespace,
		Metrics:          metricsEnabled,
		Tracing:          tracingEnabled,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build router")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited unexpectedly")
		return
	}
	logger.Info().Msg("server shutdown complete")
}

type routerOptions struct {
	MetricsNamespace string
	Metrics          bool
	Tracing          bool
}

func newRouter(deps *app.Dependencies, opts routerOptions) (http.Handler, error) {
	cfg := deps.Config
	logger := deps.Logger
	pool := deps.DB
	validate := deps.Validator

	hasher := accounts.Hasher{}
	accountStore := accounts.NewPgStore(pool)
	accountService, err := accounts.NewService(accounts.ServiceConfig{
		Store:     accountStore,
		Hasher:    hasher,
		Validator: validate,
		Logger:    logger.With().Str("module", "accounts").Logger(),
	})
	if err != nil {
		return nil, err
	}
	accountHandler := accounts.NewHandler(accountService)

	authService, err := auth.NewService(auth.Config{
		Accounts:       accountStore,
		Passwords:      hasher,
		Validator:      validate,
		Logger:         logger.With().Str("module", "auth").Logger(),
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
		Issuer:         cfg.JWTIssuer,
		Audience:       cfg.JWTAudience,
		ClockSkew:      cfg.JWTClockSkew,
	})
	if err != nil {
		return nil, err
	}
	authHandler := &auth.Handler{Service: authService}
	authMiddleware := auth.Middleware{Service: authService}

	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store:     catalog.NewPgStore(pool),
		Cache:     catalog.NewCache(deps.Redis, cfg.CatalogCacheTTL),
		Locker:    lock.New(deps.Redis, cfg.LockRetryBackoff),
		LockTTL:   cfg.LockTTL,
		Validator: validate,
		Logger:    logger.With().Str("module", "catalog").Logger(),
	})
	if err != nil {
		return nil, err
	}
	catalogHandler := catalog.NewHandler(catalogService, cfg.CatalogDefaultLimit, cfg.CatalogMaxLimit)

	shopService := shop.NewService(shop.PgStore{DB: pool}, validate, logger.With().Str("module", "shop").Logger())
	shopHandler := shop.NewHandler(shopService, cfg.CatalogDefaultLimit, cfg.CatalogMaxLimit)

	ledgerService, err := ledger.NewService(ledger.ServiceConfig{
		Store:     ledger.NewPgStore(pool),
		Reminders: deps.Reminders(),
		Events:    deps.Events,
		Logger:    logger.With().Str("module", "ledger").Logger(),
		Meter:     deps.Meter,
	})
	if err != nil {
		return nil, err
	}
	ledgerHandler := ledger.NewHandler(ledgerService)

	orderService, err := order.NewService(order.ServiceConfig{
		Repository: order.NewPgRepository(pool),
		Resolver:   pricing.NewResolver(pricing.PgCatalog{DB: pool}),
		Validator:  validate,
		Ledger:     ledgerService,
		Events:     deps.Events,
		Logger:     logger.With().Str("module", "order").Logger(),
	})
	if err != nil {
		return nil, err
	}
	orderHandler := order.NewHandler(order.HandlerConfig{
		Service:      orderService,
		DefaultLimit: cfg.CatalogDefaultLimit,
		MaxLimit:     cfg.CatalogMaxLimit,
	})

	auditStore := audit.PgStore{DB: pool}
	recorder := audit.HTTPRecorder{
		Service: &audit.Service{Store: auditStore, Enabled: cfg.AuditEnabled, SamplingRate: cfg.AuditSamplingRate},
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit log") },
	}
	audited := func(resource, idParam string) func(http.Handler) http.Handler {
		return recorder.Middleware(audit.HTTPConfig{ResourceType: resource, ResourceIDParam: idParam})
	}

	apiLimit, err := app.NewAPIRateLimiter(deps.Redis, cfg.APIRateLimit)
	if err != nil {
		return nil, err
	}
	loginLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: deps.Redis, Prefix: "b2b:login"},
		Config:  ratelimit.Config{Window: cfg.LoginRateLimitWindow, Max: cfg.LoginRateLimitMax},
		OnError: func(err error) { logger.Warn().Err(err).Msg("login rate limiter unavailable") },
	}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if opts.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if opts.Metrics {
		httpMetrics := obs.NewHTTPMetrics(opts.MetricsNamespace, obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", "")), nil)
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeadersEnabled, EnableHSTS: cfg.HSTSEnabled}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Total-Count", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(),
			envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", ""), envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")))
	}

	healthHandler := health.Handler{
		Checker:      health.Probes{DB: pool, Redis: deps.Redis},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(apiLimit)
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

		v.Route("/auth", func(a chi.Router) {
			a.With(loginLimit.Middleware).Post("/login", authHandler.Login)
			a.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.With(audited("admin", "")).Post("/signup", accountHandler.Signup)

			admin.Group(func(g chi.Router) {
				g.Use(authMiddleware.RequireRole(accounts.RoleAdmin))

				g.With(audited("salesperson", "")).Post("/create-salesperson", accountHandler.CreateSalesperson)
				g.Get("/get-salesperson", accountHandler.Salespeople)
				g.With(audited("distributor", "")).Post("/create-distributor", accountHandler.CreateDistributor)
				g.Get("/get-distributors", accountHandler.Distributors)
				g.With(audited("distributor", "id")).Put("/distributor/{id}", accountHandler.EditDistributor)
				g.With(audited("distributor", "id")).Delete("/distributor/{id}", accountHandler.DeleteDistributor)

				g.With(audited("category", "")).Post("/create-category", catalogHandler.CreateCategory)
				g.Get("/get-categories", catalogHandler.Categories)
				g.With(audited("product", "")).Post("/create-product", catalogHandler.CreateProduct)
				g.Get("/get-products", catalogHandler.Products)
				g.With(audited("product", "productId")).Put("/product/{productId}", catalogHandler.EditProduct)
				g.With(audited("product", "productId")).Delete("/product/{productId}", catalogHandler.DeleteProduct)
				g.With(audited("variant", "productId")).Post("/products/{productId}/variants", catalogHandler.AddVariant)

				g.Get("/get-orders", orderHandler.AdminOrders)
				g.Get("/get-shops", shopHandler.List)
				g.Get("/audit-logs", audit.Handler{Store: auditStore}.List)
			})
		})

		v.Route("/salesperson", func(s chi.Router) {
			s.Use(authMiddleware.RequireRole(accounts.RoleSalesperson))
			s.Post("/create-shop", shopHandler.Create)
			s.With(idem.Middleware).Post("/create-order", orderHandler.Create)
		})

		v.Route("/distributor", func(d chi.Router) {
			d.Use(authMiddleware.RequireRole(accounts.RoleDistributor))
			d.Get("/get-orders", orderHandler.DistributorOrders)
			d.Put("/orders/{orderId}", orderHandler.Edit)
			d.Put("/orders/{orderId}/payment", ledgerHandler.UpsertPayment)
			d.Get("/shopkeepers/balances", ledgerHandler.ShopkeeperBalances)
			d.Get("/shopkeepers/{shopkeeperId}/balance", ledgerHandler.ShopkeeperBalance)
		})
	})

	return r, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
