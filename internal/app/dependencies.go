// Package app opens the shared infrastructure both binaries run on: the order database,
// Redis, the asynq client and the event bus.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
	"github.com/noah-isme/backend-b2b-orders/internal/config"
	"github.com/noah-isme/backend-b2b-orders/internal/db"
	"github.com/noah-isme/backend-b2b-orders/internal/events"
	"github.com/noah-isme/backend-b2b-orders/internal/tasks"
)

const meterName = "github.com/noah-isme/backend-b2b-orders"

// Dependencies enumerates core services shared across modules.
type Dependencies struct {
	Config    *config.Config
	Logger    zerolog.Logger
	DB        *pgxpool.Pool
	Redis     *redis.Client
	RedisOpt  asynq.RedisClientOpt
	Tasks     *asynq.Client
	Events    *events.Bus
	Validator *common.Validator
	Meter     metric.Meter
}

// Options tunes Open.
type Options struct {
	ApplicationName string
	RedisMetrics    bool
}

// Open connects to PostgreSQL and Redis, runs migrations when MIGRATE_ON_START is set
// and builds the event bus. Callers own the returned Dependencies and must Close them.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		logger.Info().Msg("migrations applied")
	}

	pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, ApplicationName: opts.ApplicationName})
	if err != nil {
		return nil, err
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("app: parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if opts.RedisMetrics {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("app: ping redis: %w", err)
	}

	redisOpt := RedisConnOpt(redisOpts)
	taskClient := asynq.NewClient(redisOpt)

	deps := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		DB:        pool,
		Redis:     redisClient,
		RedisOpt:  redisOpt,
		Tasks:     taskClient,
		Validator: common.NewValidator(),
		Meter:     otel.Meter(meterName),
	}
	deps.Events = &events.Bus{
		Store:     events.PgStore{DB: pool},
		Notifiers: []events.Notifier{tasks.EventNotifier{Client: taskClient}},
	}
	return deps, nil
}

// Reminders returns the scheduler the ledger uses for payment-due reminders.
func (d *Dependencies) Reminders() tasks.ReminderScheduler {
	return tasks.ReminderScheduler{Client: d.Tasks, Lead: d.Config.PaymentReminderLead, MaxRetry: 5}
}

// Close releases every connection. It is safe to call on a partially built value.
func (d *Dependencies) Close() error {
	var errs []error
	if d.Tasks != nil {
		errs = append(errs, d.Tasks.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if d.DB != nil {
		d.DB.Close()
	}
	return errors.Join(errs...)
}

// RedisConnOpt translates go-redis options into the asynq connection option.
func RedisConnOpt(opts *redis.Options) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Network:   opts.Network,
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}
}

// NewAPIRateLimiter builds the per-IP limiter guarding the whole API surface. rate uses
// ulule's formatted notation, e.g. "600-M".
func NewAPIRateLimiter(rdb *redis.Client, rate string) (func(http.Handler) http.Handler, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("app: parse API_RATE_LIMIT: %w", err)
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "b2b:api-limit"})
	if err != nil {
		return nil, fmt.Errorf("app: limiter store: %w", err)
	}
	mw := stdlib.NewMiddleware(limiter.New(store, parsed),
		stdlib.WithKeyGetter(common.ClientIP),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, _ *http.Request) {
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
		}),
	)
	return mw.Handler, nil
}
