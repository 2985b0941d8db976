// Command seeder loads a bootstrap admin, a salesperson, a distributor and a small catalog
// so a fresh environment can place orders end to end. Re-running it is harmless: existing
// accounts are skipped and the catalog is only seeded into an empty products table.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-b2b-orders/internal/accounts"
	"github.com/noah-isme/backend-b2b-orders/internal/app"
	"github.com/noah-isme/backend-b2b-orders/internal/catalog"
	"github.com/noah-isme/backend-b2b-orders/internal/common"
	"github.com/noah-isme/backend-b2b-orders/internal/config"
	"github.com/noah-isme/backend-b2b-orders/internal/lock"
	"github.com/noah-isme/backend-b2b-orders/internal/obs"
)

const seedPassword = "password123"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	deps, err := app.Open(ctx, cfg, logger, app.Options{ApplicationName: "b2b-orders-seeder"})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() { _ = deps.Close() }()

	accountService, err := accounts.NewService(accounts.ServiceConfig{
		Store:     accounts.NewPgStore(deps.DB),
		Hasher:    accounts.Hasher{},
		Validator: deps.Validator,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise accounts service")
	}
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Store:     catalog.NewPgStore(deps.DB),
		Cache:     catalog.NewCache(deps.Redis, cfg.CatalogCacheTTL),
		Locker:    lock.New(deps.Redis, cfg.LockRetryBackoff),
		LockTTL:   cfg.LockTTL,
		Validator: deps.Validator,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}

	if err := seedAccounts(ctx, accountService, logger); err != nil {
		logger.Error().Err(err).Msg("seed accounts")
		os.Exit(1)
	}
	if err := seedCatalog(ctx, catalogService, logger); err != nil {
		logger.Error().Err(err).Msg("seed catalog")
		os.Exit(1)
	}
	logger.Info().Msg("seeding completed")
}

func seedAccounts(ctx context.Context, svc *accounts.Service, logger zerolog.Logger) error {
	steps := []struct {
		email string
		run   func() error
	}{
		{"admin@b2b.local", func() error {
			_, err := svc.SignupAdmin(ctx, accounts.AdminSignupInput{Email: "admin@b2b.local", Password: seedPassword, Name: "Admin"})
			return err
		}},
		{"ravi@b2b.local", func() error {
			_, err := svc.CreateSalesperson(ctx, accounts.SalespersonInput{
				Email: "ravi@b2b.local", Password: seedPassword, Name: "Ravi Kumar",
				PhoneNumber: "9800000001", EmployeeID: "EMP-001",
			})
			return err
		}},
		{"orders@sharma-traders.local", func() error {
			_, err := svc.CreateDistributor(ctx, accounts.DistributorInput{
				Name: "Sharma Traders", Email: "orders@sharma-traders.local", Password: seedPassword,
				PhoneNumber: "9800000002", Address: "12 Market Road, Pune",
			})
			return err
		}},
	}
	for _, step := range steps {
		err := step.run()
		switch {
		case err == nil:
			logger.Info().Str("email", step.email).Msg("account created")
		case errors.Is(err, accounts.ErrEmailTaken):
			logger.Info().Str("email", step.email).Msg("account exists, skipped")
		default:
			return err
		}
	}
	return nil
}

func seedCatalog(ctx context.Context, svc *catalog.Service, logger zerolog.Logger) error {
	existing, err := svc.ListProducts(ctx, common.Page{Number: 1, PerPage: 1})
	if err != nil {
		return err
	}
	if existing.Total > 0 {
		logger.Info().Int("products", existing.Total).Msg("catalog not empty, skipped")
		return nil
	}

	beverages, err := svc.CreateCategory(ctx, catalog.CategoryInput{Name: "Beverages"})
	if err != nil {
		return err
	}
	staples, err := svc.CreateCategory(ctx, catalog.CategoryInput{Name: "Staples"})
	if err != nil {
		return err
	}

	products := []catalog.ProductInput{
		{
			Name: "Assam Tea", CategoryID: beverages.ID, DistributorPrice: 180, RetailerPrice: 200, MRP: 240, InventoryCount: 500,
			Variants: []catalog.VariantInput{
				{Name: "Pack", Value: "250g", Price: 110, Stock: 300},
				{Name: "Pack", Value: "1kg", Price: 390, Stock: 120},
			},
		},
		{Name: "Instant Coffee", CategoryID: beverages.ID, DistributorPrice: 260, RetailerPrice: 290, MRP: 320, InventoryCount: 200},
		{
			Name: "Basmati Rice", CategoryID: staples.ID, DistributorPrice: 95, RetailerPrice: 110, MRP: 130, InventoryCount: 1000,
			Variants: []catalog.VariantInput{{Name: "Bag", Value: "5kg", Price: 520, Stock: 150}},
		},
	}
	for _, in := range products {
		p, err := svc.CreateProduct(ctx, in)
		if err != nil {
			return err
		}
		logger.Info().Int64("id", p.ID).Str("sku", p.SKU).Msg("product created")
	}
	return nil
}
