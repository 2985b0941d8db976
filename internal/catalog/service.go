package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
)

const skuLockKey = "lock:catalog:sku"

// Locker serialises a critical section across API instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Service manages categories, products and variants.
type Service struct {
	store     Store
	cache     *Cache
	locker    Locker
	lockTTL   time.Duration
	validator *common.Validator
	logger    zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store     Store
	Cache     *Cache
	Locker    Locker
	LockTTL   time.Duration
	Validator *common.Validator
	Logger    zerolog.Logger
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	if cfg.Locker == nil {
		return nil, errors.New("catalog: locker is required")
	}
	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Service{
		store:     cfg.Store,
		cache:     cfg.Cache,
		locker:    cfg.Locker,
		lockTTL:   ttl,
		validator: cfg.Validator,
		logger:    cfg.Logger,
	}, nil
}

// NextSKU formats the SKU following lastID.
func NextSKU(lastID int64) string {
	return "sku" + strconv.FormatInt(lastID+1, 10)
}

// CreateCategory adds a category with a unique name.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Struct(in); err != nil {
		return Category{}, err
	}
	c, err := s.store.CreateCategory(ctx, in.Name)
	if err != nil {
		return Category{}, s.mapError(err, "create category failed")
	}
	return c, nil
}

// ListCategories returns every category ordered by name.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, s.mapError(err, "list categories failed")
	}
	if rows == nil {
		rows = []Category{}
	}
	return rows, nil
}

// CreateProduct inserts a product and its initial variants. The SKU is derived from the
// highest existing product id, so generation and insert run under a distributed lock.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Struct(in); err != nil {
		return Product{}, err
	}
	var created Product
	err := s.locker.WithLock(ctx, skuLockKey, s.lockTTL, func(ctx context.Context) error {
		lastID, err := s.store.LastProductID(ctx)
		if err != nil {
			return err
		}
		created, err = s.store.CreateProduct(ctx, in, NextSKU(lastID))
		return err
	})
	if err != nil {
		return Product{}, s.mapError(err, "create product failed")
	}
	s.invalidate(ctx)
	return created, nil
}

// UpdateProduct applies a partial update.
func (s *Service) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (Product, error) {
	if err := s.validator.Struct(patch); err != nil {
		return Product{}, err
	}
	if patch.Empty() {
		return Product{}, common.ValidationError("at least one field must be provided")
	}
	p, err := s.store.UpdateProduct(ctx, id, patch)
	if err != nil {
		return Product{}, s.mapError(err, "update product failed")
	}
	s.invalidate(ctx)
	return p, nil
}

// DeleteProduct removes a product; its variants go with it.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return s.mapError(err, "delete product failed")
	}
	s.invalidate(ctx)
	return nil
}

// AddVariant attaches a variant to an existing product.
func (s *Service) AddVariant(ctx context.Context, productID int64, in VariantInput) (Variant, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Value = strings.TrimSpace(in.Value)
	if err := s.validator.Struct(in); err != nil {
		return Variant{}, err
	}
	v, err := s.store.AddVariant(ctx, productID, in)
	if err != nil {
		return Variant{}, s.mapError(err, "add variant failed")
	}
	s.invalidate(ctx)
	return v, nil
}

// ProductPage is one page of the product listing.
type ProductPage struct {
	Items []Product `json:"items"`
	Total int       `json:"total"`
}

// ListProducts returns a page of products with their variants. Pages are served from the
// Redis cache when possible; cache failures fall through to the store.
func (s *Service) ListProducts(ctx context.Context, page common.Page) (ProductPage, error) {
	key, err := s.cache.ListKey(ctx, page.Number, page.PerPage)
	if err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache unavailable")
		key = ""
	}
	if key != "" {
		var cached ProductPage
		if ok, err := s.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	total, err := s.store.CountProducts(ctx)
	if err != nil {
		return ProductPage{}, s.mapError(err, "count products failed")
	}
	items, err := s.store.ListProducts(ctx, page)
	if err != nil {
		return ProductPage{}, s.mapError(err, "list products failed")
	}
	if items == nil {
		items = []Product{}
	}
	result := ProductPage{Items: items, Total: total}
	if key != "" {
		if err := s.cache.SetJSON(ctx, key, result); err != nil {
			s.logger.Warn().Err(err).Msg("catalog cache write failed")
		}
	}
	return result, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}

func (s *Service) mapError(err error, msg string) error {
	switch {
	case common.IsAppError(err):
		return err
	case errors.Is(err, ErrProductNotFound):
		return common.NotFound("product", err)
	case errors.Is(err, ErrCategoryNotFound):
		return common.NotFound("category", err)
	case errors.Is(err, ErrCategoryExists):
		return common.Conflict("category already exists", err)
	case errors.Is(err, ErrSKUTaken):
		return common.Conflict("sku already in use", err)
	default:
		s.logger.Error().Err(err).Msg(msg)
		return common.Internal(err)
	}
}
