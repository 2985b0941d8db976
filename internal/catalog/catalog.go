package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
)

var (
	ErrProductNotFound  = errors.New("catalog: product not found")
	ErrCategoryNotFound = errors.New("catalog: category not found")
	ErrCategoryExists   = errors.New("catalog: category already exists")
	ErrSKUTaken         = errors.New("catalog: sku already in use")
)

// Category groups products.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Variant is a priced, stocked sub-SKU of a product. Its price overrides the product's
// retailer price when an order item references it.
type Variant struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"productId"`
	Name      string  `json:"name"`
	Value     string  `json:"value"`
	Price     float64 `json:"price"`
	Stock     int     `json:"stock"`
}

// Product is a catalog entry.
type Product struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	DistributorPrice float64   `json:"distributorPrice"`
	RetailerPrice    float64   `json:"retailerPrice"`
	MRP              float64   `json:"mrp"`
	CategoryID       int64     `json:"categoryId"`
	SKU              string    `json:"skuId"`
	InventoryCount   int       `json:"inventoryCount"`
	ImageURL         string    `json:"imageUrl"`
	Variants         []Variant `json:"variants"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// CategoryInput is the body of POST /admin/create-category.
type CategoryInput struct {
	Name string `json:"name" validate:"required,max=120"`
}

// VariantInput is the body of POST /admin/products/{productId}/variants.
type VariantInput struct {
	Name  string  `json:"name" validate:"required,max=120"`
	Value string  `json:"value" validate:"required,max=120"`
	Price float64 `json:"price" validate:"gt=0"`
	Stock int     `json:"stock" validate:"gte=0"`
}

// ProductInput is the body of POST /admin/create-product.
type ProductInput struct {
	Name             string         `json:"name" validate:"required,max=200"`
	DistributorPrice float64        `json:"distributorPrice" validate:"gt=0"`
	RetailerPrice    float64        `json:"retailerPrice" validate:"gt=0"`
	MRP              float64        `json:"mrp" validate:"gt=0"`
	CategoryID       int64          `json:"categoryId" validate:"required,gt=0"`
	InventoryCount   int            `json:"inventoryCount" validate:"gte=0"`
	ImageURL         string         `json:"imageUrl" validate:"omitempty,url"`
	Variants         []VariantInput `json:"variants" validate:"omitempty,dive"`
}

// ProductPatch is the body of PUT /admin/product/{productId}. Nil fields are left unchanged.
type ProductPatch struct {
	Name             *string  `json:"name" validate:"omitempty,min=1,max=200"`
	DistributorPrice *float64 `json:"distributorPrice" validate:"omitempty,gt=0"`
	RetailerPrice    *float64 `json:"retailerPrice" validate:"omitempty,gt=0"`
	MRP              *float64 `json:"mrp" validate:"omitempty,gt=0"`
	CategoryID       *int64   `json:"categoryId" validate:"omitempty,gt=0"`
	InventoryCount   *int     `json:"inventoryCount" validate:"omitempty,gte=0"`
	ImageURL         *string  `json:"imageUrl" validate:"omitempty,url"`
}

// Empty reports whether the patch changes nothing.
func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.DistributorPrice == nil && p.RetailerPrice == nil && p.MRP == nil &&
		p.CategoryID == nil && p.InventoryCount == nil && p.ImageURL == nil
}

// Store is the persistence contract of the catalog.
type Store interface {
	CreateCategory(ctx context.Context, name string) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	// LastProductID returns the highest product id, or 0 for an empty catalog.
	LastProductID(ctx context.Context) (int64, error)
	CreateProduct(ctx context.Context, in ProductInput, sku string) (Product, error)
	UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	AddVariant(ctx context.Context, productID int64, in VariantInput) (Variant, error)
	CountProducts(ctx context.Context) (int, error)
	ListProducts(ctx context.Context, page common.Page) ([]Product, error)
}
