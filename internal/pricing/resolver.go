package pricing

import (
	"context"
	"fmt"
	"sort"
)

// ItemRef points at a product and, optionally, one of its variants.
type ItemRef struct {
	ProductID int64
	VariantID *int64
}

// Key is the comparable form of an ItemRef. VariantID is zero when no variant is referenced.
type Key struct {
	ProductID int64
	VariantID int64
}

// Key returns the map key for the reference.
func (r ItemRef) Key() Key {
	k := Key{ProductID: r.ProductID}
	if r.VariantID != nil {
		k.VariantID = *r.VariantID
	}
	return k
}

// VariantPrice is the price of a single product variant.
type VariantPrice struct {
	ID    int64
	Price float64
}

// ProductPrice carries a product's retailer price and the subset of its variants that
// were requested.
type ProductPrice struct {
	ID            int64
	RetailerPrice float64
	Variants      []VariantPrice
}

// Catalog loads prices in one batched read. Variants must be restricted to variantIDs.
type Catalog interface {
	FindProductPrices(ctx context.Context, productIDs, variantIDs []int64) ([]ProductPrice, error)
}

// Prices maps item references to their resolved unit price.
type Prices map[Key]float64

// UnitPrice returns the resolved price for ref. Unknown references price at zero.
func (p Prices) UnitPrice(ref ItemRef) float64 {
	return p[ref.Key()]
}

// Resolver picks the authoritative unit price for order items.
type Resolver struct {
	Catalog Catalog
}

// NewResolver constructs a Resolver backed by catalog.
func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{Catalog: catalog}
}

// ResolvePrices returns a unit price for every ref. A variant price wins when the variant
// belongs to the referenced product; otherwise the product's retailer price is used. A
// product that does not exist resolves to 0 instead of failing.
func (r *Resolver) ResolvePrices(ctx context.Context, refs []ItemRef) (Prices, error) {
	prices := make(Prices, len(refs))
	if len(refs) == 0 {
		return prices, nil
	}
	if r == nil || r.Catalog == nil {
		return nil, fmt.Errorf("pricing: catalog not configured")
	}

	productIDs, variantIDs := collectIDs(refs)
	products, err := r.Catalog.FindProductPrices(ctx, productIDs, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("pricing: find product prices: %w", err)
	}

	byID := make(map[int64]ProductPrice, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, ref := range refs {
		prices[ref.Key()] = unitPrice(byID, ref)
	}
	return prices, nil
}

func unitPrice(products map[int64]ProductPrice, ref ItemRef) float64 {
	product, ok := products[ref.ProductID]
	if !ok {
		return 0
	}
	if ref.VariantID != nil {
		for _, v := range product.Variants {
			if v.ID == *ref.VariantID {
				return v.Price
			}
		}
	}
	return product.RetailerPrice
}

func collectIDs(refs []ItemRef) (productIDs, variantIDs []int64) {
	seenProducts := make(map[int64]struct{}, len(refs))
	seenVariants := make(map[int64]struct{})
	for _, ref := range refs {
		if _, ok := seenProducts[ref.ProductID]; !ok {
			seenProducts[ref.ProductID] = struct{}{}
			productIDs = append(productIDs, ref.ProductID)
		}
		if ref.VariantID == nil {
			continue
		}
		if _, ok := seenVariants[*ref.VariantID]; !ok {
			seenVariants[*ref.VariantID] = struct{}{}
			variantIDs = append(variantIDs, *ref.VariantID)
		}
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })
	sort.Slice(variantIDs, func(i, j int) bool { return variantIDs[i] < variantIDs[j] })
	return productIDs, variantIDs
}
