package pricing

import (
	"context"
	"fmt"

	"github.com/noah-isme/backend-b2b-orders/internal/db"
)

const findProductPricesSQL = `SELECT p.id, p.retailer_price,
       COALESCE(array_agg(v.id ORDER BY v.id) FILTER (WHERE v.id IS NOT NULL), '{}') AS variant_ids,
       COALESCE(array_agg(v.price ORDER BY v.id) FILTER (WHERE v.id IS NOT NULL), '{}') AS variant_prices
FROM products p
LEFT JOIN product_variants v ON v.product_id = p.id AND v.id = ANY($2::bigint[])
WHERE p.id = ANY($1::bigint[])
GROUP BY p.id, p.retailer_price`

// PgCatalog implements Catalog with a single query. DB may be a pool or a transaction.
type PgCatalog struct {
	DB db.DBTX
}

// FindProductPrices implements Catalog.
func (c PgCatalog) FindProductPrices(ctx context.Context, productIDs, variantIDs []int64) ([]ProductPrice, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	if variantIDs == nil {
		variantIDs = []int64{}
	}
	rows, err := c.DB.Query(ctx, findProductPricesSQL, productIDs, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("query product prices: %w", err)
	}
	defer rows.Close()

	var out []ProductPrice
	for rows.Next() {
		var (
			p      ProductPrice
			ids    []int64
			prices []float64
		)
		if err := rows.Scan(&p.ID, &p.RetailerPrice, &ids, &prices); err != nil {
			return nil, fmt.Errorf("scan product prices: %w", err)
		}
		for i := range ids {
			if i < len(prices) {
				p.Variants = append(p.Variants, VariantPrice{ID: ids[i], Price: prices[i]})
			}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product prices: %w", err)
	}
	return out, nil
}
