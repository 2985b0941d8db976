package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
	"github.com/noah-isme/backend-b2b-orders/internal/db"
)

const productColumns = `id, name, distributor_price, retailer_price, mrp, category_id, sku, inventory_count, image_url, created_at, updated_at`

// Pool is the subset of *pgxpool.Pool the store needs.
type Pool interface {
	db.DBTX
	db.TxBeginner
}

// PgStore implements Store on PostgreSQL.
type PgStore struct {
	pool Pool
}

// NewPgStore constructs a PgStore.
func NewPgStore(pool Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) CreateCategory(ctx context.Context, name string) (Category, error) {
	var c Category
	err := s.pool.QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id, name, created_at`, name).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Category{}, ErrCategoryExists
		}
		return Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (s *PgStore) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Category, error) {
		var c Category
		err := row.Scan(&c.ID, &c.Name, &c.CreatedAt)
		return c, err
	})
}

func (s *PgStore) LastProductID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM products`).Scan(&id); err != nil {
		return 0, fmt.Errorf("last product id: %w", err)
	}
	return id, nil
}

func (s *PgStore) CreateProduct(ctx context.Context, in ProductInput, sku string) (Product, error) {
	var p Product
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		const q = `INSERT INTO products (name, distributor_price, retailer_price, mrp, category_id, sku, inventory_count, image_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + productColumns
		if err := scanProduct(tx.QueryRow(ctx, q, in.Name, in.DistributorPrice, in.RetailerPrice, in.MRP,
			in.CategoryID, sku, in.InventoryCount, in.ImageURL), &p); err != nil {
			return translateProductError(err)
		}
		p.Variants = make([]Variant, 0, len(in.Variants))
		for _, vin := range in.Variants {
			v, err := insertVariant(ctx, tx, p.ID, vin)
			if err != nil {
				return err
			}
			p.Variants = append(p.Variants, v)
		}
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *PgStore) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (Product, error) {
	const q = `UPDATE products SET
    name              = COALESCE($2, name),
    distributor_price = COALESCE($3, distributor_price),
    retailer_price    = COALESCE($4, retailer_price),
    mrp               = COALESCE($5, mrp),
    category_id       = COALESCE($6, category_id),
    inventory_count   = COALESCE($7, inventory_count),
    image_url         = COALESCE($8, image_url),
    updated_at        = now()
WHERE id = $1
RETURNING ` + productColumns
	var p Product
	err := scanProduct(s.pool.QueryRow(ctx, q, id, patch.Name, patch.DistributorPrice, patch.RetailerPrice, patch.MRP,
		patch.CategoryID, patch.InventoryCount, patch.ImageURL), &p)
	if err != nil {
		return Product{}, translateProductError(err)
	}
	variants, err := s.variantsOf(ctx, []int64{p.ID})
	if err != nil {
		return Product{}, err
	}
	p.Variants = variants[p.ID]
	if p.Variants == nil {
		p.Variants = []Variant{}
	}
	return p, nil
}

func (s *PgStore) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (s *PgStore) AddVariant(ctx context.Context, productID int64, in VariantInput) (Variant, error) {
	return insertVariant(ctx, s.pool, productID, in)
}

func (s *PgStore) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (s *PgStore) ListProducts(ctx context.Context, page common.Page) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id LIMIT $1 OFFSET $2`, page.PerPage, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Product, error) {
		var p Product
		err := scanProduct(row, &p)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	variants, err := s.variantsOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Variants = variants[products[i].ID]
		if products[i].Variants == nil {
			products[i].Variants = []Variant{}
		}
	}
	return products, nil
}

func (s *PgStore) variantsOf(ctx context.Context, productIDs []int64) (map[int64][]Variant, error) {
	out := make(map[int64][]Variant, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, product_id, name, value, price, stock FROM product_variants
WHERE product_id = ANY($1::bigint[]) ORDER BY id`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	variants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Variant, error) {
		var v Variant
		err := row.Scan(&v.ID, &v.ProductID, &v.Name, &v.Value, &v.Price, &v.Stock)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan variants: %w", err)
	}
	for _, v := range variants {
		out[v.ProductID] = append(out[v.ProductID], v)
	}
	return out, nil
}

func insertVariant(ctx context.Context, q db.DBTX, productID int64, in VariantInput) (Variant, error) {
	var v Variant
	err := q.QueryRow(ctx, `INSERT INTO product_variants (product_id, name, value, price, stock)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, product_id, name, value, price, stock`, productID, in.Name, in.Value, in.Price, in.Stock).
		Scan(&v.ID, &v.ProductID, &v.Name, &v.Value, &v.Price, &v.Stock)
	if err != nil {
		if db.PgErrorCode(err) == db.CodeForeignKeyViolation {
			return Variant{}, ErrProductNotFound
		}
		return Variant{}, fmt.Errorf("insert variant: %w", err)
	}
	return v, nil
}

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(&p.ID, &p.Name, &p.DistributorPrice, &p.RetailerPrice, &p.MRP, &p.CategoryID, &p.SKU,
		&p.InventoryCount, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
}

func translateProductError(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrProductNotFound
	case db.PgErrorCode(err) == db.CodeForeignKeyViolation:
		return ErrCategoryNotFound
	case db.IsUniqueViolation(err):
		return ErrSKUTaken
	default:
		return fmt.Errorf("product write: %w", err)
	}
}
