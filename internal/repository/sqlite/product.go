package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/storefront/internal/apperror"
	"github.com/sakif/storefront/internal/model"
	"github.com/sakif/storefront/internal/repository"
)

// ProductDB is the SQLite-backed product catalog.
type ProductDB struct {
	conn *sql.DB
}

// compile-time check that *ProductDB implements repository.ProductRepository
var _ repository.ProductRepository = (*ProductDB)(nil)

// Create inserts a new product. ID and timestamps are assigned here.
//
// Images is a []string and SQLite has no array type, so it's stored as a
// JSON-encoded TEXT column and decoded again on the way out.
func (p *ProductDB) Create(ctx context.Context, product *model.Product) error {
	now := time.Now()
	product.ID = xid.New().String()
	product.CreatedAt = now
	product.UpdatedAt = now

	images, err := encodeImages(product.Images)
	if err != nil {
		return err
	}

	_, err = p.conn.ExecContext(ctx,
		`INSERT INTO products (id, name, description, price, images, stock, user_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		images,
		product.Stock,
		product.UserID,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating product: %w", err)
	}

	return nil
}

// GetByID retrieves a single product.
// Returns apperror.ErrNotFound if no product exists with that ID.
func (p *ProductDB) GetByID(ctx context.Context, id string) (*model.Product, error) {
	var (
		prod   model.Product
		images string
	)

	err := p.conn.QueryRowContext(ctx,
		`SELECT id, name, description, price, images, stock, user_id, created_at, updated_at
		 FROM products WHERE id = ?`,
		id,
	).Scan(
		&prod.ID,
		&prod.Name,
		&prod.Description,
		&prod.Price,
		&images,
		&prod.Stock,
		&prod.UserID,
		&prod.CreatedAt,
		&prod.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("product", id)
		}
		return nil, fmt.Errorf("sqlite: getting product %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(images), &prod.Images); err != nil {
		return nil, fmt.Errorf("sqlite: decoding images for product %s: %w", id, err)
	}

	return &prod, nil
}

// List retrieves products newest-first with LIMIT/OFFSET pagination.
func (p *ProductDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Product, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := p.conn.QueryContext(ctx,
		`SELECT id, name, description, price, images, stock, user_id, created_at, updated_at
		 FROM products
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing products: %w", err)
	}
	// rows holds a pool connection — always close it
	defer rows.Close()

	products := make([]model.Product, 0, limit)
	for rows.Next() {
		var (
			prod   model.Product
			images string
		)
		if err := rows.Scan(
			&prod.ID,
			&prod.Name,
			&prod.Description,
			&prod.Price,
			&images,
			&prod.Stock,
			&prod.UserID,
			&prod.CreatedAt,
			&prod.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning product row: %w", err)
		}
		if err := json.Unmarshal([]byte(images), &prod.Images); err != nil {
			return nil, fmt.Errorf("sqlite: decoding images for product %s: %w", prod.ID, err)
		}
		products = append(products, prod)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating products: %w", err)
	}

	return products, nil
}

// Count returns the total number of products (for pagination).
func (p *ProductDB) Count(ctx context.Context) (int, error) {
	var count int
	err := p.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting products: %w", err)
	}
	return count, nil
}

// CountByID returns 1 if a product with the given ID exists, else 0.
// The update/delete actions use this for their explicit not-found check
// before touching the row.
func (p *ProductDB) CountByID(ctx context.Context, id string) (int, error) {
	var count int
	err := p.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM products WHERE id = ?`, id,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting products by id: %w", err)
	}
	return count, nil
}

// Update replaces the mutable fields of an existing product.
// Returns apperror.ErrNotFound if the row vanished between the caller's
// existence check and the write.
func (p *ProductDB) Update(ctx context.Context, product *model.Product) error {
	product.UpdatedAt = time.Now()

	images, err := encodeImages(product.Images)
	if err != nil {
		return err
	}

	res, err := p.conn.ExecContext(ctx,
		`UPDATE products
		 SET name = ?, description = ?, price = ?, images = ?, stock = ?, user_id = ?, updated_at = ?
		 WHERE id = ?`,
		product.Name,
		product.Description,
		product.Price,
		images,
		product.Stock,
		product.UserID,
		product.UpdatedAt,
		product.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating product %s: %w", product.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking update result for product %s: %w", product.ID, err)
	}
	if affected == 0 {
		return apperror.NotFound("product", product.ID)
	}

	return nil
}

// Delete removes a product by ID.
// Returns apperror.ErrNotFound if no row was deleted.
func (p *ProductDB) Delete(ctx context.Context, id string) error {
	res, err := p.conn.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting product %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking delete result for product %s: %w", id, err)
	}
	if affected == 0 {
		return apperror.NotFound("product", id)
	}

	return nil
}

func encodeImages(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	b, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding images: %w", err)
	}
	return string(b), nil
}
