package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository"
	"github.com/lib/pq"
)

type InventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

const productColumns = `product_id, name, price, stock, COALESCE(category_id, 0)`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CategoryID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *InventoryRepository) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	out := make(map[int64]*domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE product_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *InventoryRepository) ListProducts(ctx context.Context, categoryID int64) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	var args []any
	if categoryID != 0 {
		query += ` WHERE category_id = $1`
		args = append(args, categoryID)
	}
	query += ` ORDER BY product_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const serviceSelect = `SELECT s.service_id, s.service_name, s.small, s.medium, s.large, s.xlarge, s.xxlarge,
	COALESCE(c.category_name, '')
	FROM services s LEFT JOIN services_category c ON c.category_id = s.category_id`

func scanService(row interface{ Scan(...any) error }) (*domain.Service, error) {
	var (
		s      domain.Service
		prices [5]sql.NullFloat64
	)
	if err := row.Scan(&s.ID, &s.Name, &prices[0], &prices[1], &prices[2], &prices[3], &prices[4], &s.Category); err != nil {
		return nil, err
	}
	s.Active = true
	s.Pricing = map[domain.SizeTier]float64{}
	for i, tier := range domain.SizeTiers() {
		if prices[i].Valid {
			s.Pricing[tier] = prices[i].Float64
		}
	}
	return &s, nil
}

func (r *InventoryRepository) GetServices(ctx context.Context, ids []int64) (map[int64]*domain.Service, error) {
	out := make(map[int64]*domain.Service, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, serviceSelect+` WHERE s.service_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("fetch services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out[s.ID] = s
	}
	return out, rows.Err()
}

func (r *InventoryRepository) ListServices(ctx context.Context) ([]*domain.Service, error) {
	rows, err := r.db.QueryContext(ctx, serviceSelect+` ORDER BY s.service_id`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []*domain.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (r *InventoryRepository) GetServiceLinks(ctx context.Context, serviceIDs []int64) ([]domain.ServiceProductLink, error) {
	if len(serviceIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT service_id, product_id, quantity, variant_id FROM service_products
		 WHERE service_id = ANY($1) ORDER BY id`, pq.Array(serviceIDs))
	if err != nil {
		return nil, fmt.Errorf("fetch service products: %w", err)
	}
	defer rows.Close()

	var links []domain.ServiceProductLink
	for rows.Next() {
		var (
			l       domain.ServiceProductLink
			variant int
		)
		if err := rows.Scan(&l.ServiceID, &l.ProductID, &l.QuantityPerUnit, &variant); err != nil {
			return nil, fmt.Errorf("scan service product: %w", err)
		}
		tier, ok := domain.SizeTierFromVariant(variant)
		if !ok {
			continue
		}
		l.Variant = tier
		links = append(links, l)
	}
	return links, rows.Err()
}

// ApplyStock decrements every product inside one transaction. A write that
// would take stock below zero rolls the whole batch back, so the returned
// count is either zero or len(writes).
func (r *InventoryRepository) ApplyStock(ctx context.Context, writes []repository.StockWrite) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin stock transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, w := range writes {
		var left int
		err := tx.QueryRowContext(ctx,
			`UPDATE products SET stock = stock - $2 WHERE product_id = $1 AND stock >= $2 RETURNING stock`,
			w.ProductID, w.Quantity).Scan(&left)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, &repository.StockWriteError{ProductID: w.ProductID, Err: repository.ErrInsufficientStock}
		}
		if err != nil {
			return 0, &repository.StockWriteError{ProductID: w.ProductID, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit stock transaction: %w", err)
	}
	return len(writes), nil
}

func (r *InventoryRepository) Atomic() bool { return true }
