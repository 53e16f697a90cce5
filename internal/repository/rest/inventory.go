// Package rest implements the repositories on top of Supabase PostgREST.
package rest

import (
	"context"
	"fmt"

	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository"
	"github.com/LennoxMacadangdang/caps-backend/internal/supabase"
)

type productRow struct {
	ProductID  int64   `json:"product_id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Stock      int     `json:"stock"`
	CategoryID *int64  `json:"category_id"`
}

func (r productRow) toDomain() *domain.Product {
	p := &domain.Product{ID: r.ProductID, Name: r.Name, Price: r.Price, Stock: r.Stock}
	if r.CategoryID != nil {
		p.CategoryID = *r.CategoryID
	}
	return p
}

// serviceRow keeps one nullable price column per size tier.
type serviceRow struct {
	ServiceID int64    `json:"service_id"`
	Name      string   `json:"service_name"`
	Small     *float64 `json:"small"`
	Medium    *float64 `json:"medium"`
	Large     *float64 `json:"large"`
	XLarge    *float64 `json:"xlarge"`
	XXLarge   *float64 `json:"xxlarge"`
	Category  *struct {
		Name string `json:"category_name"`
	} `json:"services_category,omitempty"`
}

func (r serviceRow) toDomain() *domain.Service {
	s := &domain.Service{ID: r.ServiceID, Name: r.Name, Pricing: map[domain.SizeTier]float64{}, Active: true}
	cols := map[domain.SizeTier]*float64{
		domain.SizeSmall:   r.Small,
		domain.SizeMedium:  r.Medium,
		domain.SizeLarge:   r.Large,
		domain.SizeXLarge:  r.XLarge,
		domain.SizeXXLarge: r.XXLarge,
	}
	for tier, price := range cols {
		if price != nil {
			s.Pricing[tier] = *price
		}
	}
	if r.Category != nil {
		s.Category = r.Category.Name
	}
	return s
}

type linkRow struct {
	ServiceID int64 `json:"service_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	VariantID int   `json:"variant_id"`
}

type InventoryRepository struct {
	client *supabase.Client
}

func NewInventoryRepository(client *supabase.Client) *InventoryRepository {
	return &InventoryRepository{client: client}
}

func (r *InventoryRepository) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	out := make(map[int64]*domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []productRow
	q := supabase.From("products").Select("*").In("product_id", ids)
	if err := r.client.Select(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("fetch products: %w", err)
	}
	for _, row := range rows {
		out[row.ProductID] = row.toDomain()
	}
	return out, nil
}

// ListProducts returns every product when categoryID is zero.
func (r *InventoryRepository) ListProducts(ctx context.Context, categoryID int64) ([]*domain.Product, error) {
	var rows []productRow
	q := supabase.From("products").Select("*").Order("product_id", true)
	if categoryID != 0 {
		q.Eq("category_id", categoryID)
	}
	if err := r.client.Select(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products := make([]*domain.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toDomain())
	}
	return products, nil
}

func (r *InventoryRepository) GetServices(ctx context.Context, ids []int64) (map[int64]*domain.Service, error) {
	out := make(map[int64]*domain.Service, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []serviceRow
	q := supabase.From("services").Select("*").In("service_id", ids)
	if err := r.client.Select(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("fetch services: %w", err)
	}
	for _, row := range rows {
		out[row.ServiceID] = row.toDomain()
	}
	return out, nil
}

func (r *InventoryRepository) ListServices(ctx context.Context) ([]*domain.Service, error) {
	var rows []serviceRow
	q := supabase.From("services").Select("*,services_category(category_name)").Order("service_id", true)
	if err := r.client.Select(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	services := make([]*domain.Service, 0, len(rows))
	for _, row := range rows {
		services = append(services, row.toDomain())
	}
	return services, nil
}

// GetServiceLinks skips rows whose variant_id does not name a size tier.
func (r *InventoryRepository) GetServiceLinks(ctx context.Context, serviceIDs []int64) ([]domain.ServiceProductLink, error) {
	if len(serviceIDs) == 0 {
		return nil, nil
	}
	var rows []linkRow
	q := supabase.From("service_products").Select("service_id,product_id,quantity,variant_id").In("service_id", serviceIDs)
	if err := r.client.Select(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("fetch service products: %w", err)
	}
	links := make([]domain.ServiceProductLink, 0, len(rows))
	for _, row := range rows {
		tier, ok := domain.SizeTierFromVariant(row.VariantID)
		if !ok {
			continue
		}
		links = append(links, domain.ServiceProductLink{
			ServiceID:       row.ServiceID,
			ProductID:       row.ProductID,
			QuantityPerUnit: row.Quantity,
			Variant:         tier,
		})
	}
	return links, nil
}

// ApplyStock writes each product with a compare-and-swap PATCH filtered on
// the expected stock. PostgREST has no multi-request transaction, so writes
// before a failure stay committed.
func (r *InventoryRepository) ApplyStock(ctx context.Context, writes []repository.StockWrite) (int, error) {
	for i, w := range writes {
		var rows []productRow
		q := supabase.From("products").Eq("product_id", w.ProductID).Eq("stock", w.Expected)
		patch := map[string]int{"stock": w.Expected - w.Quantity}
		if err := r.client.Update(ctx, q, patch, &rows); err != nil {
			return i, &repository.StockWriteError{ProductID: w.ProductID, Err: err}
		}
		if len(rows) == 0 {
			return i, &repository.StockWriteError{ProductID: w.ProductID, Err: repository.ErrStockChanged}
		}
	}
	return len(writes), nil
}

func (r *InventoryRepository) Atomic() bool { return false }
