package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository"
	"github.com/LennoxMacadangdang/caps-backend/internal/supabase"
)

const orderColumns = "order_id,order_date,reference_number,total_quantity,total_amount,items,item_details,payment_method,payment_proof"

type orderRow struct {
	OrderID         int64           `json:"order_id,omitempty"`
	OrderDate       time.Time       `json:"order_date"`
	ReferenceNumber *string         `json:"reference_number"`
	TotalQuantity   int             `json:"total_quantity"`
	TotalAmount     float64         `json:"total_amount"`
	Items           string          `json:"items"`
	ItemDetails     json.RawMessage `json:"item_details"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentProof    *string         `json:"payment_proof"`
}

func newOrderRow(o *domain.Order) (*orderRow, error) {
	details, err := json.Marshal(o.ItemDetails)
	if err != nil {
		return nil, fmt.Errorf("marshal item details: %w", err)
	}
	row := &orderRow{
		OrderDate:     o.OrderDate,
		TotalQuantity: o.TotalQuantity,
		TotalAmount:   o.TotalAmount,
		Items:         o.ItemsText,
		ItemDetails:   details,
		PaymentMethod: o.PaymentMethod,
		PaymentProof:  o.PaymentProofURL,
	}
	if o.ReferenceNumber != "" {
		ref := o.ReferenceNumber
		row.ReferenceNumber = &ref
	}
	return row, nil
}

func (r orderRow) toDomain() (*domain.Order, error) {
	o := &domain.Order{
		ID:              r.OrderID,
		OrderDate:       r.OrderDate,
		TotalQuantity:   r.TotalQuantity,
		TotalAmount:     r.TotalAmount,
		ItemsText:       r.Items,
		PaymentMethod:   r.PaymentMethod,
		PaymentProofURL: r.PaymentProof,
	}
	if r.ReferenceNumber != nil {
		o.ReferenceNumber = *r.ReferenceNumber
	}
	items, err := decodeItemDetails(r.ItemDetails)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", r.OrderID, err)
	}
	o.ItemDetails = items
	return o, nil
}

// decodeItemDetails accepts both a JSON array and a JSON string holding the
// array, which is how older rows were written.
func decodeItemDetails(raw json.RawMessage) ([]domain.OrderItem, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("unmarshal item details: %w", err)
		}
		raw = []byte(s)
	}
	var items []domain.OrderItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("unmarshal item details: %w", err)
	}
	return items, nil
}

type OrderRepository struct {
	client *supabase.Client
}

func NewOrderRepository(client *supabase.Client) *OrderRepository {
	return &OrderRepository{client: client}
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	row, err := newOrderRow(order)
	if err != nil {
		return nil, err
	}
	var rows []orderRow
	if err := r.client.Insert(ctx, "orders", row, &rows); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert order: no row returned")
	}
	return rows[0].toDomain()
}

func (r *OrderRepository) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var rows []orderRow
	q := supabase.From("orders").Select(orderColumns).Eq("order_id", id)
	if err := r.client.Select(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrOrderNotFound
	}
	return rows[0].toDomain()
}

func (r *OrderRepository) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	var rows []orderRow
	q := supabase.From("orders").Select(orderColumns).Order("order_date", false)
	if err := r.client.Select(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders := make([]*domain.Order, 0, len(rows))
	for _, row := range rows {
		o, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (r *OrderRepository) DeleteOrder(ctx context.Context, id int64) error {
	var rows []struct {
		OrderID int64 `json:"order_id"`
	}
	if err := r.client.Delete(ctx, supabase.From("orders").Eq("order_id", id), &rows); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if len(rows) == 0 {
		return repository.ErrOrderNotFound
	}
	return nil
}
