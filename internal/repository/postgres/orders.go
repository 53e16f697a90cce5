package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `order_id, order_date, COALESCE(reference_number, ''), total_quantity, total_amount,
	items, item_details, payment_method, payment_proof`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var (
		o       domain.Order
		details []byte
		proof   sql.NullString
	)
	if err := row.Scan(&o.ID, &o.OrderDate, &o.ReferenceNumber, &o.TotalQuantity, &o.TotalAmount,
		&o.ItemsText, &details, &o.PaymentMethod, &proof); err != nil {
		return nil, err
	}
	if proof.Valid {
		o.PaymentProofURL = &proof.String
	}
	if err := json.Unmarshal(details, &o.ItemDetails); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	return &o, nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	details, err := json.Marshal(order.ItemDetails)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order items: %w", err)
	}

	var ref sql.NullString
	if order.ReferenceNumber != "" {
		ref = sql.NullString{String: order.ReferenceNumber, Valid: true}
	}

	query := `INSERT INTO orders (order_date, reference_number, total_quantity, total_amount, items, item_details, payment_method, payment_proof)
	          VALUES (COALESCE($1, NOW()), $2, $3, $4, $5, $6, $7, $8)
	          RETURNING ` + orderColumns

	var date sql.NullTime
	if !order.OrderDate.IsZero() {
		date = sql.NullTime{Time: order.OrderDate, Valid: true}
	}

	created, err := scanOrder(r.db.QueryRowContext(ctx, query,
		date, ref, order.TotalQuantity, order.TotalAmount, order.ItemsText, details,
		order.PaymentMethod, order.PaymentProofURL))
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return created, nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY order_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *OrderRepository) DeleteOrder(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE order_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if n == 0 {
		return repository.ErrOrderNotFound
	}
	return nil
}
