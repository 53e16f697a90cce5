// Package orders turns a validated sale into a persisted order and serves
// the order history.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LennoxMacadangdang/caps-backend/internal/apperr"
	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository"
	"github.com/LennoxMacadangdang/caps-backend/internal/stock"
)

// Payment is what the buyer supplied alongside the lines.
type Payment struct {
	Method          string
	ReferenceNumber string
	ProofURL        *string
}

type Service struct {
	repo repository.OrderRepository
}

func NewService(repo repository.OrderRepository) *Service {
	return &Service{repo: repo}
}

// Build prices every line of plan from the catalog rows it was validated
// against. Nothing is persisted.
func Build(plan *stock.Plan, pay Payment) *domain.Order {
	order := &domain.Order{
		ReferenceNumber: pay.ReferenceNumber,
		PaymentMethod:   pay.Method,
		PaymentProofURL: pay.ProofURL,
		ItemDetails:     make([]domain.OrderItem, 0, len(plan.Lines)),
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = domain.DefaultPaymentMethod
	}

	text := make([]string, 0, len(plan.Lines))
	for _, line := range plan.Lines {
		item := domain.OrderItem{ID: line.ID, Type: line.Type, Size: line.Size, Quantity: line.Quantity}
		switch line.Type {
		case domain.ItemProduct:
			p := plan.Products[line.ID]
			item.Name, item.UnitPrice = p.Name, p.Price
			text = append(text, fmt.Sprintf("Product: %s x%d @ ₱%v", item.Name, item.Quantity, item.UnitPrice))
		case domain.ItemService:
			svc := plan.Services[line.ID]
			price, _ := svc.PriceFor(line.Size)
			item.Name, item.UnitPrice = svc.Name, price
			text = append(text, fmt.Sprintf("Service: %s (%s) x%d @ ₱%v", item.Name, item.Size, item.Quantity, item.UnitPrice))
		}
		order.ItemDetails = append(order.ItemDetails, item)
		order.TotalQuantity += item.Quantity
		order.TotalAmount += item.Subtotal()
	}
	order.ItemsText = strings.Join(text, "\n")
	return order
}

// Create persists order and returns the stored row with its id and date.
func (s *Service) Create(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	saved, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, apperr.Upstream(err, "Failed to create order")
	}
	return saved, nil
}

func (s *Service) List(ctx context.Context) ([]*domain.Order, error) {
	orders, err := s.repo.ListOrders(ctx)
	if err != nil {
		return nil, apperr.Upstream(err, "Failed to fetch orders")
	}
	return orders, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, apperr.NotFound("Order %d not found", id)
	}
	if err != nil {
		return nil, apperr.Upstream(err, "Failed to fetch order")
	}
	return order, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.DeleteOrder(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return apperr.NotFound("Order %d not found", id)
	}
	if err != nil {
		return apperr.Upstream(err, "Failed to delete order")
	}
	return nil
}
