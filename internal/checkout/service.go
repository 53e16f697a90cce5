// Package checkout turns a session's cart into a paid order: it validates
// every line, deducts stock, stores the payment proof and writes the order.
package checkout

import (
	"context"

	"github.com/LennoxMacadangdang/caps-backend/internal/apperr"
	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/events"
	"github.com/LennoxMacadangdang/caps-backend/internal/logger"
	"github.com/LennoxMacadangdang/caps-backend/internal/metrics"
	"github.com/LennoxMacadangdang/caps-backend/internal/orders"
	"github.com/LennoxMacadangdang/caps-backend/internal/payment"
	"github.com/LennoxMacadangdang/caps-backend/internal/stock"
	"go.uber.org/zap"
)

type Cart interface {
	Snapshot(ctx context.Context, sessionID string) (*domain.Cart, error)
	Clear(ctx context.Context, sessionID string) error
}

type Deductor interface {
	Prepare(ctx context.Context, lines []domain.CartLine) (*stock.Plan, error)
	Deduct(ctx context.Context, plan *stock.Plan) error
}

type ProofStore interface {
	Save(ctx context.Context, p *payment.Proof) (*string, error)
}

type OrderWriter interface {
	Create(ctx context.Context, order *domain.Order) (*domain.Order, error)
}

// Request is the checkout body. Items, when present, replace the session
// cart as the lines to sell.
type Request struct {
	Items           []domain.CartLine `json:"items"`
	PaymentMethod   string            `json:"payment_method"`
	PaymentProof    string            `json:"payment_proof"`
	ReferenceNumber string            `json:"reference_number"`
}

type Service struct {
	cart      Cart
	deductor  Deductor
	proofs    ProofStore
	orders    OrderWriter
	publisher events.Publisher
	metrics   *metrics.Metrics
}

func NewService(cart Cart, deductor Deductor, proofs ProofStore, orders OrderWriter, publisher events.Publisher, m *metrics.Metrics) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{cart: cart, deductor: deductor, proofs: proofs, orders: orders, publisher: publisher, metrics: m}
}

// Checkout validates the whole sale before touching stock. Once stock has
// been deducted a later failure is logged with what was sold, since the
// deduction is not rolled back.
func (s *Service) Checkout(ctx context.Context, sessionID string, req Request) (*domain.Order, error) {
	order, err := s.checkout(ctx, sessionID, req)
	s.metrics.Checkout(outcome(err))
	return order, err
}

func (s *Service) checkout(ctx context.Context, sessionID string, req Request) (*domain.Order, error) {
	log := logger.FromContext(ctx)

	lines, err := s.lines(ctx, sessionID, req.Items)
	if err != nil {
		return nil, err
	}

	proof, err := payment.Parse(req.PaymentProof)
	if err != nil {
		return nil, err
	}

	plan, err := s.deductor.Prepare(ctx, lines)
	if err != nil {
		return nil, err
	}
	if err := s.deductor.Deduct(ctx, plan); err != nil {
		return nil, err
	}

	url, err := s.proofs.Save(ctx, proof)
	if err != nil {
		log.Error("payment proof upload failed after stock deduction",
			zap.Any("deducted", plan.Requirements), zap.Error(err))
		return nil, err
	}

	order := orders.Build(plan, orders.Payment{
		Method:          req.PaymentMethod,
		ReferenceNumber: req.ReferenceNumber,
		ProofURL:        url,
	})
	saved, err := s.orders.Create(ctx, order)
	if err != nil {
		log.Error("order insert failed after stock deduction",
			zap.Any("deducted", plan.Requirements), zap.Error(err))
		return nil, err
	}

	if err := s.cart.Clear(ctx, sessionID); err != nil {
		log.Warn("failed to clear cart after checkout", zap.Int64("order_id", saved.ID), zap.Error(err))
	}
	if err := s.publisher.Publish(ctx, events.NewOrderPlaced(saved)); err != nil {
		log.Warn("failed to publish order event", zap.Int64("order_id", saved.ID), zap.Error(err))
	}

	log.Info("order placed",
		zap.Int64("order_id", saved.ID),
		zap.Float64("total_amount", saved.TotalAmount),
		zap.Int("total_quantity", saved.TotalQuantity))
	return saved, nil
}

func (s *Service) lines(ctx context.Context, sessionID string, items []domain.CartLine) ([]domain.CartLine, error) {
	if len(items) > 0 {
		return items, nil
	}
	c, err := s.cart.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, apperr.InvalidInput("Cart is empty")
	}
	return c.Items, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.KindOf(err))
}
