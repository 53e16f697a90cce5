package orders

import (
	"context"
	"fmt"

	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/events"
	"github.com/LennoxMacadangdang/caps-backend/internal/logger"
	"github.com/LennoxMacadangdang/caps-backend/internal/metrics"
	"go.uber.org/zap"
)

// Ledger tallies placed orders and completed appointments seen on the event
// topic into the sales metrics.
type Ledger struct {
	metrics *metrics.Metrics
}

func NewLedger(m *metrics.Metrics) *Ledger {
	return &Ledger{metrics: m}
}

// Handle has the events.Handler signature.
func (l *Ledger) Handle(ctx context.Context, eventType string, payload any) error {
	log := logger.FromContext(ctx)
	switch e := payload.(type) {
	case *events.OrderPlaced:
		method := e.PaymentMethod
		if method == "" {
			method = domain.DefaultPaymentMethod
		}
		l.metrics.Sale(method, e.TotalAmount)
		log.Info("order placed",
			zap.Int64("order_id", e.OrderID),
			zap.Float64("total_amount", e.TotalAmount),
			zap.String("payment_method", method),
		)
	case *events.AppointmentCompleted:
		log.Info("appointment completed",
			zap.Int64("appointment_id", e.AppointmentID),
			zap.Int64("service_id", e.ServiceID),
			zap.String("car_size", string(e.CarSize)),
		)
	default:
		return fmt.Errorf("unexpected payload %T for %s", payload, eventType)
	}
	l.metrics.EventConsumed(eventType)
	return nil
}
