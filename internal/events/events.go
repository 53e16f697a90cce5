// Package events publishes domain events to Kafka after a sale or an
// appointment completes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	TypeOrderPlaced          = "order.placed"
	TypeAppointmentCompleted = "appointment.completed"
)

type Event struct {
	Type    string
	Key     string
	Payload any
}

type OrderPlaced struct {
	OrderID       int64              `json:"order_id"`
	TotalAmount   float64            `json:"total_amount"`
	TotalQuantity int                `json:"total_quantity"`
	PaymentMethod string             `json:"payment_method"`
	Items         []domain.OrderItem `json:"items"`
	PlacedAt      time.Time          `json:"placed_at"`
}

type AppointmentCompleted struct {
	AppointmentID int64           `json:"appointment_id"`
	ServiceID     int64           `json:"service_id"`
	CarSize       domain.SizeTier `json:"car_size"`
	CompletedAt   time.Time       `json:"completed_at"`
}

func NewOrderPlaced(o *domain.Order) Event {
	return Event{
		Type: TypeOrderPlaced,
		Key:  fmt.Sprint(o.ID),
		Payload: OrderPlaced{
			OrderID:       o.ID,
			TotalAmount:   o.TotalAmount,
			TotalQuantity: o.TotalQuantity,
			PaymentMethod: o.PaymentMethod,
			Items:         o.ItemDetails,
			PlacedAt:      o.OrderDate,
		},
	}
}

func NewAppointmentCompleted(a *domain.Appointment, at time.Time) Event {
	return Event{
		Type: TypeAppointmentCompleted,
		Key:  fmt.Sprint(a.ID),
		Payload: AppointmentCompleted{
			AppointmentID: a.ID,
			ServiceID:     a.ServiceID,
			CarSize:       a.CarSize,
			CompletedAt:   at,
		},
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

// Publish keys the message by aggregate id so events for one order or
// appointment stay ordered within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", e.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(e.Key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                        { return nil }
