package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/LennoxMacadangdang/caps-backend/internal/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler receives one decoded event. Payload is *OrderPlaced or
// *AppointmentCompleted.
type Handler func(ctx context.Context, eventType string, payload any) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads the event topic in a consumer group and hands each event to
// a Handler. Undecodable messages are logged and skipped.
type Consumer struct {
	reader  messageReader
	handler Handler
}

func NewConsumer(topic, groupID string, handler Handler, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: reader, handler: handler}
}

// Run blocks until ctx is cancelled or the reader is closed.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.processMessage(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			logger.FromContext(ctx).Warn("event consumer", zap.Error(err))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) processMessage(ctx context.Context) error {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}

	eventType := header(m, "event_type")
	payload, err := decode(eventType, m.Value)
	if err != nil {
		return fmt.Errorf("offset %d: %w", m.Offset, err)
	}
	if err := c.handler(ctx, eventType, payload); err != nil {
		return fmt.Errorf("handle %s %s: %w", eventType, m.Key, err)
	}
	return nil
}

func decode(eventType string, raw []byte) (any, error) {
	var payload any
	switch eventType {
	case TypeOrderPlaced:
		payload = &OrderPlaced{}
	case TypeAppointmentCompleted:
		payload = &AppointmentCompleted{}
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return payload, nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
