package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queueReader replays its messages and then reports io.EOF, which stops Run.
type queueReader struct {
	msgs   []kafka.Message
	closed bool
}

func (r *queueReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *queueReader) Close() error {
	r.closed = true
	return nil
}

func message(t *testing.T, e Event) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(e.Payload)
	require.NoError(t, err)
	return kafka.Message{
		Key:     []byte(e.Key),
		Value:   raw,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(e.Type)}},
	}
}

type seen struct {
	types    []string
	payloads []any
}

func (s *seen) handle(_ context.Context, eventType string, payload any) error {
	s.types = append(s.types, eventType)
	s.payloads = append(s.payloads, payload)
	return nil
}

func TestConsumer_DecodesBothEventTypes(t *testing.T) {
	order := &domain.Order{ID: 9, TotalAmount: 450, TotalQuantity: 3, PaymentMethod: "gcash"}
	appt := &domain.Appointment{ID: 4, ServiceID: 2, CarSize: domain.SizeMedium}
	r := &queueReader{msgs: []kafka.Message{
		message(t, NewOrderPlaced(order)),
		message(t, NewAppointmentCompleted(appt, time.Now())),
	}}
	s := &seen{}
	c := &Consumer{reader: r, handler: s.handle}

	c.Run(context.Background())

	assert.Equal(t, []string{TypeOrderPlaced, TypeAppointmentCompleted}, s.types)
	placed, ok := s.payloads[0].(*OrderPlaced)
	require.True(t, ok)
	assert.Equal(t, int64(9), placed.OrderID)
	assert.Equal(t, 450.0, placed.TotalAmount)
	completed, ok := s.payloads[1].(*AppointmentCompleted)
	require.True(t, ok)
	assert.Equal(t, domain.SizeMedium, completed.CarSize)
}

func TestConsumer_SkipsBadMessages(t *testing.T) {
	good := message(t, NewOrderPlaced(&domain.Order{ID: 1}))
	r := &queueReader{msgs: []kafka.Message{
		{Value: []byte(`{}`)},
		{Value: []byte(`not json`), Headers: []kafka.Header{{Key: "event_type", Value: []byte(TypeOrderPlaced)}}},
		good,
	}}
	s := &seen{}
	c := &Consumer{reader: r, handler: s.handle}

	c.Run(context.Background())

	assert.Equal(t, []string{TypeOrderPlaced}, s.types)
}

func TestConsumer_HandlerErrorDoesNotStop(t *testing.T) {
	r := &queueReader{msgs: []kafka.Message{
		message(t, NewOrderPlaced(&domain.Order{ID: 1})),
		message(t, NewOrderPlaced(&domain.Order{ID: 2})),
	}}
	calls := 0
	c := &Consumer{reader: r, handler: func(context.Context, string, any) error {
		calls++
		return errors.New("boom")
	}}

	c.Run(context.Background())
	assert.Equal(t, 2, calls)
}

func TestConsumer_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &queueReader{msgs: []kafka.Message{message(t, NewOrderPlaced(&domain.Order{ID: 1}))}}
	s := &seen{}
	c := &Consumer{reader: r, handler: s.handle}

	c.Run(ctx)
	assert.Empty(t, s.types)

	require.NoError(t, c.Close())
	assert.True(t, r.closed)
}
