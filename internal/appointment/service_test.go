package appointment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/LennoxMacadangdang/caps-backend/internal/apperr"
	"github.com/LennoxMacadangdang/caps-backend/internal/catalog"
	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/events"
	"github.com/LennoxMacadangdang/caps-backend/internal/metrics"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository/memory"
	"github.com/LennoxMacadangdang/caps-backend/internal/stock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func ptr[T any](v T) *T { return &v }

func setup(t *testing.T) (*Service, *memory.Store, *recordingPublisher) {
	t.Helper()
	s := memory.NewStore()
	s.SetProduct(domain.Product{ID: 6, Name: "Shampoo", Stock: 2})
	s.SetProduct(domain.Product{ID: 7, Name: "Tire Black", Stock: 20})
	s.SetService(domain.Service{ID: 1, Name: "Wash", Pricing: map[domain.SizeTier]float64{
		domain.SizeLarge: 300, domain.SizeXLarge: 350,
	}})
	s.AddLink(domain.ServiceProductLink{ServiceID: 1, ProductID: 6, QuantityPerUnit: 1, Variant: domain.SizeLarge})
	s.AddLink(domain.ServiceProductLink{ServiceID: 1, ProductID: 7, QuantityPerUnit: 2, Variant: domain.SizeLarge})
	s.SetWorkingHour(2, "10:00 AM")

	s.PutAppointment(domain.Appointment{
		ID: 1, ServiceID: 1, Status: domain.StatusUpcoming, CarSize: domain.SizeLarge,
		Date: ptr("2024-06-01"), TimeID: ptr(int64(2)), Price: 300,
	})

	m := metrics.New("test")
	pub := &recordingPublisher{}
	d := stock.NewDeductor(catalog.NewService(s, 0), s, m)
	return NewService(s, d, pub, m), s, pub
}

func status(t *testing.T, s *memory.Store, id int64) domain.AppointmentStatus {
	t.Helper()
	a, err := s.GetAppointment(context.Background(), id)
	require.NoError(t, err)
	return a.Status
}

func TestComplete(t *testing.T) {
	svc, s, pub := setup(t)

	done, err := svc.Complete(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.Equal(t, "completed", done.StatusName)

	assert.Equal(t, 1, s.Stock(6))
	assert.Equal(t, 18, s.Stock(7))

	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, int64(1), history[0].AppointmentID)
	assert.Equal(t, "2024-06-01", *history[0].Date)
	assert.Equal(t, "10:00 AM", *history[0].Time)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeAppointmentCompleted, pub.events[0].Type)
	assert.Equal(t, "1", pub.events[0].Key)
}

func TestComplete_InsufficientStockRevertsClaim(t *testing.T) {
	svc, s, pub := setup(t)
	s.SetStock(6, 0)

	_, err := svc.Complete(context.Background(), 1)
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))
	assert.Equal(t, "Insufficient stock for Shampoo", apperr.Message(err))

	assert.Equal(t, domain.StatusUpcoming, status(t, s, 1))
	assert.Equal(t, 20, s.Stock(7))
	assert.Empty(t, s.History())
	assert.Empty(t, pub.events)
}

func TestComplete_PartialDeductionKeepsCompleted(t *testing.T) {
	svc, s, pub := setup(t)
	s.FailStockWriteAt(2, errors.New("connection reset"))

	_, err := svc.Complete(context.Background(), 1)
	var partial *stock.PartialDeductionError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Applied, 1)

	assert.Equal(t, domain.StatusCompleted, status(t, s, 1))
	deducted6, deducted7 := s.Stock(6) == 1, s.Stock(7) == 18
	assert.True(t, deducted6 != deducted7, "exactly one product deducted")
	assert.Empty(t, s.History())
	assert.Empty(t, pub.events)

	_, err = svc.Complete(context.Background(), 1)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
	assert.Equal(t, deducted6, s.Stock(6) == 1)
	assert.Equal(t, deducted7, s.Stock(7) == 18)
}

func TestComplete_NoLinksForCarSize(t *testing.T) {
	svc, s, _ := setup(t)
	s.PutAppointment(domain.Appointment{ID: 2, ServiceID: 1, Status: domain.StatusUpcoming, CarSize: domain.SizeXLarge})

	_, err := svc.Complete(context.Background(), 2)
	assert.Equal(t, apperr.KindNoProductConfiguration, apperr.KindOf(err))
	assert.Equal(t, "No product configuration for xlarge size", apperr.Message(err))
	assert.Equal(t, domain.StatusUpcoming, status(t, s, 2))
}

func TestComplete_MissingWorkingHourChangesNothing(t *testing.T) {
	svc, s, _ := setup(t)
	s.PutAppointment(domain.Appointment{
		ID: 3, ServiceID: 1, Status: domain.StatusUpcoming, CarSize: domain.SizeLarge, TimeID: ptr(int64(99)),
	})

	_, err := svc.Complete(context.Background(), 3)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, domain.StatusUpcoming, status(t, s, 3))
	assert.Equal(t, 2, s.Stock(6))
}

func TestComplete_InvalidCarSize(t *testing.T) {
	svc, s, _ := setup(t)
	s.PutAppointment(domain.Appointment{ID: 4, ServiceID: 1, Status: domain.StatusUpcoming, CarSize: "huge"})

	_, err := svc.Complete(context.Background(), 4)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	assert.Equal(t, domain.StatusUpcoming, status(t, s, 4))
}

func TestTransitions_OnlyFromUpcoming(t *testing.T) {
	ctx := context.Background()
	for _, from := range []domain.AppointmentStatus{domain.StatusCompleted, domain.StatusRejected, domain.StatusCancelled} {
		t.Run(from.String(), func(t *testing.T) {
			svc, s, _ := setup(t)
			s.PutAppointment(domain.Appointment{ID: 1, ServiceID: 1, Status: from, CarSize: domain.SizeLarge})

			_, err := svc.Complete(ctx, 1)
			assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
			_, err = svc.Cancel(ctx, 1)
			assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
			_, err = svc.Reject(ctx, 1, 1)
			assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))

			assert.Equal(t, from, status(t, s, 1))
			assert.Equal(t, 2, s.Stock(6))
		})
	}
}

func TestTransitions_NotFound(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Complete(ctx, 404)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, "Appointment not found", apperr.Message(err))
	_, err = svc.Cancel(ctx, 404)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = svc.Reject(ctx, 404, 2)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCancel_ClearsSchedule(t *testing.T) {
	svc, s, _ := setup(t)

	a, err := svc.Cancel(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, a.Status)
	assert.Nil(t, a.Date)
	assert.Nil(t, a.TimeID)
	assert.Equal(t, 2, s.Stock(6))

	_, err = svc.Cancel(context.Background(), 1)
	assert.Equal(t, apperr.KindInvalidTransition, apperr.KindOf(err))
}

func TestReject(t *testing.T) {
	tests := []struct {
		name        string
		reply       int
		keepsSlot   bool
		invalidArgs bool
	}{
		{name: "reply 1 keeps slot", reply: 1, keepsSlot: true},
		{name: "reply 2 keeps slot", reply: 2, keepsSlot: true},
		{name: "reply 3 clears slot", reply: 3},
		{name: "reply 0", reply: 0, invalidArgs: true},
		{name: "reply 4", reply: 4, invalidArgs: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, s, _ := setup(t)
			a, err := svc.Reject(context.Background(), 1, tt.reply)
			if tt.invalidArgs {
				assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
				assert.Equal(t, domain.StatusUpcoming, status(t, s, 1))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.StatusRejected, a.Status)
			require.NotNil(t, a.ReplyID)
			assert.Equal(t, tt.reply, *a.ReplyID)
			if tt.keepsSlot {
				assert.Equal(t, "2024-06-01", *a.Date)
			} else {
				assert.Nil(t, a.Date)
				assert.Nil(t, a.TimeID)
			}
		})
	}
}

func TestComplete_ConcurrentRequestsDeductOnce(t *testing.T) {
	svc, s, _ := setup(t)
	s.SetStock(6, 10)

	var wg sync.WaitGroup
	var ok, rejected atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Complete(context.Background(), 1)
			switch {
			case err == nil:
				ok.Add(1)
			case apperr.KindOf(err) == apperr.KindInvalidTransition:
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(7), rejected.Load())
	assert.Equal(t, 9, s.Stock(6))
	assert.Equal(t, 18, s.Stock(7))
	assert.Len(t, s.History(), 1)
}

func TestListings(t *testing.T) {
	svc, s, _ := setup(t)
	ctx := context.Background()
	s.PutAppointment(domain.Appointment{ID: 2, ServiceID: 1, Status: domain.StatusUpcoming, Date: ptr("2024-05-01")})
	s.PutAppointment(domain.Appointment{ID: 3, ServiceID: 1, Status: domain.StatusCompleted, Date: ptr("2024-04-01")})
	s.PutAppointment(domain.Appointment{ID: 4, ServiceID: 1, Status: domain.StatusRejected, Date: ptr("2024-03-01")})
	s.PutAppointment(domain.Appointment{ID: 5, ServiceID: 1, Status: domain.StatusCancelled})

	upcoming, err := svc.ListUpcoming(ctx)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, int64(2), upcoming[0].ID)
	assert.Equal(t, "Wash", upcoming[0].ServiceName)

	history, err := svc.ListHistory(ctx)
	require.NoError(t, err)
	ids := make([]int64, len(history))
	for i, a := range history {
		ids[i] = a.ID
	}
	assert.Equal(t, []int64{3}, ids)
}

func TestListUpcoming_EmptyIsNotNil(t *testing.T) {
	svc, _, _ := setup(t)
	_, err := svc.Cancel(context.Background(), 1)
	require.NoError(t, err)

	upcoming, err := svc.ListUpcoming(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, upcoming)
	assert.Empty(t, upcoming)
}
