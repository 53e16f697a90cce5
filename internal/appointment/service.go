// Package appointment moves booked appointments through their lifecycle and
// consumes service-linked stock when one is completed.
package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/apperr"
	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/events"
	"github.com/LennoxMacadangdang/caps-backend/internal/logger"
	"github.com/LennoxMacadangdang/caps-backend/internal/metrics"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository"
	"github.com/LennoxMacadangdang/caps-backend/internal/stock"
	"go.uber.org/zap"
)

// ReplyRescheduleLater clears the appointment's slot when it is rejected.
const ReplyRescheduleLater = 3

type Deductor interface {
	Prepare(ctx context.Context, lines []domain.CartLine) (*stock.Plan, error)
	Deduct(ctx context.Context, plan *stock.Plan) error
}

type Service struct {
	repo      repository.AppointmentRepository
	deductor  Deductor
	publisher events.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(repo repository.AppointmentRepository, deductor Deductor, publisher events.Publisher, m *metrics.Metrics) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{repo: repo, deductor: deductor, publisher: publisher, metrics: m, now: time.Now}
}

func (s *Service) ListUpcoming(ctx context.Context) ([]*domain.Appointment, error) {
	return s.list(ctx, "Error fetching upcoming appointments", domain.StatusUpcoming)
}

// ListHistory returns completed appointments. Rejected and cancelled ones
// are not part of the service history.
func (s *Service) ListHistory(ctx context.Context) ([]*domain.Appointment, error) {
	return s.list(ctx, "Error fetching history appointments", domain.StatusCompleted)
}

func (s *Service) list(ctx context.Context, failure string, statuses ...domain.AppointmentStatus) ([]*domain.Appointment, error) {
	out, err := s.repo.ListByStatus(ctx, statuses...)
	if err != nil {
		return nil, apperr.Upstream(err, failure)
	}
	if out == nil {
		out = []*domain.Appointment{}
	}
	return out, nil
}

// Complete claims the appointment, deducts the stock its service consumes at
// the appointment's car size and records it in the history table. A failed
// deduction puts the appointment back to upcoming.
func (s *Service) Complete(ctx context.Context, id int64) (*domain.Appointment, error) {
	log := logger.FromContext(ctx).With(zap.Int64("appointment_id", id))

	appt, err := s.load(ctx, id, domain.StatusCompleted, "completed")
	if err != nil {
		s.metrics.Transition(domain.StatusCompleted.String(), outcome(err))
		return nil, err
	}
	if !appt.CarSize.Valid() {
		return nil, apperr.InvalidInput("Invalid car size")
	}
	slot, err := s.slot(ctx, appt)
	if err != nil {
		return nil, err
	}

	done, err := s.transition(ctx, id, domain.AppointmentUpdate{Status: domain.StatusCompleted}, "completed")
	if err != nil {
		return nil, err
	}

	line := domain.CartLine{ID: appt.ServiceID, Type: domain.ItemService, Size: appt.CarSize, Quantity: 1}
	if err := s.consume(ctx, line); err != nil {
		var partial *stock.PartialDeductionError
		if errors.As(err, &partial) {
			// Reopening would deduct the applied products again on retry.
			log.Error("appointment left completed after partial stock deduction",
				zap.Any("applied", partial.Applied), zap.Error(err))
			s.metrics.Transition(domain.StatusCompleted.String(), "partial")
			return nil, err
		}
		if _, rerr := s.repo.UpdateStatus(ctx, id, domain.StatusCompleted, domain.AppointmentUpdate{Status: domain.StatusUpcoming}); rerr != nil {
			log.Error("failed to return appointment to upcoming", zap.Error(rerr))
		}
		s.metrics.Transition(domain.StatusCompleted.String(), outcome(err))
		return nil, err
	}

	if err := s.repo.InsertHistory(ctx, domain.HistoryEntry{AppointmentID: id, Date: appt.Date, Time: slot}); err != nil {
		log.Error("failed to insert history appointment", zap.Error(err))
		return nil, apperr.Upstream(err, "Failed to insert history appointment")
	}

	if err := s.publisher.Publish(ctx, events.NewAppointmentCompleted(done, s.now().UTC())); err != nil {
		log.Warn("failed to publish appointment event", zap.Error(err))
	}
	s.metrics.Transition(domain.StatusCompleted.String(), "ok")
	log.Info("appointment completed", zap.Int64("service_id", appt.ServiceID), zap.String("car_size", appt.CarSize.String()))
	return done, nil
}

func (s *Service) Cancel(ctx context.Context, id int64) (*domain.Appointment, error) {
	if _, err := s.load(ctx, id, domain.StatusCancelled, "cancelled"); err != nil {
		s.metrics.Transition(domain.StatusCancelled.String(), outcome(err))
		return nil, err
	}
	return s.transition(ctx, id, domain.AppointmentUpdate{Status: domain.StatusCancelled, ClearSchedule: true}, "cancelled")
}

func (s *Service) Reject(ctx context.Context, id int64, replyID int) (*domain.Appointment, error) {
	if replyID < 1 || replyID > 3 {
		return nil, apperr.InvalidInput("Invalid reply_id. Allowed values are 1, 2, or 3.")
	}
	if _, err := s.load(ctx, id, domain.StatusRejected, "rejected"); err != nil {
		s.metrics.Transition(domain.StatusRejected.String(), outcome(err))
		return nil, err
	}
	upd := domain.AppointmentUpdate{
		Status:        domain.StatusRejected,
		ReplyID:       &replyID,
		ClearSchedule: replyID == ReplyRescheduleLater,
	}
	return s.transition(ctx, id, upd, "rejected")
}

// load fetches the appointment and checks it can still move to next.
func (s *Service) load(ctx context.Context, id int64, next domain.AppointmentStatus, verb string) (*domain.Appointment, error) {
	appt, err := s.repo.GetAppointment(ctx, id)
	if errors.Is(err, repository.ErrAppointmentNotFound) {
		return nil, apperr.NotFound("Appointment not found")
	}
	if err != nil {
		return nil, apperr.Upstream(err, "Error fetching appointment")
	}
	if !appt.Status.CanTransitionTo(next) {
		return nil, apperr.New(apperr.KindInvalidTransition, "Only upcoming appointments can be %s", verb)
	}
	return appt, nil
}

// transition writes upd only if the appointment is still upcoming, so two
// concurrent requests cannot both move it.
func (s *Service) transition(ctx context.Context, id int64, upd domain.AppointmentUpdate, verb string) (*domain.Appointment, error) {
	if !domain.StatusUpcoming.CanTransitionTo(upd.Status) {
		return nil, apperr.New(apperr.KindInvalidTransition, "Appointments cannot be %s", verb)
	}
	appt, err := s.repo.UpdateStatus(ctx, id, domain.StatusUpcoming, upd)
	switch {
	case errors.Is(err, repository.ErrAppointmentNotFound):
		err = apperr.NotFound("Appointment not found")
	case errors.Is(err, repository.ErrStatusChanged):
		err = apperr.New(apperr.KindInvalidTransition, "Only upcoming appointments can be %s", verb)
	case err != nil:
		err = apperr.Upstream(err, "Error updating appointment")
	}
	if err != nil {
		s.metrics.Transition(upd.Status.String(), outcome(err))
		return nil, err
	}
	if upd.Status != domain.StatusCompleted {
		s.metrics.Transition(upd.Status.String(), "ok")
	}
	return appt, nil
}

func (s *Service) slot(ctx context.Context, appt *domain.Appointment) (*string, error) {
	if appt.TimeID == nil {
		return appt.Time, nil
	}
	t, err := s.repo.GetWorkingHour(ctx, *appt.TimeID)
	if errors.Is(err, repository.ErrWorkingHourNotFound) {
		return nil, apperr.NotFound("Working hour not found")
	}
	if err != nil {
		return nil, apperr.Upstream(err, "Error fetching working hour")
	}
	return &t, nil
}

func (s *Service) consume(ctx context.Context, line domain.CartLine) error {
	plan, err := s.deductor.Prepare(ctx, []domain.CartLine{line})
	if err != nil {
		return err
	}
	return s.deductor.Deduct(ctx, plan)
}

func outcome(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindInvalidTransition:
		return "invalid_transition"
	case apperr.KindInsufficientStock:
		return "insufficient_stock"
	default:
		return "error"
	}
}
