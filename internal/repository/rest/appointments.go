package rest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository"
	"github.com/LennoxMacadangdang/caps-backend/internal/supabase"
)

const appointmentColumns = `appointment_id,service_id,date,time_id,car_size,price,paymentMethod,created_at,paymentProof,vehicleBrand,vehicleModel,vehicleColor,status_id,reply_id,services:service_id(service_name),status:status_id(status_name),working_hours:time_id(time)`

type appointmentRow struct {
	AppointmentID int64     `json:"appointment_id"`
	ServiceID     int64     `json:"service_id"`
	Date          *string   `json:"date"`
	TimeID        *int64    `json:"time_id"`
	CarSize       string    `json:"car_size"`
	Price         float64   `json:"price"`
	PaymentMethod *string   `json:"paymentMethod"`
	CreatedAt     time.Time `json:"created_at"`
	PaymentProof  *string   `json:"paymentProof"`
	VehicleBrand  *string   `json:"vehicleBrand"`
	VehicleModel  *string   `json:"vehicleModel"`
	VehicleColor  *string   `json:"vehicleColor"`
	StatusID      int       `json:"status_id"`
	ReplyID       *int      `json:"reply_id"`
	Services      *struct {
		Name string `json:"service_name"`
	} `json:"services"`
	Status *struct {
		Name string `json:"status_name"`
	} `json:"status"`
	WorkingHours *struct {
		Time string `json:"time"`
	} `json:"working_hours"`
}

func (r appointmentRow) toDomain() (*domain.Appointment, error) {
	status, ok := domain.ParseAppointmentStatus(r.StatusID)
	if !ok {
		return nil, fmt.Errorf("appointment %d: unknown status_id %d", r.AppointmentID, r.StatusID)
	}
	a := &domain.Appointment{
		ID:           r.AppointmentID,
		ServiceID:    r.ServiceID,
		Status:       status,
		StatusName:   status.String(),
		Date:         r.Date,
		TimeID:       r.TimeID,
		CarSize:      domain.CarSizeOf(r.CarSize),
		Price:        r.Price,
		PaymentProof: r.PaymentProof,
		ReplyID:      r.ReplyID,
		CreatedAt:    r.CreatedAt,
	}
	a.PaymentMethod = deref(r.PaymentMethod)
	a.VehicleBrand = deref(r.VehicleBrand)
	a.VehicleModel = deref(r.VehicleModel)
	a.VehicleColor = deref(r.VehicleColor)
	if r.Services != nil {
		a.ServiceName = r.Services.Name
	}
	if r.Status != nil && r.Status.Name != "" {
		a.StatusName = r.Status.Name
	}
	if r.WorkingHours != nil {
		t := r.WorkingHours.Time
		a.Time = &t
	}
	return a, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type AppointmentRepository struct {
	client *supabase.Client
}

func NewAppointmentRepository(client *supabase.Client) *AppointmentRepository {
	return &AppointmentRepository{client: client}
}

func (r *AppointmentRepository) GetAppointment(ctx context.Context, id int64) (*domain.Appointment, error) {
	var rows []appointmentRow
	q := supabase.From("appointments").Select(appointmentColumns).Eq("appointment_id", id)
	if err := r.client.Select(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("query appointment: %w", err)
	}
	if len(rows) == 0 {
		return nil, repository.ErrAppointmentNotFound
	}
	return rows[0].toDomain()
}

// ListByStatus matches stored status ids, so asking for StatusCompleted
// also returns rows still carrying the legacy code.
func (r *AppointmentRepository) ListByStatus(ctx context.Context, statuses ...domain.AppointmentStatus) ([]*domain.Appointment, error) {
	ids := make([]int64, 0, len(statuses)+1)
	for _, s := range statuses {
		ids = append(ids, int64(s))
		if s == domain.StatusCompleted {
			ids = append(ids, 3)
		}
	}
	var rows []appointmentRow
	q := supabase.From("appointments").Select(appointmentColumns).In("status_id", ids).Order("date", true)
	if err := r.client.Select(ctx, q, &rows); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	out := make([]*domain.Appointment, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id int64, from domain.AppointmentStatus, upd domain.AppointmentUpdate) (*domain.Appointment, error) {
	patch := map[string]any{"status_id": int(upd.Status)}
	if upd.ReplyID != nil {
		patch["reply_id"] = *upd.ReplyID
	}
	if upd.ClearSchedule {
		patch["date"] = nil
		patch["time_id"] = nil
	}

	var rows []appointmentRow
	q := supabase.From("appointments").
		Select(appointmentColumns).
		Eq("appointment_id", id).
		Eq("status_id", int(from))
	if err := r.client.Update(ctx, q, patch, &rows); err != nil {
		return nil, fmt.Errorf("update appointment %d: %w", id, err)
	}
	if len(rows) > 0 {
		return rows[0].toDomain()
	}

	// nothing matched: tell a missing row from a status race
	if _, err := r.GetAppointment(ctx, id); err != nil {
		if errors.Is(err, repository.ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("recheck appointment %d: %w", id, err)
	}
	return nil, repository.ErrStatusChanged
}

func (r *AppointmentRepository) GetWorkingHour(ctx context.Context, timeID int64) (string, error) {
	var rows []struct {
		Time string `json:"time"`
	}
	q := supabase.From("working_hours").Select("time").Eq("time_id", timeID)
	if err := r.client.Select(ctx, q, &rows); err != nil {
		return "", fmt.Errorf("query working hour: %w", err)
	}
	if len(rows) == 0 {
		return "", repository.ErrWorkingHourNotFound
	}
	return rows[0].Time, nil
}

func (r *AppointmentRepository) InsertHistory(ctx context.Context, entry domain.HistoryEntry) error {
	row := map[string]any{
		"appointment_id": entry.AppointmentID,
		"date":           entry.Date,
		"time":           entry.Time,
	}
	if err := r.client.Insert(ctx, "history_appointments", row, nil); err != nil {
		return fmt.Errorf("insert history appointment: %w", err)
	}
	return nil
}
