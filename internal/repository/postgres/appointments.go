package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/LennoxMacadangdang/caps-backend/internal/repository"
	"github.com/lib/pq"
)

type AppointmentRepository struct {
	db *sql.DB
}

func NewAppointmentRepository(db *sql.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentSelect = `SELECT a.appointment_id, a.service_id, COALESCE(s.service_name, ''), a.status_id,
	COALESCE(st.status_name, ''), a.date::text, a.time_id, w.time, a.car_size, a.price,
	COALESCE(a."paymentMethod", ''), a."paymentProof", COALESCE(a."vehicleBrand", ''),
	COALESCE(a."vehicleModel", ''), COALESCE(a."vehicleColor", ''), a.reply_id, a.created_at
	FROM appointments a
	LEFT JOIN services s ON s.service_id = a.service_id
	LEFT JOIN appointment_status st ON st.status_id = a.status_id
	LEFT JOIN working_hours w ON w.time_id = a.time_id`

func scanAppointment(row interface{ Scan(...any) error }) (*domain.Appointment, error) {
	var (
		a          domain.Appointment
		statusID   int
		statusName string
		date       sql.NullString
		timeID     sql.NullInt64
		slot       sql.NullString
		carSize    string
		proof      sql.NullString
		replyID    sql.NullInt32
	)
	if err := row.Scan(&a.ID, &a.ServiceID, &a.ServiceName, &statusID, &statusName, &date, &timeID, &slot,
		&carSize, &a.Price, &a.PaymentMethod, &proof, &a.VehicleBrand, &a.VehicleModel, &a.VehicleColor,
		&replyID, &a.CreatedAt); err != nil {
		return nil, err
	}

	status, ok := domain.ParseAppointmentStatus(statusID)
	if !ok {
		return nil, fmt.Errorf("appointment %d: unknown status_id %d", a.ID, statusID)
	}
	a.Status = status
	a.StatusName = status.String()
	a.CarSize = domain.CarSizeOf(carSize)
	if date.Valid {
		a.Date = &date.String
	}
	if timeID.Valid {
		a.TimeID = &timeID.Int64
	}
	if slot.Valid {
		a.Time = &slot.String
	}
	if proof.Valid {
		a.PaymentProof = &proof.String
	}
	if replyID.Valid {
		id := int(replyID.Int32)
		a.ReplyID = &id
	}
	return &a, nil
}

func (r *AppointmentRepository) GetAppointment(ctx context.Context, id int64) (*domain.Appointment, error) {
	a, err := scanAppointment(r.db.QueryRowContext(ctx, appointmentSelect+` WHERE a.appointment_id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query appointment: %w", err)
	}
	return a, nil
}

func (r *AppointmentRepository) ListByStatus(ctx context.Context, statuses ...domain.AppointmentStatus) ([]*domain.Appointment, error) {
	ids := make([]int64, 0, len(statuses)+1)
	for _, s := range statuses {
		ids = append(ids, int64(s))
		if s == domain.StatusCompleted {
			ids = append(ids, 3)
		}
	}

	rows, err := r.db.QueryContext(ctx,
		appointmentSelect+` WHERE a.status_id = ANY($1) ORDER BY a.date ASC NULLS LAST, a.appointment_id`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var out []*domain.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id int64, from domain.AppointmentStatus, upd domain.AppointmentUpdate) (*domain.Appointment, error) {
	var reply sql.NullInt32
	if upd.ReplyID != nil {
		reply = sql.NullInt32{Int32: int32(*upd.ReplyID), Valid: true}
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE appointments SET
		    status_id = $3,
		    reply_id  = COALESCE($4::smallint, reply_id),
		    date      = CASE WHEN $5::boolean THEN NULL ELSE date END,
		    time_id   = CASE WHEN $5::boolean THEN NULL ELSE time_id END
		 WHERE appointment_id = $1 AND status_id = $2`,
		id, int(from), int(upd.Status), reply, upd.ClearSchedule)
	if err != nil {
		return nil, fmt.Errorf("update appointment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update appointment %d: %w", id, err)
	}

	a, err := r.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, repository.ErrStatusChanged
	}
	return a, nil
}

func (r *AppointmentRepository) GetWorkingHour(ctx context.Context, timeID int64) (string, error) {
	var slot string
	err := r.db.QueryRowContext(ctx, `SELECT time FROM working_hours WHERE time_id = $1`, timeID).Scan(&slot)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrWorkingHourNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query working hour: %w", err)
	}
	return slot, nil
}

func (r *AppointmentRepository) InsertHistory(ctx context.Context, entry domain.HistoryEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO history_appointments (appointment_id, date, time) VALUES ($1, $2::date, $3)`,
		entry.AppointmentID, entry.Date, entry.Time)
	if err != nil {
		return fmt.Errorf("insert history appointment: %w", err)
	}
	return nil
}
