package http

import (
	"context"
	"net/http"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
)

type Appointments interface {
	ListUpcoming(ctx context.Context) ([]*domain.Appointment, error)
	ListHistory(ctx context.Context) ([]*domain.Appointment, error)
	Complete(ctx context.Context, id int64) (*domain.Appointment, error)
	Cancel(ctx context.Context, id int64) (*domain.Appointment, error)
	Reject(ctx context.Context, id int64, replyID int) (*domain.Appointment, error)
}

type AppointmentsHandler struct {
	appointments Appointments
	timeout      time.Duration
}

func NewAppointmentsHandler(appointments Appointments, timeout time.Duration) *AppointmentsHandler {
	return &AppointmentsHandler{appointments: appointments, timeout: timeout}
}

type UpcomingResponse struct {
	Upcoming []*domain.Appointment `json:"upcoming_appointments"`
}

type HistoryResponse struct {
	History []*domain.Appointment `json:"history_appointments"`
}

type CompletedResponse struct {
	Message     string              `json:"message"`
	Appointment *domain.Appointment `json:"appointment"`
}

type CancelledResponse struct {
	Message   string                `json:"message"`
	Cancelled []*domain.Appointment `json:"cancelled"`
}

type RejectedResponse struct {
	Message  string                `json:"message"`
	Rejected []*domain.Appointment `json:"rejected"`
}

type RejectRequest struct {
	ReplyID int `json:"reply_id"`
}

// GET /getAllUpcomingAppointments
func (h *AppointmentsHandler) ListUpcoming(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.appointments.ListUpcoming(ctx)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, UpcomingResponse{Upcoming: nonNil(list)})
}

// GET /getAllHistoryAppointments
func (h *AppointmentsHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	list, err := h.appointments.ListHistory(ctx)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, HistoryResponse{History: nonNil(list)})
}

// PUT /updateAppointmentStatus/{id} and PUT /approveAppointment/{id}
func (h *AppointmentsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	a, err := h.appointments.Complete(ctx, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CompletedResponse{
		Message:     "Appointment completed and stock deducted successfully",
		Appointment: a,
	})
}

// PUT /cancelAppointment/{id}
func (h *AppointmentsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	a, err := h.appointments.Cancel(ctx, id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CancelledResponse{
		Message:   "Appointment cancelled successfully",
		Cancelled: []*domain.Appointment{a},
	})
}

// PUT /rejectAppointment/{id}
func (h *AppointmentsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := idParam(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req RejectRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	a, err := h.appointments.Reject(ctx, id, req.ReplyID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, RejectedResponse{
		Message:  "Appointment rejected successfully",
		Rejected: []*domain.Appointment{a},
	})
}

func nonNil(list []*domain.Appointment) []*domain.Appointment {
	if list == nil {
		return []*domain.Appointment{}
	}
	return list
}
