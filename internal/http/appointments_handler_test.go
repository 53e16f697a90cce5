package http

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/LennoxMacadangdang/caps-backend/internal/apperr"
	"github.com/LennoxMacadangdang/caps-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAppointmentsRouter(m *AppointmentsMock) http.Handler {
	return NewAppointmentsRouter(RouterConfig{Service: "appointments"}, NewAppointmentsHandler(m, 5*time.Second))
}

func TestListUpcomingAppointments(t *testing.T) {
	date, slot := "2024-06-01", "10:00 AM"
	m := &AppointmentsMock{upcoming: []*domain.Appointment{{
		ID: 1, ServiceName: "Wash", StatusName: "upcoming", Date: &date, Time: &slot,
		CarSize: domain.SizeLarge, Price: 300, PaymentMethod: "cash",
	}}}
	rec := do(t, newAppointmentsRouter(m), "GET", "/getAllUpcomingAppointments", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Upcoming []map[string]any `json:"upcoming_appointments"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Upcoming, 1)
	a := resp.Upcoming[0]
	assert.Equal(t, float64(1), a["appointment_id"])
	assert.Equal(t, "Wash", a["service_name"])
	assert.Equal(t, "upcoming", a["status"])
	assert.Equal(t, "10:00 AM", a["time"])
	assert.Equal(t, "large", a["car_size"])
	assert.Equal(t, "cash", a["payment_method"])
}

func TestListHistoryAppointments(t *testing.T) {
	m := &AppointmentsMock{history: []*domain.Appointment{{ID: 2, StatusName: "completed"}, {ID: 3, StatusName: "completed"}}}
	rec := do(t, newAppointmentsRouter(m), "GET", "/getAllHistoryAppointments", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HistoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.History, 2)
}

func TestCompleteAppointment_BothRoutes(t *testing.T) {
	for _, path := range []string{"/updateAppointmentStatus/7", "/approveAppointment/7"} {
		t.Run(path, func(t *testing.T) {
			m := &AppointmentsMock{}
			rec := do(t, newAppointmentsRouter(m), "PUT", path, "", nil)

			require.Equal(t, http.StatusOK, rec.Code)
			var resp CompletedResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, "Appointment completed and stock deducted successfully", resp.Message)
			assert.Equal(t, int64(7), resp.Appointment.ID)
			assert.Equal(t, []string{"complete"}, m.calls)
		})
	}
}

func TestCompleteAppointment_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not upcoming", apperr.New(apperr.KindInvalidTransition, "Only upcoming appointments can be completed"), http.StatusBadRequest},
		{"missing", apperr.NotFound("Appointment not found"), http.StatusNotFound},
		{"stock", apperr.InsufficientStock("Shampoo"), http.StatusBadRequest},
		{"no configuration", apperr.NoProductConfiguration("xlarge"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newAppointmentsRouter(&AppointmentsMock{err: tt.err}), "PUT", "/updateAppointmentStatus/1", "", nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, apperr.Message(tt.err), decodeError(t, rec).Error)
		})
	}
}

func TestCancelAppointment(t *testing.T) {
	m := &AppointmentsMock{}
	rec := do(t, newAppointmentsRouter(m), "PUT", "/cancelAppointment/3", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp CancelledResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Appointment cancelled successfully", resp.Message)
	require.Len(t, resp.Cancelled, 1)
	assert.Equal(t, int64(3), resp.Cancelled[0].ID)
}

func TestRejectAppointment(t *testing.T) {
	m := &AppointmentsMock{}
	rec := do(t, newAppointmentsRouter(m), "PUT", "/rejectAppointment/4", `{"reply_id":3}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, m.replyID)
	var resp RejectedResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Appointment rejected successfully", resp.Message)
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, 3, *resp.Rejected[0].ReplyID)
}

func TestRejectAppointment_BadInput(t *testing.T) {
	m := &AppointmentsMock{}
	router := newAppointmentsRouter(m)

	rec := do(t, router, "PUT", "/rejectAppointment/4", `{"reply_id":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, "PUT", "/rejectAppointment/zero", `{"reply_id":1}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, m.calls)
}

func TestAppointmentsRouter_EmptyListingAndNoSession(t *testing.T) {
	rec := do(t, newAppointmentsRouter(&AppointmentsMock{}), "GET", "/getAllUpcomingAppointments", "", nil)
	assert.Empty(t, rec.Result().Cookies())
	assert.JSONEq(t, `{"upcoming_appointments":[]}`, rec.Body.String())
}
