package domain

import "time"

// AppointmentStatus mirrors appointments.status_id.
type AppointmentStatus int

const (
	StatusUpcoming  AppointmentStatus = 1
	StatusCompleted AppointmentStatus = 2
	StatusRejected  AppointmentStatus = 4
	StatusCancelled AppointmentStatus = 5

	// legacyCompleted was written by the old approve route.
	legacyCompleted AppointmentStatus = 3
)

// ParseAppointmentStatus normalizes a stored status id. The legacy completed
// code 3 reads as StatusCompleted.
func ParseAppointmentStatus(id int) (AppointmentStatus, bool) {
	switch s := AppointmentStatus(id); s {
	case StatusUpcoming, StatusCompleted, StatusRejected, StatusCancelled:
		return s, true
	case legacyCompleted:
		return StatusCompleted, true
	}
	return 0, false
}

func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

// CanTransitionTo holds the appointment lifecycle: only upcoming
// appointments move, and only into a terminal state.
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	return s == StatusUpcoming && next.IsTerminal()
}

func (s AppointmentStatus) String() string {
	switch s {
	case StatusUpcoming:
		return "upcoming"
	case StatusCompleted:
		return "completed"
	case StatusRejected:
		return "rejected"
	case StatusCancelled:
		return "cancelled"
	}
	return "unknown"
}

type Appointment struct {
	ID            int64             `json:"appointment_id"`
	ServiceID     int64             `json:"service_id"`
	ServiceName   string            `json:"service_name,omitempty"`
	Status        AppointmentStatus `json:"-"`
	StatusName    string            `json:"status,omitempty"`
	Date          *string           `json:"date"`
	TimeID        *int64            `json:"time_id,omitempty"`
	Time          *string           `json:"time"`
	CarSize       SizeTier          `json:"car_size"`
	Price         float64           `json:"price"`
	VehicleBrand  string            `json:"vehicleBrand,omitempty"`
	VehicleModel  string            `json:"vehicleModel,omitempty"`
	VehicleColor  string            `json:"vehicleColor,omitempty"`
	PaymentMethod string            `json:"payment_method,omitempty"`
	PaymentProof  *string           `json:"paymentProof,omitempty"`
	ReplyID       *int              `json:"reply_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// AppointmentUpdate is the set of columns a transition writes. Nil pointers
// are left untouched; ClearSchedule nulls date and time.
type AppointmentUpdate struct {
	Status        AppointmentStatus
	ReplyID       *int
	ClearSchedule bool
}

type HistoryEntry struct {
	AppointmentID int64
	Date          *string
	Time          *string
}
