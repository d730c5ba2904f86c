package booking

import (
	"errors"
	"strings"
	"time"
)

// AppointmentStatus is the appointment lifecycle state.
type AppointmentStatus string

const (
	StatusPending    AppointmentStatus = "pending"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in-progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no-show"
)

// ConsultationType distinguishes how the consultation happens.
type ConsultationType string

const (
	TypeVideo  ConsultationType = "video"
	TypeChat   ConsultationType = "chat"
	TypeClinic ConsultationType = "clinic"
)

// PaymentStatus tracks the payment sub-state.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

var (
	// ErrInvalidTransition is returned for a disallowed status change.
	ErrInvalidTransition = errors.New("booking: invalid status transition")

	// ErrDoctorUnavailable is returned when the doctor cannot take a booking.
	ErrDoctorUnavailable = errors.New("booking: doctor not available for booking")

	// ErrAppointmentNotFound is returned when the appointment does not exist.
	ErrAppointmentNotFound = errors.New("booking: appointment not found")

	// ErrMissingField is returned when a booking request lacks required fields.
	ErrMissingField = errors.New("booking: missing required field")
)

// transitions lists the allowed lifecycle moves. Terminal states have none.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusNoShow:     {},
}

// CanTransition reports whether from → to is an allowed lifecycle move.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Payment is the appointment's payment sub-state.
type Payment struct {
	Status PaymentStatus `dynamodbav:"status" json:"status"`
	Amount float64       `dynamodbav:"amount,omitempty" json:"amount,omitempty"`
	Method string        `dynamodbav:"method,omitempty" json:"method,omitempty"`
}

// Prescription is written by the doctor after the consultation.
type Prescription struct {
	ID       string    `dynamodbav:"id" json:"id"`
	Text     string    `dynamodbav:"text" json:"text"`
	IssuedAt time.Time `dynamodbav:"issuedAt" json:"issued_at"`
}

// Meeting carries the external video-call URL. The platform does not host
// calls itself.
type Meeting struct {
	URL string `dynamodbav:"url" json:"url"`
}

// Appointment is a booked consultation. Patient and doctor display fields are
// snapshotted at booking time, not live references. Appointments are never
// hard-deleted; cancellation is a status change.
type Appointment struct {
	ID                   string            `dynamodbav:"id" json:"id"`
	PatientID            string            `dynamodbav:"patientId" json:"patient_id"`
	PatientName          string            `dynamodbav:"patientName" json:"patient_name"`
	DoctorID             string            `dynamodbav:"doctorId" json:"doctor_id"`
	DoctorName           string            `dynamodbav:"doctorName" json:"doctor_name"`
	DoctorSpecialization string            `dynamodbav:"doctorSpecialization,omitempty" json:"doctor_specialization,omitempty"`
	SessionID            string            `dynamodbav:"sessionId,omitempty" json:"session_id,omitempty"`
	Type                 ConsultationType  `dynamodbav:"type" json:"type"`
	ScheduledAt          time.Time         `dynamodbav:"scheduledAt" json:"scheduled_at"`
	Status               AppointmentStatus `dynamodbav:"status" json:"status"`
	Payment              Payment           `dynamodbav:"payment" json:"payment"`
	Notes                string            `dynamodbav:"notes,omitempty" json:"notes,omitempty"`
	Prescription         *Prescription     `dynamodbav:"prescription,omitempty" json:"prescription,omitempty"`
	Meeting              *Meeting          `dynamodbav:"meeting,omitempty" json:"meeting,omitempty"`
	CreatedAt            time.Time         `dynamodbav:"createdAt" json:"created_at"`
	UpdatedAt            time.Time         `dynamodbav:"updatedAt" json:"updated_at"`
}

// BookingRequest is the input to BookConsultation.
type BookingRequest struct {
	PatientID   string           `json:"patient_id"`
	DoctorID    string           `json:"doctor_id"`
	SessionID   string           `json:"session_id,omitempty"`
	Type        ConsultationType `json:"type"`
	ScheduledAt time.Time        `json:"scheduled_at"`
	Notes       string           `json:"notes"`
}

// Validate checks required fields.
func (r *BookingRequest) Validate() error {
	if strings.TrimSpace(r.PatientID) == "" || strings.TrimSpace(r.DoctorID) == "" {
		return ErrMissingField
	}
	switch r.Type {
	case TypeVideo, TypeChat, TypeClinic:
	case "":
		r.Type = TypeVideo
	default:
		return ErrMissingField
	}
	return nil
}
