package notify

import "time"

// Type tags a notification variant.
type Type string

const (
	TypeAppointmentBooked    Type = "appointment_booked"
	TypeAppointmentCancelled Type = "appointment_cancelled"
	TypeAppointmentUpdated   Type = "appointment_updated"
	TypePrescriptionReady    Type = "prescription_ready"
)

// AppointmentData carries the appointment fields a notification references.
// Each variant fills only the fields it needs; there is no free-form payload.
type AppointmentData struct {
	AppointmentID string    `dynamodbav:"appointmentId" json:"appointment_id"`
	DoctorName    string    `dynamodbav:"doctorName,omitempty" json:"doctor_name,omitempty"`
	PatientName   string    `dynamodbav:"patientName,omitempty" json:"patient_name,omitempty"`
	ScheduledAt   time.Time `dynamodbav:"scheduledAt,omitempty" json:"scheduled_at,omitempty"`
	Status        string    `dynamodbav:"status,omitempty" json:"status,omitempty"`
}

// PrescriptionData carries the prescription fields a notification references.
type PrescriptionData struct {
	AppointmentID  string `dynamodbav:"appointmentId" json:"appointment_id"`
	PrescriptionID string `dynamodbav:"prescriptionId" json:"prescription_id"`
}

// Notification is one entry on a user's notification feed.
type Notification struct {
	ID           string            `dynamodbav:"id" json:"id"`
	UserID       string            `dynamodbav:"userId" json:"user_id"`
	Type         Type              `dynamodbav:"type" json:"type"`
	Title        string            `dynamodbav:"title" json:"title"`
	Body         string            `dynamodbav:"body" json:"body"`
	Appointment  *AppointmentData  `dynamodbav:"appointment,omitempty" json:"appointment,omitempty"`
	Prescription *PrescriptionData `dynamodbav:"prescription,omitempty" json:"prescription,omitempty"`
	Read         bool              `dynamodbav:"read" json:"read"`
	CreatedAt    time.Time         `dynamodbav:"createdAt" json:"created_at"`
}
