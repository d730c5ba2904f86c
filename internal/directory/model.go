package directory

import "time"

// Status is a doctor's presence state as shown to patients.
type Status string

const (
	StatusAvailable      Status = "available"
	StatusBusy           Status = "busy"
	StatusAway           Status = "away"
	StatusOffline        Status = "offline"
	StatusInConsultation Status = "in-consultation"
)

// DefaultMaxPatients caps concurrent consultations per doctor.
const DefaultMaxPatients = 5

// Availability is a doctor's presence record. CurrentPatients never exceeds
// MaxPatients; at capacity the status is forced to busy.
type Availability struct {
	DoctorID        string    `dynamodbav:"doctorId" json:"doctor_id"`
	Online          bool      `dynamodbav:"online" json:"online"`
	Status          Status    `dynamodbav:"status" json:"status"`
	CurrentPatients int       `dynamodbav:"currentPatients" json:"current_patients"`
	MaxPatients     int       `dynamodbav:"maxPatients" json:"max_patients"`
	LastSeen        time.Time `dynamodbav:"lastSeen" json:"last_seen"`
}

// AtCapacity reports whether the doctor cannot take another patient.
func (a Availability) AtCapacity() bool {
	return a.CurrentPatients >= a.MaxPatients
}

// BookableNow reports whether a booking may proceed against this record.
func (a Availability) BookableNow() bool {
	return a.Online && a.Status == StatusAvailable && a.CurrentPatients < a.MaxPatients
}
