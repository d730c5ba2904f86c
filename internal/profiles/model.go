package profiles

import (
	"strings"
	"time"
)

// Patient is a patient profile document.
type Patient struct {
	ID        string    `dynamodbav:"id" json:"id"`
	Name      string    `dynamodbav:"name" json:"name"`
	Email     string    `dynamodbav:"email,omitempty" json:"email,omitempty"`
	Phone     string    `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	Age       int       `dynamodbav:"age,omitempty" json:"age,omitempty"`
	Gender    string    `dynamodbav:"gender,omitempty" json:"gender,omitempty"`
	CreatedAt time.Time `dynamodbav:"createdAt" json:"created_at"`
}

// Doctor is a doctor profile document. Online and LastSeen are mirrored from
// the availability record so doctor listings stay a single read.
type Doctor struct {
	ID              string    `dynamodbav:"id" json:"id"`
	Name            string    `dynamodbav:"name" json:"name"`
	Email           string    `dynamodbav:"email,omitempty" json:"email,omitempty"`
	Specialization  string    `dynamodbav:"specialization,omitempty" json:"specialization,omitempty"`
	ConsultationFee float64   `dynamodbav:"consultationFee,omitempty" json:"consultation_fee,omitempty"`
	Rating          float64   `dynamodbav:"rating,omitempty" json:"rating,omitempty"`
	Online          bool      `dynamodbav:"online" json:"online"`
	LastSeen        time.Time `dynamodbav:"lastSeen,omitempty" json:"last_seen,omitempty"`
	CreatedAt       time.Time `dynamodbav:"createdAt" json:"created_at"`
}

// CreatePatientRequest is the request body for registering a patient.
type CreatePatientRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

// Validate checks required fields.
func (r *CreatePatientRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if r.Email == "" && r.Phone == "" {
		return ErrMissingContact
	}
	return nil
}

// CreateDoctorRequest is the request body for registering a doctor.
type CreateDoctorRequest struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Specialization  string  `json:"specialization"`
	ConsultationFee float64 `json:"consultation_fee"`
}

// Validate checks required fields.
func (r *CreateDoctorRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.Specialization) == "" {
		return ErrMissingSpecialization
	}
	return nil
}
