package profiles

import "errors"

var (
	// ErrInvalidName is returned when the name is missing.
	ErrInvalidName = errors.New("name is required")

	// ErrMissingContact is returned when both email and phone are missing.
	ErrMissingContact = errors.New("either email or phone is required")

	// ErrMissingSpecialization is returned when a doctor has no specialization.
	ErrMissingSpecialization = errors.New("specialization is required")

	// ErrPatientNotFound is returned when a patient profile does not exist.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrDoctorNotFound is returned when a doctor profile does not exist.
	ErrDoctorNotFound = errors.New("doctor not found")
)
