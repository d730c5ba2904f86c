package profiles

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines profile storage for patients and doctors.
type Repository interface {
	CreatePatient(ctx context.Context, req *CreatePatientRequest) (*Patient, error)
	GetPatient(ctx context.Context, id string) (*Patient, error)
	CreateDoctor(ctx context.Context, req *CreateDoctorRequest) (*Doctor, error)
	GetDoctor(ctx context.Context, id string) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	SetDoctorPresence(ctx context.Context, doctorID string, online bool, lastSeen time.Time) error
}

// InMemoryRepository implements Repository with in-memory maps. Used in tests
// and local development without DynamoDB.
type InMemoryRepository struct {
	mu       sync.RWMutex
	patients map[string]*Patient
	doctors  map[string]*Doctor
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		patients: make(map[string]*Patient),
		doctors:  make(map[string]*Doctor),
	}
}

// CreatePatient registers a patient profile.
func (r *InMemoryRepository) CreatePatient(_ context.Context, req *CreatePatientRequest) (*Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	patient := &Patient{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Age:       req.Age,
		Gender:    req.Gender,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.patients[patient.ID] = patient
	r.mu.Unlock()

	return patient, nil
}

// GetPatient retrieves a patient by ID.
func (r *InMemoryRepository) GetPatient(_ context.Context, id string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	patient, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	clone := *patient
	return &clone, nil
}

// CreateDoctor registers a doctor profile. Doctors start offline.
func (r *InMemoryRepository) CreateDoctor(_ context.Context, req *CreateDoctorRequest) (*Doctor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	doctor := &Doctor{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Email:           req.Email,
		Specialization:  req.Specialization,
		ConsultationFee: req.ConsultationFee,
		Online:          false,
		CreatedAt:       time.Now().UTC(),
	}

	r.mu.Lock()
	r.doctors[doctor.ID] = doctor
	r.mu.Unlock()

	return doctor, nil
}

// GetDoctor retrieves a doctor by ID.
func (r *InMemoryRepository) GetDoctor(_ context.Context, id string) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doctor, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	clone := *doctor
	return &clone, nil
}

// ListDoctors returns all doctor profiles.
func (r *InMemoryRepository) ListDoctors(_ context.Context) ([]Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doctors := make([]Doctor, 0, len(r.doctors))
	for _, d := range r.doctors {
		doctors = append(doctors, *d)
	}
	return doctors, nil
}

// SetDoctorPresence mirrors online state onto the doctor profile.
func (r *InMemoryRepository) SetDoctorPresence(_ context.Context, doctorID string, online bool, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doctor, ok := r.doctors[doctorID]
	if !ok {
		return ErrDoctorNotFound
	}
	doctor.Online = online
	doctor.LastSeen = lastSeen
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
