package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teleseva/teleseva-platform/internal/notify"
	"github.com/teleseva/teleseva-platform/internal/observability/metrics"
	"github.com/teleseva/teleseva-platform/internal/profiles"
	"github.com/teleseva/teleseva-platform/internal/realtime"
	"github.com/teleseva/teleseva-platform/pkg/logging"
)

var bookingTracer = otel.Tracer("teleseva.internal.booking")

// AvailabilityKeeper is the slice of the directory service bookings consume.
type AvailabilityKeeper interface {
	IsAvailableForBooking(ctx context.Context, doctorID string) (bool, error)
	IncrementPatientCount(ctx context.Context, doctorID string) error
	DecrementPatientCount(ctx context.Context, doctorID string) error
}

// Notifier fans booking events out to the notification feed.
type Notifier interface {
	AppointmentBooked(ctx context.Context, evt notify.AppointmentEvent) error
	AppointmentCancelled(ctx context.Context, evt notify.AppointmentEvent, cancelledBy string) error
	AppointmentUpdated(ctx context.Context, evt notify.AppointmentEvent) error
}

// Publisher broadcasts per-user appointment snapshots.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload string) error
}

// Archiver persists completed consultations for long-term history.
type Archiver interface {
	ArchiveAppointment(ctx context.Context, appt *Appointment) error
}

// Service orchestrates the appointment lifecycle. A booking reserves doctor
// capacity before writing the appointment; if the write fails the reservation
// is released, so readers never observe a half-applied booking.
type Service struct {
	store     *Store
	directory AvailabilityKeeper
	profiles  profiles.Repository
	notifier  Notifier
	publisher Publisher
	archiver  Archiver
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
}

// ServiceOption customizes the booking service.
type ServiceOption func(*Service)

// WithNotifier wires notification fan-out.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithPublisher wires live snapshot broadcasts.
func WithPublisher(p Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithArchiver wires the completed-consultation archive.
func WithArchiver(a Archiver) ServiceOption {
	return func(s *Service) { s.archiver = a }
}

// WithMetrics wires Prometheus metrics.
func WithMetrics(m *metrics.BookingMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService builds the booking service.
func NewService(store *Store, directory AvailabilityKeeper, repo profiles.Repository, logger *logging.Logger, opts ...ServiceOption) *Service {
	if store == nil {
		panic("booking: store cannot be nil")
	}
	if directory == nil {
		panic("booking: availability keeper cannot be nil")
	}
	if repo == nil {
		panic("booking: profiles repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		store:     store,
		directory: directory,
		profiles:  repo,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BookConsultation creates an appointment:
//  1. availability check, fail fast with no writes
//  2. profile loads, fail fast with no writes
//  3. reserve doctor capacity (conditional increment)
//  4. write the appointment; on failure release the reservation
//  5. notification fan-out, best-effort
func (s *Service) BookConsultation(ctx context.Context, req BookingRequest) (*Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.book_consultation")
	defer span.End()
	span.SetAttributes(
		attribute.String("teleseva.patient_id", req.PatientID),
		attribute.String("teleseva.doctor_id", req.DoctorID),
	)

	if err := req.Validate(); err != nil {
		s.metrics.ObserveBooking("invalid")
		return nil, err
	}

	available, err := s.directory.IsAvailableForBooking(ctx, req.DoctorID)
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveBooking("error")
		return nil, err
	}
	if !available {
		s.metrics.ObserveBooking("rejected")
		return nil, ErrDoctorUnavailable
	}

	patient, err := s.profiles.GetPatient(ctx, req.PatientID)
	if err != nil {
		s.metrics.ObserveBooking("error")
		return nil, err
	}
	doctor, err := s.profiles.GetDoctor(ctx, req.DoctorID)
	if err != nil {
		s.metrics.ObserveBooking("error")
		return nil, err
	}

	if err := s.directory.IncrementPatientCount(ctx, req.DoctorID); err != nil {
		span.RecordError(err)
		s.metrics.ObserveBooking("rejected")
		return nil, ErrDoctorUnavailable
	}

	now := time.Now().UTC()
	appt := &Appointment{
		ID:                   uuid.NewString(),
		PatientID:            patient.ID,
		PatientName:          patient.Name,
		DoctorID:             doctor.ID,
		DoctorName:           doctor.Name,
		DoctorSpecialization: doctor.Specialization,
		SessionID:            req.SessionID,
		Type:                 req.Type,
		ScheduledAt:          req.ScheduledAt,
		Status:               StatusPending,
		Payment: Payment{
			Status: PaymentPending,
			Amount: doctor.ConsultationFee,
		},
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Put(ctx, appt); err != nil {
		span.RecordError(err)
		// Release the reserved slot so the doctor's counter stays correct.
		if decErr := s.directory.DecrementPatientCount(ctx, req.DoctorID); decErr != nil {
			s.logger.Error("failed to release reserved slot after booking failure",
				"error", decErr, "doctor_id", req.DoctorID)
		}
		s.metrics.ObserveBooking("error")
		return nil, err
	}

	s.metrics.ObserveBooking("ok")
	s.logger.Info("consultation booked",
		"appointment_id", appt.ID,
		"patient_id", appt.PatientID,
		"doctor_id", appt.DoctorID,
		"type", appt.Type,
	)

	s.notify(ctx, func(n Notifier) error {
		return n.AppointmentBooked(ctx, s.event(appt, patient.Email, doctor.Email))
	})
	s.broadcast(ctx, appt.PatientID, appt.DoctorID)
	return appt, nil
}

// UpdateAppointmentStatus moves an appointment through its lifecycle.
func (s *Service) UpdateAppointmentStatus(ctx context.Context, id string, to AppointmentStatus) (*Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.update_status")
	defer span.End()

	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}

	switch to {
	case StatusCancelled:
		return s.cancel(ctx, appt, "")
	case StatusCompleted:
		return s.complete(ctx, appt)
	}

	if err := s.store.UpdateStatus(ctx, id, appt.Status, to); err != nil {
		span.RecordError(err)
		return nil, err
	}
	appt.Status = to
	appt.UpdatedAt = time.Now().UTC()

	s.notify(ctx, func(n Notifier) error {
		return n.AppointmentUpdated(ctx, s.event(appt, "", ""))
	})
	s.broadcast(ctx, appt.PatientID, appt.DoctorID)
	return appt, nil
}

// CancelAppointment cancels and releases the doctor's slot. cancelledBy is
// the user ID of whoever cancelled, so the other party gets notified.
func (s *Service) CancelAppointment(ctx context.Context, id, cancelledBy string) (*Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.cancel")
	defer span.End()

	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, StatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, StatusCancelled)
	}
	return s.cancel(ctx, appt, cancelledBy)
}

// CompleteAppointment marks a consultation finished, releases the slot and
// archives the appointment.
func (s *Service) CompleteAppointment(ctx context.Context, id string) (*Appointment, error) {
	appt, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, StatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, StatusCompleted)
	}
	return s.complete(ctx, appt)
}

// AttachPrescription stores the doctor's prescription on the appointment.
func (s *Service) AttachPrescription(ctx context.Context, id, text string) (*Prescription, error) {
	rx := &Prescription{
		ID:       uuid.NewString(),
		Text:     text,
		IssuedAt: time.Now().UTC(),
	}
	if err := s.store.AttachPrescription(ctx, id, rx); err != nil {
		return nil, err
	}
	return rx, nil
}

// Appointment fetches one appointment.
func (s *Service) Appointment(ctx context.Context, id string) (*Appointment, error) {
	return s.store.Get(ctx, id)
}

// PatientAppointments lists a patient's appointments, most recent first.
func (s *Service) PatientAppointments(ctx context.Context, patientID string) ([]Appointment, error) {
	return s.store.ListByPatient(ctx, patientID)
}

// DoctorAppointments lists a doctor's appointments, most recent first.
func (s *Service) DoctorAppointments(ctx context.Context, doctorID string) ([]Appointment, error) {
	return s.store.ListByDoctor(ctx, doctorID)
}

func (s *Service) cancel(ctx context.Context, appt *Appointment, cancelledBy string) (*Appointment, error) {
	if err := s.store.UpdateStatus(ctx, appt.ID, appt.Status, StatusCancelled); err != nil {
		return nil, err
	}
	appt.Status = StatusCancelled
	appt.UpdatedAt = time.Now().UTC()

	if err := s.directory.DecrementPatientCount(ctx, appt.DoctorID); err != nil {
		s.logger.Error("failed to release slot on cancellation", "error", err, "doctor_id", appt.DoctorID)
	}

	s.metrics.ObserveCancellation()
	s.logger.Info("appointment cancelled", "appointment_id", appt.ID, "cancelled_by", cancelledBy)

	s.notify(ctx, func(n Notifier) error {
		return n.AppointmentCancelled(ctx, s.event(appt, "", ""), cancelledBy)
	})
	s.broadcast(ctx, appt.PatientID, appt.DoctorID)
	return appt, nil
}

func (s *Service) complete(ctx context.Context, appt *Appointment) (*Appointment, error) {
	if err := s.store.UpdateStatus(ctx, appt.ID, appt.Status, StatusCompleted); err != nil {
		return nil, err
	}
	appt.Status = StatusCompleted
	appt.UpdatedAt = time.Now().UTC()

	if err := s.directory.DecrementPatientCount(ctx, appt.DoctorID); err != nil {
		s.logger.Error("failed to release slot on completion", "error", err, "doctor_id", appt.DoctorID)
	}

	if s.archiver != nil {
		if err := s.archiver.ArchiveAppointment(ctx, appt); err != nil {
			s.logger.Error("failed to archive completed consultation", "error", err, "appointment_id", appt.ID)
		}
	}

	s.notify(ctx, func(n Notifier) error {
		return n.AppointmentUpdated(ctx, s.event(appt, "", ""))
	})
	s.broadcast(ctx, appt.PatientID, appt.DoctorID)
	return appt, nil
}

func (s *Service) event(appt *Appointment, patientEmail, doctorEmail string) notify.AppointmentEvent {
	return notify.AppointmentEvent{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		PatientName:   appt.PatientName,
		PatientEmail:  patientEmail,
		DoctorID:      appt.DoctorID,
		DoctorName:    appt.DoctorName,
		DoctorEmail:   doctorEmail,
		ScheduledAt:   appt.ScheduledAt,
		Status:        string(appt.Status),
	}
}

// notify runs a notification fan-out; failures are logged, never fatal.
func (s *Service) notify(ctx context.Context, fn func(Notifier) error) {
	if s.notifier == nil {
		return
	}
	if err := fn(s.notifier); err != nil {
		s.logger.Warn("notification fan-out failed", "error", err)
	}
}

// broadcast re-publishes each party's full appointment list.
func (s *Service) broadcast(ctx context.Context, userIDs ...string) {
	if s.publisher == nil {
		return
	}
	for _, userID := range userIDs {
		var (
			appointments []Appointment
			err          error
		)
		appointments, err = s.store.ListByPatient(ctx, userID)
		if err == nil && len(appointments) == 0 {
			appointments, err = s.store.ListByDoctor(ctx, userID)
		}
		if err != nil {
			s.logger.Warn("failed to build appointment snapshot", "error", err, "user_id", userID)
			continue
		}
		payload, err := json.Marshal(appointments)
		if err != nil {
			s.logger.Warn("failed to encode appointment snapshot", "error", err, "user_id", userID)
			continue
		}
		if err := s.publisher.Publish(ctx, realtime.ChannelAppointments(userID), string(payload)); err != nil {
			s.logger.Warn("failed to publish appointment snapshot", "error", err, "user_id", userID)
		}
	}
}
