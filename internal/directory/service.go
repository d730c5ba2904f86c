package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teleseva/teleseva-platform/internal/profiles"
	"github.com/teleseva/teleseva-platform/internal/realtime"
	"github.com/teleseva/teleseva-platform/pkg/logging"
)

var directoryTracer = otel.Tracer("teleseva.internal.directory")

// Publisher broadcasts availability snapshots; implemented by the Redis client.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload string) error
}

// Service projects doctor presence into the availability store and mirrors it
// onto the doctor profile for single-read listings.
type Service struct {
	store     *Store
	profiles  profiles.Repository
	publisher Publisher
	logger    *logging.Logger
}

// NewService builds the directory service. The publisher is optional; without
// it availability changes are simply not broadcast.
func NewService(store *Store, repo profiles.Repository, publisher Publisher, logger *logging.Logger) *Service {
	if store == nil {
		panic("directory: store cannot be nil")
	}
	if repo == nil {
		panic("directory: profiles repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:     store,
		profiles:  repo,
		publisher: publisher,
		logger:    logger,
	}
}

// SetOnlineStatus upserts the doctor's availability record and mirrors the
// presence onto the profile document. The availability write happens first;
// a mirror failure is surfaced so the caller can retry.
func (s *Service) SetOnlineStatus(ctx context.Context, doctorID string, online bool, status Status) error {
	ctx, span := directoryTracer.Start(ctx, "directory.set_online_status")
	defer span.End()
	span.SetAttributes(attribute.String("teleseva.doctor_id", doctorID), attribute.Bool("teleseva.online", online))

	if !online {
		status = StatusOffline
	} else if status == "" {
		status = StatusAvailable
	}

	now := time.Now().UTC()
	record := &Availability{
		DoctorID:        doctorID,
		Online:          online,
		Status:          status,
		CurrentPatients: 0,
		MaxPatients:     DefaultMaxPatients,
		LastSeen:        now,
	}
	if err := s.store.Put(ctx, record); err != nil {
		span.RecordError(err)
		return err
	}

	if err := s.profiles.SetDoctorPresence(ctx, doctorID, online, now); err != nil {
		span.RecordError(err)
		return fmt.Errorf("directory: availability written but profile mirror failed: %w", err)
	}

	s.logger.Info("doctor presence updated", "doctor_id", doctorID, "online", online, "status", status)
	s.broadcast(ctx)
	return nil
}

// Heartbeat bumps the doctor's LastSeen so the sweeper keeps them online.
func (s *Service) Heartbeat(ctx context.Context, doctorID string) error {
	return s.store.Touch(ctx, doctorID)
}

// UpdateStatus sets the status directly, used for away/busy transitions. It
// does not validate against the patient counter.
func (s *Service) UpdateStatus(ctx context.Context, doctorID string, status Status) error {
	if err := s.store.UpdateStatus(ctx, doctorID, status); err != nil {
		return err
	}
	s.broadcast(ctx)
	return nil
}

// IncrementPatientCount reserves one consultation slot. The doctor's status is
// derived from the new count: busy at capacity, otherwise available.
func (s *Service) IncrementPatientCount(ctx context.Context, doctorID string) error {
	ctx, span := directoryTracer.Start(ctx, "directory.increment_patients")
	defer span.End()

	record, err := s.store.IncrementPatients(ctx, doctorID)
	if err != nil {
		span.RecordError(err)
		return err
	}
	return s.applyDerivedStatus(ctx, record)
}

// DecrementPatientCount releases one consultation slot.
func (s *Service) DecrementPatientCount(ctx context.Context, doctorID string) error {
	ctx, span := directoryTracer.Start(ctx, "directory.decrement_patients")
	defer span.End()

	record, err := s.store.DecrementPatients(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrNoPatients) {
			// Compensation after a failed booking may race a cancel; a zero
			// counter is already the desired state.
			s.logger.Warn("decrement skipped: patient count already zero", "doctor_id", doctorID)
			return nil
		}
		span.RecordError(err)
		return err
	}
	return s.applyDerivedStatus(ctx, record)
}

func (s *Service) applyDerivedStatus(ctx context.Context, record *Availability) error {
	derived := StatusOffline
	switch {
	case record.AtCapacity():
		derived = StatusBusy
	case record.Online:
		derived = StatusAvailable
	}

	if derived != record.Status {
		if err := s.store.UpdateStatus(ctx, record.DoctorID, derived); err != nil {
			return err
		}
	}
	s.broadcast(ctx)
	return nil
}

// AvailableDoctors returns online doctors, most recently seen first.
func (s *Service) AvailableDoctors(ctx context.Context) ([]Availability, error) {
	return s.store.QueryOnline(ctx)
}

// Availability returns a single doctor's record.
func (s *Service) Availability(ctx context.Context, doctorID string) (*Availability, error) {
	return s.store.Get(ctx, doctorID)
}

// IsAvailableForBooking reports whether a booking may start right now. A
// missing record counts as unavailable rather than an error.
func (s *Service) IsAvailableForBooking(ctx context.Context, doctorID string) (bool, error) {
	record, err := s.store.Get(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrAvailabilityNotFound) {
			return false, nil
		}
		return false, err
	}
	return record.BookableNow(), nil
}

// broadcast publishes the full available-doctors snapshot. Failures are
// logged; live updates are best-effort.
func (s *Service) broadcast(ctx context.Context) {
	if s.publisher == nil {
		return
	}
	doctors, err := s.store.QueryOnline(ctx)
	if err != nil {
		s.logger.Warn("failed to build availability snapshot", "error", err)
		return
	}
	payload, err := json.Marshal(doctors)
	if err != nil {
		s.logger.Warn("failed to encode availability snapshot", "error", err)
		return
	}
	if err := s.publisher.Publish(ctx, realtime.ChannelDoctors, string(payload)); err != nil {
		s.logger.Warn("failed to publish availability snapshot", "error", err)
	}
}
