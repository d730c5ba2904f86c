package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// AppointmentEvent carries the denormalized fields notifications reference.
type AppointmentEvent struct {
	AppointmentID string
	PatientID     string
	PatientName   string
	PatientEmail  string
	DoctorID      string
	DoctorName    string
	DoctorEmail   string
	ScheduledAt   time.Time
	Status        string
}

// Service fans appointment events out to notification records and optional
// emails. Email failures are logged, never fatal.
type Service struct {
	store  Store
	email  EmailSender
	logger *logging.Logger
}

// NewService builds the notification service. Email sender is optional.
func NewService(store Store, email EmailSender, logger *logging.Logger) *Service {
	if store == nil {
		panic("notify: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:  store,
		email:  email,
		logger: logger,
	}
}

// AppointmentBooked records one notification per party.
func (s *Service) AppointmentBooked(ctx context.Context, evt AppointmentEvent) error {
	when := evt.ScheduledAt.Format("Mon, 02 Jan 2006 15:04 MST")

	patientNote := s.build(evt.PatientID, TypeAppointmentBooked,
		"Appointment booked",
		fmt.Sprintf("Your consultation with %s is booked for %s.", evt.DoctorName, when),
		evt,
	)
	doctorNote := s.build(evt.DoctorID, TypeAppointmentBooked,
		"New appointment",
		fmt.Sprintf("%s booked a consultation with you for %s.", evt.PatientName, when),
		evt,
	)

	if err := s.put(ctx, patientNote, doctorNote); err != nil {
		return err
	}

	s.sendEmail(ctx, evt.PatientEmail, evt.PatientName, patientNote)
	s.sendEmail(ctx, evt.DoctorEmail, evt.DoctorName, doctorNote)
	return nil
}

// AppointmentCancelled notifies the party who did not cancel.
func (s *Service) AppointmentCancelled(ctx context.Context, evt AppointmentEvent, cancelledBy string) error {
	var note *Notification
	var email, name string

	if cancelledBy == evt.PatientID {
		note = s.build(evt.DoctorID, TypeAppointmentCancelled,
			"Appointment cancelled",
			fmt.Sprintf("%s cancelled their consultation.", evt.PatientName),
			evt,
		)
		email, name = evt.DoctorEmail, evt.DoctorName
	} else {
		note = s.build(evt.PatientID, TypeAppointmentCancelled,
			"Appointment cancelled",
			fmt.Sprintf("%s cancelled your consultation.", evt.DoctorName),
			evt,
		)
		email, name = evt.PatientEmail, evt.PatientName
	}

	if err := s.put(ctx, note); err != nil {
		return err
	}
	s.sendEmail(ctx, email, name, note)
	return nil
}

// AppointmentUpdated notifies the patient of a status change.
func (s *Service) AppointmentUpdated(ctx context.Context, evt AppointmentEvent) error {
	note := s.build(evt.PatientID, TypeAppointmentUpdated,
		"Appointment updated",
		fmt.Sprintf("Your consultation with %s is now %s.", evt.DoctorName, evt.Status),
		evt,
	)
	return s.put(ctx, note)
}

// PrescriptionReady notifies the patient that a prescription is available.
func (s *Service) PrescriptionReady(ctx context.Context, patientID, appointmentID, prescriptionID string) error {
	note := &Notification{
		ID:     uuid.NewString(),
		UserID: patientID,
		Type:   TypePrescriptionReady,
		Title:  "Prescription ready",
		Body:   "Your prescription from the consultation is ready to view.",
		Prescription: &PrescriptionData{
			AppointmentID:  appointmentID,
			PrescriptionID: prescriptionID,
		},
		CreatedAt: time.Now().UTC(),
	}
	return s.put(ctx, note)
}

// ListByUser returns a user's notifications, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Notification, error) {
	return s.store.ListByUser(ctx, userID)
}

// MarkRead flips the read flag.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	return s.store.MarkRead(ctx, id)
}

// CountUnread counts a user's unread notifications.
func (s *Service) CountUnread(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

func (s *Service) build(userID string, typ Type, title, body string, evt AppointmentEvent) *Notification {
	return &Notification{
		ID:     uuid.NewString(),
		UserID: userID,
		Type:   typ,
		Title:  title,
		Body:   body,
		Appointment: &AppointmentData{
			AppointmentID: evt.AppointmentID,
			DoctorName:    evt.DoctorName,
			PatientName:   evt.PatientName,
			ScheduledAt:   evt.ScheduledAt,
			Status:        evt.Status,
		},
		CreatedAt: time.Now().UTC(),
	}
}

func (s *Service) put(ctx context.Context, notes ...*Notification) error {
	for _, note := range notes {
		if err := s.store.Put(ctx, note); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) sendEmail(ctx context.Context, to, name string, note *Notification) {
	if s.email == nil || to == "" {
		return
	}
	err := s.email.Send(ctx, EmailMessage{
		To:      to,
		ToName:  name,
		Subject: note.Title,
		Body:    note.Body,
	})
	if err != nil {
		s.logger.Warn("notification email failed", "error", err, "to", to, "type", note.Type)
	}
}
