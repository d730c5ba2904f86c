package archive

import (
	"context"
	"strings"
	"time"

	"github.com/teleseva/teleseva-platform/internal/booking"
	"github.com/teleseva/teleseva-platform/internal/triage"
	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// SessionSource reads symptom-checker sessions for transcript capture.
type SessionSource interface {
	Session(ctx context.Context, sessionID string) (*triage.Session, error)
}

// Recorder turns completed appointments into archived consultations. When the
// appointment carries a symptom-checker session ID, the session transcript
// and summary are archived with it.
type Recorder struct {
	store    *Store
	sessions SessionSource
	logger   *logging.Logger
}

// NewRecorder creates a consultation recorder. sessions may be nil; archived
// consultations then carry no transcript.
func NewRecorder(store *Store, sessions SessionSource, logger *logging.Logger) *Recorder {
	if store == nil {
		panic("archive: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{store: store, sessions: sessions, logger: logger}
}

// ArchiveAppointment archives a completed appointment.
func (r *Recorder) ArchiveAppointment(ctx context.Context, appt *booking.Appointment) error {
	scheduledAt := appt.ScheduledAt
	c := &Consultation{
		AppointmentID:  appt.ID,
		PatientID:      appt.PatientID,
		PatientName:    appt.PatientName,
		DoctorID:       appt.DoctorID,
		DoctorName:     appt.DoctorName,
		Specialization: appt.DoctorSpecialization,
		Type:           string(appt.Type),
		Summary:        appt.Notes,
		ScheduledAt:    &scheduledAt,
		CompletedAt:    time.Now().UTC(),
	}

	var msgs []Message
	if appt.SessionID != "" && r.sessions != nil {
		session, err := r.sessions.Session(ctx, appt.SessionID)
		if err != nil {
			r.logger.Warn("archiving without transcript, session unavailable",
				"error", err, "appointment_id", appt.ID, "session_id", appt.SessionID)
		} else {
			c.HighestUrgency = string(session.Summary.HighestUrgency)
			if len(session.Summary.Symptoms) > 0 {
				c.Summary = joinSummary(appt.Notes, session.Summary.Symptoms)
			}
			msgs = transcript(appt.ID, session)
		}
	}

	return r.store.ArchiveConsultation(ctx, c, msgs)
}

func transcript(appointmentID string, session *triage.Session) []Message {
	msgs := make([]Message, 0, len(session.Messages))
	for _, m := range session.Messages {
		msgs = append(msgs, Message{
			AppointmentID: appointmentID,
			Role:          m.Role,
			Content:       m.Content,
			Urgency:       string(m.UrgencyLevel),
			CreatedAt:     m.Timestamp,
		})
	}
	return msgs
}

func joinSummary(notes string, symptoms []string) string {
	line := "Reported symptoms: " + strings.Join(symptoms, ", ")
	if strings.TrimSpace(notes) == "" {
		return line
	}
	return notes + "\n" + line
}
