// Package archive persists completed consultations to PostgreSQL for
// long-term history. DynamoDB holds the live appointment documents; once a
// consultation completes, the transcript and summary land here.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrConsultationNotFound is returned when no archived consultation exists.
var ErrConsultationNotFound = errors.New("archive: consultation not found")

// Consultation is one archived consultation row. AppointmentID is the
// natural key linking back to the booking document.
type Consultation struct {
	ID             uuid.UUID  `json:"id"`
	AppointmentID  string     `json:"appointment_id"`
	PatientID      string     `json:"patient_id"`
	PatientName    string     `json:"patient_name"`
	DoctorID       string     `json:"doctor_id"`
	DoctorName     string     `json:"doctor_name"`
	Specialization string     `json:"specialization,omitempty"`
	Type           string     `json:"consultation_type"`
	Summary        string     `json:"summary,omitempty"`
	HighestUrgency string     `json:"highest_urgency,omitempty"`
	MessageCount   int        `json:"message_count"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	CompletedAt    time.Time  `json:"completed_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Message is one transcript turn of an archived consultation.
type Message struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID string    `json:"appointment_id"`
	Role          string    `json:"role"`
	Content       string    `json:"content"`
	Urgency       string    `json:"urgency,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store reads and writes the consultation archive.
type Store struct {
	db *sql.DB
}

// NewStore creates a consultation archive store. A nil db yields a nil store
// whose methods are no-ops, so the archive stays optional in deployments
// without PostgreSQL.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// ArchiveConsultation writes the consultation row and its transcript.
// Re-archiving the same appointment is a no-op.
func (s *Store) ArchiveConsultation(ctx context.Context, c *Consultation, msgs []Message) error {
	if s == nil || s.db == nil {
		return nil
	}
	if c.AppointmentID == "" {
		return errors.New("archive: appointment ID required")
	}

	id := c.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	completedAt := c.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO consultations (
			id, appointment_id, patient_id, patient_name, doctor_id, doctor_name,
			specialization, consultation_type, summary, highest_urgency,
			message_count, scheduled_at, completed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (appointment_id) DO NOTHING
	`, id, c.AppointmentID, c.PatientID, c.PatientName, c.DoctorID, c.DoctorName,
		c.Specialization, c.Type, c.Summary, c.HighestUrgency,
		len(msgs), c.ScheduledAt, completedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("archive: failed to insert consultation: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive: failed to read insert result: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	for _, msg := range msgs {
		msgID := msg.ID
		if msgID == uuid.Nil {
			msgID = uuid.New()
		}
		createdAt := msg.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO consultation_messages (
				id, appointment_id, role, content, urgency, created_at
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, msgID, c.AppointmentID, msg.Role, msg.Content, msg.Urgency, createdAt)
		if err != nil {
			return fmt.Errorf("archive: failed to insert message: %w", err)
		}
	}
	return nil
}

// GetConsultation fetches one archived consultation by appointment ID.
func (s *Store) GetConsultation(ctx context.Context, appointmentID string) (*Consultation, error) {
	if s == nil || s.db == nil {
		return nil, ErrConsultationNotFound
	}

	var (
		c           Consultation
		scheduledAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, appointment_id, patient_id, patient_name, doctor_id, doctor_name,
			   specialization, consultation_type, summary, highest_urgency,
			   message_count, scheduled_at, completed_at, created_at
		FROM consultations
		WHERE appointment_id = $1
	`, appointmentID).Scan(
		&c.ID, &c.AppointmentID, &c.PatientID, &c.PatientName, &c.DoctorID, &c.DoctorName,
		&c.Specialization, &c.Type, &c.Summary, &c.HighestUrgency,
		&c.MessageCount, &scheduledAt, &c.CompletedAt, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConsultationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive: failed to fetch consultation: %w", err)
	}
	if scheduledAt.Valid {
		c.ScheduledAt = &scheduledAt.Time
	}
	return &c, nil
}

// Messages returns the transcript of an archived consultation in order.
func (s *Store) Messages(ctx context.Context, appointmentID string, limit int) ([]Message, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	query := `
		SELECT id, appointment_id, role, content, urgency, created_at
		FROM consultation_messages
		WHERE appointment_id = $1
		ORDER BY created_at ASC
	`
	args := []any{appointmentID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to fetch messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.AppointmentID, &msg.Role, &msg.Content, &msg.Urgency, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("archive: failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ListByPatient returns a patient's archived consultations, newest first.
func (s *Store) ListByPatient(ctx context.Context, patientID string) ([]Consultation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, appointment_id, patient_id, patient_name, doctor_id, doctor_name,
			   specialization, consultation_type, summary, highest_urgency,
			   message_count, scheduled_at, completed_at, created_at
		FROM consultations
		WHERE patient_id = $1
		ORDER BY completed_at DESC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to list consultations: %w", err)
	}
	defer rows.Close()

	var consultations []Consultation
	for rows.Next() {
		var (
			c           Consultation
			scheduledAt sql.NullTime
		)
		err := rows.Scan(
			&c.ID, &c.AppointmentID, &c.PatientID, &c.PatientName, &c.DoctorID, &c.DoctorName,
			&c.Specialization, &c.Type, &c.Summary, &c.HighestUrgency,
			&c.MessageCount, &scheduledAt, &c.CompletedAt, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("archive: failed to scan consultation: %w", err)
		}
		if scheduledAt.Valid {
			c.ScheduledAt = &scheduledAt.Time
		}
		consultations = append(consultations, c)
	}
	return consultations, rows.Err()
}
