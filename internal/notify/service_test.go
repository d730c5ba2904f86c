package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureEmail struct {
	sent    []EmailMessage
	sendErr error
}

func (c *captureEmail) Send(_ context.Context, msg EmailMessage) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func sampleEvent() AppointmentEvent {
	return AppointmentEvent{
		AppointmentID: "appt-1",
		PatientID:     "pat-1",
		PatientName:   "Asha Rao",
		PatientEmail:  "asha@example.com",
		DoctorID:      "doc-1",
		DoctorName:    "Dr. Mehta",
		DoctorEmail:   "mehta@example.com",
		ScheduledAt:   time.Date(2026, 9, 1, 10, 30, 0, 0, time.UTC),
		Status:        "pending",
	}
}

func TestAppointmentBookedNotifiesBothParties(t *testing.T) {
	store := NewMemoryStore()
	email := &captureEmail{}
	svc := NewService(store, email, nil)

	require.NoError(t, svc.AppointmentBooked(context.Background(), sampleEvent()))

	patientNotes, err := svc.ListByUser(context.Background(), "pat-1")
	require.NoError(t, err)
	require.Len(t, patientNotes, 1)
	assert.Equal(t, TypeAppointmentBooked, patientNotes[0].Type)
	assert.Contains(t, patientNotes[0].Body, "Dr. Mehta")
	require.NotNil(t, patientNotes[0].Appointment)
	assert.Equal(t, "appt-1", patientNotes[0].Appointment.AppointmentID)

	doctorNotes, err := svc.ListByUser(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, doctorNotes, 1)
	assert.Contains(t, doctorNotes[0].Body, "Asha Rao")

	assert.Len(t, email.sent, 2)
}

func TestAppointmentBookedSurvivesEmailFailure(t *testing.T) {
	store := NewMemoryStore()
	email := &captureEmail{sendErr: errors.New("smtp down")}
	svc := NewService(store, email, nil)

	require.NoError(t, svc.AppointmentBooked(context.Background(), sampleEvent()))

	notes, err := svc.ListByUser(context.Background(), "pat-1")
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestAppointmentCancelledNotifiesOtherParty(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil, nil)
	evt := sampleEvent()

	// Patient cancels; only the doctor hears about it.
	require.NoError(t, svc.AppointmentCancelled(context.Background(), evt, "pat-1"))

	doctorNotes, err := svc.ListByUser(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, doctorNotes, 1)
	assert.Equal(t, TypeAppointmentCancelled, doctorNotes[0].Type)

	patientNotes, err := svc.ListByUser(context.Background(), "pat-1")
	require.NoError(t, err)
	assert.Empty(t, patientNotes)

	// Doctor cancels; the patient hears about it.
	require.NoError(t, svc.AppointmentCancelled(context.Background(), evt, "doc-1"))
	patientNotes, err = svc.ListByUser(context.Background(), "pat-1")
	require.NoError(t, err)
	assert.Len(t, patientNotes, 1)
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil, nil)

	require.NoError(t, svc.AppointmentBooked(context.Background(), sampleEvent()))
	require.NoError(t, svc.AppointmentUpdated(context.Background(), sampleEvent()))

	unread, err := svc.CountUnread(context.Background(), "pat-1")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	notes, err := svc.ListByUser(context.Background(), "pat-1")
	require.NoError(t, err)
	require.NoError(t, svc.MarkRead(context.Background(), notes[0].ID))

	unread, err = svc.CountUnread(context.Background(), "pat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	assert.ErrorIs(t, svc.MarkRead(context.Background(), "missing"), ErrNotificationNotFound)
}

func TestPrescriptionReadyCarriesTypedData(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil, nil)

	require.NoError(t, svc.PrescriptionReady(context.Background(), "pat-1", "appt-1", "rx-1"))

	notes, err := svc.ListByUser(context.Background(), "pat-1")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, TypePrescriptionReady, notes[0].Type)
	require.NotNil(t, notes[0].Prescription)
	assert.Equal(t, "rx-1", notes[0].Prescription.PrescriptionID)
	assert.Nil(t, notes[0].Appointment)
}
