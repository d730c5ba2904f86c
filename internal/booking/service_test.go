package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleseva/teleseva-platform/internal/notify"
	"github.com/teleseva/teleseva-platform/internal/profiles"
	"github.com/teleseva/teleseva-platform/internal/realtime"
)

type fakeDirectory struct {
	mu           sync.Mutex
	available    bool
	increments   int
	decrements   int
	incrementErr error
}

func (f *fakeDirectory) IsAvailableForBooking(context.Context, string) (bool, error) {
	return f.available, nil
}

func (f *fakeDirectory) IncrementPatientCount(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return f.incrementErr
	}
	f.increments++
	return nil
}

func (f *fakeDirectory) DecrementPatientCount(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decrements++
	return nil
}

type captureNotifier struct {
	booked      []notify.AppointmentEvent
	cancelled   []notify.AppointmentEvent
	cancelledBy []string
	updated     []notify.AppointmentEvent
	err         error
}

func (c *captureNotifier) AppointmentBooked(_ context.Context, evt notify.AppointmentEvent) error {
	c.booked = append(c.booked, evt)
	return c.err
}

func (c *captureNotifier) AppointmentCancelled(_ context.Context, evt notify.AppointmentEvent, by string) error {
	c.cancelled = append(c.cancelled, evt)
	c.cancelledBy = append(c.cancelledBy, by)
	return c.err
}

func (c *captureNotifier) AppointmentUpdated(_ context.Context, evt notify.AppointmentEvent) error {
	c.updated = append(c.updated, evt)
	return c.err
}

type capturePublisher struct {
	mu       sync.Mutex
	channels []string
}

func (c *capturePublisher) Publish(_ context.Context, channel, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels = append(c.channels, channel)
	return nil
}

type captureArchiver struct {
	archived []*Appointment
}

func (c *captureArchiver) ArchiveAppointment(_ context.Context, appt *Appointment) error {
	c.archived = append(c.archived, appt)
	return nil
}

// failingPutDynamo accepts everything except PutItem, which the compensation
// test needs to fail.
type failingPutDynamo struct {
	*fakeAppointmentDynamo
}

func (f *failingPutDynamo) PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return nil, errors.New("provisioned throughput exceeded")
}

type bookingFixture struct {
	service   *Service
	dynamo    *fakeAppointmentDynamo
	directory *fakeDirectory
	notifier  *captureNotifier
	publisher *capturePublisher
	archiver  *captureArchiver
	patient   *profiles.Patient
	doctor    *profiles.Doctor
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	ctx := context.Background()

	repo := profiles.NewInMemoryRepository()
	patient, err := repo.CreatePatient(ctx, &profiles.CreatePatientRequest{
		Name: "Asha Rao", Email: "asha@example.com", Age: 34,
	})
	require.NoError(t, err)
	doctor, err := repo.CreateDoctor(ctx, &profiles.CreateDoctorRequest{
		Name: "Dr. Mehta", Email: "mehta@example.com", Specialization: "General Medicine", ConsultationFee: 500,
	})
	require.NoError(t, err)

	f := &bookingFixture{
		dynamo:    newFakeAppointmentDynamo(),
		directory: &fakeDirectory{available: true},
		notifier:  &captureNotifier{},
		publisher: &capturePublisher{},
		archiver:  &captureArchiver{},
		patient:   patient,
		doctor:    doctor,
	}
	f.service = NewService(
		NewStore(f.dynamo, "appointments", nil),
		f.directory,
		repo,
		nil,
		WithNotifier(f.notifier),
		WithPublisher(f.publisher),
		WithArchiver(f.archiver),
	)
	return f
}

func (f *bookingFixture) book(t *testing.T) *Appointment {
	t.Helper()
	appt, err := f.service.BookConsultation(context.Background(), BookingRequest{
		PatientID:   f.patient.ID,
		DoctorID:    f.doctor.ID,
		Type:        TypeVideo,
		ScheduledAt: time.Now().UTC().Add(24 * time.Hour),
	})
	require.NoError(t, err)
	return appt
}

func TestBookConsultation(t *testing.T) {
	f := newBookingFixture(t)
	appt := f.book(t)

	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, "Asha Rao", appt.PatientName)
	assert.Equal(t, "Dr. Mehta", appt.DoctorName)
	assert.Equal(t, "General Medicine", appt.DoctorSpecialization)
	assert.Equal(t, PaymentPending, appt.Payment.Status)
	assert.Equal(t, 500.0, appt.Payment.Amount)

	assert.Equal(t, 1, f.directory.increments)
	assert.Zero(t, f.directory.decrements)

	stored, err := f.service.Appointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, stored.ID)

	require.Len(t, f.notifier.booked, 1)
	evt := f.notifier.booked[0]
	assert.Equal(t, "asha@example.com", evt.PatientEmail)
	assert.Equal(t, "mehta@example.com", evt.DoctorEmail)

	assert.Contains(t, f.publisher.channels, realtime.ChannelAppointments(f.patient.ID))
	assert.Contains(t, f.publisher.channels, realtime.ChannelAppointments(f.doctor.ID))
}

func TestBookConsultationUnavailableDoctorPerformsNoWrites(t *testing.T) {
	f := newBookingFixture(t)
	f.directory.available = false

	_, err := f.service.BookConsultation(context.Background(), BookingRequest{
		PatientID: f.patient.ID,
		DoctorID:  f.doctor.ID,
	})
	assert.ErrorIs(t, err, ErrDoctorUnavailable)
	assert.Zero(t, f.directory.increments)
	assert.Empty(t, f.dynamo.items)
	assert.Empty(t, f.notifier.booked)
}

func TestBookConsultationMissingPatientPerformsNoWrites(t *testing.T) {
	f := newBookingFixture(t)

	_, err := f.service.BookConsultation(context.Background(), BookingRequest{
		PatientID: "ghost",
		DoctorID:  f.doctor.ID,
	})
	assert.ErrorIs(t, err, profiles.ErrPatientNotFound)
	assert.Zero(t, f.directory.increments)
	assert.Empty(t, f.dynamo.items)
}

func TestBookConsultationCapacityLostAtReservation(t *testing.T) {
	f := newBookingFixture(t)
	f.directory.incrementErr = errors.New("directory: doctor at capacity")

	_, err := f.service.BookConsultation(context.Background(), BookingRequest{
		PatientID: f.patient.ID,
		DoctorID:  f.doctor.ID,
	})
	assert.ErrorIs(t, err, ErrDoctorUnavailable)
	assert.Empty(t, f.dynamo.items)
}

func TestBookConsultationReleasesSlotWhenWriteFails(t *testing.T) {
	f := newBookingFixture(t)
	repo := profiles.NewInMemoryRepository()
	patient, err := repo.CreatePatient(context.Background(), &profiles.CreatePatientRequest{Name: "Asha Rao", Email: "asha@example.com"})
	require.NoError(t, err)
	doctor, err := repo.CreateDoctor(context.Background(), &profiles.CreateDoctorRequest{Name: "Dr. Mehta", Specialization: "General Medicine"})
	require.NoError(t, err)

	service := NewService(
		NewStore(&failingPutDynamo{f.dynamo}, "appointments", nil),
		f.directory,
		repo,
		nil,
	)

	_, err = service.BookConsultation(context.Background(), BookingRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
	})
	require.Error(t, err)

	// The reserved slot must be handed back.
	assert.Equal(t, 1, f.directory.increments)
	assert.Equal(t, 1, f.directory.decrements)
}

func TestBookConsultationNotificationFailureIsNotFatal(t *testing.T) {
	f := newBookingFixture(t)
	f.notifier.err = errors.New("sendgrid: connection refused")

	appt := f.book(t)
	stored, err := f.service.Appointment(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestUpdateAppointmentStatus(t *testing.T) {
	f := newBookingFixture(t)
	appt := f.book(t)

	updated, err := f.service.UpdateAppointmentStatus(context.Background(), appt.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)
	require.Len(t, f.notifier.updated, 1)
	assert.Equal(t, string(StatusConfirmed), f.notifier.updated[0].Status)
}

func TestUpdateAppointmentStatusRejectsInvalidTransition(t *testing.T) {
	f := newBookingFixture(t)
	appt := f.book(t)

	_, err := f.service.UpdateAppointmentStatus(context.Background(), appt.ID, StatusCompleted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelAppointment(t *testing.T) {
	f := newBookingFixture(t)
	appt := f.book(t)

	cancelled, err := f.service.CancelAppointment(context.Background(), appt.ID, f.patient.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	// Slot released and the other party notified.
	assert.Equal(t, 1, f.directory.decrements)
	require.Len(t, f.notifier.cancelled, 1)
	assert.Equal(t, f.patient.ID, f.notifier.cancelledBy[0])
}

func TestCancelCompletedAppointmentRejected(t *testing.T) {
	f := newBookingFixture(t)
	appt := f.book(t)
	ctx := context.Background()

	_, err := f.service.UpdateAppointmentStatus(ctx, appt.ID, StatusConfirmed)
	require.NoError(t, err)
	_, err = f.service.UpdateAppointmentStatus(ctx, appt.ID, StatusInProgress)
	require.NoError(t, err)
	_, err = f.service.CompleteAppointment(ctx, appt.ID)
	require.NoError(t, err)

	_, err = f.service.CancelAppointment(ctx, appt.ID, f.patient.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteAppointmentArchivesAndReleasesSlot(t *testing.T) {
	f := newBookingFixture(t)
	appt := f.book(t)
	ctx := context.Background()

	_, err := f.service.UpdateAppointmentStatus(ctx, appt.ID, StatusConfirmed)
	require.NoError(t, err)
	_, err = f.service.UpdateAppointmentStatus(ctx, appt.ID, StatusInProgress)
	require.NoError(t, err)

	completed, err := f.service.CompleteAppointment(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)
	assert.Equal(t, 1, f.directory.decrements)

	require.Len(t, f.archiver.archived, 1)
	assert.Equal(t, appt.ID, f.archiver.archived[0].ID)
}

func TestAttachPrescription(t *testing.T) {
	f := newBookingFixture(t)
	appt := f.book(t)

	rx, err := f.service.AttachPrescription(context.Background(), appt.ID, "Rest and fluids")
	require.NoError(t, err)
	assert.NotEmpty(t, rx.ID)

	stored, err := f.service.Appointment(context.Background(), appt.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Prescription)
	assert.Equal(t, "Rest and fluids", stored.Prescription.Text)
}

func TestPatientAndDoctorAppointmentLists(t *testing.T) {
	f := newBookingFixture(t)
	f.book(t)
	f.book(t)

	byPatient, err := f.service.PatientAppointments(context.Background(), f.patient.ID)
	require.NoError(t, err)
	assert.Len(t, byPatient, 2)

	byDoctor, err := f.service.DoctorAppointments(context.Background(), f.doctor.ID)
	require.NoError(t, err)
	assert.Len(t, byDoctor, 2)
}
