package booking

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAppointmentDynamo emulates the subset of DynamoDB behavior the store
// relies on, including the conditional status transition.
type fakeAppointmentDynamo struct {
	mu    sync.Mutex
	items map[string]*Appointment
}

func newFakeAppointmentDynamo() *fakeAppointmentDynamo {
	return &fakeAppointmentDynamo{items: make(map[string]*Appointment)}
}

func (f *fakeAppointmentDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	var appt Appointment
	if err := attributevalue.UnmarshalMap(in.Item, &appt); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.items[appt.ID]; exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	f.items[appt.ID] = &appt
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeAppointmentDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := in.Key["id"].(*types.AttributeValueMemberS).Value
	appt, ok := f.items[id]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	item, err := attributevalue.MarshalMap(appt)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeAppointmentDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := in.Key["id"].(*types.AttributeValueMemberS).Value
	appt, ok := f.items[id]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}

	expr := *in.UpdateExpression
	switch {
	case strings.Contains(expr, "#status = :to"):
		from := in.ExpressionAttributeValues[":from"].(*types.AttributeValueMemberS).Value
		if string(appt.Status) != from {
			return nil, &types.ConditionalCheckFailedException{}
		}
		appt.Status = AppointmentStatus(in.ExpressionAttributeValues[":to"].(*types.AttributeValueMemberS).Value)
	case strings.Contains(expr, "prescription = :rx"):
		var rx Prescription
		if err := attributevalue.Unmarshal(in.ExpressionAttributeValues[":rx"], &rx); err != nil {
			return nil, err
		}
		appt.Prescription = &rx
	}
	appt.UpdatedAt = time.Now().UTC()
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeAppointmentDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	field := strings.Fields(*in.FilterExpression)[0]
	value := in.ExpressionAttributeValues[":value"].(*types.AttributeValueMemberS).Value

	var items []map[string]types.AttributeValue
	for _, appt := range f.items {
		match := (field == "patientId" && appt.PatientID == value) ||
			(field == "doctorId" && appt.DoctorID == value)
		if !match {
			continue
		}
		item, err := attributevalue.MarshalMap(appt)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return &dynamodb.ScanOutput{Items: items}, nil
}

func newTestAppointment(id string) *Appointment {
	now := time.Now().UTC().Truncate(time.Second)
	return &Appointment{
		ID:          id,
		PatientID:   "patient-1",
		PatientName: "Asha Rao",
		DoctorID:    "doctor-1",
		DoctorName:  "Dr. Mehta",
		Type:        TypeVideo,
		ScheduledAt: now.Add(time.Hour),
		Status:      StatusPending,
		Payment:     Payment{Status: PaymentPending, Amount: 500},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestStorePutAndGet(t *testing.T) {
	store := NewStore(newFakeAppointmentDynamo(), "appointments", nil)
	ctx := context.Background()

	appt := newTestAppointment("appt-1")
	require.NoError(t, store.Put(ctx, appt))

	got, err := store.Get(ctx, "appt-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", got.PatientName)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, 500.0, got.Payment.Amount)
}

func TestStoreGetMissing(t *testing.T) {
	store := NewStore(newFakeAppointmentDynamo(), "appointments", nil)

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestStoreUpdateStatusChecksPreviousStatus(t *testing.T) {
	store := NewStore(newFakeAppointmentDynamo(), "appointments", nil)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newTestAppointment("appt-1")))
	require.NoError(t, store.UpdateStatus(ctx, "appt-1", StatusPending, StatusConfirmed))

	// A second writer still holding the old status loses the race.
	err := store.UpdateStatus(ctx, "appt-1", StatusPending, StatusCancelled)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := store.Get(ctx, "appt-1")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)
}

func TestStoreAttachPrescription(t *testing.T) {
	store := NewStore(newFakeAppointmentDynamo(), "appointments", nil)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newTestAppointment("appt-1")))
	rx := &Prescription{ID: "rx-1", Text: "Paracetamol 500mg twice daily", IssuedAt: time.Now().UTC()}
	require.NoError(t, store.AttachPrescription(ctx, "appt-1", rx))

	got, err := store.Get(ctx, "appt-1")
	require.NoError(t, err)
	require.NotNil(t, got.Prescription)
	assert.Equal(t, "Paracetamol 500mg twice daily", got.Prescription.Text)

	err = store.AttachPrescription(ctx, "missing", rx)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestStoreListByPatientOrdering(t *testing.T) {
	store := NewStore(newFakeAppointmentDynamo(), "appointments", nil)
	ctx := context.Background()

	early := newTestAppointment("appt-early")
	early.ScheduledAt = time.Now().UTC().Add(1 * time.Hour)
	late := newTestAppointment("appt-late")
	late.ScheduledAt = time.Now().UTC().Add(48 * time.Hour)
	other := newTestAppointment("appt-other")
	other.PatientID = "someone-else"

	require.NoError(t, store.Put(ctx, early))
	require.NoError(t, store.Put(ctx, late))
	require.NoError(t, store.Put(ctx, other))

	appointments, err := store.ListByPatient(ctx, "patient-1")
	require.NoError(t, err)
	require.Len(t, appointments, 2)
	assert.Equal(t, "appt-late", appointments[0].ID)
	assert.Equal(t, "appt-early", appointments[1].ID)
}

func TestStoreListByDoctor(t *testing.T) {
	store := NewStore(newFakeAppointmentDynamo(), "appointments", nil)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, newTestAppointment("appt-1")))

	appointments, err := store.ListByDoctor(ctx, "doctor-1")
	require.NoError(t, err)
	require.Len(t, appointments, 1)

	none, err := store.ListByDoctor(ctx, "doctor-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStorePutRejectsDuplicateID(t *testing.T) {
	store := NewStore(newFakeAppointmentDynamo(), "appointments", nil)
	ctx := context.Background()

	appt := newTestAppointment("appt-1")
	require.NoError(t, store.Put(ctx, appt))
	assert.Error(t, store.Put(ctx, appt))
}
