package notify

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifyDynamo struct {
	items map[string]map[string]types.AttributeValue
}

func newFakeNotifyDynamo() *fakeNotifyDynamo {
	return &fakeNotifyDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeNotifyDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	id := in.Item["id"].(*types.AttributeValueMemberS).Value
	f.items[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeNotifyDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	id := in.Key["id"].(*types.AttributeValueMemberS).Value
	item, ok := f.items[id]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	item["read"] = &types.AttributeValueMemberBOOL{Value: true}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeNotifyDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	user := in.ExpressionAttributeValues[":user"].(*types.AttributeValueMemberS).Value
	items := make([]map[string]types.AttributeValue, 0)
	for _, item := range f.items {
		if item["userId"].(*types.AttributeValueMemberS).Value == user {
			items = append(items, item)
		}
	}
	return &dynamodb.ScanOutput{Items: items}, nil
}

func TestDynamoStoreRoundTrip(t *testing.T) {
	store := NewDynamoStore(newFakeNotifyDynamo(), "notifications", nil)
	now := time.Now().UTC()

	older := &Notification{ID: "n-1", UserID: "u-1", Type: TypeAppointmentBooked, Title: "first", CreatedAt: now.Add(-time.Hour)}
	newer := &Notification{ID: "n-2", UserID: "u-1", Type: TypeAppointmentUpdated, Title: "second", CreatedAt: now}
	other := &Notification{ID: "n-3", UserID: "u-2", Type: TypeAppointmentBooked, Title: "other", CreatedAt: now}

	for _, n := range []*Notification{older, newer, other} {
		require.NoError(t, store.Put(context.Background(), n))
	}

	notes, err := store.ListByUser(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "second", notes[0].Title)
	assert.Equal(t, "first", notes[1].Title)
}

func TestDynamoStoreMarkReadAndCount(t *testing.T) {
	store := NewDynamoStore(newFakeNotifyDynamo(), "notifications", nil)

	require.NoError(t, store.Put(context.Background(), &Notification{ID: "n-1", UserID: "u-1", CreatedAt: time.Now().UTC()}))
	require.NoError(t, store.Put(context.Background(), &Notification{ID: "n-2", UserID: "u-1", CreatedAt: time.Now().UTC()}))

	count, err := store.CountUnread(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.MarkRead(context.Background(), "n-1"))
	count, err = store.CountUnread(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, store.MarkRead(context.Background(), "missing"), ErrNotificationNotFound)
}

func TestDynamoStoreTypedDataSurvivesMarshal(t *testing.T) {
	client := newFakeNotifyDynamo()
	store := NewDynamoStore(client, "notifications", nil)

	note := &Notification{
		ID:     "n-1",
		UserID: "u-1",
		Type:   TypeAppointmentBooked,
		Appointment: &AppointmentData{
			AppointmentID: "appt-1",
			DoctorName:    "Dr. Mehta",
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.Put(context.Background(), note))

	var decoded Notification
	require.NoError(t, attributevalue.UnmarshalMap(client.items["n-1"], &decoded))
	require.NotNil(t, decoded.Appointment)
	assert.Equal(t, "Dr. Mehta", decoded.Appointment.DoctorName)
}
