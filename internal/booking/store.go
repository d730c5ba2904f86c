package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store persists appointments to DynamoDB.
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewStore builds an appointment store.
func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("booking: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("booking: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Put inserts a new appointment. Duplicate IDs are rejected.
func (s *Store) Put(ctx context.Context, appt *Appointment) error {
	if appt == nil || appt.ID == "" {
		return errors.New("booking: appointment with ID required")
	}

	item, err := attributevalue.MarshalMap(appt)
	if err != nil {
		return fmt.Errorf("booking: failed to marshal appointment: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("booking: failed to persist appointment: %w", err)
	}
	return nil
}

// Get fetches an appointment by ID.
func (s *Store) Get(ctx context.Context, id string) (*Appointment, error) {
	if id == "" {
		return nil, errors.New("booking: id required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       appointmentKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("booking: failed to fetch appointment: %w", err)
	}
	if out.Item == nil {
		return nil, ErrAppointmentNotFound
	}

	var appt Appointment
	if err := attributevalue.UnmarshalMap(out.Item, &appt); err != nil {
		return nil, fmt.Errorf("booking: failed to decode appointment: %w", err)
	}
	return &appt, nil
}

// UpdateStatus transitions an appointment's status. The previous status is
// checked in the write condition so concurrent transitions cannot clobber
// each other.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to AppointmentStatus) error {
	if id == "" {
		return errors.New("booking: id required")
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 appointmentKey(id),
		UpdateExpression:    aws.String("SET #status = :to, updatedAt = :updated"),
		ConditionExpression: aws.String("attribute_exists(id) AND #status = :from"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to":      &types.AttributeValueMemberS{Value: string(to)},
			":from":    &types.AttributeValueMemberS{Value: string(from)},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrInvalidTransition
		}
		return fmt.Errorf("booking: failed to update appointment status: %w", err)
	}
	return nil
}

// AttachPrescription writes the prescription sub-document.
func (s *Store) AttachPrescription(ctx context.Context, id string, p *Prescription) error {
	if id == "" || p == nil {
		return errors.New("booking: id and prescription required")
	}
	attr, err := attributevalue.Marshal(p)
	if err != nil {
		return fmt.Errorf("booking: failed to marshal prescription: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 appointmentKey(id),
		UpdateExpression:    aws.String("SET prescription = :rx, updatedAt = :updated"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rx":      attr,
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAppointmentNotFound
		}
		return fmt.Errorf("booking: failed to attach prescription: %w", err)
	}
	return nil
}

// ListByPatient returns a patient's appointments, most recent first.
func (s *Store) ListByPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return s.listBy(ctx, "patientId", patientID)
}

// ListByDoctor returns a doctor's appointments, most recent first.
func (s *Store) ListByDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	return s.listBy(ctx, "doctorId", doctorID)
}

func (s *Store) listBy(ctx context.Context, field, value string) ([]Appointment, error) {
	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.tableName),
		FilterExpression: aws.String(fmt.Sprintf("%s = :value", field)),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":value": &types.AttributeValueMemberS{Value: value},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("booking: failed to list appointments: %w", err)
	}

	appointments := make([]Appointment, 0, len(out.Items))
	for _, item := range out.Items {
		var appt Appointment
		if err := attributevalue.UnmarshalMap(item, &appt); err != nil {
			s.logger.Warn("skipping undecodable appointment", "error", err)
			continue
		}
		appointments = append(appointments, appt)
	}

	sort.Slice(appointments, func(i, j int) bool {
		return appointments[i].ScheduledAt.After(appointments[j].ScheduledAt)
	})
	return appointments, nil
}

func appointmentKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}
