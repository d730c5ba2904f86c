package directory

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

var (
	// ErrAvailabilityNotFound indicates no availability record exists for the doctor.
	ErrAvailabilityNotFound = errors.New("directory: availability not found")

	// ErrAtCapacity indicates the doctor's patient count is at its maximum.
	ErrAtCapacity = errors.New("directory: doctor at capacity")

	// ErrNoPatients indicates a decrement was attempted at zero.
	ErrNoPatients = errors.New("directory: patient count already zero")
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store persists availability records to DynamoDB. The patient counter is
// mutated only through conditional updates so concurrent bookings cannot
// under- or over-count.
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewStore builds an availability store.
func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("directory: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("directory: table name cannot be empty")
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

// Put upserts an availability record.
func (s *Store) Put(ctx context.Context, record *Availability) error {
	if record == nil || record.DoctorID == "" {
		return errors.New("directory: record with doctorID required")
	}
	if record.MaxPatients <= 0 {
		record.MaxPatients = DefaultMaxPatients
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("directory: failed to marshal availability: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("directory: failed to persist availability: %w", err)
	}
	return nil
}

// Get fetches the availability record for a doctor.
func (s *Store) Get(ctx context.Context, doctorID string) (*Availability, error) {
	if doctorID == "" {
		return nil, errors.New("directory: doctorID required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       availabilityKey(doctorID),
	})
	if err != nil {
		return nil, fmt.Errorf("directory: failed to fetch availability: %w", err)
	}
	if out.Item == nil {
		return nil, ErrAvailabilityNotFound
	}

	var record Availability
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("directory: failed to decode availability: %w", err)
	}
	return &record, nil
}

// QueryOnline returns all online doctors, most recently seen first.
func (s *Store) QueryOnline(ctx context.Context) ([]Availability, error) {
	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.tableName),
		FilterExpression: aws.String("online = :true"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("directory: failed to query online doctors: %w", err)
	}

	records := make([]Availability, 0, len(out.Items))
	for _, item := range out.Items {
		var record Availability
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			s.logger.Warn("skipping undecodable availability item", "error", err)
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].LastSeen.After(records[j].LastSeen)
	})
	return records, nil
}

// IncrementPatients raises the patient counter by one. The update is
// conditional on currentPatients < maxPatients, so concurrent callers cannot
// push a doctor past capacity; the loser gets ErrAtCapacity.
func (s *Store) IncrementPatients(ctx context.Context, doctorID string) (*Availability, error) {
	return s.adjustPatients(ctx, doctorID,
		"SET currentPatients = currentPatients + :one, lastSeen = :seen",
		"attribute_exists(doctorId) AND currentPatients < maxPatients",
		ErrAtCapacity,
	)
}

// DecrementPatients lowers the patient counter by one, never below zero.
func (s *Store) DecrementPatients(ctx context.Context, doctorID string) (*Availability, error) {
	return s.adjustPatients(ctx, doctorID,
		"SET currentPatients = currentPatients - :one, lastSeen = :seen",
		"attribute_exists(doctorId) AND currentPatients > :zero",
		ErrNoPatients,
	)
}

func (s *Store) adjustPatients(ctx context.Context, doctorID, update, condition string, conditionErr error) (*Availability, error) {
	if doctorID == "" {
		return nil, errors.New("directory: doctorID required")
	}

	values := map[string]types.AttributeValue{
		":one":  &types.AttributeValueMemberN{Value: "1"},
		":seen": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}
	if conditionErr == ErrNoPatients {
		values[":zero"] = &types.AttributeValueMemberN{Value: "0"}
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       availabilityKey(doctorID),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String(condition),
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, conditionErr
		}
		return nil, fmt.Errorf("directory: failed to adjust patient count: %w", err)
	}

	var record Availability
	if err := attributevalue.UnmarshalMap(out.Attributes, &record); err != nil {
		return nil, fmt.Errorf("directory: failed to decode availability: %w", err)
	}
	return &record, nil
}

// UpdateStatus sets the status field directly.
func (s *Store) UpdateStatus(ctx context.Context, doctorID string, status Status) error {
	if doctorID == "" {
		return errors.New("directory: doctorID required")
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 availabilityKey(doctorID),
		UpdateExpression:    aws.String("SET #status = :status, lastSeen = :seen"),
		ConditionExpression: aws.String("attribute_exists(doctorId)"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
			":seen":   &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAvailabilityNotFound
		}
		return fmt.Errorf("directory: failed to update status: %w", err)
	}
	return nil
}

// Touch bumps LastSeen without changing anything else.
func (s *Store) Touch(ctx context.Context, doctorID string) error {
	if doctorID == "" {
		return errors.New("directory: doctorID required")
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 availabilityKey(doctorID),
		UpdateExpression:    aws.String("SET lastSeen = :seen"),
		ConditionExpression: aws.String("attribute_exists(doctorId)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":seen": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAvailabilityNotFound
		}
		return fmt.Errorf("directory: failed to bump lastSeen: %w", err)
	}
	return nil
}

// MarkStale flips online doctors whose LastSeen is older than cutoff to
// offline. Returns the doctor IDs it changed.
func (s *Store) MarkStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	online, err := s.QueryOnline(ctx)
	if err != nil {
		return nil, err
	}

	var flipped []string
	for _, record := range online {
		if !record.LastSeen.Before(cutoff) {
			continue
		}
		record.Online = false
		record.Status = StatusOffline
		record.CurrentPatients = 0
		if err := s.Put(ctx, &record); err != nil {
			s.logger.Error("failed to mark stale doctor offline", "error", err, "doctor_id", record.DoctorID)
			continue
		}
		flipped = append(flipped, record.DoctorID)
	}
	return flipped, nil
}

func availabilityKey(doctorID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"doctorId": &types.AttributeValueMemberS{Value: doctorID},
	}
}
