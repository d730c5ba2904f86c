package profiles

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoRepository implements Repository over two DynamoDB tables.
type DynamoRepository struct {
	client        dynamoAPI
	patientsTable string
	doctorsTable  string
	logger        *logging.Logger
}

// NewDynamoRepository builds a repository backed by DynamoDB.
func NewDynamoRepository(client dynamoAPI, patientsTable, doctorsTable string, logger *logging.Logger) *DynamoRepository {
	if client == nil {
		panic("profiles: dynamodb client cannot be nil")
	}
	if patientsTable == "" || doctorsTable == "" {
		panic("profiles: table names cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoRepository{
		client:        client,
		patientsTable: patientsTable,
		doctorsTable:  doctorsTable,
		logger:        logger,
	}
}

// CreatePatient registers a patient profile.
func (r *DynamoRepository) CreatePatient(ctx context.Context, req *CreatePatientRequest) (*Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	patient := &Patient{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Age:       req.Age,
		Gender:    req.Gender,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.put(ctx, r.patientsTable, patient); err != nil {
		return nil, fmt.Errorf("profiles: failed to create patient: %w", err)
	}
	return patient, nil
}

// GetPatient retrieves a patient by ID.
func (r *DynamoRepository) GetPatient(ctx context.Context, id string) (*Patient, error) {
	item, err := r.get(ctx, r.patientsTable, id)
	if err != nil {
		return nil, fmt.Errorf("profiles: failed to fetch patient: %w", err)
	}
	if item == nil {
		return nil, ErrPatientNotFound
	}

	var patient Patient
	if err := attributevalue.UnmarshalMap(item, &patient); err != nil {
		return nil, fmt.Errorf("profiles: failed to decode patient: %w", err)
	}
	return &patient, nil
}

// CreateDoctor registers a doctor profile. Doctors start offline.
func (r *DynamoRepository) CreateDoctor(ctx context.Context, req *CreateDoctorRequest) (*Doctor, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	doctor := &Doctor{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Email:           req.Email,
		Specialization:  req.Specialization,
		ConsultationFee: req.ConsultationFee,
		Online:          false,
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.put(ctx, r.doctorsTable, doctor); err != nil {
		return nil, fmt.Errorf("profiles: failed to create doctor: %w", err)
	}
	return doctor, nil
}

// GetDoctor retrieves a doctor by ID.
func (r *DynamoRepository) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	item, err := r.get(ctx, r.doctorsTable, id)
	if err != nil {
		return nil, fmt.Errorf("profiles: failed to fetch doctor: %w", err)
	}
	if item == nil {
		return nil, ErrDoctorNotFound
	}

	var doctor Doctor
	if err := attributevalue.UnmarshalMap(item, &doctor); err != nil {
		return nil, fmt.Errorf("profiles: failed to decode doctor: %w", err)
	}
	return &doctor, nil
}

// ListDoctors scans the doctors table.
func (r *DynamoRepository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(r.doctorsTable),
	})
	if err != nil {
		return nil, fmt.Errorf("profiles: failed to list doctors: %w", err)
	}

	doctors := make([]Doctor, 0, len(out.Items))
	for _, item := range out.Items {
		var doctor Doctor
		if err := attributevalue.UnmarshalMap(item, &doctor); err != nil {
			r.logger.Warn("skipping undecodable doctor item", "error", err)
			continue
		}
		doctors = append(doctors, doctor)
	}
	return doctors, nil
}

// SetDoctorPresence mirrors online state onto the doctor profile.
func (r *DynamoRepository) SetDoctorPresence(ctx context.Context, doctorID string, online bool, lastSeen time.Time) error {
	if doctorID == "" {
		return errors.New("profiles: doctorID required")
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.doctorsTable),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: doctorID},
		},
		UpdateExpression: aws.String("SET online = :online, lastSeen = :seen"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":online": &types.AttributeValueMemberBOOL{Value: online},
			":seen":   &types.AttributeValueMemberS{Value: lastSeen.UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrDoctorNotFound
		}
		return fmt.Errorf("profiles: failed to update doctor presence: %w", err)
	}
	return nil
}

func (r *DynamoRepository) put(ctx context.Context, table string, doc any) error {
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return err
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	return err
}

func (r *DynamoRepository) get(ctx context.Context, table, id string) (map[string]types.AttributeValue, error) {
	if id == "" {
		return nil, errors.New("profiles: id required")
	}
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, err
	}
	return out.Item, nil
}

var _ Repository = (*DynamoRepository)(nil)
