package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/teleseva/teleseva-platform/pkg/logging"
)

// ErrNotificationNotFound indicates the notification does not exist.
var ErrNotificationNotFound = errors.New("notify: notification not found")

// Store persists notifications.
type Store interface {
	Put(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID string) ([]Notification, error)
	MarkRead(ctx context.Context, id string) error
	CountUnread(ctx context.Context, userID string) (int, error)
}

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoStore persists notifications to DynamoDB.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewDynamoStore builds a DynamoDB-backed notification store.
func NewDynamoStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("notify: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("notify: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Put inserts a notification.
func (s *DynamoStore) Put(ctx context.Context, n *Notification) error {
	if n == nil || n.ID == "" {
		return errors.New("notify: notification with ID required")
	}

	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("notify: failed to marshal notification: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return fmt.Errorf("notify: failed to persist notification: %w", err)
	}
	return nil
}

// ListByUser returns a user's notifications, newest first.
func (s *DynamoStore) ListByUser(ctx context.Context, userID string) ([]Notification, error) {
	out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
		TableName:        aws.String(s.tableName),
		FilterExpression: aws.String("userId = :user"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":user": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("notify: failed to list notifications: %w", err)
	}

	notifications := make([]Notification, 0, len(out.Items))
	for _, item := range out.Items {
		var n Notification
		if err := attributevalue.UnmarshalMap(item, &n); err != nil {
			s.logger.Warn("skipping undecodable notification", "error", err)
			continue
		}
		notifications = append(notifications, n)
	}

	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications, nil
}

// MarkRead flips the read flag.
func (s *DynamoStore) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("notify: id required")
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:    aws.String("SET #read = :true"),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ExpressionAttributeNames: map[string]string{
			"#read": "read",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("notify: failed to mark notification read: %w", err)
	}
	return nil
}

// CountUnread counts a user's unread notifications.
func (s *DynamoStore) CountUnread(ctx context.Context, userID string) (int, error) {
	notifications, err := s.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range notifications {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

var _ Store = (*DynamoStore)(nil)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu            sync.RWMutex
	notifications map[string]*Notification
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{notifications: make(map[string]*Notification)}
}

func (s *MemoryStore) Put(_ context.Context, n *Notification) error {
	if n == nil || n.ID == "" {
		return errors.New("notify: notification with ID required")
	}
	s.mu.Lock()
	clone := *n
	s.notifications[n.ID] = &clone
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notifications := make([]Notification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID {
			notifications = append(notifications, *n)
		}
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return ErrNotificationNotFound
	}
	n.Read = true
	return nil
}

func (s *MemoryStore) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

var _ Store = (*MemoryStore)(nil)
