package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-notify-nosql/internal/domain"
)

// NotificationRepo provides typed DynamoDB operations for the notifications
// table. It also owns the transactional notification+job creation, which is
// why it knows the jobs table name.
type NotificationRepo struct {
	client    *dynamodb.Client
	tableName string
	jobsTable string
}

func NewNotificationRepo(client *dynamodb.Client, tableName, jobsTable string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName, jobsTable: jobsTable}
}

// idemPK derives the partition key of the idempotency marker row for a
// (user, key) pair. Markers live in the notifications table so the
// uniqueness check shares a transaction with the notification put.
func idemPK(userID, key string) string {
	return "idem#" + userID + "#" + key
}

// CreateWithJob writes the notification, its pending job and (when an
// idempotency key is set) the dedup marker as one transaction. A concurrent
// request carrying the same (user_id, idempotency_key) loses the marker's
// conditional put, cancelling the whole transaction; that surfaces as
// domain.ErrConflict so the caller can fall back to the lookup path.
func (r *NotificationRepo) CreateWithJob(ctx context.Context, n *domain.Notification, j *domain.Job) error {
	notifItem, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	jobItem, err := attributevalue.MarshalMap(j)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	items := []types.TransactWriteItem{
		{Put: &types.Put{
			TableName:           aws.String(r.tableName),
			Item:                notifItem,
			ConditionExpression: aws.String("attribute_not_exists(notification_id)"),
		}},
		{Put: &types.Put{
			TableName:           aws.String(r.jobsTable),
			Item:                jobItem,
			ConditionExpression: aws.String("attribute_not_exists(job_id)"),
		}},
	}
	if n.IdempotencyKey != "" {
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName: aws.String(r.tableName),
			Item: map[string]types.AttributeValue{
				"notification_id":     &types.AttributeValueMemberS{Value: idemPK(n.UserID, n.IdempotencyKey)},
				"user_id":             &types.AttributeValueMemberS{Value: n.UserID},
				"ref_notification_id": &types.AttributeValueMemberS{Value: n.NotificationID},
			},
			ConditionExpression: aws.String("attribute_not_exists(notification_id)"),
		}})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		if isConditionalCancellation(err) {
			return fmt.Errorf("notification already exists for idempotency key: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}

// GetByIdempotencyKey resolves the marker row and loads the original
// notification it points at. Returns domain.ErrNotFound when no marker
// exists for the pair.
func (r *NotificationRepo) GetByIdempotencyKey(ctx context.Context, userID, key string) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("notification_id", idemPK(userID, key)),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("no notification for idempotency key: %w", domain.ErrNotFound)
	}
	ref, ok := out.Item["ref_notification_id"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("idempotency marker missing reference: %w", domain.ErrNotFound)
	}
	return r.Get(ctx, ref.Value)
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("notification_id", notificationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification not found: %w", domain.ErrNotFound)
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// List queries the user_id-created_at GSI newest-first, excluding
// soft-deleted rows and idempotency markers. since is optional; the zero
// value disables the lower bound.
func (r *NotificationRepo) List(ctx context.Context, userID string, limit int32, since time.Time) ([]domain.Notification, error) {
	keyCond := "user_id = :uid"
	values := map[string]types.AttributeValue{
		":uid": &types.AttributeValueMemberS{Value: userID},
		":f":   &types.AttributeValueMemberBOOL{Value: false},
	}
	if !since.IsZero() {
		keyCond += " AND created_at > :since"
		values[":since"] = &types.AttributeValueMemberS{Value: since.UTC().Format(time.RFC3339)}
	}
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("user_id-created_at-index"),
		KeyConditionExpression:    aws.String(keyCond),
		FilterExpression:          aws.String("is_deleted = :f"),
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(limit),
	})
	if err != nil {
		return nil, err
	}
	var notifications []domain.Notification
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead flips is_read on each id owned by userID and returns how many
// rows actually changed. Ids that don't exist or belong to someone else are
// skipped, never an error.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	count := 0
	for _, id := range ids {
		_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(r.tableName),
			Key:                 strKey("notification_id", id),
			UpdateExpression:    aws.String("SET is_read = :t"),
			ConditionExpression: aws.String("user_id = :uid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":t":   &types.AttributeValueMemberBOOL{Value: true},
				":uid": &types.AttributeValueMemberS{Value: userID},
			},
		})
		if err != nil {
			if isConditionalCheckFailed(err) {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

// SoftDelete flags the notification as deleted, only when owned by userID.
func (r *NotificationRepo) SoftDelete(ctx context.Context, userID, notificationID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("notification_id", notificationID),
		UpdateExpression:    aws.String("SET is_deleted = :t"),
		ConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":t":   &types.AttributeValueMemberBOOL{Value: true},
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return fmt.Errorf("notification not found: %w", domain.ErrNotFound)
		}
		return err
	}
	return nil
}

// SetSent records the delivery outcome. Worker-only; no ownership condition.
func (r *NotificationRepo) SetSent(ctx context.Context, notificationID string, sent bool) error {
	ue, err := buildUpdateExpr(map[string]interface{}{"sent": sent})
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("notification_id", notificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}
