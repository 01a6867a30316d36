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

// claimBatchSize bounds how many pending candidates a single ClaimNext call
// inspects before giving up. Under contention another worker may win the
// oldest job; trying a few more avoids an idle cycle.
const claimBatchSize = 5

// jobsAPI is the slice of the DynamoDB client the repo uses. *dynamodb.Client
// satisfies it.
type jobsAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// JobRepo provides typed DynamoDB operations for the notification_jobs table.
type JobRepo struct {
	client    jobsAPI
	tableName string
}

func NewJobRepo(client jobsAPI, tableName string) *JobRepo {
	return &JobRepo{client: client, tableName: tableName}
}

func (r *JobRepo) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("job_id", jobID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("job not found: %w", domain.ErrNotFound)
	}
	var j domain.Job
	if err := attributevalue.UnmarshalMap(out.Item, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// GetByNotification returns the job owning a notification (1:1 at creation).
func (r *JobRepo) GetByNotification(ctx context.Context, notificationID string) (*domain.Job, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("notification_id-index"),
		KeyConditionExpression: aws.String("notification_id = :nid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":nid": &types.AttributeValueMemberS{Value: notificationID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("job not found: %w", domain.ErrNotFound)
	}
	var j domain.Job
	if err := attributevalue.UnmarshalMap(out.Items[0], &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// ClaimNext selects the oldest pending job and transitions it to processing
// with a conditional update. The condition makes the claim a compare-and-swap
// on status: with N concurrent workers exactly one of them wins each job, the
// rest see the condition fail and move to the next candidate. Returns
// (nil, nil) when no pending job exists.
//
// Known limitation: there is no lease on processing. A job whose worker died
// mid-pipeline stays in processing until someone intervenes.
func (r *JobRepo) ClaimNext(ctx context.Context) (*domain.Job, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("status-created_at-index"),
		KeyConditionExpression: aws.String("#st = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#st": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: string(domain.JobPending)},
		},
		ScanIndexForward: aws.Bool(true), // oldest first
		Limit:            aws.Int32(claimBatchSize),
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for _, item := range out.Items {
		idAttr, ok := item["job_id"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		claimed, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(r.tableName),
			Key:                 strKey("job_id", idAttr.Value),
			UpdateExpression:    aws.String("SET #st = :processing, processing_at = :now"),
			ConditionExpression: aws.String("#st = :pending"),
			ExpressionAttributeNames: map[string]string{
				"#st": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":processing": &types.AttributeValueMemberS{Value: string(domain.JobProcessing)},
				":pending":    &types.AttributeValueMemberS{Value: string(domain.JobPending)},
				":now":        &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			},
			ReturnValues: types.ReturnValueAllNew,
		})
		if err != nil {
			if isConditionalCheckFailed(err) {
				// Another worker claimed it first.
				continue
			}
			return nil, err
		}
		var j domain.Job
		if err := attributevalue.UnmarshalMap(claimed.Attributes, &j); err != nil {
			return nil, err
		}
		return &j, nil
	}
	return nil, nil
}

// MarkSent moves the job to its sent terminal state.
func (r *JobRepo) MarkSent(ctx context.Context, jobID string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("job_id", jobID),
		UpdateExpression: aws.String("SET #st = :sent, sent_at = :now"),
		ExpressionAttributeNames: map[string]string{
			"#st": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sent": &types.AttributeValueMemberS{Value: string(domain.JobSent)},
			":now":  &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	return err
}

// MarkFailed moves the job to its failed terminal state and records the
// error. incRetries distinguishes a failed delivery attempt (counted) from a
// structural failure like a missing notification (not counted). Nothing
// re-queues a failed job.
func (r *JobRepo) MarkFailed(ctx context.Context, jobID, lastError string, incRetries bool) error {
	expr := "SET #st = :failed, last_error = :err"
	values := map[string]types.AttributeValue{
		":failed": &types.AttributeValueMemberS{Value: string(domain.JobFailed)},
		":err":    &types.AttributeValueMemberS{Value: lastError},
	}
	if incRetries {
		expr += " ADD retries :one"
		values[":one"] = &types.AttributeValueMemberN{Value: "1"}
	}
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              strKey("job_id", jobID),
		UpdateExpression: aws.String(expr),
		ExpressionAttributeNames: map[string]string{
			"#st": "status",
		},
		ExpressionAttributeValues: values,
	})
	return err
}
