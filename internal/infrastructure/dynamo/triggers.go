package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tablemend/tablemend-api/internal/domain"
)

// batchWriteLimit is the DynamoDB BatchWriteItem cap per request.
const batchWriteLimit = 25

// TriggerRepo provides typed DynamoDB operations for the
// notification_triggers table. The processed flag is stored as N 0/1 so the
// processed-created_at GSI can serve both the dispatch poller (processed=0)
// and the retention sweeper (processed=1, created_at < cutoff).
type TriggerRepo struct {
	client    triggerAPI
	tableName string
}

// triggerAPI is the slice of the DynamoDB client the repo uses, so
// partial-failure behavior (unprocessed batch writes) stays testable.
type triggerAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

func NewTriggerRepo(client *dynamodb.Client, tableName string) *TriggerRepo {
	return &TriggerRepo{client: client, tableName: tableName}
}

func (r *TriggerRepo) Put(ctx context.Context, t *domain.NotificationTrigger) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal trigger: %w", err)
	}
	// created_at is the GSI range key the sweeper compares against a cutoff;
	// keep it in the fixed-width layout.
	item["created_at"] = &types.AttributeValueMemberS{Value: timeKey(t.CreatedAt)}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *TriggerRepo) Get(ctx context.Context, triggerID string) (*domain.NotificationTrigger, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("trigger_id", triggerID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("trigger not found: %w", domain.ErrNotFound)
	}
	var t domain.NotificationTrigger
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// MarkProcessed is the one terminal write of a dispatch. The condition
// requires processed=0, so of two racing duplicate invocations exactly one
// lands; the loser gets ErrAlreadyProcessed and treats it as a no-op.
func (r *TriggerRepo) MarkProcessed(ctx context.Context, triggerID string, outcome domain.DispatchOutcome, at time.Time) error {
	values := map[string]types.AttributeValue{
		":one":  &types.AttributeValueMemberN{Value: "1"},
		":zero": &types.AttributeValueMemberN{Value: "0"},
		":sc":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", outcome.SuccessCount)},
		":fc":   &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", outcome.FailureCount)},
		":at":   &types.AttributeValueMemberS{Value: timeKey(at)},
	}
	expr := "SET processed = :one, success_count = :sc, failure_count = :fc, processed_at = :at"
	if outcome.Error != "" {
		expr += ", #err = :err"
		values[":err"] = &types.AttributeValueMemberS{Value: outcome.Error}
	}
	input := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("trigger_id", triggerID),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("processed = :zero"),
		ExpressionAttributeValues: values,
	}
	if outcome.Error != "" {
		input.ExpressionAttributeNames = map[string]string{"#err": "error"}
	}
	_, err := r.client.UpdateItem(ctx, input)
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("trigger %s: %w", triggerID, domain.ErrAlreadyProcessed)
	}
	return err
}

// ListUnprocessed returns up to limit pending triggers, oldest first, for
// the recovery poller.
func (r *TriggerRepo) ListUnprocessed(ctx context.Context, limit int32) ([]domain.NotificationTrigger, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("processed-created_at-index"),
		KeyConditionExpression: aws.String("processed = :zero"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
		ScanIndexForward: aws.Bool(true),
		Limit:            aws.Int32(limit),
	})
	if err != nil {
		return nil, err
	}
	var triggers []domain.NotificationTrigger
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &triggers); err != nil {
		return nil, err
	}
	return triggers, nil
}

// DeleteProcessedBefore removes processed triggers created before cutoff and
// returns how many were confirmed deleted. Used by the retention sweeper only.
func (r *TriggerRepo) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	ts := timeKey(cutoff)
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String("processed-created_at-index"),
			KeyConditionExpression: aws.String("processed = :one AND created_at < :cutoff"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":one":    &types.AttributeValueMemberN{Value: "1"},
				":cutoff": &types.AttributeValueMemberS{Value: ts},
			},
			ProjectionExpression: aws.String("trigger_id"),
			Limit:                aws.Int32(batchWriteLimit * 4),
		})
		if err != nil {
			return deleted, fmt.Errorf("query expired triggers: %w", err)
		}
		if len(out.Items) == 0 {
			return deleted, nil
		}

		var ids []struct {
			TriggerID string `dynamodbav:"trigger_id"`
		}
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &ids); err != nil {
			return deleted, err
		}
		for _, batch := range chunk(ids, batchWriteLimit) {
			reqs := make([]types.WriteRequest, 0, len(batch))
			for _, id := range batch {
				reqs = append(reqs, types.WriteRequest{
					DeleteRequest: &types.DeleteRequest{Key: strKey("trigger_id", id.TriggerID)},
				})
			}
			// Under throttling BatchWriteItem succeeds with leftovers in
			// UnprocessedItems; resubmit those until none remain and count
			// only confirmed deletes.
			pending := map[string][]types.WriteRequest{r.tableName: reqs}
			for len(pending) > 0 {
				out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
					RequestItems: pending,
				})
				if err != nil {
					return deleted, fmt.Errorf("batch delete triggers: %w", err)
				}
				deleted += len(pending[r.tableName]) - len(out.UnprocessedItems[r.tableName])
				pending = out.UnprocessedItems
			}
		}
	}
}
