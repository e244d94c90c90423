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

// batchGetLimit is the DynamoDB BatchGetItem cap per request.
const batchGetLimit = 100

// ThreadRepo provides typed DynamoDB operations for the threads table.
type ThreadRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewThreadRepo(client *dynamodb.Client, tableName string) *ThreadRepo {
	return &ThreadRepo{client: client, tableName: tableName}
}

func (r *ThreadRepo) Put(ctx context.Context, t *domain.Thread) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal thread: %w", err)
	}
	// TouchActivity compares last_activity_at lexicographically; keep the
	// stored value in the same fixed-width layout.
	item["last_activity_at"] = &types.AttributeValueMemberS{Value: timeKey(t.LastActivityAt)}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ThreadRepo) Get(ctx context.Context, threadID string) (*domain.Thread, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("thread_id", threadID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("thread not found: %w", domain.ErrNotFound)
	}
	var t domain.Thread
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// TouchActivity advances last_activity_at, but never backwards: the
// condition keeps it the max over message timestamps even when writes race.
func (r *ThreadRepo) TouchActivity(ctx context.Context, threadID string, at time.Time) error {
	ts := timeKey(at)
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("thread_id", threadID),
		UpdateExpression:    aws.String("SET last_activity_at = :at"),
		ConditionExpression: aws.String("attribute_not_exists(last_activity_at) OR last_activity_at < :at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at": &types.AttributeValueMemberS{Value: ts},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return nil // an equal or newer timestamp already won
	}
	return err
}

// ActivityMap batch-reads last_activity_at for all threadIDs in chunked
// BatchGetItem calls — one round trip per 100 threads instead of one query
// per thread. Threads missing from the table are absent from the result.
func (r *ThreadRepo) ActivityMap(ctx context.Context, threadIDs []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(threadIDs))
	for _, batch := range chunk(threadIDs, batchGetLimit) {
		keys := make([]map[string]types.AttributeValue, 0, len(batch))
		for _, id := range batch {
			keys = append(keys, strKey("thread_id", id))
		}
		req := map[string]types.KeysAndAttributes{
			r.tableName: {Keys: keys},
		}
		for len(req) > 0 {
			resp, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: req})
			if err != nil {
				return nil, fmt.Errorf("batch get threads: %w", err)
			}
			var threads []domain.Thread
			if err := attributevalue.UnmarshalListOfMaps(resp.Responses[r.tableName], &threads); err != nil {
				return nil, err
			}
			for _, t := range threads {
				out[t.ThreadID] = t.LastActivityAt
			}
			req = resp.UnprocessedKeys
		}
	}
	return out, nil
}
