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

// ReadStateRepo provides typed DynamoDB operations for the read_states
// table, keyed (user_id, thread_id). Each user writes only their own rows.
type ReadStateRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewReadStateRepo(client *dynamodb.Client, tableName string) *ReadStateRepo {
	return &ReadStateRepo{client: client, tableName: tableName}
}

// MarkRead upserts the watermark. Monotonic: a stale timestamp never moves
// the watermark backwards.
func (r *ReadStateRepo) MarkRead(ctx context.Context, userID, threadID string, at time.Time) error {
	ts := timeKey(at)
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey("user_id", userID, "thread_id", threadID),
		UpdateExpression:    aws.String("SET last_read_at = :at"),
		ConditionExpression: aws.String("attribute_not_exists(last_read_at) OR last_read_at < :at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":at": &types.AttributeValueMemberS{Value: ts},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return nil
	}
	return err
}

// LastReadMap batch-reads the user's watermarks for all threadIDs. Threads
// the user has never read are absent from the result.
func (r *ReadStateRepo) LastReadMap(ctx context.Context, userID string, threadIDs []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(threadIDs))
	for _, batch := range chunk(threadIDs, batchGetLimit) {
		keys := make([]map[string]types.AttributeValue, 0, len(batch))
		for _, id := range batch {
			keys = append(keys, compositeKey("user_id", userID, "thread_id", id))
		}
		req := map[string]types.KeysAndAttributes{
			r.tableName: {Keys: keys},
		}
		for len(req) > 0 {
			resp, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: req})
			if err != nil {
				return nil, fmt.Errorf("batch get read states: %w", err)
			}
			var states []domain.ReadState
			if err := attributevalue.UnmarshalListOfMaps(resp.Responses[r.tableName], &states); err != nil {
				return nil, err
			}
			for _, s := range states {
				out[s.ThreadID] = s.LastReadAt
			}
			req = resp.UnprocessedKeys
		}
	}
	return out, nil
}
