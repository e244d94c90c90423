package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tablemend/tablemend-api/internal/domain"
)

// TypingStateRepo provides typed DynamoDB operations for the typing_states
// table, keyed (thread_id, user_id). Rows carry an expires_at TTL attribute
// so DynamoDB reaps stale presence on its own.
type TypingStateRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewTypingStateRepo(client *dynamodb.Client, tableName string) *TypingStateRepo {
	return &TypingStateRepo{client: client, tableName: tableName}
}

// Set upserts the full typing row; writes are last-wins per (user, thread).
func (r *TypingStateRepo) Set(ctx context.Context, t *domain.TypingState) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal typing state: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// ListByThread returns all typing rows for the thread. Freshness filtering
// happens in the service; DynamoDB TTL deletion is minute-grained at best.
func (r *TypingStateRepo) ListByThread(ctx context.Context, threadID string) ([]domain.TypingState, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("thread_id = :tid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tid": &types.AttributeValueMemberS{Value: threadID},
		},
	})
	if err != nil {
		return nil, err
	}
	var states []domain.TypingState
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &states); err != nil {
		return nil, err
	}
	return states, nil
}

// Delete removes the row outright, used when a view closes.
func (r *TypingStateRepo) Delete(ctx context.Context, threadID, userID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("thread_id", threadID, "user_id", userID),
	})
	return err
}
