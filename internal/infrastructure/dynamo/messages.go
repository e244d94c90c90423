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

// MessageRepo provides typed DynamoDB operations for the messages table.
// Messages are keyed (thread_id, message_id) so a thread's full set is one
// partition query.
type MessageRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewMessageRepo(client *dynamodb.Client, tableName string) *MessageRepo {
	return &MessageRepo{client: client, tableName: tableName}
}

// Put appends a message. The condition rejects a second write of the same
// message id, keeping ids immutable once created.
func (r *MessageRepo) Put(ctx context.Context, m *domain.Message) error {
	item, err := attributevalue.MarshalMap(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(message_id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("message %s already exists: %w", m.MessageID, domain.ErrConflict)
	}
	return err
}

func (r *MessageRepo) Get(ctx context.Context, threadID, messageID string) (*domain.Message, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("thread_id", threadID, "message_id", messageID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("message not found: %w", domain.ErrNotFound)
	}
	var m domain.Message
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByThread returns every message in the thread, following pagination.
// Callers sort by (created_at, message_id); the range key only orders by id.
func (r *MessageRepo) ListByThread(ctx context.Context, threadID string) ([]domain.Message, error) {
	var messages []domain.Message
	var startKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			KeyConditionExpression: aws.String("thread_id = :tid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":tid": &types.AttributeValueMemberS{Value: threadID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		var page []domain.Message
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		messages = append(messages, page...)
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return messages, nil
}

// SetReactions overwrites the message's reaction map.
func (r *MessageRepo) SetReactions(ctx context.Context, threadID, messageID string, reactions map[string][]string) error {
	av, err := attributevalue.Marshal(reactions)
	if err != nil {
		return fmt.Errorf("marshal reactions: %w", err)
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(r.tableName),
		Key:              compositeKey("thread_id", threadID, "message_id", messageID),
		UpdateExpression: aws.String("SET reactions = :r"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":r": av,
		},
		ConditionExpression: aws.String("attribute_exists(message_id)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("message not found: %w", domain.ErrNotFound)
	}
	return err
}

// ResolveProposal flips the proposal to a terminal state. The condition
// guards on the current state still being "proposed", so only one resolution
// ever lands; a losing duplicate gets ErrAlreadyResolved.
func (r *MessageRepo) ResolveProposal(ctx context.Context, threadID, messageID string, state domain.ProposalState, userID string, at time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("thread_id", threadID, "message_id", messageID),
		UpdateExpression: aws.String(
			"SET proposal.#st = :state, proposal.resolved_by = :by, proposal.resolved_at = :at"),
		ConditionExpression: aws.String("attribute_exists(proposal) AND proposal.#st = :proposed"),
		ExpressionAttributeNames: map[string]string{
			"#st": "state",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":state":    &types.AttributeValueMemberS{Value: string(state)},
			":by":       &types.AttributeValueMemberS{Value: userID},
			":at":       &types.AttributeValueMemberS{Value: timeKey(at)},
			":proposed": &types.AttributeValueMemberS{Value: string(domain.ProposalProposed)},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("resolve proposal %s: %w", messageID, domain.ErrAlreadyResolved)
	}
	return err
}
