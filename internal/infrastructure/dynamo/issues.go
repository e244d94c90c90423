package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tablemend/tablemend-api/internal/domain"
)

// IssueRepo applies accepted proposals to the issues table, keyed issue_id.
// Issues are owned by the maintenance backend; this repo only mutates the
// three fields a proposal may target.
type IssueRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewIssueRepo(client *dynamodb.Client, tableName string) *IssueRepo {
	return &IssueRepo{client: client, tableName: tableName}
}

// ApplyChange sets the proposed field on an existing issue. The whitelist on
// ProposalField is what keeps this from becoming a generic update path.
func (r *IssueRepo) ApplyChange(ctx context.Context, issueID string, field domain.ProposalField, value string) error {
	switch field {
	case domain.ProposalFieldStatus, domain.ProposalFieldPriority, domain.ProposalFieldCost:
	default:
		return fmt.Errorf("unknown proposal field %q: %w", field, domain.ErrBadRequest)
	}
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("issue_id", issueID),
		UpdateExpression:    aws.String("SET #f = :v, updated_at = :at"),
		ConditionExpression: aws.String("attribute_exists(issue_id)"),
		ExpressionAttributeNames: map[string]string{
			"#f": string(field),
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v":  &types.AttributeValueMemberS{Value: value},
			":at": &types.AttributeValueMemberS{Value: timeKey(time.Now())},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("issue %s: %w", issueID, domain.ErrNotFound)
	}
	return err
}
