package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-account-api/internal/domain"
)

// ImageRepo stores profile image metadata.
// PK: user_id, so an account holds at most one row.
type ImageRepo struct {
	client    API
	tableName string
}

func NewImageRepo(client API, tableName string) *ImageRepo {
	return &ImageRepo{client: client, tableName: tableName}
}

// Create fails with domain.ErrConflict when the account already has an image.
func (r *ImageRepo) Create(ctx context.Context, img *domain.ProfileImage) error {
	item, err := attributevalue.MarshalMap(img)
	if err != nil {
		return fmt.Errorf("marshal image: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(user_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("image for %s: %w", img.AccountID, domain.ErrConflict)
		}
		return fmt.Errorf("put image: %w", err)
	}
	return nil
}

func (r *ImageRepo) FindByAccountID(ctx context.Context, accountID string) (*domain.ProfileImage, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey("user_id", accountID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("image not found: %w", domain.ErrNotFound)
	}
	var img domain.ProfileImage
	if err := attributevalue.UnmarshalMap(out.Item, &img); err != nil {
		return nil, fmt.Errorf("unmarshal image: %w", err)
	}
	return &img, nil
}

// Delete removes img only if it is still the account's current image.
func (r *ImageRepo) Delete(ctx context.Context, img *domain.ProfileImage) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("user_id", img.AccountID),
		ConditionExpression: aws.String("image_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: img.ImageID},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("image %s: %w", img.ImageID, domain.ErrNotFound)
		}
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}
