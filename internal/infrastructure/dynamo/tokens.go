package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-account-api/internal/domain"
)

// tokenRetention keeps expired tokens around long enough that a late click
// still reports expiry rather than an unknown token.
const tokenRetention = 24 * time.Hour

// tokenItem is the stored shape of a verification token. TTL is the epoch
// second at which DynamoDB may reap the row.
type tokenItem struct {
	Token     string    `dynamodbav:"token"`
	TokenID   string    `dynamodbav:"token_id"`
	AccountID string    `dynamodbav:"user_id"`
	ExpiresAt time.Time `dynamodbav:"expires_at"`
	CreatedAt time.Time `dynamodbav:"created_at"`
	TTL       int64     `dynamodbav:"ttl"`
}

func (it tokenItem) toDomain() *domain.VerificationToken {
	return &domain.VerificationToken{
		TokenID:   it.TokenID,
		Token:     it.Token,
		AccountID: it.AccountID,
		ExpiresAt: it.ExpiresAt,
		CreatedAt: it.CreatedAt,
	}
}

// TokenRepo stores verification tokens.
// PK: token. TTL attribute: ttl.
type TokenRepo struct {
	client    API
	tableName string
}

func NewTokenRepo(client API, tableName string) *TokenRepo {
	return &TokenRepo{client: client, tableName: tableName}
}

func (r *TokenRepo) Create(ctx context.Context, t *domain.VerificationToken) error {
	item, err := attributevalue.MarshalMap(tokenItem{
		Token:     t.Token,
		TokenID:   t.TokenID,
		AccountID: t.AccountID,
		ExpiresAt: t.ExpiresAt,
		CreatedAt: t.CreatedAt,
		TTL:       t.ExpiresAt.Add(tokenRetention).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#t)"),
		ExpressionAttributeNames: map[string]string{"#t": "token"},
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("token collision: %w", domain.ErrConflict)
		}
		return fmt.Errorf("put token: %w", err)
	}
	return nil
}

func (r *TokenRepo) FindByToken(ctx context.Context, token string) (*domain.VerificationToken, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("token", token),
	})
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("token not found: %w", domain.ErrNotFound)
	}
	var it tokenItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal token: %w", err)
	}
	return it.toDomain(), nil
}
