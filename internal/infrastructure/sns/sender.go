package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/go-account-api/internal/config"
	"github.com/go-account-api/internal/infrastructure/awsconf"
)

// API is the subset of the SNS client used by Publisher.
type API interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// verificationMessage is the payload consumed by the mailing lambda.
type verificationMessage struct {
	Email            string `json:"email"`
	VerificationLink string `json:"verificationLink"`
}

// Publisher hands verification links to an SNS topic.
type Publisher struct {
	client   API
	topicARN string
}

func NewPublisher(ctx context.Context, cfg *config.Config) (*Publisher, error) {
	if cfg.SNSTopicARN == "" {
		return nil, errors.New("sns: SNS_TOPIC_ARN is not set")
	}
	awsCfg, err := awsconf.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, fmt.Errorf("sns client: %w", err)
	}
	clientOpts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &Publisher{client: sns.NewFromConfig(awsCfg, clientOpts...), topicARN: cfg.SNSTopicARN}, nil
}

// Deliver publishes the verification link for email.
func (p *Publisher) Deliver(ctx context.Context, email, link string) error {
	body, err := json.Marshal(verificationMessage{Email: email, VerificationLink: link})
	if err != nil {
		return fmt.Errorf("marshal sns message: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
