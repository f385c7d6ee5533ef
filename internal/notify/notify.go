// Package notify publishes downstream notifications about completed local
// updates, so co-located consumers can react to a freshly installed artifact.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/modelsync/internal/config"
)

// SNSAPI is the subset of the SNS client the publisher uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SyncedNotification describes one completed local update.
type SyncedNotification struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	LocalPath   string    `json:"local_path"`
	Size        int64     `json:"size"`
	CompletedAt time.Time `json:"completed_at"`
	DownloadMS  int64     `json:"download_ms"`
}

type Publisher struct {
	api      SNSAPI
	topicARN string
}

func NewPublisher(api SNSAPI, topicARN string) *Publisher {
	return &Publisher{api: api, topicARN: topicARN}
}

// NewPublisherFromConfig builds a Publisher backed by a real SNS client.
// Returns nil when no topic is configured, which disables publishing.
func NewPublisherFromConfig(ctx context.Context, cfg *config.Config) (*Publisher, error) {
	if cfg.TopicARN == "" {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
	})

	return NewPublisher(client, cfg.TopicARN), nil
}

// PublishSynced sends the notification as a JSON message. The key's first
// two path segments become the "category" and "model_type" message
// attributes so subscribers can filter without parsing the body. Publish
// failures are returned to the caller; there is no retry.
func (p *Publisher) PublishSynced(ctx context.Context, n SyncedNotification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	attrs := map[string]types.MessageAttributeValue{}
	segments := strings.Split(n.Key, "/")
	if len(segments) >= 2 {
		attrs["category"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(segments[0]),
		}
		attrs["model_type"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(segments[1]),
		}
	}

	_, err = p.api.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(p.topicARN),
		Message:           aws.String(string(body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("publish notification for %s: %w", n.Key, err)
	}
	return nil
}
