// Package queue wraps the change-notification queue. Receives are batched
// and long-polled; a message that is not deleted becomes visible again after
// the visibility timeout, which is the pipeline's only retry mechanism.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/dmitrijs2005/modelsync/internal/config"
)

// SQSAPI is the subset of the SQS client the consumer uses. It is satisfied
// by *sqs.Client and by test fakes.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Message is one received queue message.
type Message struct {
	Body          string
	ReceiptHandle string
}

type Consumer struct {
	api               SQSAPI
	queueURL          string
	maxMessages       int32
	receiveWait       time.Duration
	visibilityTimeout time.Duration
}

func NewConsumer(api SQSAPI, queueURL string, maxMessages int32, receiveWait, visibilityTimeout time.Duration) *Consumer {
	return &Consumer{
		api:               api,
		queueURL:          queueURL,
		maxMessages:       maxMessages,
		receiveWait:       receiveWait,
		visibilityTimeout: visibilityTimeout,
	}
}

// NewConsumerFromConfig builds a Consumer backed by a real SQS client.
func NewConsumerFromConfig(ctx context.Context, cfg *config.Config) (*Consumer, error) {
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

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		}
	})

	return NewConsumer(client, cfg.QueueURL, cfg.MaxMessages, cfg.ReceiveWait, cfg.VisibilityTimeout), nil
}

// Receive long-polls the queue for up to the configured batch size. The
// visibility timeout must cover the worst-case processing time of one
// message, so an unfinished message is redelivered rather than duplicated.
func (c *Consumer) Receive(ctx context.Context) ([]Message, error) {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: c.maxMessages,
		WaitTimeSeconds:     int32(c.receiveWait.Seconds()),
		VisibilityTimeout:   int32(c.visibilityTimeout.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := Message{}
		if m.Body != nil {
			msg.Body = *m.Body
		}
		if m.ReceiptHandle != nil {
			msg.ReceiptHandle = *m.ReceiptHandle
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Delete acknowledges a fully processed message.
func (c *Consumer) Delete(ctx context.Context, receiptHandle string) error {
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}
