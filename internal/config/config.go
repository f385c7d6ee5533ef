// Package config handles configuration for the sync service, including
// defaults, JSON overlay, environment variables, and command-line flags.
package config

import (
	"errors"
	"time"
)

// Config holds runtime settings for the artifact sync service.
//
// Fields:
//   - QueueURL: SQS queue receiving S3 change notifications.
//   - Bucket / Region: source bucket with model artifacts.
//   - S3AccessKey / S3SecretKey: static credentials for the S3-compatible
//     backend; leave empty to use the default AWS credential chain.
//   - S3BaseEndpoint: custom endpoint (MinIO etc.); empty for AWS.
//   - TopicARN: SNS topic for downstream "model updated" notifications;
//     empty disables publishing.
//   - BaseDir: local root under which artifacts are mirrored.
//   - HTTPAddr: bind address for the health/trigger HTTP endpoint.
type Config struct {
	QueueURL       string
	Bucket         string
	Region         string
	S3AccessKey    string
	S3SecretKey    string
	S3BaseEndpoint string
	TopicARN       string
	BaseDir        string
	HTTPAddr       string

	MaxMessages       int32
	ReceiveWait       time.Duration
	VisibilityTimeout time.Duration
	IdlePause         time.Duration
	ErrorBackoff      time.Duration
	HealthThreshold   time.Duration

	// DiskSlack is the headroom required on the target volume beyond the
	// size of the object being downloaded.
	DiskSlack int64
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.Region = "us-east-1"
	c.BaseDir = "/models"
	c.HTTPAddr = ":8080"
	c.MaxMessages = 10
	c.ReceiveWait = 20 * time.Second
	c.VisibilityTimeout = 15 * time.Minute
	c.IdlePause = 1 * time.Second
	c.ErrorBackoff = 30 * time.Second
	c.HealthThreshold = 10 * time.Minute
	c.DiskSlack = 100 << 20
}

// Validate reports whether the required settings are present. The HTTP
// readiness probe uses the same predicate.
func (c *Config) Validate() error {
	if c.QueueURL == "" {
		return errors.New("queue URL is required")
	}
	if c.Bucket == "" {
		return errors.New("bucket name is required")
	}
	if c.BaseDir == "" {
		return errors.New("base directory is required")
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment, and finally command-line
// flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJSON(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
