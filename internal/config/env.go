package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env file in
// the working directory is loaded first (ignored if absent) so container
// deployments can ship settings as an env file.
//
// Recognized variables:
//
//	SQS_QUEUE_URL, S3_BUCKET, AWS_REGION, S3_ACCESS_KEY, S3_SECRET_KEY,
//	S3_ENDPOINT, SNS_TOPIC_ARN, MODEL_BASE_DIR, HTTP_ADDR,
//	RECEIVE_WAIT, VISIBILITY_TIMEOUT, IDLE_PAUSE, ERROR_BACKOFF,
//	HEALTH_THRESHOLD
//
// Duration variables use Go duration syntax ("20s", "15m"); invalid values
// are ignored in favor of the current setting.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	setString := func(dst *string, name string) {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, name string) {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			return
		}
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}

	setString(&config.QueueURL, "SQS_QUEUE_URL")
	setString(&config.Bucket, "S3_BUCKET")
	setString(&config.Region, "AWS_REGION")
	setString(&config.S3AccessKey, "S3_ACCESS_KEY")
	setString(&config.S3SecretKey, "S3_SECRET_KEY")
	setString(&config.S3BaseEndpoint, "S3_ENDPOINT")
	setString(&config.TopicARN, "SNS_TOPIC_ARN")
	setString(&config.BaseDir, "MODEL_BASE_DIR")
	setString(&config.HTTPAddr, "HTTP_ADDR")

	setDuration(&config.ReceiveWait, "RECEIVE_WAIT")
	setDuration(&config.VisibilityTimeout, "VISIBILITY_TIMEOUT")
	setDuration(&config.IdlePause, "IDLE_PAUSE")
	setDuration(&config.ErrorBackoff, "ERROR_BACKOFF")
	setDuration(&config.HealthThreshold, "HEALTH_THRESHOLD")
}
