package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/modelsync/internal/flagx"
	"github.com/dmitrijs2005/modelsync/internal/timex"
)

// jsonConfig is an intermediate DTO used only for reading JSON configuration
// files. Interval fields use timex.Duration, which accepts both string values
// such as "30s" and integer nanoseconds. After unmarshalling, non-empty
// fields are copied into the runtime Config.
type jsonConfig struct {
	QueueURL       *string `json:"queue_url"`
	Bucket         *string `json:"bucket"`
	Region         *string `json:"region"`
	S3AccessKey    *string `json:"s3_access_key"`
	S3SecretKey    *string `json:"s3_secret_key"`
	S3BaseEndpoint *string `json:"s3_base_endpoint"`
	TopicARN       *string `json:"topic_arn"`
	BaseDir        *string `json:"base_dir"`
	HTTPAddr       *string `json:"http_addr"`

	MaxMessages       *int32          `json:"max_messages"`
	ReceiveWait       *timex.Duration `json:"receive_wait"`
	VisibilityTimeout *timex.Duration `json:"visibility_timeout"`
	IdlePause         *timex.Duration `json:"idle_pause"`
	ErrorBackoff      *timex.Duration `json:"error_backoff"`
	HealthThreshold   *timex.Duration `json:"health_threshold"`
	DiskSlack         *int64          `json:"disk_slack"`
}

// parseJSON loads configuration values from the JSON file named by the
// -c/-config flags into the provided Config. If no flag is given, nothing is
// loaded. An unreadable or invalid file panics: a config file that was
// explicitly requested but cannot be used is a startup error.
func parseJSON(config *Config) {
	path := flagx.JSONConfigFlag()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &jsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, src *timex.Duration) {
		if src != nil {
			*dst = src.Duration
		}
	}

	setString(&config.QueueURL, c.QueueURL)
	setString(&config.Bucket, c.Bucket)
	setString(&config.Region, c.Region)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.TopicARN, c.TopicARN)
	setString(&config.BaseDir, c.BaseDir)
	setString(&config.HTTPAddr, c.HTTPAddr)

	if c.MaxMessages != nil {
		config.MaxMessages = *c.MaxMessages
	}
	setDuration(&config.ReceiveWait, c.ReceiveWait)
	setDuration(&config.VisibilityTimeout, c.VisibilityTimeout)
	setDuration(&config.IdlePause, c.IdlePause)
	setDuration(&config.ErrorBackoff, c.ErrorBackoff)
	setDuration(&config.HealthThreshold, c.HealthThreshold)
	if c.DiskSlack != nil {
		config.DiskSlack = *c.DiskSlack
	}
}
