package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/modelsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-q string   SQS queue URL
//	-b string   S3 bucket name
//	-g string   AWS region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-t string   SNS topic ARN for downstream notifications
//	-m string   local base directory for mirrored artifacts
//	-a string   HTTP bind address (e.g., ":8080")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with flags owned elsewhere.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-q", "-b", "-g", "-e", "-t", "-m", "-a"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.QueueURL, "q", config.QueueURL, "SQS queue URL")
	fs.StringVar(&config.Bucket, "b", config.Bucket, "S3 bucket name")
	fs.StringVar(&config.Region, "g", config.Region, "AWS region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.TopicARN, "t", config.TopicARN, "SNS topic ARN")
	fs.StringVar(&config.BaseDir, "m", config.BaseDir, "local artifact base directory")
	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP bind address")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
