// Command iamwatch runs the IAM alerting pipeline once, outside Lambda.
//
// It reads the same environment as the Lambda function and processes either
// a local archive, an S3 object, or a saved trigger payload.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mosajjal/iamwatch/pkg/config"
	"github.com/mosajjal/iamwatch/pkg/models"
	"github.com/mosajjal/iamwatch/pkg/pipeline"
	"github.com/mosajjal/iamwatch/pkg/slack"
	"github.com/mosajjal/iamwatch/pkg/storage"
	"github.com/mosajjal/iamwatch/pkg/storage/file"
	s3storage "github.com/mosajjal/iamwatch/pkg/storage/s3"
)

var args struct {
	config.Config
	File         string `arg:"--file" help:"local CloudTrail archive (gzip or plain JSON)"`
	Bucket       string `arg:"--bucket" help:"S3 bucket of the archive"`
	Key          string `arg:"--key" help:"S3 key of the archive"`
	Notification string `arg:"--notification" help:"file holding an SNS or S3 trigger payload"`
	DryRun       bool   `arg:"--dry-run" help:"print the message instead of posting it"`
}

// stdoutPoster prints the message a real run would post
type stdoutPoster struct{}

func (stdoutPoster) Post(_ context.Context, msg *models.AlertBatchMessage) (*slack.Response, error) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(msg); err != nil {
		return nil, err
	}
	return &slack.Response{StatusCode: 200, Body: "dry run"}, nil
}

func main() {
	if err := config.Parse(&args, os.Args[1:]); err != nil {
		log.Fatal(err)
	}
	cfg := &args.Config
	if args.DryRun {
		// nothing is posted, so the webhook settings may be absent
		if cfg.SlackHook == "" {
			cfg.SlackHook = "http://localhost/dry-run"
		}
		if cfg.SlackChannel == "" {
			cfg.SlackChannel = "#dry-run"
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	logger := cfg.Logger()

	ctx := context.Background()
	var source storage.Source
	if args.File != "" {
		source = file.NewStorage(storage.StorageConfig{Provider: "file", Logger: logger})
	} else {
		awsCfg, err := cfg.LoadAWS(ctx)
		if err != nil {
			log.Fatal(err)
		}
		if err := cfg.ResolveSecrets(ctx, awsCfg); err != nil {
			log.Fatal(err)
		}
		source = s3storage.NewStorage(storage.StorageConfig{Provider: "s3", Region: cfg.Region, Logger: logger}, awsCfg)
	}

	var overrides []func(*pipeline.Options)
	if args.DryRun {
		overrides = append(overrides, func(o *pipeline.Options) { o.Webhook = stdoutPoster{} })
	}
	p, err := pipeline.FromConfig(cfg, source, logger, overrides...)
	if err != nil {
		log.Fatal(err)
	}

	var contentType string
	switch {
	case args.File != "":
		path, err := filepath.Abs(args.File)
		if err != nil {
			log.Fatal(err)
		}
		contentType, err = p.Process(ctx, models.ObjectRef{Key: path})
		if err != nil {
			log.Fatal(err)
		}
	case args.Bucket != "" && args.Key != "":
		contentType, err = p.Process(ctx, models.ObjectRef{Bucket: args.Bucket, Key: args.Key})
		if err != nil {
			log.Fatal(err)
		}
	case args.Notification != "":
		raw, err := os.ReadFile(args.Notification)
		if err != nil {
			log.Fatal(err)
		}
		contentType, err = p.Handle(ctx, raw)
		if err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatal("one of --file, --bucket/--key or --notification is required")
	}
	fmt.Fprintln(os.Stderr, "processed", contentType)
}
