package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/mosajjal/iamwatch/pkg/config"
	"github.com/mosajjal/iamwatch/pkg/pipeline"
	"github.com/mosajjal/iamwatch/pkg/storage"
	s3storage "github.com/mosajjal/iamwatch/pkg/storage/s3"
)

var handler *pipeline.Pipeline

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Unable to load configuration: %v", err)
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)

	ctx := context.Background()
	awsCfg, err := cfg.LoadAWS(ctx)
	if err != nil {
		log.Fatalf("Unable to load AWS config: %v", err)
	}
	if err := cfg.ResolveSecrets(ctx, awsCfg); err != nil {
		log.Fatalf("Unable to resolve secrets: %v", err)
	}

	source := s3storage.NewStorage(storage.StorageConfig{Provider: "s3", Region: cfg.Region, Logger: logger}, awsCfg)
	handler, err = pipeline.FromConfig(cfg, source, logger)
	if err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	logger.Info("AWS Lambda handler initialized successfully")
}

// HandleRequest receives the SNS (or direct S3) notification and returns the
// content type of the processed archive
func HandleRequest(ctx context.Context, event json.RawMessage) (string, error) {
	return handler.Handle(ctx, event)
}

func main() {
	lambda.Start(HandleRequest)
}
