package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/aws/aws-lambda-go/events"

	"github.com/mosajjal/iamwatch/pkg/models"
	"github.com/mosajjal/iamwatch/pkg/provider"
)

// SNS can wrap an S3 notification; nothing legitimate nests deeper
const maxEnvelopeDepth = 2

// Provider implements the CloudProvider interface for AWS
type Provider struct{}

// NewProvider creates a new AWS provider
func NewProvider() provider.CloudProvider {
	return &Provider{}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "aws"
}

// ParseNotification accepts an S3 event notification, either delivered
// directly or wrapped in an SNS message, and returns the referenced objects
// in record order.
func (p *Provider) ParseNotification(ctx context.Context, raw json.RawMessage) ([]models.ObjectRef, error) {
	refs, err := parseEnvelope(raw, 0)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: no S3 object in notification", provider.ErrMalformedNotification)
	}
	return refs, nil
}

func parseEnvelope(raw []byte, depth int) ([]models.ObjectRef, error) {
	if depth > maxEnvelopeDepth {
		return nil, fmt.Errorf("%w: envelope nested too deep", provider.ErrMalformedNotification)
	}

	var envelope struct {
		Records []json.RawMessage `json:"Records"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrMalformedNotification, err)
	}

	var refs []models.ObjectRef
	for i, rec := range envelope.Records {
		var sns events.SNSEventRecord
		if err := json.Unmarshal(rec, &sns); err == nil && sns.SNS.Message != "" {
			inner, err := parseEnvelope([]byte(sns.SNS.Message), depth+1)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			refs = append(refs, inner...)
			continue
		}

		var s3rec events.S3EventRecord
		if err := json.Unmarshal(rec, &s3rec); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", provider.ErrMalformedNotification, i, err)
		}
		if s3rec.S3.Bucket.Name == "" || s3rec.S3.Object.Key == "" {
			return nil, fmt.Errorf("%w: record %d has no bucket or key", provider.ErrMalformedNotification, i)
		}
		key, err := url.QueryUnescape(s3rec.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: bad key encoding: %v", provider.ErrMalformedNotification, i, err)
		}
		refs = append(refs, models.ObjectRef{Bucket: s3rec.S3.Bucket.Name, Key: key})
	}
	return refs, nil
}
