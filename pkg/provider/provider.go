package provider

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mosajjal/iamwatch/pkg/models"
)

// ErrMalformedNotification is returned for trigger payloads that name no
// archive to process
var ErrMalformedNotification = errors.New("malformed notification")

// CloudProvider defines the interface for cloud-specific implementations
type CloudProvider interface {
	// Name returns the provider name
	Name() string

	// ParseNotification extracts the archives referenced by a trigger payload
	ParseNotification(ctx context.Context, raw json.RawMessage) ([]models.ObjectRef, error)
}

// FunctionHandler defines the interface for cloud function entry points
type FunctionHandler interface {
	// Handle processes the cloud function invocation
	Handle(ctx context.Context, raw json.RawMessage) (string, error)
}
