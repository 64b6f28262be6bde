package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const secretARNPrefix = "arn:aws:secretsmanager:"

// SecretGetter is the part of the Secrets Manager client used here
type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// IsSecretARN reports whether value names a Secrets Manager secret
func IsSecretARN(value string) bool {
	return strings.HasPrefix(value, secretARNPrefix)
}

// ResolveSecret returns value unchanged unless it is a Secrets Manager ARN,
// in which case the secret string is fetched
func ResolveSecret(ctx context.Context, sm SecretGetter, value string) (string, error) {
	if !IsSecretARN(value) {
		return value, nil
	}
	secret, err := sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(value),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret from Secrets Manager: %w", err)
	}
	if secret.SecretString == nil || *secret.SecretString == "" {
		return "", fmt.Errorf("%w: secret %s has no string value", ErrConfig, value)
	}
	return strings.TrimSpace(*secret.SecretString), nil
}

// ResolveSecrets replaces SlackHook and HECToken with the secret values they
// point at. The client is only created when one of them is an ARN.
func (c *Config) ResolveSecrets(ctx context.Context, awsCfg aws.Config) error {
	if !IsSecretARN(c.SlackHook) && !IsSecretARN(c.HECToken) {
		return nil
	}
	sm := secretsmanager.NewFromConfig(awsCfg)
	return c.resolveWith(ctx, sm)
}

func (c *Config) resolveWith(ctx context.Context, sm SecretGetter) error {
	var err error
	if c.SlackHook, err = ResolveSecret(ctx, sm, c.SlackHook); err != nil {
		return fmt.Errorf("SLACK_HOOK: %w", err)
	}
	if c.HECToken, err = ResolveSecret(ctx, sm, c.HECToken); err != nil {
		return fmt.Errorf("HEC_TOKEN: %w", err)
	}
	return nil
}
