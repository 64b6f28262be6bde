package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("SLACK_HOOK", "https://hooks.slack.com/services/T000/B000/XXXX")
	t.Setenv("SLACK_CHANNEL", "#security")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "#security", cfg.SlackChannel)
	assert.Equal(t, "enumerated", cfg.RuleSet)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 10*time.Second, cfg.DeliveryTimeout)
	assert.Equal(t, 20, cfg.AttachmentSoftLimit)
	assert.Equal(t, 1, cfg.ClassifyWorkers)
	assert.False(t, cfg.DeliveryStrict)
	assert.Empty(t, cfg.Sources())
	assert.Empty(t, cfg.Endpoints())
}

func TestLoadFromEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("RULESET", "pattern")
	t.Setenv("FETCH_TIMEOUT", "5s")
	t.Setenv("DELIVERY_STRICT", "true")
	t.Setenv("ACCEPT_SOURCES", "iam.amazonaws.com,sts.amazonaws.com")
	t.Setenv("HEC_ENDPOINTS", "https://hec1:8088,https://hec2:8088")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "pattern", cfg.RuleSet)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
	assert.True(t, cfg.DeliveryStrict)
	assert.Equal(t, []string{"iam.amazonaws.com", "sts.amazonaws.com"}, cfg.Sources())
	assert.Equal(t, []string{"https://hec1:8088", "https://hec2:8088"}, cfg.Endpoints())
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("SLACK_HOOK", "")
	t.Setenv("SLACK_CHANNEL", "#security")

	_, err := Load()
	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "SLACK_HOOK")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			SlackHook:       "https://hooks.example.com/x",
			SlackChannel:    "#security",
			RuleSet:         "enumerated",
			FetchTimeout:    time.Second,
			DeliveryTimeout: time.Second,
			ClassifyWorkers: 1,
			LogFormat:       "json",
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing channel", func(c *Config) { c.SlackChannel = "" }},
		{"unknown ruleset", func(c *Config) { c.RuleSet = "regex" }},
		{"zero fetch timeout", func(c *Config) { c.FetchTimeout = 0 }},
		{"negative delivery timeout", func(c *Config) { c.DeliveryTimeout = -time.Second }},
		{"no workers", func(c *Config) { c.ClassifyWorkers = 0 }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
	}

	base := valid()
	require.NoError(t, base.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrConfig)
		})
	}
}

type fakeSecrets struct {
	values map[string]string
	calls  int
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	v, ok := f.values[aws.ToString(in.SecretId)]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestResolveSecrets(t *testing.T) {
	arn := "arn:aws:secretsmanager:us-east-1:123456789012:secret:slack-hook"
	sm := &fakeSecrets{values: map[string]string{arn: " https://hooks.slack.com/services/real \n"}}

	cfg := &Config{SlackHook: arn, HECToken: "plain-token"}
	require.NoError(t, cfg.resolveWith(context.Background(), sm))
	assert.Equal(t, "https://hooks.slack.com/services/real", cfg.SlackHook)
	assert.Equal(t, "plain-token", cfg.HECToken)
	assert.Equal(t, 1, sm.calls)

	cfg = &Config{SlackHook: "https://hooks.example.com", HECToken: arn + "-missing"}
	err := cfg.resolveWith(context.Background(), sm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEC_TOKEN")
}

func TestResolveSecret_Plain(t *testing.T) {
	v, err := ResolveSecret(context.Background(), nil, "https://hooks.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://hooks.example.com", v)
}
