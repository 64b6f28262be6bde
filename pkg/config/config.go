// Package config reads the process configuration once at start.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/mosajjal/iamwatch/pkg/rules"
)

// ErrConfig marks configuration that prevents the process from starting
var ErrConfig = errors.New("invalid configuration")

// Config holds every setting of the process. Fields are filled from
// environment variables, or flags for the command line runner.
type Config struct {
	SlackHook    string `arg:"--slack-hook,env:SLACK_HOOK" help:"webhook URL or a Secrets Manager ARN holding it"`
	SlackChannel string `arg:"--slack-channel,env:SLACK_CHANNEL" help:"channel the alerts are posted to"`

	Region            string `arg:"--region,env:AWS_REGION" default:"us-east-1"`
	S3AccessKeyID     string `arg:"--s3-access-key-id,env:S3_ACCESS_KEY_ID"`
	S3AccessKeySecret string `arg:"--s3-access-key-secret,env:S3_ACCESS_KEY_SECRET"`

	RuleSet       string   `arg:"--ruleset,env:RULESET" default:"enumerated" help:"enumerated or pattern"`
	RulesFile     string   `arg:"--rules-file,env:RULES_FILE" help:"YAML rules replacing the built-in ones"`
	AcceptSources []string `arg:"--accept-sources,env:ACCEPT_SOURCES" help:"event sources to classify"`

	FetchTimeout        time.Duration `arg:"--fetch-timeout,env:FETCH_TIMEOUT" default:"30s"`
	DeliveryTimeout     time.Duration `arg:"--delivery-timeout,env:DELIVERY_TIMEOUT" default:"10s"`
	DeliveryStrict      bool          `arg:"--delivery-strict,env:DELIVERY_STRICT" help:"fail the invocation when the webhook cannot take the message"`
	AttachmentSoftLimit int           `arg:"--attachment-soft-limit,env:ATTACHMENT_SOFT_LIMIT" default:"20"`
	ClassifyWorkers     int           `arg:"--classify-workers,env:CLASSIFY_WORKERS" default:"1"`

	WebhookTLSSkipVerify bool   `arg:"--webhook-tls-skip-verify,env:WEBHOOK_TLS_SKIP_VERIFY"`
	WebhookProxy         string `arg:"--webhook-proxy,env:WEBHOOK_PROXY"`

	HECEndpoints  []string `arg:"--hec-endpoints,env:HEC_ENDPOINTS" help:"optional Splunk HEC endpoints receiving a copy of each alert"`
	HECToken      string   `arg:"--hec-token,env:HEC_TOKEN"`
	HECIndex      string   `arg:"--hec-index,env:HEC_INDEX" default:"main"`
	HECSource     string   `arg:"--hec-source,env:HEC_SOURCE" default:"iamwatch"`
	HECSourceType string   `arg:"--hec-sourcetype,env:HEC_SOURCETYPE" default:"aws:cloudtrail:iam"`
	HECHost       string   `arg:"--hec-host,env:HEC_HOST" default:"lambda"`

	LogLevel  string `arg:"--log-level,env:LOG_LEVEL" default:"info"`
	LogFormat string `arg:"--log-format,env:LOG_FORMAT" default:"json" help:"json or text"`
}

// Parse fills dest, a *Config or a struct embedding Config, from args and the
// environment
func Parse(dest interface{}, args []string) error {
	p, err := arg.NewParser(arg.Config{Program: "iamwatch"}, dest)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := p.Parse(args); err != nil {
		if errors.Is(err, arg.ErrHelp) {
			p.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return nil
}

// Load parses the environment and validates the result
func Load() (*Config, error) {
	var cfg Config
	if err := Parse(&cfg, nil); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings and value ranges
func (c *Config) Validate() error {
	var missing []string
	if c.SlackHook == "" {
		missing = append(missing, "SLACK_HOOK")
	}
	if c.SlackChannel == "" {
		missing = append(missing, "SLACK_CHANNEL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrConfig, strings.Join(missing, " and "))
	}
	if _, err := rules.ParseForm(c.RuleSet); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.FetchTimeout <= 0 || c.DeliveryTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrConfig)
	}
	if c.ClassifyWorkers < 1 {
		return fmt.Errorf("%w: CLASSIFY_WORKERS must be at least 1", ErrConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrConfig, c.LogFormat)
	}
	return nil
}

// Sources returns the accepted event sources, split on commas
func (c *Config) Sources() []string {
	var out []string
	for _, s := range c.AcceptSources {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Endpoints returns the HEC endpoints, split on commas
func (c *Config) Endpoints() []string {
	var out []string
	for _, e := range c.HECEndpoints {
		for _, part := range strings.Split(e, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// LoadAWS builds the AWS SDK configuration. Static credentials are used
// when both S3 keys are set; otherwise the default chain (the function
// role) applies.
func (c *Config) LoadAWS(ctx context.Context) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.Region),
	}
	if c.S3AccessKeyID != "" && c.S3AccessKeySecret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.S3AccessKeyID, c.S3AccessKeySecret, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// Logger builds the process logger
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
