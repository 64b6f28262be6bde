package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/mosajjal/iamwatch/pkg/aggregate"
	"github.com/mosajjal/iamwatch/pkg/classifier"
	"github.com/mosajjal/iamwatch/pkg/config"
	"github.com/mosajjal/iamwatch/pkg/hec"
	awsprovider "github.com/mosajjal/iamwatch/pkg/provider/aws"
	"github.com/mosajjal/iamwatch/pkg/rules"
	"github.com/mosajjal/iamwatch/pkg/slack"
	"github.com/mosajjal/iamwatch/pkg/storage"
)

// FromConfig wires a pipeline from resolved configuration. Secrets must
// already be resolved. Any error here is a startup failure. Overrides run
// last and may replace any wired component.
func FromConfig(cfg *config.Config, source storage.Source, logger *slog.Logger, overrides ...func(*Options)) (*Pipeline, error) {
	form, err := rules.ParseForm(cfg.RuleSet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	rs, err := rules.Load(form, cfg.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}

	webhook, err := slack.NewClient(slack.Config{
		URL:           cfg.SlackHook,
		TLSSkipVerify: cfg.WebhookTLSSkipVerify,
		Proxy:         cfg.WebhookProxy,
		Timeout:       cfg.DeliveryTimeout,
		Strict:        cfg.DeliveryStrict,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
	}

	opts := Options{
		Provider:       awsprovider.NewProvider(),
		Source:         source,
		Classifier:     classifier.New(rs, cfg.Sources()...),
		Aggregator:     aggregate.New(cfg.SlackChannel, cfg.AttachmentSoftLimit, logger),
		Webhook:        webhook,
		FetchTimeout:   cfg.FetchTimeout,
		MirrorTimeout:  cfg.DeliveryTimeout,
		Workers:        cfg.ClassifyWorkers,
		StrictDelivery: cfg.DeliveryStrict,
		Logger:         logger,
	}

	if endpoints := cfg.Endpoints(); len(endpoints) > 0 {
		mirror, err := hec.NewClient(hec.Config{
			Endpoints:     endpoints,
			TLSSkipVerify: cfg.WebhookTLSSkipVerify,
			Proxy:         cfg.WebhookProxy,
			Token:         cfg.HECToken,
			Index:         cfg.HECIndex,
			Source:        cfg.HECSource,
			SourceType:    cfg.HECSourceType,
			Host:          cfg.HECHost,
			Timeout:       cfg.DeliveryTimeout,
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrConfig, err)
		}
		opts.Mirror = mirror
	}

	for _, override := range overrides {
		override(&opts)
	}

	logger.Info("pipeline configured",
		"ruleset", form,
		"rulesFile", cfg.RulesFile,
		"channel", cfg.SlackChannel,
		"workers", cfg.ClassifyWorkers,
		"mirror", opts.Mirror != nil,
	)
	return New(opts), nil
}
