// Package pipeline runs one invocation: fetch the archive named by the
// trigger, classify its records, and deliver the resulting alert message.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mosajjal/iamwatch/pkg/aggregate"
	"github.com/mosajjal/iamwatch/pkg/audit"
	"github.com/mosajjal/iamwatch/pkg/classifier"
	"github.com/mosajjal/iamwatch/pkg/models"
	"github.com/mosajjal/iamwatch/pkg/provider"
	"github.com/mosajjal/iamwatch/pkg/slack"
	"github.com/mosajjal/iamwatch/pkg/storage"
)

// Poster delivers a message to the chat webhook
type Poster interface {
	Post(ctx context.Context, msg *models.AlertBatchMessage) (*slack.Response, error)
}

// AlertSink receives a copy of every classified alert
type AlertSink interface {
	SendAlerts(ctx context.Context, alerts []*models.ClassifiedAlert) error
}

// Options wires the pipeline. Mirror is optional.
type Options struct {
	Provider     provider.CloudProvider
	Source       storage.Source
	Classifier   *classifier.Classifier
	Aggregator   *aggregate.Aggregator
	Webhook      Poster
	Mirror       AlertSink
	FetchTimeout time.Duration
	// MirrorTimeout bounds the wait for Mirror after the webhook post
	MirrorTimeout time.Duration
	Workers       int
	// StrictDelivery makes webhook failures fail the invocation
	StrictDelivery bool
	Logger         *slog.Logger
}

const defaultMirrorTimeout = 5 * time.Second

// Pipeline processes archive notifications
type Pipeline struct {
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer
}

var _ provider.FunctionHandler = (*Pipeline)(nil)

// New creates a pipeline
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MirrorTimeout <= 0 {
		opts.MirrorTimeout = defaultMirrorTimeout
	}
	return &Pipeline{
		opts:   opts,
		logger: logger,
		tracer: otel.Tracer("iamwatch/pipeline"),
	}
}

// Handle processes every archive referenced by a trigger payload, in order,
// and returns the content type of the last one fetched.
func (p *Pipeline) Handle(ctx context.Context, raw json.RawMessage) (string, error) {
	refs, err := p.opts.Provider.ParseNotification(ctx, raw)
	if err != nil {
		p.logger.Error("failed to parse notification", "error", err)
		return "", err
	}

	var contentType string
	for _, ref := range refs {
		ct, err := p.Process(ctx, ref)
		if err != nil {
			return "", err
		}
		contentType = ct
	}
	return contentType, nil
}

// Process handles one archive. Fetch and parse failures are returned;
// per-record failures are logged and skipped; delivery failures are logged
// and only returned on timeout or in strict mode.
func (p *Pipeline) Process(ctx context.Context, ref models.ObjectRef) (string, error) {
	logger := p.logger.With("invocation", uuid.New().String(), "bucket", ref.Bucket, "key", ref.Key)
	ctx, span := p.tracer.Start(ctx, "pipeline.Process", trace.WithAttributes(
		attribute.String("bucket", ref.Bucket),
		attribute.String("key", ref.Key),
	))
	defer span.End()

	obj, records, err := p.load(ctx, ref, logger)
	if err != nil {
		logger.Error("error getting object", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return "", err
	}
	span.SetAttributes(attribute.Int("records", len(records)))

	alerts := p.classify(ctx, records, logger)
	span.SetAttributes(attribute.Int("alerts", len(alerts)))

	msg, ok := p.opts.Aggregator.Build(alerts)
	if !ok {
		logger.Debug("no watched events", "records", len(records))
		return obj.ContentType, nil
	}

	if err := p.deliver(ctx, msg, logger); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		return "", err
	}

	if p.opts.Mirror != nil {
		p.mirror(ctx, alerts, logger)
	}
	return obj.ContentType, nil
}

// mirror copies alerts to the optional sink after the webhook post. Its
// outcome is only logged, and the wait is capped at MirrorTimeout even when
// the sink ignores ctx.
func (p *Pipeline) mirror(ctx context.Context, alerts []*models.ClassifiedAlert, logger *slog.Logger) {
	ctx, span := p.tracer.Start(ctx, "pipeline.mirror")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, p.opts.MirrorTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.opts.Mirror.SendAlerts(ctx, alerts)
	}()

	select {
	case err := <-done:
		if err != nil {
			span.RecordError(err)
			logger.Warn("failed to mirror alerts", "error", err)
		}
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		logger.Warn("failed to mirror alerts", "error", ctx.Err())
	}
}

func (p *Pipeline) load(ctx context.Context, ref models.ObjectRef, logger *slog.Logger) (*models.Object, []models.RawAuditRecord, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.fetch")
	defer span.End()

	if p.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.FetchTimeout)
		defer cancel()
	}

	obj, err := p.opts.Source.Fetch(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s/%s: %w", ref.Bucket, ref.Key, err)
	}

	records, recordErrs, err := audit.Parse(obj.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s/%s: %w", ref.Bucket, ref.Key, err)
	}
	for _, recErr := range recordErrs {
		logger.Warn("skipping undecodable record", "error", recErr)
	}
	return obj, records, nil
}

// classify runs the classifier over records and returns the alerts in
// record order
func (p *Pipeline) classify(ctx context.Context, records []models.RawAuditRecord, logger *slog.Logger) []*models.ClassifiedAlert {
	_, span := p.tracer.Start(ctx, "pipeline.classify")
	defer span.End()

	results := make([]*models.ClassifiedAlert, len(records))
	classifyOne := func(i int) {
		alert, err := p.opts.Classifier.Classify(records[i])
		if err != nil {
			logger.Warn("skipping record", "index", i, "eventName", records[i].EventName, "error", err)
			return
		}
		if alert != nil {
			logger.Debug("found IAM change in log", "index", i, "eventName", alert.EventName)
		}
		results[i] = alert
	}

	workers := min(p.opts.Workers, len(records))
	if workers <= 1 {
		for i := range records {
			classifyOne(i)
		}
	} else {
		indices := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range indices {
					classifyOne(i)
				}
			}()
		}
		for i := range records {
			indices <- i
		}
		close(indices)
		wg.Wait()
	}

	alerts := make([]*models.ClassifiedAlert, 0, len(results))
	for _, a := range results {
		if a != nil {
			alerts = append(alerts, a)
		}
	}
	return alerts
}

func (p *Pipeline) deliver(ctx context.Context, msg *models.AlertBatchMessage, logger *slog.Logger) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.deliver", trace.WithAttributes(
		attribute.Int("attachments", len(msg.Attachments)),
	))
	defer span.End()

	resp, err := p.opts.Webhook.Post(ctx, msg)
	if resp != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		logger.Info("webhook response", "status", resp.StatusCode, "body", resp.Body, "channel", msg.Channel)
	}
	if err == nil {
		if resp != nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
			logger.Warn("webhook did not accept the message", "status", resp.StatusCode)
		}
		return nil
	}

	switch {
	case errors.Is(err, slack.ErrDeliveryTimeout):
		logger.Error("webhook delivery timed out", "error", err)
		return err
	case p.opts.StrictDelivery:
		logger.Error("webhook delivery failed", "error", err)
		return err
	case errors.Is(err, slack.ErrDeliveryUnreachable):
		// alerts from this archive are dropped; no retry is attempted
		logger.Error("server connection failed", "error", err)
		return nil
	default:
		logger.Error("webhook delivery failed", "error", err)
		return nil
	}
}
