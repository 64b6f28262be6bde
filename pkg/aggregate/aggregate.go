// Package aggregate builds the chat message for one archive's alerts.
package aggregate

import (
	"fmt"
	"log/slog"

	"github.com/mosajjal/iamwatch/pkg/models"
)

const (
	// Headline is the message text shown above the attachments
	Headline = "<!channel>\n*New incoming IAM Alert*"
	fallback = "New incoming IAM Alert"

	// DefaultSoftLimit is the attachment count above which a warning is logged
	DefaultSoftLimit = 20
)

var mrkdwnIn = []string{"text", "pretext", "color", "fields", "title"}

// Aggregator collects classified alerts into one message
type Aggregator struct {
	channel   string
	softLimit int
	logger    *slog.Logger
}

// New creates an aggregator for channel. A softLimit of zero or less uses
// DefaultSoftLimit.
func New(channel string, softLimit int, logger *slog.Logger) *Aggregator {
	if softLimit <= 0 {
		softLimit = DefaultSoftLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{channel: channel, softLimit: softLimit, logger: logger}
}

// Build renders alerts, in the given order, into a message. It reports
// false when there is nothing to send. Exceeding the soft limit only logs a
// warning; every alert is kept.
func (a *Aggregator) Build(alerts []*models.ClassifiedAlert) (*models.AlertBatchMessage, bool) {
	attachments := make([]models.Attachment, 0, len(alerts))
	for _, alert := range alerts {
		if alert == nil {
			continue
		}
		attachments = append(attachments, Attachment(alert))
	}
	if len(attachments) == 0 {
		return nil, false
	}
	if len(attachments) > a.softLimit {
		a.logger.Warn("too many attachments", "count", len(attachments), "limit", a.softLimit)
	}
	return &models.AlertBatchMessage{
		Channel:     a.channel,
		Text:        Headline,
		Attachments: attachments,
	}, true
}

// Attachment renders one alert
func Attachment(alert *models.ClassifiedAlert) models.Attachment {
	att := models.Attachment{
		Fallback: fallback,
		Color:    alert.ColorTag,
		Pretext:  alert.Pretext,
		Text:     fmt.Sprintf("*User Identity* *`%s`* performed *`%s`*: ", alert.ActorARN, alert.EventName),
		MrkdwnIn: mrkdwnIn,
	}
	for _, p := range alert.ParameterFields {
		value := p.Value
		if p.Key != "" {
			value = fmt.Sprintf("*%s*: %s", p.Key, p.Value)
		}
		att.Fields = append(att.Fields, models.Field{Value: value})
	}
	if alert.ParameterText != "" {
		att.Fields = append(att.Fields, models.Field{Value: alert.ParameterText})
	}
	return att
}
