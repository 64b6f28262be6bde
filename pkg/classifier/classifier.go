// Package classifier turns CloudTrail records into alerts.
package classifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mosajjal/iamwatch/pkg/models"
	"github.com/mosajjal/iamwatch/pkg/render"
	"github.com/mosajjal/iamwatch/pkg/rules"
)

// DefaultSource is the event source of IAM API calls
const DefaultSource = "iam.amazonaws.com"

const (
	pretextInfo    = "`Alert level: Info` \n\n Event details:"
	pretextWarning = "`Alert level: Warning` \n Event details:"
)

// ErrRecordClassification marks a watched record that could not be turned
// into an alert. It only affects that record.
var ErrRecordClassification = errors.New("record classification failed")

// Classifier applies a rule set to records from a set of event sources.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	sources map[string]struct{}
	rules   rules.RuleSet
}

// New creates a classifier. With no sources given, only IAM events are
// accepted.
func New(rs rules.RuleSet, sources ...string) *Classifier {
	if len(sources) == 0 {
		sources = []string{DefaultSource}
	}
	c := &Classifier{
		sources: make(map[string]struct{}, len(sources)),
		rules:   rs,
	}
	for _, s := range sources {
		if s = strings.TrimSpace(s); s != "" {
			c.sources[s] = struct{}{}
		}
	}
	return c
}

// Form reports the rule set form in use
func (c *Classifier) Form() rules.Form {
	return c.rules.Form()
}

// Classify returns the alert for rec, or nil when rec is not watched.
// Errors wrap ErrRecordClassification.
func (c *Classifier) Classify(rec models.RawAuditRecord) (*models.ClassifiedAlert, error) {
	if _, ok := c.sources[rec.EventSource]; !ok {
		return nil, nil
	}
	verdict, ok := c.rules.Classify(rec.EventName)
	if !ok {
		return nil, nil
	}

	if rec.UserIdentity == nil {
		return nil, fmt.Errorf("%w: %s: userIdentity missing", ErrRecordClassification, rec.EventName)
	}
	if rec.UserIdentity.ARN == "" {
		return nil, fmt.Errorf("%w: %s: userIdentity.arn missing", ErrRecordClassification, rec.EventName)
	}

	params, err := render.Parse(rec.RequestParameters)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRecordClassification, rec.EventName, err)
	}

	alert := &models.ClassifiedAlert{
		EventName:      rec.EventName,
		EventSource:    rec.EventSource,
		AccountID:      accountID(rec.UserIdentity),
		PrincipalLabel: principalLabel(rec.UserIdentity.PrincipalID),
		EventTime:      rec.EventTime,
		Severity:       verdict.Severity,
		Category:       verdict.Category,
		ColorTag:       verdict.Color,
	}

	switch c.rules.Form() {
	case rules.FormPattern:
		alert.ActorARN = actorResource(rec.UserIdentity.ARN)
		alert.Pretext = fmt.Sprintf("`%s` \n Event details:", rec.EventTime)
		alert.ParameterText = render.Block(params)
	default:
		alert.ActorARN = rec.UserIdentity.ARN
		if verdict.Severity == models.SeverityInfo {
			alert.Pretext = pretextInfo
		} else {
			alert.Pretext = pretextWarning
		}
		alert.ParameterFields = render.Fields(params)
	}
	return alert, nil
}
