package rules

import (
	"fmt"
	"strings"

	"github.com/mosajjal/iamwatch/pkg/models"
)

// Enumerated watches exact event names
type Enumerated struct {
	names map[string]Verdict
}

// NewEnumerated builds an exact-match rule set. A name may not be both info
// and warning.
func NewEnumerated(info, warning []string) (*Enumerated, error) {
	e := &Enumerated{names: make(map[string]Verdict, len(info)+len(warning))}
	for _, name := range info {
		e.names[name] = Verdict{Severity: models.SeverityInfo, Category: "info-level", Color: ColorInfo}
	}
	for _, name := range warning {
		if v, ok := e.names[name]; ok && v.Severity == models.SeverityInfo {
			return nil, fmt.Errorf("%w: %q is listed as both info and warning", ErrInvalidRules, name)
		}
		e.names[name] = Verdict{Severity: models.SeverityWarning, Category: "warning-level", Color: ColorWarning}
	}
	return e, nil
}

func (e *Enumerated) Form() Form { return FormEnumerated }

func (e *Enumerated) Classify(eventName string) (Verdict, bool) {
	v, ok := e.names[eventName]
	return v, ok
}

// Pattern watches event names by prefix
type Pattern struct {
	match    []string
	ignore   []string
	severity models.Severity
	color    string
}

// NewPattern builds a prefix rule set. Empty prefixes are rejected since
// they would match every name.
func NewPattern(match, ignore []string, severity models.Severity) (*Pattern, error) {
	for _, p := range append(append([]string{}, match...), ignore...) {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("%w: empty prefix", ErrInvalidRules)
		}
	}
	return &Pattern{
		match:    match,
		ignore:   ignore,
		severity: severity,
		color:    ColorWarning,
	}, nil
}

func (p *Pattern) Form() Form { return FormPattern }

// Classify checks ignore prefixes first; any hit there wins over a match.
func (p *Pattern) Classify(eventName string) (Verdict, bool) {
	for _, prefix := range p.ignore {
		if strings.HasPrefix(eventName, prefix) {
			return Verdict{}, false
		}
	}
	for _, prefix := range p.match {
		if strings.HasPrefix(eventName, prefix) {
			return Verdict{Severity: p.severity, Category: prefix, Color: p.color}, true
		}
	}
	return Verdict{}, false
}
