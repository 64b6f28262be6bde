// Package rules decides which IAM event names are alert-worthy.
//
// Two strategies exist. Enumerated matches exact names from an info list and
// a warning list. Pattern matches name prefixes, with ignore prefixes taking
// precedence, and gives every match one fixed severity.
package rules

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mosajjal/iamwatch/pkg/models"
)

// Form selects the rule set strategy
type Form string

const (
	FormEnumerated Form = "enumerated"
	FormPattern    Form = "pattern"
)

// Colors used by the enumerated form, one per severity
const (
	ColorInfo    = "warning"
	ColorWarning = "danger"
)

// ErrInvalidRules is returned for rule files that cannot build a rule set
var ErrInvalidRules = errors.New("invalid rules")

//go:embed defaults/*.yaml
var defaults embed.FS

// Verdict is the outcome for a watched event name
type Verdict struct {
	Severity models.Severity
	Category string
	Color    string
}

// RuleSet answers, for any event name, whether it is watched and how.
// Names it does not cover are not watched.
type RuleSet interface {
	Form() Form
	Classify(eventName string) (Verdict, bool)
}

// File is the YAML representation of a rule set
type File struct {
	Form     Form     `yaml:"form"`
	Info     []string `yaml:"info"`
	Warning  []string `yaml:"warning"`
	Ignore   []string `yaml:"ignore"`
	Match    []string `yaml:"match"`
	Severity string   `yaml:"severity"`
	Color    string   `yaml:"color"`
}

// ParseForm validates a form name
func ParseForm(s string) (Form, error) {
	switch f := Form(strings.ToLower(strings.TrimSpace(s))); f {
	case FormEnumerated, FormPattern:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown rule set form %q", ErrInvalidRules, s)
	}
}

// Default returns the rule set compiled into the binary for form
func Default(form Form) (RuleSet, error) {
	data, err := defaults.ReadFile("defaults/" + string(form) + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: no default rules for form %q", ErrInvalidRules, form)
	}
	return Parse(form, data)
}

// Load reads the rule file at path, or the default rules when path is empty
func Load(form Form, path string) (RuleSet, error) {
	if path == "" {
		return Default(form)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(form, data)
}

// Parse builds a rule set of the given form from YAML. A form named inside
// the document must agree with form.
func Parse(form Form, data []byte) (RuleSet, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if f.Form == "" {
		f.Form = form
	}
	if f.Form != form {
		return nil, fmt.Errorf("%w: rules file is %q, deployment expects %q", ErrInvalidRules, f.Form, form)
	}

	switch form {
	case FormEnumerated:
		return NewEnumerated(f.Info, f.Warning)
	case FormPattern:
		sev := models.SeverityWarning
		if f.Severity != "" {
			var err error
			if sev, err = parseSeverity(f.Severity); err != nil {
				return nil, err
			}
		}
		p, err := NewPattern(f.Match, f.Ignore, sev)
		if err != nil {
			return nil, err
		}
		if f.Color != "" {
			p.color = f.Color
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unknown rule set form %q", ErrInvalidRules, form)
	}
}

func parseSeverity(s string) (models.Severity, error) {
	switch strings.ToLower(s) {
	case "info":
		return models.SeverityInfo, nil
	case "warning", "warn":
		return models.SeverityWarning, nil
	default:
		return 0, fmt.Errorf("%w: unknown severity %q", ErrInvalidRules, s)
	}
}
