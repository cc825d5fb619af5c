package detector

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/guardrail/internal/models"
)

// RulesVersion is the only rule document version understood.
const RulesVersion = 1

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Action is what the monitor does when a rule triggers.
type Action string

const (
	ActionLog   Action = "log"
	ActionAlert Action = "alert"
	ActionBlock Action = "block"
)

func (a Action) Valid() bool {
	return a == ActionLog || a == ActionAlert || a == ActionBlock
}

// Rule is one compiled threat detection rule.
type Rule struct {
	Name       string
	Pattern    *regexp.Regexp
	Severity   models.Severity
	Action     Action
	Threshold  int
	TimeWindow time.Duration
	// Incident is handed to the responder when a block rule triggers.
	Incident models.IncidentType
}

// Matches reports whether eventType is counted by the rule.
func (r *Rule) Matches(eventType string) bool {
	return r.Pattern.MatchString(eventType)
}

type ruleDocument struct {
	Version int        `yaml:"version"`
	Rules   []ruleSpec `yaml:"rules"`
}

type ruleSpec struct {
	Name       string `yaml:"name"`
	Pattern    string `yaml:"pattern"`
	Severity   string `yaml:"severity"`
	Action     string `yaml:"action"`
	Threshold  int    `yaml:"threshold"`
	TimeWindow int    `yaml:"time_window"`
	Incident   string `yaml:"incident"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() ([]*Rule, error) {
	return ParseRules(defaultRulesYAML)
}

// LoadRules reads a rule document from path, or the built-in set when path
// is empty.
func LoadRules(path string) ([]*Rule, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// ParseRules decodes and validates a rule document. All problems are
// reported together.
func ParseRules(data []byte) ([]*Rule, error) {
	var doc ruleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid rules document: %w", err)
	}
	if doc.Version != RulesVersion {
		return nil, fmt.Errorf("unsupported rules version %d (want %d)", doc.Version, RulesVersion)
	}
	if len(doc.Rules) == 0 {
		return nil, errors.New("rules document contains no rules")
	}

	var errs []error
	seen := make(map[string]bool, len(doc.Rules))
	rules := make([]*Rule, 0, len(doc.Rules))

	for i, spec := range doc.Rules {
		rule, err := compileRule(spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %d (%s): %w", i, spec.Name, err))
			continue
		}
		if seen[rule.Name] {
			errs = append(errs, fmt.Errorf("rule %d (%s): duplicate name", i, spec.Name))
			continue
		}
		seen[rule.Name] = true
		rules = append(rules, rule)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return rules, nil
}

func compileRule(spec ruleSpec) (*Rule, error) {
	if spec.Name == "" {
		return nil, errors.New("name is required")
	}
	if spec.Pattern == "" {
		return nil, errors.New("pattern is required")
	}
	pattern, err := regexp.Compile(spec.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	severity, err := models.ParseSeverity(spec.Severity)
	if err != nil {
		return nil, err
	}
	action := Action(spec.Action)
	if !action.Valid() {
		return nil, fmt.Errorf("unknown action %q", spec.Action)
	}
	if spec.Threshold < 1 {
		return nil, errors.New("threshold must be at least 1")
	}
	if spec.TimeWindow < 1 {
		return nil, errors.New("time_window must be at least 1 minute")
	}
	incident := models.IncidentSuspiciousActivity
	if spec.Incident != "" {
		incident = models.IncidentType(spec.Incident)
		if !incident.Known() {
			return nil, fmt.Errorf("unknown incident %q", spec.Incident)
		}
	}

	return &Rule{
		Name:       spec.Name,
		Pattern:    pattern,
		Severity:   severity,
		Action:     action,
		Threshold:  spec.Threshold,
		TimeWindow: time.Duration(spec.TimeWindow) * time.Minute,
		Incident:   incident,
	}, nil
}
