package routing

import (
	"fmt"
	"strings"
)

// Severity says how an API-reported message should be treated.
type Severity string

const (
	// SeverityBenign messages are informational; the call is an empty success.
	SeverityBenign Severity = "benign"
	// SeverityTransient messages indicate throttling and are retried.
	SeverityTransient Severity = "transient"
	// SeverityFatal messages are never retried.
	SeverityFatal Severity = "fatal"
)

// ParseSeverity parses a severity name from configuration.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityBenign:
		return SeverityBenign, nil
	case SeverityTransient:
		return SeverityTransient, nil
	case SeverityFatal:
		return SeverityFatal, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// MessageRule maps a case-insensitive substring of an API message to a severity.
type MessageRule struct {
	Pattern  string   `yaml:"pattern"`
	Severity Severity `yaml:"severity"`
}

// DefaultMessageRules covers the messages the Etherscan family is known to
// return with status "0".
var DefaultMessageRules = []MessageRule{
	{Pattern: "no transactions found", Severity: SeverityBenign},
	{Pattern: "no records found", Severity: SeverityBenign},
	{Pattern: "rate limit", Severity: SeverityTransient},
	{Pattern: "max calls per sec", Severity: SeverityTransient},
	{Pattern: "too many requests", Severity: SeverityTransient},
	{Pattern: "try again later", Severity: SeverityTransient},
	{Pattern: "temporarily unavailable", Severity: SeverityTransient},
	{Pattern: "invalid api key", Severity: SeverityFatal},
	{Pattern: "missing/invalid api key", Severity: SeverityFatal},
	{Pattern: "invalid address", Severity: SeverityFatal},
	{Pattern: "error! invalid", Severity: SeverityFatal},
	{Pattern: "result window is too large", Severity: SeverityFatal},
}

// Classifier decides the severity of logical failures embedded in a 2xx
// payload. Rules are checked in order; the first match wins.
type Classifier struct {
	rules   []MessageRule
	unknown Severity
}

// NewClassifier builds a classifier. extra rules are checked before the
// defaults so configuration can override them. unknown is used when no rule
// matches; empty means SeverityFatal.
func NewClassifier(extra []MessageRule, unknown Severity) *Classifier {
	rules := make([]MessageRule, 0, len(extra)+len(DefaultMessageRules))
	for _, r := range extra {
		if strings.TrimSpace(r.Pattern) == "" {
			continue
		}
		rules = append(rules, MessageRule{
			Pattern:  strings.ToLower(r.Pattern),
			Severity: r.Severity,
		})
	}
	rules = append(rules, DefaultMessageRules...)

	if unknown == "" {
		unknown = SeverityFatal
	}
	return &Classifier{rules: rules, unknown: unknown}
}

// Classify returns the severity for an API message and its detail text.
// matched is false when the unknown severity was applied.
func (c *Classifier) Classify(message, detail string) (sev Severity, matched bool) {
	text := strings.ToLower(message + " " + detail)
	for _, r := range c.rules {
		if strings.Contains(text, r.Pattern) {
			return r.Severity, true
		}
	}
	return c.unknown, false
}
