package assistant

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Risk levels in ascending severity.
const (
	RiskLow       = "LOW"
	RiskMedium    = "MEDIUM"
	RiskHigh      = "HIGH"
	RiskEmergency = "EMERGENCY"
)

var defaultEmergencyKeywords = []string{
	"chest pain", "severe pain", "difficulty breathing", "unconscious",
	"bleeding heavily", "stroke", "heart attack", "emergency", "911",
}

var defaultHighRiskKeywords = []string{
	"blood pressure", "diabetes", "chronic", "severe", "urgent",
	"worsening", "persistent", "infection", "high fever",
}

var defaultMediumRiskKeywords = []string{
	"pain", "discomfort", "symptoms", "condition", "medication",
	"treatment", "concern", "monitor",
}

// Classifier derives a coarse severity rating from assistant output plus
// patient context. Matching is case-insensitive substring search with strict
// precedence EMERGENCY > HIGH > MEDIUM > LOW.
type Classifier struct {
	emergency []string
	high      []string
	medium    []string
}

func NewClassifier() *Classifier {
	return &Classifier{
		emergency: lowerAll(defaultEmergencyKeywords),
		high:      lowerAll(defaultHighRiskKeywords),
		medium:    lowerAll(defaultMediumRiskKeywords),
	}
}

type keywordOverrides struct {
	Emergency []string `yaml:"emergency"`
	High      []string `yaml:"high"`
	Medium    []string `yaml:"medium"`
}

// NewClassifierFromEnv loads keyword overrides from the YAML file named by
// RISK_KEYWORDS_FILE when set; otherwise it returns the built-in lists.
// Omitted levels in the override file keep their defaults.
func NewClassifierFromEnv() (*Classifier, error) {
	c := NewClassifier()
	path := strings.TrimSpace(os.Getenv("RISK_KEYWORDS_FILE"))
	if path == "" {
		return c, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read risk keywords file: %w", err)
	}
	var overrides keywordOverrides
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse risk keywords file: %w", err)
	}
	if len(overrides.Emergency) > 0 {
		c.emergency = lowerAll(overrides.Emergency)
	}
	if len(overrides.High) > 0 {
		c.high = lowerAll(overrides.High)
	}
	if len(overrides.Medium) > 0 {
		c.medium = lowerAll(overrides.Medium)
	}
	return c, nil
}

// Classify returns the risk level and whether the patient should be advised
// to see a doctor. Only LOW maps to false.
func (c *Classifier) Classify(finalText, contextText string) (string, bool) {
	combined := strings.ToLower(finalText + " " + contextText)

	for _, kw := range c.emergency {
		if strings.Contains(combined, kw) {
			return RiskEmergency, true
		}
	}
	for _, kw := range c.high {
		if strings.Contains(combined, kw) {
			return RiskHigh, true
		}
	}
	for _, kw := range c.medium {
		if strings.Contains(combined, kw) {
			return RiskMedium, true
		}
	}
	return RiskLow, false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
