package analysis

import (
	"strings"

	"tca/internal/models"
)

// SecurityAnalyzer classifies inputs by prompt-injection risk.
type SecurityAnalyzer struct{}

// Analyze implements the analyzer capability.
func (SecurityAnalyzer) Analyze(text string) models.Tags {
	lowered := strings.ToLower(text)

	riskLevel := "low"
	intent := "general_query"
	switch {
	case containsAny(lowered, "ignore instructions", "disregard safety", "disable"):
		riskLevel = "high"
		intent = "bypass_attempt"
	case containsAny(lowered, "how do i jailbreak", "exploit"):
		riskLevel = "medium"
		intent = "information_probe"
	}

	return models.Tags{
		Intent:    intent,
		Emotion:   "neutral",
		Topic:     "security compliance",
		Tone:      "technical",
		RiskLevel: riskLevel,
	}
}

func containsAny(text string, triggers ...string) bool {
	for _, trigger := range triggers {
		if strings.Contains(text, trigger) {
			return true
		}
	}
	return false
}

// SecurityResponder gates replies on the assessed risk level.
type SecurityResponder struct{}

// Respond implements the responder capability.
func (SecurityResponder) Respond(tags models.Tags, _ map[string]any, _ []models.Turn) (models.Reply, error) {
	switch tags.RiskLevel {
	case "high":
		return models.Reply{Response: "This request violates safety protocols and cannot be processed.", Mode: "block"}, nil
	case "medium":
		return models.Reply{Response: "That topic could lead to unsafe outcomes. Please rephrase.", Mode: "warn"}, nil
	default:
		return models.Reply{Response: "Your request is within acceptable bounds. How can I assist further?", Mode: "allow"}, nil
	}
}
