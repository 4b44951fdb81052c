// Package analysis implements the per-mode analyzers and responders.
// Analyzers are pure text -> Tags functions; responders turn tags plus
// context into a reply. Both are consumed through the pipeline's mode
// registry and stay swappable.
package analysis

import (
	"math/rand"
	"strings"

	"tca/internal/models"
)

// TherapistAnalyzer tags emotional signals with keyword heuristics.
type TherapistAnalyzer struct{}

// Analyze implements the analyzer capability.
func (TherapistAnalyzer) Analyze(text string) models.Tags {
	var emotion string
	switch {
	case strings.Contains(text, "tired") || strings.Contains(text, "exhausted"):
		emotion = "fatigue"
	case strings.Contains(text, "not good enough") || strings.Contains(text, "worthless"):
		emotion = "low self-worth"
	default:
		fallback := []string{"anxious", "overwhelmed", "neutral"}
		emotion = fallback[rand.Intn(len(fallback))]
	}

	var intent string
	switch {
	case strings.Contains(text, "want to") || strings.Contains(text, "wish I"):
		intent = "goal_expression"
	case strings.Contains(text, "can't") || strings.Contains(text, "don't know"):
		intent = "confusion"
	default:
		intent = "emotional_disclosure"
	}

	return models.Tags{
		Intent:  intent,
		Emotion: emotion,
		Topic:   "personal struggle",
		Tone:    "vulnerable",
	}
}

// TherapistResponder maps emotional tags to supportive replies.
type TherapistResponder struct{}

// Respond implements the responder capability.
func (TherapistResponder) Respond(tags models.Tags, _ map[string]any, _ []models.Turn) (models.Reply, error) {
	switch {
	case tags.Emotion == "fatigue":
		return models.Reply{Response: "That sounds really draining. What's been making you feel this way lately?", Mode: "comforting"}, nil
	case tags.Emotion == "low self-worth":
		return models.Reply{Response: "That belief can be so heavy. Want to explore where it comes from?", Mode: "reflective"}, nil
	case tags.Intent == "goal_expression":
		return models.Reply{Response: "That's a powerful goal. What's one small way we could move toward it?", Mode: "encouraging"}, nil
	default:
		return models.Reply{Response: "I'm here and listening. Tell me more about what's going on.", Mode: "neutral"}, nil
	}
}
