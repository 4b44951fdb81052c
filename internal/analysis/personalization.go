package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"tca/internal/models"
)

// ErrMalformedAnalysis is returned when extractor output fails strict
// decoding. The caller still gets the all-empty fallback tags; the output is
// never interpreted loosely, let alone executed.
var ErrMalformedAnalysis = errors.New("malformed personalization analysis")

// ExtractFunc is the external capability producing raw extractor output
// (JSON text) for a user input.
type ExtractFunc func(text string) (string, error)

// PersonalizationAnalyzer extracts personal details, tasks, instructions and
// goals from user input via an external extractor, decoding its output with
// a strict schema.
type PersonalizationAnalyzer struct {
	extract ExtractFunc
}

// NewPersonalizationAnalyzer wraps the extractor capability. A nil extract
// yields empty tags for every input.
func NewPersonalizationAnalyzer(extract ExtractFunc) *PersonalizationAnalyzer {
	return &PersonalizationAnalyzer{extract: extract}
}

// Analyze implements the analyzer capability. Extractor or decode failures
// degrade to empty personalization tags with a warning.
func (a *PersonalizationAnalyzer) Analyze(text string) models.Tags {
	tags := models.Tags{
		Intent: "personalization",
		Topic:  "user profile",
	}
	if a.extract == nil {
		tags.Personalization = &models.PersonalizationTags{}
		return tags
	}
	raw, err := a.extract(text)
	if err != nil {
		slog.Warn("personalization extractor failed", "error", err)
		tags.Personalization = &models.PersonalizationTags{}
		return tags
	}
	decoded, err := DecodePersonalizationTags(raw)
	if err != nil {
		slog.Warn("discarding malformed personalization output", "error", err)
	}
	tags.Personalization = decoded
	return tags
}

// DecodePersonalizationTags parses extractor output with a strict,
// schema-validated decoder: JSON only, known fields only. On failure it
// returns ErrMalformedAnalysis together with the defined all-empty fallback.
func DecodePersonalizationTags(raw string) (*models.PersonalizationTags, error) {
	empty := &models.PersonalizationTags{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return empty, nil
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(raw)))
	decoder.DisallowUnknownFields()

	var tags models.PersonalizationTags
	if err := decoder.Decode(&tags); err != nil {
		return empty, fmt.Errorf("%w: %v", ErrMalformedAnalysis, err)
	}
	// Trailing garbage after the object is malformed too.
	if decoder.More() {
		return empty, fmt.Errorf("%w: trailing data after object", ErrMalformedAnalysis)
	}
	return &tags, nil
}

// PersonalizationResponder acknowledges what was captured.
type PersonalizationResponder struct{}

// Respond implements the responder capability.
func (PersonalizationResponder) Respond(tags models.Tags, _ map[string]any, _ []models.Turn) (models.Reply, error) {
	p := tags.Personalization
	if p.Empty() {
		return models.Reply{Response: "Got it. Tell me more whenever you like.", Mode: "noted"}, nil
	}
	var captured []string
	if len(p.Profile) > 0 {
		captured = append(captured, "profile details")
	}
	if len(p.Todos) > 0 {
		captured = append(captured, "todos")
	}
	if p.Instructions != "" {
		captured = append(captured, "instructions")
	}
	if p.Goals != "" {
		captured = append(captured, "goals")
	}
	return models.Reply{
		Response: "Noted. I've remembered your " + strings.Join(captured, ", ") + ".",
		Mode:     "noted",
	}, nil
}
