package pipeline

import "tca/internal/models"

// Pattern shift classifications.
const (
	ShiftNone   = "none"
	ShiftStable = "stable"
	ShiftDrift  = "emotion_drift"
)

// PatternShift is the per-turn drift diagnosis.
type PatternShift struct {
	Change string `json:"change"`
}

// PatternTracker detects emotional drift between consecutive turns.
type PatternTracker struct{}

// Track compares the previous emotion signal against the current analysis.
// The first turn of a conversation has no baseline and reports "none".
func (PatternTracker) Track(previousEmotions []string, current models.Tags) PatternShift {
	if len(previousEmotions) == 0 {
		return PatternShift{Change: ShiftNone}
	}
	last := previousEmotions[len(previousEmotions)-1]
	if last != "" && current.Emotion != "" && last != current.Emotion {
		return PatternShift{Change: ShiftDrift}
	}
	return PatternShift{Change: ShiftStable}
}
