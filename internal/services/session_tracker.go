package services

import (
	"tca/internal/models"
)

// SessionTracker holds the transient, process-lifetime session state: the
// parallel per-turn signal sequences and the conversation turns. It is owned
// by a single conversation's pipeline and is not safe for concurrent use;
// the pipeline serializes turns.
type SessionTracker struct {
	emotionTrends   []string
	intents         []string
	topics          []string
	personalization []models.PersonalizationTags
	turns           []models.Turn
}

// NewSessionTracker returns an empty tracker for a new conversation.
func NewSessionTracker() *SessionTracker {
	return &SessionTracker{
		emotionTrends: []string{},
		intents:       []string{},
		topics:        []string{},
		turns:         []models.Turn{},
	}
}

// Update appends the turn's signals to their sequences. Missing tags append
// their empty sentinel; Update never fails.
func (t *SessionTracker) Update(tags models.Tags) {
	t.emotionTrends = append(t.emotionTrends, tags.Emotion)
	t.intents = append(t.intents, tags.Intent)
	t.topics = append(t.topics, tags.Topic)
	if tags.Personalization != nil {
		t.personalization = append(t.personalization, *tags.Personalization)
	}
}

// AppendTurn records one completed (user, bot) exchange.
func (t *SessionTracker) AppendTurn(userText, botText string) {
	t.turns = append(t.turns, models.Turn{User: userText, Bot: botText})
}

// EmotionTrends returns the emotion sequence in turn order.
func (t *SessionTracker) EmotionTrends() []string {
	return append([]string{}, t.emotionTrends...)
}

// Turns returns a copy of the conversation turns so far.
func (t *SessionTracker) Turns() []models.Turn {
	return append([]models.Turn{}, t.turns...)
}

// LoadSnapshot restores state from a checkpoint, key by key: sequences
// present in the snapshot replace the current ones, missing keys leave the
// current (expected empty) sequences in place. This is a checkpoint restore,
// not a merge with live state.
func (t *SessionTracker) LoadSnapshot(snapshot models.SessionSnapshot) {
	if snapshot.EmotionTrends != nil {
		t.emotionTrends = append([]string{}, snapshot.EmotionTrends...)
	}
	if snapshot.Intents != nil {
		t.intents = append([]string{}, snapshot.Intents...)
	}
	if snapshot.Topics != nil {
		t.topics = append([]string{}, snapshot.Topics...)
	}
	if snapshot.Personalization != nil {
		t.personalization = append([]models.PersonalizationTags{}, snapshot.Personalization...)
	}
	if snapshot.Turns != nil {
		t.turns = append([]models.Turn{}, snapshot.Turns...)
	}
}

// ToSnapshot exports all sequences verbatim for persistence.
func (t *SessionTracker) ToSnapshot() models.SessionSnapshot {
	return models.SessionSnapshot{
		EmotionTrends:   append([]string{}, t.emotionTrends...),
		Intents:         append([]string{}, t.intents...),
		Topics:          append([]string{}, t.topics...),
		Personalization: append([]models.PersonalizationTags{}, t.personalization...),
		Turns:           append([]models.Turn{}, t.turns...),
	}
}
