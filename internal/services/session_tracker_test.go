package services

import (
	"reflect"
	"testing"

	"tca/internal/models"
)

func TestTrackerUpdateKeepsTurnOrder(t *testing.T) {
	tracker := NewSessionTracker()
	tracker.Update(models.Tags{Emotion: "fatigue", Intent: "emotional_disclosure", Topic: "work"})
	tracker.Update(models.Tags{Emotion: "calm", Intent: "goal_expression", Topic: "rest"})

	if got, want := tracker.EmotionTrends(), []string{"fatigue", "calm"}; !reflect.DeepEqual(got, want) {
		t.Errorf("emotion trends = %v, want %v", got, want)
	}
	snapshot := tracker.ToSnapshot()
	if got, want := snapshot.Intents, []string{"emotional_disclosure", "goal_expression"}; !reflect.DeepEqual(got, want) {
		t.Errorf("intents = %v, want %v", got, want)
	}
}

func TestTrackerMissingTagsUseEmptySentinel(t *testing.T) {
	tracker := NewSessionTracker()
	tracker.Update(models.Tags{Emotion: "fatigue"})

	snapshot := tracker.ToSnapshot()
	if !reflect.DeepEqual(snapshot.Intents, []string{""}) {
		t.Errorf("intents = %v, want empty sentinel", snapshot.Intents)
	}
	if !reflect.DeepEqual(snapshot.Topics, []string{""}) {
		t.Errorf("topics = %v, want empty sentinel", snapshot.Topics)
	}
	if len(snapshot.Personalization) != 0 {
		t.Errorf("personalization = %v, want none recorded", snapshot.Personalization)
	}
}

func TestTrackerSnapshotRoundTrip(t *testing.T) {
	tracker := NewSessionTracker()
	tracker.Update(models.Tags{
		Emotion:         "fatigue",
		Intent:          "emotional_disclosure",
		Topic:           "work",
		Personalization: &models.PersonalizationTags{Instructions: "be direct"},
	})
	tracker.AppendTurn("I'm tired", "That sounds draining.")

	restored := NewSessionTracker()
	restored.LoadSnapshot(tracker.ToSnapshot())

	if !reflect.DeepEqual(restored.ToSnapshot(), tracker.ToSnapshot()) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", restored.ToSnapshot(), tracker.ToSnapshot())
	}
}

func TestTrackerLoadSnapshotMergesKeyByKey(t *testing.T) {
	tracker := NewSessionTracker()
	tracker.LoadSnapshot(models.SessionSnapshot{
		Intents: []string{"goal_expression"},
	})

	snapshot := tracker.ToSnapshot()
	if !reflect.DeepEqual(snapshot.Intents, []string{"goal_expression"}) {
		t.Errorf("intents = %v", snapshot.Intents)
	}
	// Keys missing from the checkpoint leave current empty sequences alone.
	if len(snapshot.EmotionTrends) != 0 || len(snapshot.Topics) != 0 || len(snapshot.Turns) != 0 {
		t.Errorf("missing keys overwrote live state: %+v", snapshot)
	}
}

func TestTrackerAppendTurn(t *testing.T) {
	tracker := NewSessionTracker()
	tracker.AppendTurn("hello", "hi there")
	tracker.AppendTurn("bye", "take care")

	turns := tracker.Turns()
	want := []models.Turn{{User: "hello", Bot: "hi there"}, {User: "bye", Bot: "take care"}}
	if !reflect.DeepEqual(turns, want) {
		t.Errorf("turns = %v, want %v", turns, want)
	}
}
