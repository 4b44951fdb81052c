package models

import (
	"testing"
	"time"
)

func TestUserRecordFromDocumentLegacyProfile(t *testing.T) {
	doc := Document{
		"user_id": "alice",
		"profile": "enjoys chess",
		"todos":   []any{"buy milk"},
	}

	rec, err := UserRecordFromDocument("alice", doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Profile[ProfileInfoKey] != "enjoys chess" {
		t.Errorf("profile info = %q", rec.Profile[ProfileInfoKey])
	}
	if len(rec.Todos) != 1 || rec.Todos[0] != "buy milk" {
		t.Errorf("todos = %v", rec.Todos)
	}
}

func TestUserRecordFromDocumentTolerant(t *testing.T) {
	doc := Document{
		"user_id":      "bob",
		"todos":        "not-a-list",
		"instructions": nil,
	}

	rec, err := UserRecordFromDocument("bob", doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.Profile) != 0 {
		t.Errorf("profile = %v, want empty", rec.Profile)
	}
	if len(rec.Todos) != 0 {
		t.Errorf("todos = %v, want empty", rec.Todos)
	}
	if rec.Instructions != "" {
		t.Errorf("instructions = %q, want empty", rec.Instructions)
	}
}

func TestUserRecordFromDocumentBadProfile(t *testing.T) {
	if _, err := UserRecordFromDocument("bob", Document{"profile": 42}); err == nil {
		t.Error("expected error for non-string profile")
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	rec := NewUserRecord("carol")
	rec.Profile[ProfileInfoKey] = "remote worker"
	rec.Todos = []string{"a", "b"}
	rec.Instructions = "be brief"

	doc := rec.Document()
	back, err := UserRecordFromDocument("carol", doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if back.Profile[ProfileInfoKey] != "remote worker" {
		t.Errorf("profile = %v", back.Profile)
	}
	if len(back.Todos) != 2 || !back.HasTodo("a") || back.HasTodo("c") {
		t.Errorf("todos = %v", back.Todos)
	}
	if back.Instructions != "be brief" {
		t.Errorf("instructions = %q", back.Instructions)
	}
	if back.CreatedAt.IsZero() || back.UpdatedAt.IsZero() {
		t.Error("timestamps should survive the round trip")
	}
}

func TestCloneIsolation(t *testing.T) {
	rec := NewUserRecord("dave")
	rec.Profile[ProfileInfoKey] = "original"
	rec.Todos = []string{"one"}

	clone := rec.Clone()
	clone.Profile[ProfileInfoKey] = "changed"
	clone.Todos = append(clone.Todos, "two")

	if rec.Profile[ProfileInfoKey] != "original" {
		t.Error("clone mutation leaked into profile")
	}
	if len(rec.Todos) != 1 {
		t.Error("clone mutation leaked into todos")
	}
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2025, 3, 9, 12, 30, 0, 0, time.FixedZone("X", 3600))
	got := FormatTime(ts)
	if got != "2025-03-09T11:30:00Z" {
		t.Errorf("FormatTime = %q", got)
	}
}
