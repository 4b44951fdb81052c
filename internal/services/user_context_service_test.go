package services

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"tca/internal/database"
	"tca/internal/models"
)

func newFileStore(t *testing.T) *database.FileStore {
	t.Helper()
	store, err := database.NewFileStore(filepath.Join(t.TempDir(), "user_memory.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func TestLoadWithoutBackendReturnsDefault(t *testing.T) {
	svc := NewUserContextService(nil, nil)

	rec := svc.Load(context.Background(), "u1")
	if rec == nil {
		t.Fatal("expected a default record, got nil")
	}
	if rec.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", rec.UserID)
	}
	if len(rec.Profile) != 0 || len(rec.Todos) != 0 || rec.Instructions != "" {
		t.Errorf("default record not empty: %+v", rec)
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Error("timestamps not initialized")
	}
}

func TestLoadCreatesAndPersistsNewUser(t *testing.T) {
	store := newFileStore(t)
	svc := NewUserContextService(store, nil)
	ctx := context.Background()

	rec := svc.Load(ctx, "u1")
	if rec.UserID != "u1" {
		t.Fatalf("UserID = %q", rec.UserID)
	}

	doc, err := store.GetDocument(ctx, database.CollectionUsers, "u1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc == nil {
		t.Fatal("new user record was not persisted")
	}
}

func TestLoadNormalizesLegacyProfileString(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()
	err := store.UpsertDocument(ctx, database.CollectionUsers, "u1", models.Document{
		"profile": "old accumulated notes",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := NewUserContextService(store, nil)
	rec := svc.Load(ctx, "u1")
	if rec.Profile[models.ProfileInfoKey] != "old accumulated notes" {
		t.Errorf("profile.info = %q, want normalized legacy string", rec.Profile[models.ProfileInfoKey])
	}
}

func TestLoadMigratesLegacyLayout(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()
	seedLegacy(t, store, "u1")

	svc := NewUserContextService(store, nil)
	rec := svc.Load(ctx, "u1")
	if rec.Profile[models.ProfileInfoKey] != "likes hiking" {
		t.Errorf("profile.info = %q, want migrated legacy notes", rec.Profile[models.ProfileInfoKey])
	}
	if !reflect.DeepEqual(rec.Todos, []string{"buy milk", "call mom"}) {
		t.Errorf("todos = %v, want migrated legacy todos", rec.Todos)
	}
	if rec.Instructions != "be concise" || rec.ResearchGoals != "learn go" {
		t.Errorf("instructions/goals = %q, %q, want migrated legacy values", rec.Instructions, rec.ResearchGoals)
	}

	// The migrated record was persisted as the consolidated document.
	doc, err := store.GetDocument(ctx, database.CollectionUsers, "u1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc == nil {
		t.Fatal("consolidated record not persisted")
	}
	if doc["instructions"] != "be concise" {
		t.Errorf("persisted instructions = %v", doc["instructions"])
	}
}

func TestMergeUpdateScalarsLastWriteWins(t *testing.T) {
	store := newFileStore(t)
	svc := NewUserContextService(store, nil)
	ctx := context.Background()

	first := svc.Load(ctx, "u1")

	if err := svc.MergeUpdate(ctx, "u1", map[string]any{"instructions": "be concise"}); err != nil {
		t.Fatalf("MergeUpdate: %v", err)
	}
	rec := svc.Current(ctx, "u1")
	if rec.Instructions != "be concise" {
		t.Errorf("instructions = %q, want 'be concise'", rec.Instructions)
	}
	if !rec.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("updated_at not advanced: %v -> %v", first.UpdatedAt, rec.UpdatedAt)
	}
	if !rec.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", first.CreatedAt, rec.CreatedAt)
	}

	if err := svc.MergeUpdate(ctx, "u1", map[string]any{"instructions": "be thorough"}); err != nil {
		t.Fatalf("MergeUpdate: %v", err)
	}
	if got := svc.Current(ctx, "u1").Instructions; got != "be thorough" {
		t.Errorf("instructions = %q, want last write", got)
	}
}

func TestMergeUpdateProfileAppendsNovelOnly(t *testing.T) {
	store := newFileStore(t)
	svc := NewUserContextService(store, nil)
	ctx := context.Background()
	svc.Load(ctx, "u1")

	for i := 0; i < 2; i++ {
		if err := svc.MergeUpdate(ctx, "u1", map[string]any{"profile": "likes hiking"}); err != nil {
			t.Fatalf("MergeUpdate #%d: %v", i+1, err)
		}
	}
	rec := svc.Current(ctx, "u1")
	if rec.Profile[models.ProfileInfoKey] != "likes hiking" {
		t.Errorf("profile.info = %q, want single occurrence", rec.Profile[models.ProfileInfoKey])
	}

	if err := svc.MergeUpdate(ctx, "u1", map[string]any{"profile": "works remotely"}); err != nil {
		t.Fatalf("MergeUpdate: %v", err)
	}
	if got := svc.Current(ctx, "u1").Profile[models.ProfileInfoKey]; got != "likes hiking works remotely" {
		t.Errorf("profile.info = %q, want appended novel text", got)
	}
}

func TestMergeUpdateProfileSubKeysLastWriteWins(t *testing.T) {
	store := newFileStore(t)
	svc := NewUserContextService(store, nil)
	ctx := context.Background()
	svc.Load(ctx, "u1")

	if err := svc.MergeUpdate(ctx, "u1", map[string]any{"profile": map[string]any{"location": "jerusalem"}}); err != nil {
		t.Fatalf("MergeUpdate: %v", err)
	}
	if err := svc.MergeUpdate(ctx, "u1", map[string]any{"profile": map[string]any{"location": "tel aviv"}}); err != nil {
		t.Fatalf("MergeUpdate: %v", err)
	}
	if got := svc.Current(ctx, "u1").Profile["location"]; got != "tel aviv" {
		t.Errorf("profile.location = %q, want last write", got)
	}
}

func TestMergeUpdateTodosAppendDistinct(t *testing.T) {
	store := newFileStore(t)
	svc := NewUserContextService(store, nil)
	ctx := context.Background()
	svc.Load(ctx, "u1")

	steps := []struct {
		todos []string
		want  []string
	}{
		{[]string{"buy milk"}, []string{"buy milk"}},
		{[]string{"buy milk"}, []string{"buy milk"}},
		{[]string{"call mom"}, []string{"buy milk", "call mom"}},
	}
	for i, step := range steps {
		if err := svc.MergeUpdate(ctx, "u1", map[string]any{"todos": step.todos}); err != nil {
			t.Fatalf("MergeUpdate #%d: %v", i+1, err)
		}
		got := svc.Current(ctx, "u1").Todos
		if !reflect.DeepEqual(got, step.want) {
			t.Errorf("step %d: todos = %v, want %v", i+1, got, step.want)
		}
	}
}

func TestMergeUpdateRejectsInvalidTodos(t *testing.T) {
	svc := NewUserContextService(newFileStore(t), nil)
	ctx := context.Background()
	svc.Load(ctx, "u1")

	err := svc.MergeUpdate(ctx, "u1", map[string]any{"todos": 42})
	if err == nil {
		t.Fatal("expected validation error for non-list todos")
	}
}

func TestMergeUpdateWithoutBackendUpdatesMemoryOnly(t *testing.T) {
	svc := NewUserContextService(nil, nil)
	ctx := context.Background()
	svc.Load(ctx, "u1")

	if err := svc.MergeUpdate(ctx, "u1", map[string]any{"instructions": "be concise"}); err != nil {
		t.Fatalf("MergeUpdate without backend should degrade, got %v", err)
	}
	if got := svc.Current(ctx, "u1").Instructions; got != "be concise" {
		t.Errorf("in-memory instructions = %q", got)
	}
}

func TestSnapshotIsPureProjection(t *testing.T) {
	store := newFileStore(t)
	svc := NewUserContextService(store, nil)
	ctx := context.Background()
	svc.Load(ctx, "u1")
	if err := svc.MergeUpdate(ctx, "u1", map[string]any{"research_goals": "learn go"}); err != nil {
		t.Fatalf("MergeUpdate: %v", err)
	}

	snapshot := svc.Snapshot("u1")
	if snapshot["research_goals"] != "learn go" {
		t.Errorf("snapshot research_goals = %v", snapshot["research_goals"])
	}
	// Mutating the snapshot must not leak back into the service.
	snapshot["research_goals"] = "mutated"
	if got := svc.Snapshot("u1")["research_goals"]; got != "learn go" {
		t.Errorf("snapshot mutation leaked: %v", got)
	}
}

func TestAppendNovelText(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		addition string
		want     string
		changed  bool
	}{
		{"append to empty", "", "likes hiking", "likes hiking", true},
		{"append novel", "likes hiking", "works remotely", "likes hiking works remotely", true},
		{"suppress duplicate", "likes hiking", "likes hiking", "likes hiking", false},
		{"suppress substring", "really likes hiking a lot", "likes hiking", "really likes hiking a lot", false},
		{"case sensitive", "likes hiking", "Likes Hiking", "likes hiking Likes Hiking", true},
		{"blank addition", "likes hiking", "  ", "likes hiking", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := AppendNovelText(tt.existing, tt.addition)
			if got != tt.want || changed != tt.changed {
				t.Errorf("AppendNovelText(%q, %q) = (%q, %v), want (%q, %v)",
					tt.existing, tt.addition, got, changed, tt.want, tt.changed)
			}
		})
	}
}
