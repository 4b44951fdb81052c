package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"tca/internal/database"
	"tca/internal/models"
)

// ErrUnsupportedField is returned by SaveField for field names outside
// {profile, instructions, research_goals, todos}.
var ErrUnsupportedField = errors.New("unsupported personalization field")

// ContextReader materializes a PersonalizationSnapshot from one physical
// storage layout. Two layouts exist: the consolidated per-user document and
// the legacy four-collection layout that predates it.
type ContextReader interface {
	Read(ctx context.Context, sessionID string) (models.PersonalizationSnapshot, error)
}

// PersonalizationService is the denormalized read/write view over the user
// context, scoped by session id. Reads go through a short-lived TTL cache
// and a layout-detection probe; writes go through the layout the session's
// data already lives in and invalidate the cache entry.
type PersonalizationService struct {
	store database.DocumentStore
	users *UserContextService
	cache *cache.Cache
}

// NewPersonalizationService creates the cache view. store may be nil when no
// backend is configured, in which case Fetch always returns the empty
// snapshot and SaveField degrades through the user context store.
func NewPersonalizationService(store database.DocumentStore, users *UserContextService) *PersonalizationService {
	return &PersonalizationService{
		store: store,
		users: users,
		cache: cache.New(30*time.Second, 5*time.Minute),
	}
}

// Fetch returns the personalization snapshot for a session. On any read
// error it returns the all-empty snapshot rather than raising: response
// generation degrades to unpersonalized output, it never fails.
func (s *PersonalizationService) Fetch(ctx context.Context, sessionID string) models.PersonalizationSnapshot {
	if cached, found := s.cache.Get(sessionID); found {
		return cached.(models.PersonalizationSnapshot).Clone()
	}
	if s.store == nil {
		return models.EmptyPersonalizationSnapshot()
	}

	snapshot, err := s.reader(ctx, sessionID).Read(ctx, sessionID)
	if err != nil {
		slog.Warn("personalization fetch failed, returning empty context", "session_id", sessionID, "error", err)
		return models.EmptyPersonalizationSnapshot()
	}
	s.cache.Set(sessionID, snapshot, cache.DefaultExpiration)
	// The cache keeps its own copy; hand the caller one it may mutate.
	return snapshot.Clone()
}

// Invalidate drops the cached snapshot for a session. Callers that write
// user context outside SaveField use it to keep the next Fetch fresh.
func (s *PersonalizationService) Invalidate(sessionID string) {
	s.cache.Delete(sessionID)
}

// SaveField upserts one personalization field for the session. profile,
// instructions and research_goals merge per the user-context policy; todos
// insertion is idempotent for the same literal value. Any other field name
// is a caller error.
func (s *PersonalizationService) SaveField(ctx context.Context, sessionID, field string, value string) error {
	switch field {
	case "profile", "instructions", "research_goals", "todos":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedField, field)
	}
	defer s.cache.Delete(sessionID)

	if s.store != nil && s.isLegacy(ctx, sessionID) {
		return s.saveLegacy(ctx, sessionID, field, value)
	}
	// Consolidated layout: delegate to the user context merge policy.
	var payload any = value
	if field == "todos" {
		payload = []string{value}
	}
	return s.users.MergeUpdate(ctx, sessionID, map[string]any{field: payload})
}

// reader picks the layout adapter for a session: a consolidated user
// document wins, existing legacy documents keep the session on the legacy
// path, and brand-new sessions get the consolidated layout.
func (s *PersonalizationService) reader(ctx context.Context, sessionID string) ContextReader {
	if s.isLegacy(ctx, sessionID) {
		return &legacyReader{store: s.store}
	}
	return &consolidatedReader{store: s.store}
}

func (s *PersonalizationService) isLegacy(ctx context.Context, sessionID string) bool {
	if doc, err := s.store.GetDocument(ctx, database.CollectionUsers, sessionID); err == nil && doc != nil {
		return false
	}
	if doc, err := s.store.GetDocument(ctx, database.CollectionProfile, sessionID); err == nil && doc != nil {
		return true
	}
	for _, collection := range []string{database.CollectionInstructions, database.CollectionResearchGoals} {
		if doc, err := s.store.GetDocument(ctx, collection, sessionID); err == nil && doc != nil {
			return true
		}
	}
	if docs, err := s.store.ListDocuments(ctx, database.CollectionTodos, sessionID); err == nil && len(docs) > 0 {
		return true
	}
	return false
}

// saveLegacy writes through the legacy four-collection layout, mirroring its
// original semantics: profile appends novel text, instructions and goals
// upsert their single field, each novel todo becomes its own document.
func (s *PersonalizationService) saveLegacy(ctx context.Context, sessionID, field, value string) error {
	now := models.FormatTime(time.Now())

	switch field {
	case "profile":
		existing, err := s.store.GetDocument(ctx, database.CollectionProfile, sessionID)
		if err != nil {
			return err
		}
		current := ""
		if existing != nil {
			current, _ = existing["info"].(string)
		}
		merged, changed := AppendNovelText(current, value)
		if !changed {
			return nil
		}
		return s.store.UpsertDocument(ctx, database.CollectionProfile, sessionID, models.Document{
			"user_id":    sessionID,
			"info":       merged,
			"updated_at": now,
		})

	case "instructions", "research_goals":
		collection := database.CollectionInstructions
		fieldKey := "content"
		if field == "research_goals" {
			collection = database.CollectionResearchGoals
			fieldKey = "goals"
		}
		return s.store.UpsertDocument(ctx, collection, sessionID, models.Document{
			"user_id":    sessionID,
			fieldKey:     value,
			"updated_at": now,
		})

	case "todos":
		docs, err := s.store.ListDocuments(ctx, database.CollectionTodos, sessionID)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if todo, _ := doc["todo"].(string); todo == value {
				return nil
			}
		}
		return s.store.UpsertDocument(ctx, database.CollectionTodos, uuid.NewString(), models.Document{
			"user_id":    sessionID,
			"todo":       value,
			"created_at": now,
		})
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedField, field)
}

// consolidatedReader reads the single users document.
type consolidatedReader struct {
	store database.DocumentStore
}

func (r *consolidatedReader) Read(ctx context.Context, sessionID string) (models.PersonalizationSnapshot, error) {
	doc, err := r.store.GetDocument(ctx, database.CollectionUsers, sessionID)
	if err != nil {
		return models.EmptyPersonalizationSnapshot(), err
	}
	if doc == nil {
		return models.EmptyPersonalizationSnapshot(), nil
	}
	rec, err := models.UserRecordFromDocument(sessionID, doc)
	if err != nil {
		return models.EmptyPersonalizationSnapshot(), err
	}
	return models.PersonalizationSnapshot{
		Profile:       rec.Profile,
		Todos:         rec.Todos,
		Instructions:  rec.Instructions,
		ResearchGoals: rec.ResearchGoals,
	}, nil
}

// legacyReader stitches the snapshot together from the four per-field
// collections.
type legacyReader struct {
	store database.DocumentStore
}

func (r *legacyReader) Read(ctx context.Context, sessionID string) (models.PersonalizationSnapshot, error) {
	snapshot := models.EmptyPersonalizationSnapshot()

	profileDoc, err := r.store.GetDocument(ctx, database.CollectionProfile, sessionID)
	if err != nil {
		return snapshot, err
	}
	if profileDoc != nil {
		if info, _ := profileDoc["info"].(string); info != "" {
			snapshot.Profile["info"] = info
		}
	}

	todoDocs, err := r.store.ListDocuments(ctx, database.CollectionTodos, sessionID)
	if err != nil {
		return snapshot, err
	}
	for _, doc := range todoDocs {
		if todo, _ := doc["todo"].(string); todo != "" {
			snapshot.Todos = append(snapshot.Todos, todo)
		}
	}

	instructionsDoc, err := r.store.GetDocument(ctx, database.CollectionInstructions, sessionID)
	if err != nil {
		return snapshot, err
	}
	if instructionsDoc != nil {
		snapshot.Instructions, _ = instructionsDoc["content"].(string)
	}

	goalsDoc, err := r.store.GetDocument(ctx, database.CollectionResearchGoals, sessionID)
	if err != nil {
		return snapshot, err
	}
	if goalsDoc != nil {
		snapshot.ResearchGoals, _ = goalsDoc["goals"].(string)
	}

	return snapshot, nil
}
